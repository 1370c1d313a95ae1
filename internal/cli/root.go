package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anatolykoptev/go-imagesort/internal/config"
	"github.com/anatolykoptev/go-imagesort/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

var (
	cfgFile  string
	logLevel string

	v   *viper.Viper
	cfg config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "imagesort",
	Short: "imagesort - sort pictures into living, manufactured and natural",
	Long: `imagesort classifies uploaded pictures into one of three categories
(living, manufactured, natural) with a pretrained image model, and falls
back to a file-name heuristic when the model is unavailable.

User verdicts on the suggestions are kept in a short, persistent history.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "imagesort %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./imagesort.yaml or $HOME/.imagesort/imagesort.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	v, err = config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		v.Set("log.level", logLevel)
	}
	if f := cmd.Flags().Lookup("addr"); f != nil {
		if err := v.BindPFlag("server.addr", f); err != nil {
			return fmt.Errorf("bind --addr: %w", err)
		}
	}

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)
	return nil
}
