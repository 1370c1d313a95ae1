package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	imagesort "github.com/anatolykoptev/go-imagesort"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url>...",
	Short: "Analyze images and print the results as JSON",
	Long: `Analyze classifies local image files or http(s) URLs and prints one
JSON object per input.

Example:
  imagesort analyze my_dog.png
  imagesort analyze https://example.com/mountain_photo.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOutput struct {
	Input string `json:"input"`
	imagesort.AnalysisResult
	Error string `json:"error,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	failed := 0
	for _, arg := range args {
		res, err := analyzeOne(ctx, a.analyzer, arg)
		out := analyzeOutput{Input: arg, AnalysisResult: res}
		if err != nil {
			out.Error = err.Error()
			failed++
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(args))
	}
	return nil
}

func analyzeOne(ctx context.Context, an *imagesort.Analyzer, arg string) (imagesort.AnalysisResult, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return an.AnalyzeURL(ctx, arg)
	}

	f, err := os.Open(arg)
	if err != nil {
		return imagesort.AnalysisResult{}, fmt.Errorf("open %s: %w", arg, err)
	}
	defer f.Close()

	u, err := imagesort.ReadUpload(filepath.Base(arg), "", f, cfg.Server.MaxUploadBytes)
	if err != nil {
		return imagesort.AnalysisResult{}, err
	}
	return an.Analyze(ctx, u)
}
