package onnxmodel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// download fetches repo from the Hugging Face hub into dir, skipping the
// download when a previous run already left the files there.
func download(ctx context.Context, repo, dir string) (string, error) {
	if dir == "" {
		dir = "./models"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	local := filepath.Join(dir, strings.ReplaceAll(repo, "/", "_"))
	if _, err := findFile(local, func(n string) bool { return filepath.Ext(n) == ".onnx" }); err == nil {
		slog.Debug("imagesort: model already downloaded", "repo", repo, "path", local)
		return local, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	slog.Info("imagesort: downloading model", "repo", repo, "dir", dir)
	path, err := hugot.DownloadModel(repo, dir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("download %s: %w", repo, err)
	}
	return path, nil
}
