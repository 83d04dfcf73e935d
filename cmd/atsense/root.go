package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"atsense-api/internal/bootstrap"
	"atsense-api/internal/extract"
	"atsense-api/internal/shared/config"
)

var rootCmd = &cobra.Command{
	Use:           "atsense",
	Short:         "Extract and score resume PDFs from the command line",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// buildApp wires the same pipeline as the API, minus persistence side effects.
var buildApp = func(ctx context.Context) (*bootstrap.App, error) {
	cfg := config.Load()
	cfg.DocumentStore = "memory"
	cfg.ObjectStoreType = "none"
	cfg.SQSQueueURL = ""
	return bootstrap.Build(ctx, cfg)
}

func readDocument(path string) (extract.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return extract.Document{
		Data:     data,
		MIMEType: "application/pdf",
		FileName: filepath.Base(path),
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
