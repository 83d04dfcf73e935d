package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"atsense-api/internal/analyses"
)

var jobDescFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.pdf>",
	Short: "Score a resume, optionally against a job description",
	Long: `Extract text from a resume PDF and ask the configured model for an ATS analysis.

Example:
  atsense analyze resume.pdf
  atsense analyze resume.pdf --jd posting.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		var jobDesc string
		if jobDescFile != "" {
			raw, err := os.ReadFile(jobDescFile)
			if err != nil {
				return fmt.Errorf("read job description: %w", err)
			}
			jobDesc = strings.TrimSpace(string(raw))
		}

		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := app.AnalysesService.Analyze(cmd.Context(), analyses.AnalyzeRequest{
			UserID:         "cli:local",
			RequestID:      uuid.NewString(),
			Document:       doc,
			JobDescription: jobDesc,
		})
		if err != nil {
			return fmt.Errorf("analyze %s: %w", doc.FileName, err)
		}
		return printJSON(cmd, map[string]any{
			"file":        doc.FileName,
			"grade":       out.Record.Metadata.Grade,
			"model":       out.Model,
			"payloadKind": out.Kind,
			"strategy":    out.Extraction.Strategy,
			"result":      out.Result,
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&jobDescFile, "jd", "", "path to a job description text file")
	rootCmd.AddCommand(analyzeCmd)
}
