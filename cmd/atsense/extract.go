package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showText bool

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Run the extraction cascade and report each strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		out := app.Cascade.Run(cmd.Context(), doc)
		if err := printJSON(cmd, map[string]any{
			"file":       doc.FileName,
			"size":       doc.Size(),
			"minLength":  app.Cascade.MinLength(),
			"succeeded":  out.Succeeded(),
			"strategy":   out.Strategy,
			"bestLength": out.BestLength(),
			"attempts":   out.Attempts,
		}); err != nil {
			return err
		}
		if showText {
			fmt.Fprintln(cmd.OutOrStdout(), out.Text)
		}
		if !out.Succeeded() {
			return fmt.Errorf("no strategy extracted at least %d characters", app.Cascade.MinLength())
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&showText, "text", false, "print the extracted text after the report")
	rootCmd.AddCommand(extractCmd)
}
