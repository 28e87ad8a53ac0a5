package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate a markdown summary of the database",
	Long:  `Writes one markdown section per dump point listing its runs, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var summaryOutput string

const maxMarkdownChars = 65000

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryOutput, "output", "",
		"Output file path (default: summary-<name>.md, \"-\" for stdout)")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}

	md := db.GenerateMarkdown(maxMarkdownChars)

	output := summaryOutput
	if output == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), md)

		return err
	}

	if output == "" {
		output = fmt.Sprintf("summary-%s.md", db.Name())
	}

	if err := os.WriteFile(output, []byte(md), 0o644); err != nil { //nolint:gosec // report file
		return fmt.Errorf("writing output file: %w", err)
	}

	log.WithField("output", output).
		Info("Markdown summary generated successfully")

	return nil
}
