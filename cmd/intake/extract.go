package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/candidate-intake/internal/ingestion"
)

var (
	extractClean bool
	extractOut   string
)

var extractCmd = &cobra.Command{
	Use:   "extract <resume.pdf>",
	Short: "Print the text extracted from a PDF resume",
	Long:  "Extract the text of a PDF the same way uploads do, one line per text row and a newline after each page.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractClean, "clean", false, "Normalize whitespace and blank lines")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Write the text to a file instead of stdout")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	text, err := ingestion.NewExtractor().ExtractFile(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", args[0], err)
	}
	if extractClean {
		text = ingestion.CleanText(text) + "\n"
	}

	if extractOut == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(extractOut, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Extracted %d characters to %s\n", len(text), extractOut)
	return nil
}
