package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/candidate-intake/internal/ingestion"
	"github.com/jonathan/candidate-intake/internal/llm"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/resumeqa"
)

var (
	askTopK         int
	askVerbose      bool
	askRetrieveOnly bool
	askJSON         bool
)

var askCmd = &cobra.Command{
	Use:   "ask <resume.pdf> <question>",
	Short: "Answer a question about a resume",
	Long: "Split a PDF resume into sections and chunks, pick the chunks closest to the question " +
		"and have the model answer from them.",
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", resumeqa.DefaultTopK, "Number of resume excerpts to answer from")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "Also print the excerpts with their section and relevance")
	askCmd.Flags().BoolVar(&askRetrieveOnly, "retrieve-only", false, "Print the matching excerpts without calling the model")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args[1:], " ")
	if askTopK <= 0 {
		return fmt.Errorf("--top-k must be positive, got %d", askTopK)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text, err := ingestion.NewExtractor().ExtractFile(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", args[0], err)
	}
	ix, err := resumeqa.NewIndex(ingestion.CleanText(text))
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if askRetrieveOnly {
		matches := ix.Retrieve(question, askTopK)
		if askJSON {
			return writeJSON(out, matches)
		}
		printMatches(out, matches)
		return nil
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required (set GEMINI_API_KEY environment variable or api_key in the config file)")
	}
	client, err := llm.NewClient(cmd.Context(), modelConfig(cfg), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close model client")
		}
	}()

	ctx := cmd.Context()
	if timeout := cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	answer, err := ix.Ask(ctx, client, question, askTopK)
	if err != nil {
		return err
	}
	if askJSON {
		return writeJSON(out, answer)
	}
	fmt.Fprintln(out, answer.Text)
	if askVerbose {
		fmt.Fprintln(out)
		printMatches(out, answer.Matches)
	}
	return nil
}

func printMatches(w io.Writer, matches []resumeqa.Match) {
	for i, m := range matches {
		fmt.Fprintf(w, "%d. [%s] %.0f%% %s\n", i+1, m.Section, 100*m.Similarity, m.Text)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
