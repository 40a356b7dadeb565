package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/candidate-intake/internal/assessment"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/observability"
	"github.com/jonathan/candidate-intake/internal/types"
)

var (
	analyzeSession string
	analyzeOut     string
	analyzeVerbose bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume.pdf>",
	Short: "Run a resume through the upload pipeline",
	Long: "Extract a PDF resume, ask the model for its structured experience and customized questions, " +
		"and store the report under a session, as POST /upload does.",
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSession, "session", "", "Session ID to store the report under (default: new UUID)")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "Also write the result JSON to this file")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Print a readable summary instead of JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read resume: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := analyzeSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	stderr := cmd.ErrOrStderr()
	result, err := a.service.Upload(cmd.Context(), assessment.UploadRequest{
		SessionID: sessionID,
		Filename:  filepath.Base(args[0]),
		Data:      data,
		OnProgress: func(e assessment.ProgressEvent) {
			fmt.Fprintf(stderr, "[%s] %s\n", e.Step, e.Message)
		},
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzeVerbose {
		printUpload(cmd.OutOrStdout(), result)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if analyzeOut != "" {
		if err := os.WriteFile(analyzeOut, out, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	}
	if !analyzeVerbose {
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	fmt.Fprintf(stderr, "Session: %s\n", sessionID)
	return nil
}

// printUpload renders the stored experience and questions for a terminal.
func printUpload(w io.Writer, result *assessment.UploadResult) {
	printer := observability.NewPrinter(w)

	var exp types.ParsedExperience
	if err := json.Unmarshal(result.ParsedExperience, &exp); err != nil {
		logging.Warn().Err(err).Msg("failed to decode parsed experience")
	} else {
		printer.PrintParsedExperience(&exp)
	}

	var questions types.QuestionSet
	if err := json.Unmarshal(result.CustomizedQuestions, &questions); err != nil {
		logging.Warn().Err(err).Msg("failed to decode customized questions")
	} else {
		printer.PrintQuestions("CUSTOMIZED QUESTIONS", &questions)
	}
}
