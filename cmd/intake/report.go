package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/candidate-intake/internal/config"
	"github.com/jonathan/candidate-intake/internal/logging"
	"github.com/jonathan/candidate-intake/internal/observability"
	"github.com/jonathan/candidate-intake/internal/store"
	"github.com/jonathan/candidate-intake/internal/types"
)

var (
	reportSession  string
	reportVerbose  bool
	reportAnalysis bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the stored report of a session",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportSession, "session", "", "Session ID (required)")
	reportCmd.Flags().BoolVarP(&reportVerbose, "verbose", "v", false, "Print a readable summary instead of JSON")
	reportCmd.Flags().BoolVar(&reportAnalysis, "analysis", false, "Print the recruiter analysis instead (calls the model)")
	_ = reportCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if reportAnalysis {
		return runReportAnalysis(cmd, cfg)
	}

	st, err := store.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close report store")
		}
	}()

	raw, err := st.Read(cmd.Context(), reportSession)
	if err != nil {
		return fmt.Errorf("failed to read report for session %s: %w", reportSession, err)
	}

	if reportVerbose {
		doc, err := types.ParseDocument(raw)
		if err != nil {
			return err
		}
		report, err := doc.Report()
		if err != nil {
			return fmt.Errorf("failed to decode report: %w", err)
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintReport(report)
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("stored report is not valid JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}

// runReportAnalysis prints the recruiter analysis, as GET /final-report returns it.
func runReportAnalysis(cmd *cobra.Command, cfg *config.Config) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	analysis, raw, err := a.service.FinalAnalysis(cmd.Context(), reportSession)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if reportVerbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintAnalysis(analysis)
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("analysis is not valid JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
