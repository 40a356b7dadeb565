package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/candidate-intake/internal/server"
)

var (
	servePort          int
	serveSecureCookies bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intake HTTP server",
	Long:  `Start an HTTP server that serves the browser client and the upload, answer and report endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config and PORT)")
	serveCmd.Flags().BoolVar(&serveSecureCookies, "secure-cookies", false, "Mark the session cookie Secure (serve behind HTTPS)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      rateLimitConfig(cfg),
		SecureCookies:  serveSecureCookies,
	}, a.service)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
