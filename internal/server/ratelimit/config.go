package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig limits the requests matching one route pattern.
type EndpointConfig struct {
	Pattern string        // http.ServeMux pattern, e.g. "POST /upload"
	Limit   int           // requests per window, 0 for unlimited
	Window  time.Duration // refill window
	Burst   int           // bucket capacity, Limit when 0
}

// DefaultConfig returns an enabled limiter configuration for the intake routes.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits the routes that call the model hardest, then
// the answer writes. Everything else falls back to the default limit.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Pattern: "POST /upload", Limit: 10, Window: time.Hour, Burst: 3},
		{Pattern: "POST /upload/stream", Limit: 10, Window: time.Hour, Burst: 3},
		{Pattern: "GET /final-report", Limit: 30, Window: time.Hour, Burst: 5},
		{Pattern: "GET /behavior-questions", Limit: 30, Window: time.Hour, Burst: 5},

		{Pattern: "POST /save-customized-json", Limit: 100, Window: time.Minute, Burst: 10},
		{Pattern: "POST /save-behavior-json", Limit: 100, Window: time.Minute, Burst: 10},
		{Pattern: "POST /analyze-behavior", Limit: 100, Window: time.Minute, Burst: 10},

		{Pattern: "GET /health", Limit: 0},
	}
}

// ClientSet builds a whitelist or blacklist from client addresses, skipping blanks.
func ClientSet(clients []string) map[string]bool {
	set := make(map[string]bool, len(clients))
	for _, c := range clients {
		if c = strings.TrimSpace(c); c != "" {
			set[c] = true
		}
	}
	return set
}
