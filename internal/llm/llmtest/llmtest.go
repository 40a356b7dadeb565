// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/candidate-intake/internal/llm"
)

// Route answers every prompt containing Match.
type Route struct {
	Match    string
	Response string
	Err      error
}

// Client replies from its routes in order of declaration.
type Client struct {
	mu      sync.Mutex
	routes  []Route
	prompts []string

	// Gate, when set, holds every call until it is closed or ctx ends.
	Gate chan struct{}
}

var _ llm.Client = (*Client)(nil)

// New returns a Client with routes.
func New(routes ...Route) *Client {
	return &Client{routes: routes}
}

// Handle adds a route.
func (c *Client) Handle(match, response string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, Route{Match: match, Response: response})
	return c
}

// Fail adds a route that returns err.
func (c *Client) Fail(match string, err error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, Route{Match: match, Err: err})
	return c
}

// Prompts returns every prompt received so far.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// Calls returns how many prompts containing match were received.
func (c *Client) Calls(match string) int {
	n := 0
	for _, p := range c.Prompts() {
		if strings.Contains(p, match) {
			n++
		}
	}
	return n
}

func (c *Client) reply(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	routes := c.routes
	gate := c.Gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	for _, r := range routes {
		if strings.Contains(prompt, r.Match) {
			return r.Response, r.Err
		}
	}
	return "", fmt.Errorf("no scripted response for prompt %.60q", prompt)
}

// GenerateContent implements llm.Client.
func (c *Client) GenerateContent(ctx context.Context, prompt string, _ llm.ModelTier) (string, error) {
	return c.reply(ctx, prompt)
}

// GenerateJSON implements llm.Client.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, _ llm.ModelTier) (string, error) {
	return c.reply(ctx, prompt)
}

// GetModel implements llm.Client.
func (c *Client) GetModel(llm.ModelTier) string { return "llmtest" }

// Close implements llm.Client.
func (c *Client) Close() error { return nil }
