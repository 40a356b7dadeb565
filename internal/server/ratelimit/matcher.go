package ratelimit

import (
	"fmt"
	"net/http"
	"net/url"
)

// routeTable resolves requests to endpoint rules. Rules use http.ServeMux
// patterns, so a rule covers exactly the requests the server routes to the
// same pattern: "POST /upload" matches only that method and path, and
// "GET /assets/" matches everything below it.
type routeTable struct {
	mux   *http.ServeMux
	rules map[string]*EndpointConfig
}

// newRouteTable registers every rule. Invalid or conflicting patterns are
// reported as errors instead of the panic ServeMux raises.
func newRouteTable(configs []EndpointConfig) (t *routeTable, err error) {
	t = &routeTable{
		mux:   http.NewServeMux(),
		rules: make(map[string]*EndpointConfig, len(configs)),
	}
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("invalid rate limit pattern: %v", r)
		}
	}()

	for i := range configs {
		rule := &configs[i]
		t.mux.Handle(rule.Pattern, http.NotFoundHandler())
		t.rules[rule.Pattern] = rule
	}
	return t, nil
}

// match returns the rule for method and path with the pattern it was registered
// under, or nil when no rule applies.
func (t *routeTable) match(method, path string) (*EndpointConfig, string) {
	if t == nil || len(t.rules) == 0 {
		return nil, ""
	}
	_, pattern := t.mux.Handler(&http.Request{Method: method, URL: &url.URL{Path: path}})
	rule, ok := t.rules[pattern]
	if !ok {
		return nil, ""
	}
	return rule, pattern
}
