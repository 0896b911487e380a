package executor

import (
	"net/http"
	"net/url"
	"strings"
)

// RequestHook edits an outbound request in flight. It operates on a clone
// owned by the transport, so it may mutate the request freely.
type RequestHook interface {
	Name() string
	Apply(req *http.Request) error
}

// ForbiddenQueryHook strips forbidden query keys from every request whose
// path is within PathScope. An empty scope covers every path.
type ForbiddenQueryHook struct {
	Names     []string
	PathScope string
}

// Name implements RequestHook.
func (h *ForbiddenQueryHook) Name() string { return "forbidden_query" }

// Apply implements RequestHook. Other query pairs are kept byte for byte.
func (h *ForbiddenQueryHook) Apply(req *http.Request) error {
	if req.URL == nil || req.URL.RawQuery == "" || len(h.Names) == 0 {
		return nil
	}
	if h.PathScope != "" && !strings.HasPrefix(req.URL.Path, h.PathScope) {
		return nil
	}

	pairs := strings.Split(req.URL.RawQuery, "&")
	kept := pairs[:0]
	removed := false
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if h.forbidden(key) {
			removed = true
			continue
		}
		kept = append(kept, pair)
	}
	if removed {
		req.URL.RawQuery = strings.Join(kept, "&")
	}
	return nil
}

func (h *ForbiddenQueryHook) forbidden(key string) bool {
	for _, n := range h.Names {
		if n == key {
			return true
		}
	}
	return false
}

// HookFunc adapts a function into a RequestHook.
type HookFunc struct {
	ID string
	Fn func(req *http.Request) error
}

// Name implements RequestHook.
func (h HookFunc) Name() string { return h.ID }

// Apply implements RequestHook.
func (h HookFunc) Apply(req *http.Request) error { return h.Fn(req) }
