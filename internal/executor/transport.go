package executor

import (
	"fmt"
	"net/http"

	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// HookTransport runs every RequestHook on a clone of each outgoing request,
// including redirect hops, before handing it to Base.
//
// A hook that errors or panics is logged as a sanitization hook failure and
// skipped; the request continues as it was before that hook ran.
type HookTransport struct {
	Base      http.RoundTripper
	Hooks     []RequestHook
	Logger    *common.Logger
	OnFailure func(hook string, err error)
}

// RoundTrip implements http.RoundTripper.
func (t *HookTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(t.apply(req))
}

func (t *HookTransport) apply(req *http.Request) *http.Request {
	for _, hook := range t.Hooks {
		next := req.Clone(req.Context())
		if err := runHook(hook, next); err != nil {
			if t.Logger != nil {
				t.Logger.Error().
					Str("hook", hook.Name()).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Str("error", err.Error()).
					Msg("SanitizationHookFailure: request proceeds unmodified")
			}
			if t.OnFailure != nil {
				t.OnFailure(hook.Name(), err)
			}
			continue
		}
		req = next
	}
	return req
}

func runHook(hook RequestHook, req *http.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return hook.Apply(req)
}
