// Package executor turns tool invocations into backend HTTP requests.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/openapi-bridge/internal/catalog"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// maxResponseSize caps the backend response body to prevent OOM from unexpectedly large responses.
const maxResponseSize = 50 << 20 // 50MB

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
)

// rawTool labels requests made through Raw.
const rawTool = "raw"

// Recorder receives per-request measurements. *metrics.Collector satisfies it.
type Recorder interface {
	BackendRequest(method string, status int, d time.Duration)
	HookFailed(hook string)
}

// Options configures an Executor.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRedirects int
	Hooks        []RequestHook
	// Transport is the innermost round tripper; nil uses http.DefaultTransport.
	Transport http.RoundTripper
	Recorder  Recorder
}

// Executor sends invocations to the backend. It is safe for concurrent use;
// its only shared state is the HTTP client and its connection pool.
type Executor struct {
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	logger   *common.Logger
	recorder Recorder
}

// ValidateBaseURL reports whether raw is an absolute http(s) URL with a host.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid backend base url %q", raw)
	}
	return nil
}

// New creates an Executor whose client runs every request through the hooks.
func New(opts Options, logger *common.Logger) (*Executor, error) {
	if err := ValidateBaseURL(opts.BaseURL); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}

	e := &Executor{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		timeout:  opts.Timeout,
		logger:   logger,
		recorder: opts.Recorder,
	}

	transport := &HookTransport{
		Base:   opts.Transport,
		Hooks:  opts.Hooks,
		Logger: logger,
		OnFailure: func(hook string, _ error) {
			if e.recorder != nil {
				e.recorder.HookFailed(hook)
			}
		},
	}
	maxRedirects := opts.MaxRedirects
	e.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return e, nil
}

// BaseURL returns the backend root every tool path is appended to.
func (e *Executor) BaseURL() string { return e.baseURL }

// Execute validates args, sends the request and decodes the reply.
// Every error returned is a *Failure.
func (e *Executor) Execute(ctx context.Context, def *catalog.ToolDefinition, args map[string]any) (*Response, error) {
	if args == nil {
		args = map[string]any{}
	}
	if f := validate(def, args); f != nil {
		return nil, f
	}

	req, err := buildRequest(ctx, e.baseURL, def, args)
	if err != nil {
		return nil, &Failure{Kind: KindInvalidArguments, Tool: def.Name, Err: err}
	}

	resp, err := e.send(ctx, def.Name, req)
	if err != nil {
		return nil, err
	}
	e.checkShape(def, resp)
	return resp, nil
}

// Raw sends a request for an arbitrary path and query below the base URL.
// It bypasses the compiled tool schemas but not the outbound hooks.
func (e *Executor) Raw(ctx context.Context, method, pathAndQuery string, body any) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Failure{Kind: KindInvalidArguments, Tool: rawTool, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), e.baseURL+pathAndQuery, reader)
	if err != nil {
		return nil, &Failure{Kind: KindInvalidArguments, Tool: rawTool, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(ctx, rawTool, req)
}

func (e *Executor) send(ctx context.Context, tool string, req *http.Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	req = req.WithContext(ctx)

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", common.UserAgent())
	req.Header.Set("X-Request-ID", requestID)

	logger := e.logger.WithCorrelationId(requestID)
	logger.Debug().Str("tool", tool).Str("method", req.Method).Str("path", req.URL.Path).Msg("backend request")

	start := time.Now()
	resp, err := e.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		e.record(req.Method, 0, duration)
		logger.Error().
			Str("tool", tool).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int64("duration_ms", duration.Milliseconds()).
			Str("error", err.Error()).
			Msg("backend request failed")
		return nil, &Failure{Kind: KindBackend, Tool: tool, Err: transportError(err)}
	}
	defer resp.Body.Close()
	e.record(req.Method, resp.StatusCode, duration)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, &Failure{Kind: KindBackend, Tool: tool, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if len(body) > maxResponseSize {
		return nil, &Failure{Kind: KindBackend, Tool: tool, Status: resp.StatusCode, Err: fmt.Errorf("response too large (max %d bytes)", maxResponseSize)}
	}

	logger.Debug().
		Str("tool", tool).
		Int("status", resp.StatusCode).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("backend response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backendFailure(tool, resp.StatusCode, body)
	}

	finalURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	contentType := resp.Header.Get("Content-Type")
	data, ok := decodeBody(contentType, body)
	if !ok {
		logger.Debug().Str("tool", tool).Msg("response claimed JSON but did not parse, returning text")
	}
	return &Response{
		Tool:        tool,
		Status:      resp.StatusCode,
		ContentType: contentType,
		Data:        data,
		Raw:         body,
		RequestID:   requestID,
		URL:         finalURL,
		Duration:    duration,
	}, nil
}

// checkShape logs, without failing, when the reply's top-level type differs
// from the declared output schema.
func (e *Executor) checkShape(def *catalog.ToolDefinition, resp *Response) {
	if def.OutputSchema == nil || resp.Data == nil {
		return
	}
	declared, _ := def.OutputSchema["type"].(string)
	actual := jsonTypeOf(resp.Data)
	if !matchesType(declared, actual) {
		e.logger.Debug().
			Str("tool", def.Name).
			Str("declared", declared).
			Str("actual", actual).
			Msg("response shape differs from declared schema")
	}
}

func (e *Executor) record(method string, status int, d time.Duration) {
	if e.recorder != nil {
		e.recorder.BackendRequest(method, status, d)
	}
}

func transportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("backend request timed out: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("backend request cancelled: %w", err)
	}
	return fmt.Errorf("backend request failed: %w", err)
}
