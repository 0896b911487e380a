// Package bridge wires description acquisition, sanitization, compilation
// and execution into the single value the tool transport talks to.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/openapi-bridge/internal/apispec"
	"github.com/bobmcallan/openapi-bridge/internal/catalog"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
	"github.com/bobmcallan/openapi-bridge/internal/config"
	"github.com/bobmcallan/openapi-bridge/internal/executor"
	"github.com/bobmcallan/openapi-bridge/internal/metrics"
)

// ErrNoBaseURL is returned when neither config nor the description names a backend.
var ErrNoBaseURL = errors.New("no backend base url configured or declared")

// Option customizes New.
type Option func(*options)

type options struct {
	source    *apispec.Source
	transport http.RoundTripper
	metrics   *metrics.Collector
	hooks     []executor.RequestHook
}

// WithSource replaces the configured remote -> file -> embedded chain.
func WithSource(s *apispec.Source) Option {
	return func(o *options) { o.source = s }
}

// WithTransport sets the innermost round tripper used for backend calls.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithMetrics shares an existing collector instead of creating one.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithHooks appends outbound hooks after the forbidden-query hook.
func WithHooks(hooks ...executor.RequestHook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hooks...) }
}

// Info summarizes what the bridge loaded.
type Info struct {
	Title         string `json:"title"`
	APIVersion    string `json:"api_version"`
	Origin        string `json:"spec_origin"`
	BaseURL       string `json:"base_url"`
	Tools         int    `json:"tools"`
	CompileErrors int    `json:"compile_errors"`
	Sanitized     int    `json:"sanitized_parameters"`
	LoadedAt      string `json:"loaded_at"`
}

// Bridge owns the registry and the executor. Everything it holds is fixed
// once New returns; concurrent Invoke calls share only the HTTP client.
type Bridge struct {
	desc          *apispec.Description
	origin        apispec.Origin
	registry      *catalog.Registry
	exec          *executor.Executor
	compileErrors []*catalog.CompilationError
	sanitized     apispec.SanitizeReport
	metrics       *metrics.Collector
	logger        *common.Logger
	loadedAt      time.Time
}

// New runs the startup sequence. Only a total acquisition failure or an
// unusable backend URL is fatal; per-operation compile errors are logged.
func New(ctx context.Context, cfg *config.Config, logger *common.Logger, opts ...Option) (*Bridge, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector()
	}
	if o.source == nil {
		o.source = apispec.NewDefaultSource(logger, cfg.Spec.URL, cfg.Spec.LocalPath, cfg.Spec.GetFetchTimeout())
	}

	desc, origin, err := o.source.Acquire(ctx)
	if err != nil {
		logger.Error().Str("error", err.Error()).Msg("no API description could be loaded")
		return nil, err
	}
	o.metrics.SpecLoaded(string(origin))

	policy := apispec.ForbiddenPolicy{Names: cfg.Forbidden.Names, In: "query"}
	if loc := cfg.Forbidden.Location; loc != "" && loc != "query" {
		logger.Warn().Str("location", loc).Msg("forbidden.location is not supported, stripping query parameters")
	}
	report := apispec.NewSanitizer(policy).Sanitize(desc)
	logger.Info().
		Strs("shared_removed", report.SharedRemoved).
		Int("operation_removed", report.OperationRemoved).
		Msg("forbidden parameters removed from description")
	if apispec.HasForbidden(desc, policy) {
		logger.Warn().Msg("description still declares a forbidden parameter after sanitization")
	}

	compiler := catalog.NewCompiler(catalog.Options{
		Naming:    catalog.Naming(cfg.MCP.Naming),
		Forbidden: policy,
	}, logger)
	registry, compileErrs := compiler.Compile(desc)
	for _, ce := range compileErrs {
		logger.Warn().
			Str("method", ce.Method).
			Str("path", ce.Path).
			Str("tool", ce.Tool).
			Str("error", ce.Err.Error()).
			Msg("operation excluded from registry")
	}
	o.metrics.CompileErrors(len(compileErrs))
	o.metrics.ToolsRegistered(registry.Len())

	baseURL, err := resolveBaseURL(cfg.Backend.BaseURL, desc, logger)
	if err != nil {
		return nil, err
	}

	hooks := append([]executor.RequestHook{
		&executor.ForbiddenQueryHook{Names: cfg.Forbidden.Names, PathScope: cfg.Forbidden.PathScope},
	}, o.hooks...)
	exec, err := executor.New(executor.Options{
		BaseURL:   baseURL,
		Timeout:   cfg.Backend.GetTimeout(),
		Hooks:     hooks,
		Transport: o.transport,
		Recorder:  o.metrics,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	logger.Info().
		Str("origin", string(origin)).
		Str("base_url", exec.BaseURL()).
		Int("tools", registry.Len()).
		Int("excluded", len(compileErrs)).
		Msg("bridge ready")

	return &Bridge{
		desc:          desc,
		origin:        origin,
		registry:      registry,
		exec:          exec,
		compileErrors: compileErrs,
		sanitized:     report,
		metrics:       o.metrics,
		logger:        logger,
		loadedAt:      time.Now().UTC(),
	}, nil
}

// resolveBaseURL picks the backend URL: config, then the description's first
// server, then the built-in default. The default is only tried when a
// configured value was unusable; an explicitly empty setting with no declared
// server is ErrNoBaseURL.
func resolveBaseURL(configured string, desc *apispec.Description, logger *common.Logger) (string, error) {
	candidates := []struct{ source, url string }{
		{"config", configured},
		{"description", desc.DefaultServerURL()},
	}
	if configured != "" {
		candidates = append(candidates, struct{ source, url string }{"default", config.NewDefaultConfig().Backend.BaseURL})
	}

	for _, c := range candidates {
		if c.url == "" {
			continue
		}
		if err := executor.ValidateBaseURL(c.url); err != nil {
			logger.Warn().
				Str("source", c.source).
				Str("base_url", c.url).
				Msg("ignoring unusable backend base url")
			continue
		}
		return c.url, nil
	}
	return "", ErrNoBaseURL
}

// ListTools returns every compiled tool in registry order.
func (b *Bridge) ListTools() []*catalog.ToolDefinition {
	return b.registry.List()
}

// Invoke runs the named tool. Every error returned is an *executor.Failure.
func (b *Bridge) Invoke(ctx context.Context, name string, args map[string]any) (*executor.Response, error) {
	def, ok := b.registry.Lookup(name)
	if !ok {
		b.metrics.ToolInvoked(name, string(executor.KindUnknownTool))
		return nil, &executor.Failure{
			Kind: executor.KindUnknownTool,
			Tool: name,
			Err:  fmt.Errorf("tool %q is not registered", name),
		}
	}

	resp, err := b.exec.Execute(ctx, def, args)
	if err != nil {
		outcome := "error"
		if f, ok := executor.AsFailure(err); ok {
			outcome = string(f.Kind)
		}
		b.metrics.ToolInvoked(name, outcome)
		b.logger.Warn().Str("tool", name).Str("outcome", outcome).Str("error", err.Error()).Msg("tool invocation failed")
		return nil, err
	}
	b.metrics.ToolInvoked(name, "ok")
	return resp, nil
}

// Raw sends a request outside the compiled tools; outbound hooks still apply.
func (b *Bridge) Raw(ctx context.Context, method, pathAndQuery string, body any) (*executor.Response, error) {
	return b.exec.Raw(ctx, method, pathAndQuery, body)
}

// Registry returns the compiled registry.
func (b *Bridge) Registry() *catalog.Registry { return b.registry }

// Origin returns the acquisition tier the description came from.
func (b *Bridge) Origin() apispec.Origin { return b.origin }

// CompileErrors returns the operations excluded at startup.
func (b *Bridge) CompileErrors() []*catalog.CompilationError { return b.compileErrors }

// Metrics returns the collector the bridge reports to.
func (b *Bridge) Metrics() *metrics.Collector { return b.metrics }

// Info summarizes the loaded description and registry.
func (b *Bridge) Info() Info {
	return Info{
		Title:         b.desc.Info.Title,
		APIVersion:    b.desc.Info.Version,
		Origin:        string(b.origin),
		BaseURL:       b.exec.BaseURL(),
		Tools:         b.registry.Len(),
		CompileErrors: len(b.compileErrors),
		Sanitized:     b.sanitized.Removed(),
		LoadedAt:      b.loadedAt.Format(time.RFC3339),
	}
}
