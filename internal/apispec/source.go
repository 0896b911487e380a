package apispec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// maxSpecSize caps a remote description download.
const maxSpecSize = 32 << 20

// ErrSpecAcquisition is returned when every acquisition tier failed.
var ErrSpecAcquisition = errors.New("spec acquisition failed")

// ErrSkipped marks a tier that does not apply (no URL configured, no file present).
var ErrSkipped = errors.New("tier skipped")

// Origin names the tier a description was acquired from.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginFile     Origin = "file"
	OriginEmbedded Origin = "embedded"
)

// Strategy is one acquisition tier.
type Strategy interface {
	Name() Origin
	Load(ctx context.Context) (*Description, error)
}

// Source tries its strategies in order and returns the first success.
type Source struct {
	strategies []Strategy
	logger     *common.Logger

	// Observe, when set, is called once per attempted tier with its outcome.
	Observe func(origin Origin, err error)
}

// NewSource creates a Source over the given strategies, tried in order.
func NewSource(logger *common.Logger, strategies ...Strategy) *Source {
	return &Source{strategies: strategies, logger: logger}
}

// NewDefaultSource builds the remote -> file -> embedded chain.
func NewDefaultSource(logger *common.Logger, specURL, localPath string, fetchTimeout time.Duration) *Source {
	return NewSource(logger,
		NewRemoteStrategy(specURL, fetchTimeout),
		&FileStrategy{Path: localPath},
		NewEmbeddedStrategy(),
	)
}

// Acquire returns the first description any tier yields.
// Tier failures are logged and never returned unless all tiers fail.
func (s *Source) Acquire(ctx context.Context) (*Description, Origin, error) {
	var errs []error
	for _, strategy := range s.strategies {
		origin := strategy.Name()
		desc, err := strategy.Load(ctx)
		if s.Observe != nil {
			s.Observe(origin, err)
		}
		if err == nil {
			s.logger.Info().
				Str("origin", string(origin)).
				Str("title", desc.Info.Title).
				Int("paths", len(desc.Paths)).
				Msg("api description loaded")
			return desc, origin, nil
		}

		if errors.Is(err, ErrSkipped) {
			s.logger.Info().Str("origin", string(origin)).Str("reason", err.Error()).Msg("spec tier skipped")
		} else {
			s.logger.Warn().Str("origin", string(origin)).Str("error", err.Error()).Msg("spec tier failed, falling back")
		}
		errs = append(errs, fmt.Errorf("%s: %w", origin, err))
	}
	return nil, "", fmt.Errorf("%w: %w", ErrSpecAcquisition, errors.Join(errs...))
}

// RemoteStrategy fetches the description over HTTP.
type RemoteStrategy struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewRemoteStrategy creates a remote tier with its own bounded client.
func NewRemoteStrategy(url string, timeout time.Duration) *RemoteStrategy {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteStrategy{
		URL:     url,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Strategy.
func (s *RemoteStrategy) Name() Origin { return OriginRemote }

// Load implements Strategy.
func (s *RemoteStrategy) Load(ctx context.Context) (*Description, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("%w: no spec url configured", ErrSkipped)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid spec url: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/yaml, */*")
	req.Header.Set("User-Agent", common.UserAgent())

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spec request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("spec server returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSpecSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read spec response: %w", err)
	}
	if len(body) > maxSpecSize {
		return nil, fmt.Errorf("spec response too large (max %d bytes)", maxSpecSize)
	}
	return Parse(body)
}

// FileStrategy reads the description from a local file.
type FileStrategy struct {
	Path string
}

// Name implements Strategy.
func (s *FileStrategy) Name() Origin { return OriginFile }

// Load implements Strategy.
func (s *FileStrategy) Load(_ context.Context) (*Description, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("%w: no local spec path configured", ErrSkipped)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrSkipped, s.Path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	desc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return desc, nil
}
