package apispec

import (
	"context"
	_ "embed"
)

//go:embed minimal.yml
var minimalSpec []byte

// EmbeddedStrategy serves the description bundled into the binary.
// It keeps the bridge usable with a reduced tool set when every other tier fails.
type EmbeddedStrategy struct {
	Data []byte
}

// NewEmbeddedStrategy returns the strategy for the bundled minimal description.
func NewEmbeddedStrategy() *EmbeddedStrategy {
	return &EmbeddedStrategy{Data: minimalSpec}
}

// Name implements Strategy.
func (s *EmbeddedStrategy) Name() Origin { return OriginEmbedded }

// Load implements Strategy.
func (s *EmbeddedStrategy) Load(_ context.Context) (*Description, error) {
	return Parse(s.Data)
}
