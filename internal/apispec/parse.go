package apispec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrNotMapping is returned when a document parses but its root is not a mapping.
var ErrNotMapping = errors.New("api description root must be a mapping")

// ErrEmptyDocument is returned for empty or whitespace-only input.
var ErrEmptyDocument = errors.New("api description is empty")

// Parse decodes a JSON or YAML API description.
// JSON is detected by its leading brace; everything else goes through yaml.v3,
// which also accepts most JSON.
func Parse(data []byte) (*Description, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDocument
	}

	var desc Description
	switch trimmed[0] {
	case '{':
		if err := json.Unmarshal(trimmed, &desc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON description: %w", err)
		}
	case '[':
		return nil, fmt.Errorf("%w: got a list", ErrNotMapping)
	default:
		var root yaml.Node
		if err := yaml.Unmarshal(trimmed, &root); err != nil {
			return nil, fmt.Errorf("failed to parse YAML description: %w", err)
		}
		doc := &root
		if doc.Kind == yaml.DocumentNode {
			if len(doc.Content) == 0 {
				return nil, ErrEmptyDocument
			}
			doc = doc.Content[0]
		}
		if doc.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: got %s", ErrNotMapping, nodeKindName(doc.Kind))
		}
		if err := doc.Decode(&desc); err != nil {
			return nil, fmt.Errorf("failed to decode YAML description: %w", err)
		}
	}

	if desc.Paths == nil {
		desc.Paths = map[string]*PathItem{}
	}
	return &desc, nil
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.SequenceNode:
		return "a list"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an unknown node"
	}
}
