package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/openapi-bridge/internal/bridge"
	"github.com/bobmcallan/openapi-bridge/internal/catalog"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
	"github.com/bobmcallan/openapi-bridge/internal/executor"
)

// Bridge is the part of *bridge.Bridge the MCP layer calls.
type Bridge interface {
	ListTools() []*catalog.ToolDefinition
	Invoke(ctx context.Context, name string, args map[string]any) (*executor.Response, error)
	Info() bridge.Info
}

// RegisterTools registers one MCP tool per compiled tool definition.
func RegisterTools(s *server.MCPServer, b Bridge, logger *common.Logger) int {
	tools := b.ListTools()
	for _, def := range tools {
		s.AddTool(BuildMCPTool(def), ToolHandler(b, def.Name, logger))
	}
	return len(tools)
}

// BuildMCPTool converts a ToolDefinition into an mcp.Tool with the appropriate schema.
func BuildMCPTool(def *catalog.ToolDefinition) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(def.Description),
		mcp.WithTitleAnnotation(def.Title),
		mcp.WithReadOnlyHintAnnotation(def.ReadOnly),
		mcp.WithDestructiveHintAnnotation(def.Method == "DELETE"),
		mcp.WithIdempotentHintAnnotation(def.Method != "POST" && def.Method != "PATCH"),
		mcp.WithOpenWorldHintAnnotation(true),
	}
	for _, p := range def.Params {
		opts = append(opts, buildParamOption(p))
		if p.Required {
			opts = append(opts, requiredArg(p.Name))
		}
	}
	return mcp.NewTool(def.Name, opts...)
}

// buildParamOption maps a Param to the matching mcp-go property option and
// then overlays the full compiled schema so nested shapes survive.
func buildParamOption(p catalog.Param) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if p.Description != "" {
		opts = append(opts, mcp.Description(p.Description))
	}
	opts = append(opts, withSchema(p.Schema))

	switch p.Kind {
	case catalog.KindNumber, catalog.KindInteger:
		return mcp.WithNumber(p.Name, opts...)
	case catalog.KindBoolean:
		return mcp.WithBoolean(p.Name, opts...)
	case catalog.KindArray:
		return mcp.WithArray(p.Name, opts...)
	case catalog.KindObject:
		return mcp.WithObject(p.Name, opts...)
	default:
		return mcp.WithString(p.Name, opts...)
	}
}

// requiredArg marks an argument required at the tool level. mcp.Required is
// not used because the overlaid schema may carry its own nested required list.
func requiredArg(name string) mcp.ToolOption {
	return func(t *mcp.Tool) {
		t.InputSchema.Required = append(t.InputSchema.Required, name)
	}
}

// withSchema copies compiled schema keywords onto the property.
func withSchema(schema map[string]any) mcp.PropertyOption {
	return func(prop map[string]any) {
		for k, v := range schema {
			prop[k] = v
		}
	}
}

// ToolHandler routes an MCP tool call to Bridge.Invoke. Failures are
// returned as error results so the caller sees them as tool output.
func ToolHandler(b Bridge, name string, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := b.Invoke(ctx, name, r.GetArguments())
		if err != nil {
			logger.Debug().Str("tool", name).Str("error", err.Error()).Msg("tool call failed")
			return failureResult(err), nil
		}
		return textResult(resp.Text()), nil
	}
}

// failureResult renders an invocation error for the caller.
func failureResult(err error) *mcp.CallToolResult {
	f, ok := executor.AsFailure(err)
	if !ok {
		return errorResult(fmt.Sprintf("Error: %v", err))
	}

	var b strings.Builder
	switch f.Kind {
	case executor.KindInvalidArguments:
		b.WriteString("Error: invalid arguments")
		if len(f.Missing) > 0 {
			b.WriteString("\nmissing required: " + strings.Join(f.Missing, ", "))
		}
		if len(f.Invalid) > 0 {
			b.WriteString("\nwrong type: " + strings.Join(f.Invalid, ", "))
		}
		if f.Err != nil {
			b.WriteString("\n" + f.Err.Error())
		}
	case executor.KindBackend:
		if f.Status > 0 {
			fmt.Fprintf(&b, "Error: backend returned HTTP %d", f.Status)
		} else {
			b.WriteString("Error: backend request failed")
		}
		if f.Err != nil && !errors.Is(f.Err, context.Canceled) {
			b.WriteString("\n" + f.Err.Error())
		}
		if f.Body != "" {
			b.WriteString("\n\n" + f.Body)
		}
	default:
		b.WriteString("Error: " + f.Error())
	}
	return errorResult(b.String())
}
