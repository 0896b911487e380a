package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/openapi-bridge/internal/bridge"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// InfoToolName is the name of the built-in status tool.
const InfoToolName = "bridge_info"

// infoResult is the payload returned by bridge_info.
type infoResult struct {
	Version string      `json:"version"`
	Build   string      `json:"build"`
	Commit  string      `json:"commit"`
	API     bridge.Info `json:"api"`
}

// InfoTool returns the mcp.Tool definition for bridge_info.
func InfoTool() mcp.Tool {
	return mcp.NewTool(InfoToolName,
		mcp.WithDescription("Get bridge version, where the API description was loaded from and how many tools it provides. Use this to verify connectivity."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// InfoToolHandler reports bridge and API description status.
func InfoToolHandler(b Bridge) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := json.MarshalIndent(infoResult{
			Version: common.GetVersion(),
			Build:   common.GetBuild(),
			Commit:  common.GetGitCommit(),
			API:     b.Info(),
		}, "", "  ")
		if err != nil {
			return errorResult("failed to marshal bridge info"), nil
		}
		return textResult(string(out)), nil
	}
}
