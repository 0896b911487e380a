package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bobmcallan/openapi-bridge/internal/bridge"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
	"github.com/bobmcallan/openapi-bridge/internal/config"
	"github.com/bobmcallan/openapi-bridge/internal/executor"
	"github.com/bobmcallan/openapi-bridge/internal/mcp"
	"github.com/bobmcallan/openapi-bridge/internal/server"
)

const shutdownTimeout = 10 * time.Second

// startBridge loads configuration and builds the bridge.
func startBridge(ctx context.Context, flags *rootFlags) (*config.Config, *bridge.Bridge, *common.Logger, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(cfg)

	b, err := bridge.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Str("error", err.Error()).Msg("failed to initialize bridge")
		return nil, nil, nil, err
	}
	return cfg, b, logger, nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var stdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiled tools over MCP (streamable HTTP or stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, b, logger, err := startBridge(ctx, flags)
			if err != nil {
				return err
			}
			mcpSrv := mcp.NewServer(b, cfg.MCP.Name, logger)

			if stdio {
				// Logs go to stderr, stdout carries the protocol.
				return mcpserver.ServeStdio(mcpSrv)
			}
			return serveHTTP(ctx, cfg, b, mcpSrv, logger)
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Use the stdio transport instead of HTTP")
	return cmd
}

// serveHTTP runs the HTTP host until ctx is cancelled, then shuts down gracefully.
func serveHTTP(ctx context.Context, cfg *config.Config, b *bridge.Bridge, mcpSrv *mcpserver.MCPServer, logger *common.Logger) error {
	srv := server.New(cfg, mcp.NewHandler(mcpSrv, logger), b, b.Metrics().Handler(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// toolView is the --json shape of one tool.
type toolView struct {
	Name        string         `json:"name"`
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func newToolsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools compiled from the API description",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, b, _, err := startBridge(cmd.Context(), flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tools := b.ListTools()

			if asJSON {
				views := make([]toolView, 0, len(tools))
				for _, def := range tools {
					views = append(views, toolView{
						Name:        def.Name,
						Method:      def.Method,
						Path:        def.Path,
						Description: def.Description,
						InputSchema: def.InputSchema,
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMETHOD\tPATH\tREQUIRED")
			for _, def := range tools {
				required := def.RequiredArgs()
				sort.Strings(required)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Name, def.Method, def.Path, strings.Join(required, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, ce := range b.CompileErrors() {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %v\n", ce)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tool definitions as JSON")
	return cmd
}

func newRequestCmd(flags *rootFlags) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send one request to the backend through the same sanitizing transport",
		Example: `  openapi-bridge request GET "/search?term=BRCA1"
  openapi-bridge request POST /search/variant --data '{"query":{"gene":{"relation":"eq","terms":[1100]}}}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if data != "" {
				if err := json.Unmarshal([]byte(data), &body); err != nil {
					return fmt.Errorf("--data is not valid JSON: %w", err)
				}
			}

			_, b, _, err := startBridge(cmd.Context(), flags)
			if err != nil {
				return err
			}

			resp, err := b.Raw(cmd.Context(), args[0], args[1], body)
			if err != nil {
				var f *executor.Failure
				if errors.As(err, &f) && f.Body != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), f.Body)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Text())
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "openapi-bridge version %s\n", common.GetFullVersion())
		},
	}
}
