// Command openapi-bridge serves the operations of an OpenAPI description as MCP tools.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	common "github.com/bobmcallan/openapi-bridge/internal/common"
	"github.com/bobmcallan/openapi-bridge/internal/config"
)

const configFileName = "openapi-bridge.toml"

// newLogger builds the process logger. Tests replace it with a silent one.
var newLogger = func(cfg *config.Config) *common.Logger {
	return common.NewLoggerFromConfig(cfg.Logging)
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFiles []string
	port        int
	host        string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "openapi-bridge",
		Short:         "Expose an OpenAPI-described HTTP API as MCP tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVarP(&flags.configFiles, "config", "c", nil, "Configuration file path (repeatable, later files win)")
	root.PersistentFlags().IntVarP(&flags.port, "port", "p", 0, "Server port (overrides config)")
	root.PersistentFlags().StringVar(&flags.host, "host", "", "Server host (overrides config)")

	root.AddCommand(
		newServeCmd(flags),
		newToolsCmd(flags),
		newRequestCmd(flags),
		newVersionCmd(),
	)
	return root
}

func main() {
	common.LoadVersionFromFile()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves and validates configuration: defaults, then files,
// then environment, then flags.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	files := flags.configFiles
	if len(files) == 0 {
		for _, path := range configSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				files = append(files, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		return nil, err
	}
	config.ApplyFlagOverrides(cfg, flags.port, flags.host)

	if issues := cfg.Validate(); len(issues) > 0 {
		msg := "invalid configuration:"
		for _, issue := range issues {
			msg += "\n  - " + issue
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return cfg, nil
}

// configSearchPaths returns TOML files to auto-discover (first match wins).
// Binary-relative paths are tried before the working directory.
func configSearchPaths() []string {
	candidates := []string{
		configFileName,
		filepath.Join("config", configFileName),
	}

	exe, err := os.Executable()
	if err != nil {
		return candidates
	}
	binDir := filepath.Dir(exe)

	paths := []string{
		filepath.Join(binDir, configFileName),
		filepath.Join(binDir, "config", configFileName),
	}
	paths = append(paths, candidates...)

	seen := make(map[string]bool, len(paths))
	deduped := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		deduped = append(deduped, p)
	}
	return deduped
}
