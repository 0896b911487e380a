package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	common "github.com/bobmcallan/openapi-bridge/internal/common"
	"github.com/bobmcallan/openapi-bridge/internal/config"
)

const cliSpec = `openapi: 3.0.3
info:
  title: TogoVar API
  version: "1.0"
paths:
  /search/gene:
    get:
      summary: Search genes
      parameters:
        - {in: query, name: pretty, schema: {type: boolean}}
        - {in: query, name: term, required: true, schema: {type: string}}
  /search/variant:
    post:
      summary: Search variants
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                query: {type: object}
`

type cliEnv struct {
	configPath string
	mu         sync.Mutex
	requests   []string
	bodies     []string
}

func (e *cliEnv) lastRequest() (string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return "", ""
	}
	return e.requests[len(e.requests)-1], e.bodies[len(e.bodies)-1]
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	orig := newLogger
	newLogger = func(*config.Config) *common.Logger { return common.NewSilentLogger() }
	t.Cleanup(func() { newLogger = orig })

	specSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cliSpec))
	}))
	t.Cleanup(specSrv.Close)

	env := &cliEnv{}
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		buf.ReadFrom(r.Body)
		env.mu.Lock()
		env.requests = append(env.requests, r.Method+" "+r.URL.RequestURI())
		env.bodies = append(env.bodies, buf.String())
		env.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"no such resource"}`))
			return
		}
		w.Write([]byte(`{"data":[{"symbol":"BRCA1"}]}`))
	}))
	t.Cleanup(apiSrv.Close)

	env.configPath = filepath.Join(t.TempDir(), "bridge.toml")
	content := fmt.Sprintf(`[spec]
url = %q
local_path = ""

[backend]
base_url = %q
`, specSrv.URL, apiSrv.URL)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, common.GetVersion()) {
		t.Errorf("expected version in output, got %q", out)
	}
}

func TestToolsCommand_Table(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := runCLI(t, "tools", "--config", env.configPath)
	if err != nil {
		t.Fatalf("tools failed: %v", err)
	}
	for _, want := range []string{"NAME", "get_search_gene", "post_search_variant", "/search/gene", "term"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "pretty") {
		t.Errorf("forbidden parameter leaked into tool listing:\n%s", out)
	}
}

func TestToolsCommand_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := runCLI(t, "tools", "--json", "-c", env.configPath)
	if err != nil {
		t.Fatalf("tools --json failed: %v", err)
	}
	if !strings.Contains(out, `"name": "get_search_gene"`) || !strings.Contains(out, `"inputSchema"`) {
		t.Errorf("unexpected JSON output:\n%s", out)
	}
}

func TestRequestCommand_StripsPretty(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := runCLI(t, "request", "GET", "/search/gene?term=BRCA1&pretty=true", "--config", env.configPath)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if !strings.Contains(out, "BRCA1") {
		t.Errorf("expected backend payload, got %q", out)
	}
	got, _ := env.lastRequest()
	if got != "GET /search/gene?term=BRCA1" {
		t.Errorf("backend saw %q", got)
	}
}

func TestRequestCommand_SendsBody(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := runCLI(t, "request", "post", "/search/variant", "-d", `{"query":{"id":"rs1"}}`, "-c", env.configPath)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	got, body := env.lastRequest()
	if got != "POST /search/variant" {
		t.Errorf("backend saw %q", got)
	}
	if body != `{"query":{"id":"rs1"}}` {
		t.Errorf("backend body = %q", body)
	}
}

func TestRequestCommand_InvalidData(t *testing.T) {
	_, _, err := runCLI(t, "request", "POST", "/x", "--data", "{not json")
	if err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("expected JSON error, got %v", err)
	}
}

func TestRequestCommand_BackendError(t *testing.T) {
	env := newCLIEnv(t)

	_, stderr, err := runCLI(t, "request", "GET", "/missing", "-c", env.configPath)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(stderr, "no such resource") {
		t.Errorf("expected backend body on stderr, got %q", stderr)
	}
}

func TestLoadConfig_InvalidNaming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[mcp]\nnaming = \"camel\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := loadConfig(&rootFlags{configFiles: []string{path}})
	if err == nil || !strings.Contains(err.Error(), "mcp.naming") {
		t.Fatalf("expected naming validation error, got %v", err)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 5000\nhost = \"0.0.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(&rootFlags{configFiles: []string{path}, port: 6000})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 6000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
}
