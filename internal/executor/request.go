package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/bobmcallan/openapi-bridge/internal/catalog"
)

// validate checks required presence and declared kinds without touching the network.
func validate(def *catalog.ToolDefinition, args map[string]any) *Failure {
	var missing, invalid []string
	for _, p := range def.Params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				missing = append(missing, p.Name)
			}
			continue
		}
		if !p.Kind.Accepts(v) {
			invalid = append(invalid, fmt.Sprintf("%s (expected %s)", p.Name, p.Kind))
		}
	}
	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(invalid)
	return &Failure{Kind: KindInvalidArguments, Tool: def.Name, Missing: missing, Invalid: invalid}
}

// buildRequest materializes the HTTP request for one invocation.
// Arguments the tool does not declare are ignored.
func buildRequest(ctx context.Context, baseURL string, def *catalog.ToolDefinition, args map[string]any) (*http.Request, error) {
	path := def.Path
	query := url.Values{}
	headers := http.Header{}
	var cookies []*http.Cookie
	var bodyArgs map[string]any
	var bodyValue any
	hasBody := false

	for _, p := range def.Params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			continue
		}
		switch p.In {
		case "path":
			s, err := formatScalar(v)
			if err != nil {
				return nil, fmt.Errorf("path argument %s: %w", p.Name, err)
			}
			path = strings.ReplaceAll(path, "{"+p.WireName+"}", url.PathEscape(s))
		case "query":
			if err := addQuery(query, p, v); err != nil {
				return nil, fmt.Errorf("query argument %s: %w", p.Name, err)
			}
		case "header":
			s, err := formatScalar(v)
			if err != nil {
				return nil, fmt.Errorf("header argument %s: %w", p.Name, err)
			}
			headers.Set(p.WireName, s)
		case "cookie":
			s, err := formatScalar(v)
			if err != nil {
				return nil, fmt.Errorf("cookie argument %s: %w", p.Name, err)
			}
			cookies = append(cookies, &http.Cookie{Name: p.WireName, Value: s})
		case "body":
			if def.Body == nil {
				continue
			}
			hasBody = true
			if def.Body.Flattened {
				if bodyArgs == nil {
					bodyArgs = map[string]any{}
				}
				bodyArgs[p.WireName] = v
			} else {
				bodyValue = v
			}
		}
	}

	target := strings.TrimRight(baseURL, "/") + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var body io.Reader
	contentType := ""
	if hasBody {
		payload := bodyValue
		if def.Body.Flattened {
			payload = bodyArgs
		}
		data, err := encodeBody(payload, def.Body.ContentType)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
		contentType = def.Body.ContentType
	}

	req, err := http.NewRequestWithContext(ctx, def.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vals := range headers {
		req.Header[k] = vals
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func addQuery(q url.Values, p catalog.Param, v any) error {
	if items, ok := asList(v); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			s, err := formatScalar(item)
			if err != nil {
				return err
			}
			parts = append(parts, s)
		}
		if p.Explode {
			for _, s := range parts {
				q.Add(p.WireName, s)
			}
		} else {
			q.Set(p.WireName, strings.Join(parts, ","))
		}
		return nil
	}
	s, err := formatScalar(v)
	if err != nil {
		return err
	}
	q.Set(p.WireName, s)
	return nil
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// formatScalar renders a value for path, query, header or cookie placement.
// Objects and arrays fall back to compact JSON.
func formatScalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case json.Number:
		return x.String(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func encodeBody(payload any, contentType string) ([]byte, error) {
	if s, ok := payload.(string); ok && !isJSON(contentType) {
		return []byte(s), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

func isJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	return ct == "" || ct == "application/json" || strings.HasSuffix(ct, "+json")
}
