package executor

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
	"time"
)

// Response is a successful backend reply.
type Response struct {
	Tool        string
	Status      int
	ContentType string
	// Data is the decoded JSON body (numbers kept as json.Number), the body
	// text for non-JSON replies, or nil for an empty body.
	Data      any
	Raw       []byte
	RequestID string
	URL       string
	Duration  time.Duration
}

// Text renders the response for a text-only caller.
func (r *Response) Text() string {
	switch d := r.Data.(type) {
	case nil:
		return ""
	case string:
		return d
	}
	out, err := json.MarshalIndent(r.Data, "", "  ")
	if err != nil {
		return string(r.Raw)
	}
	return string(out)
}

// decodeBody parses JSON bodies and passes anything else through as text.
func decodeBody(contentType string, body []byte) (any, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, true
	}
	if !looksJSON(contentType, trimmed) {
		return string(body), true
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(body), false
	}
	return v, true
}

func looksJSON(contentType string, body []byte) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if mt == "application/json" || strings.HasSuffix(mt, "+json") {
			return true
		}
	}
	return body[0] == '{' || body[0] == '['
}

// jsonTypeOf names the JSON type of a decoded value.
func jsonTypeOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return "integer"
		}
		return "number"
	}
	return ""
}

// matchesType is a top-level check only; nested shapes are not validated.
func matchesType(declared, actual string) bool {
	switch {
	case declared == "" || declared == actual:
		return true
	case declared == "number" && actual == "integer":
		return true
	}
	return false
}
