package observability_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"gbp_responder/internal/adapters/observability"
)

func TestNewLogger_CarriesServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := observability.NewLogger("prod", "api").Output(&buf)
	l.Info().Msg("hello")

	var line struct {
		Level   string `json:"level"`
		Service string `json:"service"`
		Message string `json:"message"`
		Time    string `json:"time"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line.Service != "api" || line.Message != "hello" || line.Level != "info" {
		t.Fatalf("unexpected log line: %+v", line)
	}
	if line.Time == "" {
		t.Fatalf("timestamp missing: %q", buf.String())
	}
}
