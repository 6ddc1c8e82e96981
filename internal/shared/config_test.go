package shared_test

import (
	"testing"
	"time"

	"gbp_responder/internal/shared"
)

func TestLoad_Defaults(t *testing.T) {
	// Empty values fall through to the defaults; this also shields the test
	// from whatever the host environment carries.
	for _, k := range []string{
		"HTTP_ADDR", "GATEWAY_MODE", "LEDGER_BACKEND", "MYSQL_DSN",
		"POLL_INTERVAL_SECONDS", "RESPONSE_DEADLINE_SECONDS", "URGENT_WINDOW_SECONDS",
	} {
		t.Setenv(k, "")
	}
	cfg := shared.Load()

	if cfg.HTTPAddr != ":8080" || cfg.GatewayMode != "mock" || cfg.LedgerBackend != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.PollInterval != 5*time.Minute || cfg.ResponseDeadline != 10*time.Minute ||
		cfg.UrgentWindow != 2*time.Minute {
		t.Fatalf("unexpected timing defaults: %+v", cfg)
	}
	if cfg.MySQLDSN != "" {
		t.Fatalf("activity store should be disabled by default, got %q", cfg.MySQLDSN)
	}
}

func TestLoad_MySQLDSNGetsParseTime(t *testing.T) {
	for in, want := range map[string]string{
		"root:root@tcp(localhost:3306)/gbp":                "root:root@tcp(localhost:3306)/gbp?parseTime=true",
		"root:root@tcp(localhost:3306)/gbp?loc=UTC":        "root:root@tcp(localhost:3306)/gbp?loc=UTC&parseTime=true",
		"root:root@tcp(localhost:3306)/gbp?parseTime=true": "root:root@tcp(localhost:3306)/gbp?parseTime=true",
	} {
		t.Setenv("MYSQL_DSN", in)
		if got := shared.Load().MySQLDSN; got != want {
			t.Errorf("MYSQL_DSN=%q: got %q, want %q", in, got, want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "30")
	t.Setenv("GATEWAY_MODE", "live")
	t.Setenv("RESPOND_TO_FOUR_STAR", "true")

	cfg := shared.Load()
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval override lost: %v", cfg.PollInterval)
	}
	if cfg.GatewayMode != "live" || !cfg.RespondToFourStar {
		t.Fatalf("overrides lost: %+v", cfg)
	}
}
