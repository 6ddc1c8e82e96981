package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	MySQLDSN      string // empty disables the activity store; parseTime=true is enforced on load
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	LedgerBackend string // memory | redis

	GatewayMode   string // mock | live
	GoogleBase    string
	GoogleToken   string
	WebhookSecret string

	OpenAIBase  string
	OpenAIKey   string
	OpenAIModel string

	PollInterval     time.Duration
	ResponseDeadline time.Duration
	UrgentWindow     time.Duration
	DelayMin         time.Duration
	DelayMax         time.Duration
	GenTimeout       time.Duration
	Workers          int

	// Initial automation settings for headless runs.
	AutoRespond         bool
	Tone                string
	Language            string
	ResponseTemplate    string
	RespondToFourStar   bool
	RespondToLowRatings bool
	BusinessName        string
	BusinessType        string
	BusinessValues      string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	secs := func(k string, def int) time.Duration {
		return time.Duration(atoi(k, def)) * time.Second
	}
	boolean := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		MySQLDSN:      mysqlDSN(env("MYSQL_DSN", "")),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		LedgerBackend: env("LEDGER_BACKEND", "memory"),

		GatewayMode:   env("GATEWAY_MODE", "mock"),
		GoogleBase:    env("GOOGLE_BASE_URL", "https://mybusiness.googleapis.com"),
		GoogleToken:   env("GOOGLE_ACCESS_TOKEN", ""),
		WebhookSecret: env("GOOGLE_WEBHOOK_SECRET", ""),

		OpenAIBase:  env("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIKey:   env("OPENAI_API_KEY", ""),
		OpenAIModel: env("OPENAI_MODEL", "gpt-4"),

		PollInterval:     secs("POLL_INTERVAL_SECONDS", 300),
		ResponseDeadline: secs("RESPONSE_DEADLINE_SECONDS", 600),
		UrgentWindow:     secs("URGENT_WINDOW_SECONDS", 120),
		DelayMin:         secs("RESPONSE_DELAY_MIN_SECONDS", 60),
		DelayMax:         secs("RESPONSE_DELAY_MAX_SECONDS", 300),
		GenTimeout:       secs("GEN_TIMEOUT_SECONDS", 20),
		Workers:          atoi("AUTOMATION_WORKERS", 8),

		AutoRespond:         boolean("AUTO_RESPOND", false),
		Tone:                env("RESPONSE_TONE", "professional"),
		Language:            env("RESPONSE_LANGUAGE", "english"),
		ResponseTemplate:    env("RESPONSE_TEMPLATE", "personalized"),
		RespondToFourStar:   boolean("RESPOND_TO_FOUR_STAR", false),
		RespondToLowRatings: boolean("RESPOND_TO_LOW_RATINGS", false),
		BusinessName:        env("BUSINESS_NAME", "Your Business"),
		BusinessType:        env("BUSINESS_TYPE", "Business"),
		BusinessValues:      env("BUSINESS_VALUES", "Customer satisfaction and quality service"),
	}
	if c.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is empty; drafts will use fallback text only")
	}
	if c.GatewayMode == "live" && c.GoogleToken == "" {
		log.Warn().Msg("GOOGLE_ACCESS_TOKEN is empty; live gateway calls will be rejected")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// mysqlDSN appends parseTime=true when the operator DSN lacks it; the activity
// store scans created_at into time.Time and fails on every query without it.
func mysqlDSN(dsn string) string {
	if dsn == "" || strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	log.Warn().Msg("MYSQL_DSN missing parseTime=true, appending it")
	return dsn + sep + "parseTime=true"
}
