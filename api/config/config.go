package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	BindAddr       string
	APIURL         string // deployment backend; empty or "mock" runs detached
	APIToken       string // bearer token forwarded to the backend
	UIDir          string
	SessionSecret  string
	AccessTokens   []string // accepted login tokens; empty accepts any non-empty token
	AllowedOrigins string
	SettingsFile   string
	DatabaseURL    string // optional operator journal

	PollInterval    time.Duration
	CompletionDelay time.Duration
	PollMaxAttempts int // 0 polls until the rollout settles or the session stops
	SessionRetain   time.Duration
	JournalRetain   time.Duration

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3Bucket    string
	S3UseSSL    bool

	KubeEnabled   bool
	KubeNamespace string

	RefreshSchedule string
	ExportSchedule  string
	LogLevel        string
}

func Load() *Config {
	return &Config{
		Port:           envOr("GARDEN_PORT", "8900"),
		BindAddr:       envOr("GARDEN_BIND_ADDR", "0.0.0.0"),
		APIURL:         os.Getenv("GARDEN_API_URL"),
		APIToken:       os.Getenv("GARDEN_API_TOKEN"),
		UIDir:          envOr("GARDEN_UI_DIR", ""),
		SessionSecret:  os.Getenv("GARDEN_SESSION_SECRET"),
		AccessTokens:   splitList(os.Getenv("GARDEN_ACCESS_TOKENS")),
		AllowedOrigins: os.Getenv("GARDEN_ALLOWED_ORIGINS"),
		SettingsFile:   envOr("GARDEN_SETTINGS_FILE", os.Getenv("HOME")+"/.config/kube-garden/settings.yaml"),
		DatabaseURL:    os.Getenv("GARDEN_DATABASE_URL"),

		PollInterval:    durationOr("GARDEN_POLL_INTERVAL", 2*time.Second),
		CompletionDelay: durationOr("GARDEN_COMPLETION_DELAY", 3*time.Second),
		PollMaxAttempts: intOr("GARDEN_POLL_MAX_ATTEMPTS", 0),
		SessionRetain:   durationOr("GARDEN_SESSION_RETAIN", time.Hour),
		JournalRetain:   durationOr("GARDEN_JOURNAL_RETAIN", 90*24*time.Hour),

		S3Endpoint:  os.Getenv("GARDEN_S3_ENDPOINT"),
		S3AccessKey: os.Getenv("GARDEN_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("GARDEN_S3_SECRET_KEY"),
		S3Region:    os.Getenv("GARDEN_S3_REGION"),
		S3Bucket:    envOr("GARDEN_S3_BUCKET", "kube-garden-history"),
		S3UseSSL:    boolOr("GARDEN_S3_USE_SSL", true),

		KubeEnabled:   boolOr("GARDEN_KUBE_ENABLED", false),
		KubeNamespace: envOr("GARDEN_KUBE_NAMESPACE", "default"),

		RefreshSchedule: envOr("GARDEN_REFRESH_SCHEDULE", "@every 30s"),
		ExportSchedule:  os.Getenv("GARDEN_EXPORT_SCHEDULE"),
		LogLevel:        envOr("GARDEN_LOG_LEVEL", "info"),
	}
}

// Detached reports whether no deployment backend is configured.
func (c *Config) Detached() bool {
	return Detached(c.APIURL)
}

// Detached reports whether url selects no backend.
func Detached(url string) bool {
	u := strings.TrimSpace(url)
	return u == "" || strings.EqualFold(u, "mock")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func intOr(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func boolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
