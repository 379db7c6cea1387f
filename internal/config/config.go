package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the guard.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Realtime    RealtimeConfig
	Session     SessionConfig
	Security    SecurityConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Backend     BackendConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnableMetrics bool
}

type RealtimeConfig struct {
	Enabled              bool
	URL                  string
	WebSocketOrigin      string
	APIOrigin            string
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	PingInterval         time.Duration
	HandshakeTimeout     time.Duration
}

type SessionConfig struct {
	Duration              time.Duration
	WarningTime           time.Duration
	TickInterval          time.Duration
	TokenRefreshThreshold time.Duration
	PollInterval          time.Duration
	RecheckInterval       time.Duration
}

type SecurityConfig struct {
	ScanSchedule             string
	ClearanceScore           int
	InsecureTransportPenalty int
	MixedContentPenalty      int
	MissingCredentialPenalty int
	// ResourceURLs are the resources the storefront page loads, checked for mixed content.
	ResourceURLs []string
	// Strict adds the mixed-content and credential-exposure detectors.
	Strict bool
}

type StorageConfig struct {
	CredentialsPath string
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the guard can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "storefront-guard"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "127.0.0.1"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", true),
		},
		Realtime: RealtimeConfig{
			Enabled:              getBool("REALTIME_ENABLED", false),
			URL:                  getString("WS_URL", "/ws"),
			WebSocketOrigin:      os.Getenv("WS_ORIGIN"),
			APIOrigin:            os.Getenv("API_ORIGIN"),
			MaxReconnectAttempts: getInt("WS_MAX_RECONNECT_ATTEMPTS", 5),
			ReconnectInterval:    getMillis("WS_RECONNECT_INTERVAL_MS", 3000*time.Millisecond),
			PingInterval:         getMillis("WS_PING_INTERVAL_MS", 30000*time.Millisecond),
			HandshakeTimeout:     getDuration("WS_HANDSHAKE_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			Duration:              getDuration("SESSION_DURATION", 30*time.Minute),
			WarningTime:           getDuration("SESSION_WARNING_TIME", 5*time.Minute),
			TickInterval:          getDuration("SESSION_TICK_INTERVAL", time.Second),
			TokenRefreshThreshold: getDuration("TOKEN_REFRESH_THRESHOLD", 5*time.Minute),
			PollInterval:          getDuration("ACCESS_POLL_INTERVAL", 30*time.Second),
			RecheckInterval:       getDuration("ACCESS_RECHECK_INTERVAL", 60*time.Second),
		},
		Security: SecurityConfig{
			ScanSchedule:             getString("SECURITY_SCAN_SCHEDULE", "@every 30s"),
			ClearanceScore:           getInt("SECURITY_CLEARANCE_SCORE", 80),
			InsecureTransportPenalty: getInt("SECURITY_PENALTY_INSECURE_TRANSPORT", 20),
			MixedContentPenalty:      getInt("SECURITY_PENALTY_MIXED_CONTENT", 10),
			MissingCredentialPenalty: getInt("SECURITY_PENALTY_MISSING_CREDENTIAL", 5),
			ResourceURLs:             getList("SECURITY_RESOURCE_URLS"),
			Strict:                   getBool("SECURITY_STRICT", false),
		},
		Storage: StorageConfig{
			CredentialsPath: getString("CREDENTIALS_PATH", "./data/credentials.db"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Backend: BackendConfig{
			URL:     getString("BACKEND_URL", "http://localhost:8000"),
			Timeout: getDuration("BACKEND_TIMEOUT", 5*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	if cfg.Realtime.APIOrigin == "" {
		cfg.Realtime.APIOrigin = cfg.Backend.URL
	}
	if cfg.Security.ClearanceScore < 0 || cfg.Security.ClearanceScore > 100 {
		return nil, fmt.Errorf("SECURITY_CLEARANCE_SCORE must be within 0..100, got %d", cfg.Security.ClearanceScore)
	}
	if cfg.Session.WarningTime >= cfg.Session.Duration {
		return nil, fmt.Errorf("SESSION_WARNING_TIME (%s) must be shorter than SESSION_DURATION (%s)",
			cfg.Session.WarningTime, cfg.Session.Duration)
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getBool accepts strconv booleans plus yes/no and on/off.
func getBool(key string, fallback bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return fallback
	case "yes", "on", "y":
		return true
	case "no", "off", "n":
		return false
	}
	if parsed, err := strconv.ParseBool(val); err == nil {
		return parsed
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getMillis reads a bare integer as milliseconds, falling back to duration syntax.
func getMillis(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
