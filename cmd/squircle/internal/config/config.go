package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store kinds.
const (
	SessionStoreStytch = "stytch"
	SessionStoreMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Public base URL of the application; redirects are resolved against it
	AppURL string `mapstructure:"app_url"`

	// Database connection string (DSN) for the local member mirror
	DatabaseURL string `mapstructure:"database_url"`

	// Enable debug logging
	Debug bool `mapstructure:"debug"`

	// Which session store backs the gateway: "stytch" or "memory"
	SessionStore string `mapstructure:"session_store"`

	Stytch StytchConfig `mapstructure:"stytch"`

	Cookie CookieConfig `mapstructure:"cookie"`

	// Allowed CORS origins. Empty reflects the request origin (credentials allowed).
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// Redirect targets used by the session protocols
	DashboardPath          string `mapstructure:"dashboard_path"`
	LoginPath              string `mapstructure:"login_path"`
	ReauthPath             string `mapstructure:"reauth_path"`
	CreateOrganizationPath string `mapstructure:"create_organization_path"`

	Observability ObservabilityConfig `mapstructure:"otel"`
}

// StytchConfig holds the credentials and transport settings for the remote session store.
type StytchConfig struct {
	ProjectID  string        `mapstructure:"project_id"`
	Secret     string        `mapstructure:"secret"`
	ProjectEnv string        `mapstructure:"project_env"` // "test" or "live"
	APIURL     string        `mapstructure:"api_url"`     // optional override of the env-derived base URL
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// BaseURL returns the API base URL for the configured project environment.
func (c StytchConfig) BaseURL() string {
	if c.APIURL != "" {
		return strings.TrimRight(c.APIURL, "/")
	}
	if c.ProjectEnv == "live" {
		return "https://api.stytch.com"
	}
	return "https://test.stytch.com"
}

// CookieConfig controls the attributes of cookies written by the gateway.
type CookieConfig struct {
	Secure bool   `mapstructure:"secure"`
	Domain string `mapstructure:"domain"`
}

// ObservabilityConfig holds OpenTelemetry exporter settings.
type ObservabilityConfig struct {
	OTLPEndpoint string `mapstructure:"exporter_otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"exporter_otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	Environment  string `mapstructure:"environment"`
}

// setDefaults registers every known key. Viper only resolves environment
// variables for keys it knows about, so each field needs an entry here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", "localhost:3000")
	v.SetDefault("app_url", "http://localhost:3000")
	v.SetDefault("database_url", "squircle.db")
	v.SetDefault("debug", false)
	v.SetDefault("session_store", SessionStoreStytch)

	v.SetDefault("stytch.project_id", "")
	v.SetDefault("stytch.secret", "")
	v.SetDefault("stytch.project_env", "test")
	v.SetDefault("stytch.api_url", "")
	v.SetDefault("stytch.timeout", "10s")
	v.SetDefault("stytch.max_retries", 2)

	v.SetDefault("cookie.secure", false)
	v.SetDefault("cookie.domain", "")

	v.SetDefault("cors_allowed_origins", []string{})

	v.SetDefault("dashboard_path", "/dashboard")
	v.SetDefault("login_path", "/dashboard/login")
	v.SetDefault("reauth_path", "/auth/logout")
	v.SetDefault("create_organization_path", "/auth/logout")

	v.SetDefault("otel.exporter_otlp_endpoint", "")
	v.SetDefault("otel.exporter_otlp_insecure", false)
	v.SetDefault("otel.service_name", "squircle")
	v.SetDefault("otel.environment", "")
}

// Load reads configuration from the global viper instance: config file (if one
// was set by the caller), environment variables and bound flags.
// Nested keys map to underscored env vars, e.g. stytch.project_id <- STYTCH_PROJECT_ID.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("SERVER_ADDR is required")
	}

	u, err := url.Parse(c.AppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_URL must be an absolute URL, got %q", c.AppURL)
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreStytch:
		if c.Stytch.ProjectID == "" {
			return fmt.Errorf("STYTCH_PROJECT_ID is required when SESSION_STORE=%s", SessionStoreStytch)
		}
		if c.Stytch.Secret == "" {
			return fmt.Errorf("STYTCH_SECRET is required when SESSION_STORE=%s", SessionStoreStytch)
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreStytch, SessionStoreMemory, c.SessionStore)
	}

	if c.Stytch.ProjectEnv != "test" && c.Stytch.ProjectEnv != "live" {
		return fmt.Errorf("STYTCH_PROJECT_ENV must be \"test\" or \"live\", got %q", c.Stytch.ProjectEnv)
	}
	if c.Stytch.Timeout <= 0 {
		return fmt.Errorf("STYTCH_TIMEOUT must be positive")
	}
	if c.Stytch.MaxRetries < 0 {
		return fmt.Errorf("STYTCH_MAX_RETRIES must not be negative")
	}

	return nil
}

// AppURLFor resolves an application path against AppURL.
func (c *Config) AppURLFor(path string) string {
	base, err := url.Parse(c.AppURL)
	if err != nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return base.ResolveReference(ref).String()
}
