package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env             string         `mapstructure:"env"`
	Port            string         `mapstructure:"port"`
	CORSAllowOrigin []string       `mapstructure:"cors_allow_origins"`
	DatabaseURL     string         `mapstructure:"database_url"`
	AdminToken      string         `mapstructure:"admin_token"`
	Log             LogConfig      `mapstructure:"log"`
	Session         SessionConfig  `mapstructure:"session"`
	Keywords        []string       `mapstructure:"keywords"`
	Apply           ApplyConfig    `mapstructure:"apply"`
	Sources         SourcesConfig  `mapstructure:"sources"`
	HTTP            HTTPConfig     `mapstructure:"http"`
	Pacing          PacingConfig   `mapstructure:"pacing"`
	Schedule        ScheduleConfig `mapstructure:"schedule"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// SessionConfig carries the cookies copied from a logged-in browser session.
type SessionConfig struct {
	Token     string `mapstructure:"token"`
	CSRFToken string `mapstructure:"csrf_token"`
}

type ApplyConfig struct {
	// Filtered selects the keyword-gated pipeline variant. When false every
	// merged job is submitted.
	Filtered bool `mapstructure:"filtered"`
}

type SourcesConfig struct {
	Opportunity SourceConfig `mapstructure:"opportunity"`
	JobSearch   SourceConfig `mapstructure:"job_search"`
}

// SourceConfig holds the opaque query string appended to a listing endpoint.
type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Query   string `mapstructure:"query"`
}

type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type PacingConfig struct {
	Mode       string        `mapstructure:"mode"`
	PageDelay  time.Duration `mapstructure:"page_delay"`
	ApplyDelay time.Duration `mapstructure:"apply_delay"`
	PageSize   int           `mapstructure:"page_size"`
	MaxPages   int           `mapstructure:"max_pages"`
}

type ScheduleConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// Load reads configuration from .env files, an optional config file and
// AUTOAPPLY_* environment variables, in increasing precedence.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg, err := LoadFrom(NewViper())
	if err != nil {
		log.Printf("config: %v; falling back to defaults", err)
		cfg, _ = LoadFrom(newBaseViper())
	}
	return cfg
}

// NewViper builds a viper instance with defaults, env binding and the
// optional config file merged in.
func NewViper() *viper.Viper {
	v := newBaseViper()

	path := strings.TrimSpace(os.Getenv("AUTOAPPLY_CONFIG"))
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("autoapply")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("config: read %s: %v", v.ConfigFileUsed(), err)
		}
	}
	return v
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("AUTOAPPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnvVars(v)
	SetDefaults(v)
	return v
}

// LoadFrom unmarshals and normalizes a prepared viper instance.
func LoadFrom(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}

	cfg.Env = normalizeEnv(cfg.Env)
	cfg.CORSAllowOrigin = splitAndTrim(strings.Join(cfg.CORSAllowOrigin, ","))
	cfg.Keywords = splitAndTrim(strings.Join(cfg.Keywords, ","))
	cfg.Session.Token = strings.TrimSpace(cfg.Session.Token)
	cfg.Session.CSRFToken = strings.TrimSpace(cfg.Session.CSRFToken)
	cfg.Pacing.Mode = normalizePacingMode(cfg.Pacing.Mode)
	cfg.HTTP.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.HTTP.BaseURL), "/")

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is not set in production; run history stays in memory")
	}
	return cfg, nil
}

// SetDefaults registers every key so AutomaticEnv can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("port", "8080")
	v.SetDefault("cors_allow_origins", "http://localhost:5173")
	v.SetDefault("database_url", "")
	v.SetDefault("admin_token", "")

	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")

	v.SetDefault("session.token", "")
	v.SetDefault("session.csrf_token", "")
	v.SetDefault("keywords", []string{})
	v.SetDefault("apply.filtered", true)

	v.SetDefault("sources.opportunity.enabled", true)
	v.SetDefault("sources.opportunity.query", "")
	v.SetDefault("sources.job_search.enabled", true)
	v.SetDefault("sources.job_search.query", "")

	v.SetDefault("http.base_url", "https://www.instahyre.com")
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36")

	v.SetDefault("pacing.mode", "fixed")
	v.SetDefault("pacing.page_delay", time.Second)
	v.SetDefault("pacing.apply_delay", 3*time.Second)
	v.SetDefault("pacing.page_size", 30)
	v.SetDefault("pacing.max_pages", 50)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.interval", time.Hour)
	v.SetDefault("schedule.run_on_start", true)
}

// bindLegacyEnvVars keeps the unprefixed names used by deployment scripts working.
func bindLegacyEnvVars(v *viper.Viper) {
	_ = v.BindEnv("env", "AUTOAPPLY_ENV", "ENV")
	_ = v.BindEnv("port", "AUTOAPPLY_PORT", "PORT")
	_ = v.BindEnv("database_url", "AUTOAPPLY_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("cors_allow_origins", "AUTOAPPLY_CORS_ALLOW_ORIGINS", "CORS_ALLOW_ORIGINS")
	_ = v.BindEnv("session.token", "AUTOAPPLY_SESSION_TOKEN", "INSTAHYRE_SESSIONID")
	_ = v.BindEnv("session.csrf_token", "AUTOAPPLY_SESSION_CSRF_TOKEN", "INSTAHYRE_CSRFTOKEN")
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// Existing environment wins over file values.
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: load %s: %v", path, err)
		}
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizePacingMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "token_bucket", "limited", "rate":
		return "token_bucket"
	default:
		return "fixed"
	}
}
