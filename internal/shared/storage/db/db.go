package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"autoapply-backend/internal/shared/telemetry"
)

// Options controls database pool and connectivity behavior.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var openDB = sql.Open

// DefaultServerOptions returns defaults for the long-running server. Run
// history writes at most a few rows an hour, so the pool stays small.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// DefaultCLIOptions returns defaults for one-shot CLI commands.
func DefaultCLIOptions() Options {
	return Options{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// OptionsFromEnv overrides defaults with DB_* env vars if present.
// Unparseable values are logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	env := viper.New()
	env.SetEnvPrefix("DB")
	env.AutomaticEnv()

	opts := defaults
	overrideInt(env, "max_open_conns", &opts.MaxOpenConns)
	overrideInt(env, "max_idle_conns", &opts.MaxIdleConns)
	overrideDuration(env, "conn_max_lifetime", &opts.ConnMaxLifetime)
	overrideDuration(env, "conn_max_idle_time", &opts.ConnMaxIdleTime)
	overrideDuration(env, "ping_timeout", &opts.PingTimeout)
	return opts
}

// Connect opens a *sql.DB for databaseURL and verifies connectivity.
// The returned *sql.DB should be shared and re-used by callers.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is empty")
	}

	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	applyOptions(db, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	logPoolStats(db, "db.init", describeTarget(databaseURL))
	return db, nil
}

func applyOptions(db *sql.DB, opts Options) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 2
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = time.Hour
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func logPoolStats(db *sql.DB, event string, fields map[string]any) {
	stats := db.Stats()
	if fields == nil {
		fields = map[string]any{}
	}
	fields["open"] = stats.OpenConnections
	fields["idle"] = stats.Idle
	fields["max_open"] = stats.MaxOpenConnections
	telemetry.Info(event, fields)
}

func overrideInt(env *viper.Viper, key string, dst *int) {
	raw := strings.TrimSpace(env.GetString(key))
	if raw == "" {
		return
	}
	val, err := cast.ToIntE(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid_int", map[string]any{"key": envName(key), "error": err})
		return
	}
	*dst = val
}

func overrideDuration(env *viper.Viper, key string, dst *time.Duration) {
	raw := strings.TrimSpace(env.GetString(key))
	if raw == "" {
		return
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid_duration", map[string]any{"key": envName(key), "error": err})
		return
	}
	*dst = val
}

func envName(key string) string {
	return "DB_" + strings.ToUpper(key)
}

// describeTarget returns host and database name for logs, never credentials.
func describeTarget(databaseURL string) map[string]any {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return map[string]any{}
	}
	return map[string]any{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.Database,
	}
}
