package bootstrap

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"autoapply-backend/internal/applies"
	"autoapply-backend/internal/autoapply"
	"autoapply-backend/internal/instahyre"
	"autoapply-backend/internal/jobs"
	"autoapply-backend/internal/listings"
	"autoapply-backend/internal/pacing"
	"autoapply-backend/internal/runs"
	"autoapply-backend/internal/scheduler"
	"autoapply-backend/internal/session"
	"autoapply-backend/internal/shared/config"
	"autoapply-backend/internal/shared/server"
	"autoapply-backend/internal/shared/storage/db"
	"autoapply-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Client    *instahyre.Client
	Session   *session.Store
	Ledger    *applies.MemoryLedger
	RunsRepo  runs.Repo
	Service   *autoapply.Service
	Scheduler *scheduler.Scheduler
}

// Options tune Build for the calling binary.
type Options struct {
	// WithRouter builds the HTTP router.
	WithRouter bool
	// WithScheduler builds (but does not start) the interval scheduler.
	WithScheduler bool
	DBOptions     db.Options
}

// Build prepares shared dependencies.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg, opts.DBOptions)
	if err != nil {
		return nil, err
	}

	client, err := instahyre.NewClient(instahyre.Options{
		BaseURL:   cfg.HTTP.BaseURL,
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build http client")
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Client:  client,
		Session: session.NewStore(),
		Ledger:  applies.NewMemoryLedger(),
	}
	if sqlDB != nil {
		app.RunsRepo = runs.NewPGRepo(sqlDB)
	} else {
		app.RunsRepo = runs.NewMemoryRepo(0)
	}

	app.Service = buildService(app)

	if opts.WithRouter {
		app.Router = server.NewRouter(cfg, app.Service)
	}
	if opts.WithScheduler && cfg.Schedule.Enabled {
		app.Scheduler = scheduler.New(app.Service, scheduler.Config{
			Interval:   cfg.Schedule.Interval,
			Filtered:   cfg.Apply.Filtered,
			RunOnStart: cfg.Schedule.RunOnStart,
		})
	}

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":                cfg.Env,
		"base_url":           client.BaseURL(),
		"run_history":        runHistoryKind(sqlDB),
		"job_search_enabled": cfg.Sources.JobSearch.Enabled,
		"filtered":           cfg.Apply.Filtered,
		"keywords":           len(cfg.Keywords),
		"pacing_mode":        cfg.Pacing.Mode,
		"scheduler":          app.Scheduler != nil,
	})
	return app, nil
}

// Close releases the database handle, if any.
func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildService(app *App) *autoapply.Service {
	cfg := app.Config
	return &autoapply.Service{
		Auth: session.NewAuthenticator(app.Session, app.Client),
		Credentials: session.Credentials{
			SessionToken: cfg.Session.Token,
			CSRFToken:    cfg.Session.CSRFToken,
		},
		Fetcher: &listings.Fetcher{
			Client:   app.Client,
			PageSize: cfg.Pacing.PageSize,
			MaxPages: cfg.Pacing.MaxPages,
			Pacing:   pacing.ForMode(cfg.Pacing.Mode, cfg.Pacing.PageDelay),
		},
		Sources: autoapply.Sources{
			Opportunity: listings.SourceSpec{
				Source: jobs.SourceOpportunity,
				Path:   instahyre.OpportunityPath,
				Query:  cfg.Sources.Opportunity.Query,
			},
			JobSearch: listings.SourceSpec{
				Source: jobs.SourceJobSearch,
				Path:   instahyre.JobSearchPath,
				Query:  cfg.Sources.JobSearch.Query,
			},
			OpportunityEnabled: cfg.Sources.Opportunity.Enabled,
			JobSearchEnabled:   cfg.Sources.JobSearch.Enabled,
		},
		Keywords:      cfg.Keywords,
		Poster:        app.Client,
		ApplyPath:     instahyre.ApplyPath,
		ApplyPacing:   pacing.ForMode(cfg.Pacing.Mode, cfg.Pacing.ApplyDelay),
		SubmitTimeout: cfg.HTTP.Timeout,
		Ledger:        app.Ledger,
		Runs:          app.RunsRepo,
	}
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.db.skipped", map[string]any{"reason": "database url empty; run history kept in memory"})
		return nil, nil
	}
	if opts == (db.Options{}) {
		opts = db.DefaultServerOptions()
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			sqlDB = nil
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.fallback", map[string]any{"error": err})
			return nil, nil
		}
		return nil, errors.Wrap(err, "connect run history database")
	}
	return sqlDB, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func runHistoryKind(sqlDB *sql.DB) string {
	if sqlDB != nil {
		return "postgres"
	}
	return "memory"
}
