package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/core"
	"hrportal/internal/domain/leave"
	"hrportal/internal/domain/notifications"
	"hrportal/internal/domain/reports"
	"hrportal/internal/platform/cache"
	"hrportal/internal/platform/config"
	"hrportal/internal/platform/db"
	"hrportal/internal/platform/email"
	"hrportal/internal/platform/events"
	"hrportal/internal/platform/jobs"
	"hrportal/internal/platform/metrics"
	"hrportal/internal/platform/sqlite"
	audithandler "hrportal/internal/transport/http/handlers/audit"
	authhandler "hrportal/internal/transport/http/handlers/auth"
	corehandler "hrportal/internal/transport/http/handlers/core"
	healthhandler "hrportal/internal/transport/http/handlers/health"
	leavehandler "hrportal/internal/transport/http/handlers/leave"
	notificationshandler "hrportal/internal/transport/http/handlers/notifications"
	reportshandler "hrportal/internal/transport/http/handlers/reports"
	"hrportal/internal/transport/http/middleware"
)

// storage bundles one database backend's implementations of every store contract.
type storage struct {
	leave         leave.Repository
	directory     core.StoreAPI
	notifications notifications.StoreAPI
	audit         audit.StoreAPI
	runs          jobs.RunStore
	reports       reports.StoreAPI
	users         auth.UserStore
	seeder        db.Seeder
	ping          healthhandler.Pinger
	close         func()
}

// Dependencies are the wired services the router serves.
type Dependencies struct {
	Leave         *leave.Service
	Directory     *core.Service
	Notifications *notifications.Service
	Audit         *audit.Service
	Jobs          *jobs.Service
	Reports       *reports.Service
	Perms         middleware.PermissionStore
	Users         auth.UserStore
	Tokens        *auth.Service
	Redis         redis.Cmdable
	Metrics       *metrics.Collector
	Checks        map[string]healthhandler.Pinger
}

type App struct {
	Config config.Config
	Deps   Dependencies
	Router http.Handler
	Seed   db.SeedResult

	closers []func()
}

// New connects every backing service named by cfg, applies migrations and
// the seed when enabled, and builds the router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, store.close)

	collector := metrics.New()
	checks := map[string]healthhandler.Pinger{"database": store.ping}

	var rdb redis.Cmdable
	client, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client != nil {
		rdb = client
		checks["redis"] = redisPinger{client}
		app.closers = append(app.closers, func() { _ = client.Close() })
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kafka
		app.closers = append(app.closers, func() {
			if err := kafka.Close(); err != nil {
				log.Warn().Err(err).Msg("kafka writer close failed")
			}
		})
	}

	enforcer, err := auth.NewEnforcer()
	if err != nil {
		return nil, fmt.Errorf("build enforcer: %w", err)
	}

	directory := core.NewService(store.directory)
	notifier := notifications.New(store.notifications, publisher)
	if cfg.EmailEnabled {
		notifier.Mailer = email.New(cfg)
		notifier.Users = store.users
		notifier.DefaultFrom = cfg.EmailFrom
	}
	leaveSvc := leave.NewService(store.leave, directory, notifier, publisher, cache.New(rdb, cfg.PolicyCacheTTL))
	tokens := auth.NewService(store.users, cfg.JWTSecret, 0)

	if cfg.RunSeed {
		app.Seed, err = db.Seed(ctx, store.seeder, leaveSvc, cfg.SeedOrgName, cfg.SeedAdminEmail)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		log.Info().Str("organizationId", app.Seed.OrganizationID).Msg("seed applied")
		if !cfg.IsProduction() && app.Seed.AdminUserID != "" {
			token, err := tokens.IssueToken(ctx, app.Seed.AdminUserID)
			if err != nil {
				log.Warn().Err(err).Msg("development token issue failed")
			} else {
				log.Info().Str("token", token).Msg("development admin token")
			}
		}
	}

	app.Deps = Dependencies{
		Leave:         leaveSvc,
		Directory:     directory,
		Notifications: notifier,
		Audit:         audit.New(store.audit),
		Jobs:          jobs.New(store.runs, directory, leaveSvc, collector, cfg.LeaveAccrualInterval),
		Reports:       reports.NewService(store.reports),
		Perms:         enforcer,
		Users:         store.users,
		Tokens:        tokens,
		Redis:         rdb,
		Metrics:       collector,
		Checks:        checks,
	}
	app.Router = NewRouter(cfg, app.Deps)
	ok = true
	return app, nil
}

func openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	if cfg.DBDriver == config.DriverSQLite {
		st, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return storage{}, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite backend")
		return storage{
			leave:         st,
			directory:     st,
			notifications: st,
			audit:         st,
			runs:          st,
			reports:       st,
			users:         st,
			seeder:        st,
			ping:          st,
			close: func() {
				if err := st.Close(); err != nil {
					log.Warn().Err(err).Msg("sqlite close failed")
				}
			},
		}, nil
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return storage{}, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return storage{}, fmt.Errorf("migrate: %w", err)
		}
	}
	return storage{
		leave:         leave.NewStore(pool),
		directory:     core.NewStore(pool),
		notifications: notifications.NewStore(pool),
		audit:         audit.NewStore(pool),
		runs:          jobs.PgRunStore{DB: pool},
		reports:       reports.NewStore(pool),
		users:         auth.NewStore(pool),
		seeder:        db.PgSeeder{DB: pool},
		ping:          pool,
		close:         pool.Close,
	}, nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// NewRouter mounts the probes at the root and the API under /api/v1.
func NewRouter(cfg config.Config, d Dependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(d.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", middleware.IdempotencyHeader, middleware.OrgOverrideHeader, "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "X-Total-Count", "Idempotent-Replayed"},
			MaxAge:         300,
		}))
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, d.Users))

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = d.Metrics
	}
	healthhandler.NewHandler(d.Checks, collector, d.Perms).RegisterRoutes(router)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.Idempotency(d.Redis, cfg.IdempotencyTTL))

		authhandler.NewHandler(d.Tokens, d.Perms).RegisterRoutes(r)
		corehandler.NewHandler(d.Directory, d.Perms).RegisterRoutes(r)
		leavehandler.NewHandler(d.Leave, d.Perms, d.Directory, d.Audit, d.Jobs, d.Metrics).RegisterRoutes(r)
		notificationshandler.NewHandler(d.Notifications, d.Perms, d.Audit).RegisterRoutes(r)
		audithandler.NewHandler(d.Audit, d.Perms).RegisterRoutes(r)
		reportshandler.NewHandler(d.Reports, d.Perms).RegisterRoutes(r)
	})
	return router
}

// Run serves HTTP and the job scheduler until ctx is cancelled, then shuts
// the server down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	a.Deps.Jobs.Start(gctx)

	g.Go(func() error {
		log.Info().Str("addr", a.Config.Addr).Msg("hrportal server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Deps.Jobs.Wait()
	return err
}

// Close releases backing connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
