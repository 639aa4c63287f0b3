package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/gigfinder/internal/cache"
	"github.com/vadim/gigfinder/internal/config"
	httpcontroller "github.com/vadim/gigfinder/internal/controller/http"
	"github.com/vadim/gigfinder/internal/database"
	banddao "github.com/vadim/gigfinder/internal/domain/band/dao"
	bandservice "github.com/vadim/gigfinder/internal/domain/band/service"
	gigdao "github.com/vadim/gigfinder/internal/domain/gig/dao"
	gigservice "github.com/vadim/gigfinder/internal/domain/gig/service"
	messagingdao "github.com/vadim/gigfinder/internal/domain/messaging/dao"
	messagingpolicy "github.com/vadim/gigfinder/internal/domain/messaging/policy"
	messagingservice "github.com/vadim/gigfinder/internal/domain/messaging/service"
	"github.com/vadim/gigfinder/internal/domain/messaging/unread"
	notificationservice "github.com/vadim/gigfinder/internal/domain/notification/service"
	profiledao "github.com/vadim/gigfinder/internal/domain/profile/dao"
	profileservice "github.com/vadim/gigfinder/internal/domain/profile/service"
	"github.com/vadim/gigfinder/internal/housekeeping"
	"github.com/vadim/gigfinder/internal/httpx/auth"
	"github.com/vadim/gigfinder/internal/realtime"
	"github.com/vadim/gigfinder/internal/session"
	"github.com/vadim/gigfinder/internal/storage"
)

// App is the main application container
type App struct {
	cfg        config.Config
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	// Infrastructure
	pool     *pgxpool.Pool
	listener *database.Listener
	cache    cache.Cache
	storage  *storage.S3Storage

	// Domain services and policies (interfaces for HTTP handlers)
	gigs            *gigservice.Service
	profiles        *profileservice.Service
	bands           *bandservice.Service
	messagingPolicy *messagingpolicy.Policy
	unread          *unread.Service
	notifications   *notificationservice.Service
	sessions        *session.Loader
	conversations   *messagingdao.ConversationPostgres

	// Scheduler for background maintenance
	scheduler *housekeeping.Scheduler

	// stopListener cancels the LISTEN loop
	stopListener context.CancelFunc
}

// NewApp creates and initializes the application
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	app := &App{
		cfg:    cfg,
		router: r,
		logger: logger,
	}

	if err := app.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("initializing infrastructure: %w", err)
	}

	if err := app.initDomains(ctx); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("initializing domains: %w", err)
	}

	if err := app.registerRoutes(); err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("registering routes: %w", err)
	}

	app.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.Housekeeping.Enabled {
		app.scheduler = app.newScheduler()
	}

	return app, nil
}

// initInfrastructure connects to PostgreSQL, starts the change listener and
// sets up the optional Redis cache and the media bucket
func (a *App) initInfrastructure(ctx context.Context) error {
	pool, err := database.NewPostgresPool(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	a.pool = pool

	if a.cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return err
		}
	}

	a.listener = database.NewListener(pool, a.cfg.Database.NotifyChannel, a.logger)
	listenCtx, cancel := context.WithCancel(context.Background())
	a.stopListener = cancel
	go a.listener.Run(listenCtx)

	if a.cfg.Redis.URL != "" {
		c, err := cache.NewRedisCache(ctx, a.cfg.Redis.URL)
		if err != nil {
			// the cache is optional; totals are read from postgres instead
			a.logger.Warn("redis unavailable, unread cache disabled", "error", err)
		} else {
			a.cache = c
		}
	}

	a.storage = storage.NewS3Storage(storage.S3Config{
		Endpoint:        a.cfg.S3.Endpoint,
		AccessKeyID:     a.cfg.S3.AccessKeyID,
		SecretAccessKey: a.cfg.S3.SecretAccessKey,
		Bucket:          a.cfg.S3.Bucket,
		Region:          a.cfg.S3.Region,
		PublicURL:       a.cfg.S3.PublicURL,
	})

	return nil
}

// initDomains initializes domain layers (DAO, Service, Policy)
func (a *App) initDomains(_ context.Context) error {
	channel := a.cfg.Database.NotifyChannel

	// DAOs
	gigRepo := gigdao.NewGigPostgres(a.pool)
	profileRepo := profiledao.NewProfilePostgres(a.pool)
	bandRepo := banddao.NewBandPostgres(a.pool)
	invitationRepo := banddao.NewInvitationPostgres(a.pool)
	applicationRepo := banddao.NewApplicationPostgres(a.pool)
	a.conversations = messagingdao.NewConversationPostgres(a.pool, channel)
	messageRepo := messagingdao.NewMessagePostgres(a.pool, channel)
	feed := messagingdao.NewChangeFeed(a.listener, a.logger)

	// Services
	a.gigs = gigservice.New(gigRepo)
	a.profiles = profileservice.New(profileRepo)
	a.bands = bandservice.New(bandRepo, invitationRepo, applicationRepo, bandservice.Config{
		AllowExpiredAccept: a.cfg.Invitations.AllowExpiredAccept,
		TTL:                a.cfg.Invitations.TTL,
	})
	messaging := messagingservice.New(a.conversations, messageRepo, gigProvider{a.gigs}, feed)

	var unreadOpts []unread.Option
	if a.cache != nil {
		unreadOpts = append(unreadOpts, unread.WithCache(a.cache, a.cfg.Redis.TTL))
	}
	a.unread = unread.New(a.conversations, feed, a.logger, unreadOpts...)
	a.notifications = notificationservice.New(a.bands, a.bands.Now)
	a.sessions = session.NewLoader(a.profiles)

	// Policies
	a.messagingPolicy = messagingpolicy.New(messaging, a.bands)

	return nil
}

func (a *App) newScheduler() *housekeeping.Scheduler {
	hk := a.cfg.Housekeeping

	var tasks []housekeeping.Task
	if hk.ReconcileConversations {
		tasks = append(tasks, housekeeping.ReconcileConversations(a.conversations, hk.BatchSize, a.logger))
	}
	if hk.ReapExpired {
		tasks = append(tasks, housekeeping.ReapExpired(a.bands, hk.BatchSize, a.logger))
	}

	return housekeeping.New(housekeeping.Config{Interval: hk.Interval}, a.logger, tasks...)
}

// registerRoutes registers all HTTP routes
func (a *App) registerRoutes() error {
	a.router.Get("/healthz", a.healthHandler)
	a.router.Get("/readyz", a.readyHandler)

	docs, err := httpcontroller.NewDocsHandler("GigFinder API", OpenAPISpec)
	if err != nil {
		return err
	}
	docs.RegisterRoutes(a.router)

	verifier := auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer)

	a.router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, a.sessions, a.logger))

		// Websockets are long-lived and stay out of the request timeout
		realtime.NewHandler(a.unread, a.messagingPolicy, nil, a.logger).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			httpcontroller.NewProfileHandler(a.profiles, a.logger).RegisterRoutes(r)
			httpcontroller.NewGigHandler(a.gigs, a.logger).RegisterRoutes(r)
			httpcontroller.NewConversationHandler(a.messagingPolicy, a.unread, a.logger).RegisterRoutes(r)
			httpcontroller.NewBandHandler(a.bands, a.logger).RegisterRoutes(r)
			httpcontroller.NewNotificationHandler(a.notifications, a.logger).RegisterRoutes(r)
			httpcontroller.NewMediaHandler(a.storage, a.logger).RegisterRoutes(r)
		})
	})
	return nil
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler reports ready once postgres, and redis when configured, answer
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := a.pool.Ping(ctx); err != nil {
		a.logger.Warn("readiness check failed", "dependency", "postgres", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable","dependency":"postgres"}`))
		return
	}
	if a.cache != nil {
		if err := a.cache.Ping(ctx); err != nil {
			a.logger.Warn("readiness check failed", "dependency", "redis", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable","dependency":"redis"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Run starts the application and blocks until shutdown signal
func (a *App) Run(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", "addr", a.cfg.Server.Address())
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context cancelled")
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	a.unread.Close()
	a.closeInfrastructure()

	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.stopListener != nil {
		a.stopListener()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("closing redis", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
