package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth-frontend"
	"github.com/goliatone/go-auth-frontend/activitymap"
	"github.com/goliatone/go-auth-frontend/config"
	"github.com/goliatone/go-auth-frontend/logging"
	"github.com/goliatone/go-auth-frontend/metrics"
	"github.com/goliatone/go-auth-frontend/provider/cognito"
	"github.com/goliatone/go-auth-frontend/provider/local"
	"github.com/goliatone/go-auth-frontend/sessionstore"
	"github.com/goliatone/go-auth-frontend/web"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type App struct {
	config  *config.Config
	zap     *zap.Logger
	closers []func() error

	provider auth.IdentityProvider
	backend  auth.SessionBackend
	sink     auth.ActivitySink
	srv      router.Server[*fiber.App]
	metrics  *http.Server
	dbs      map[string]*bun.DB
}

func (a *App) GetLogger(name string) auth.Logger {
	return logging.NewAdapter(a.zap, name)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.zap.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.zap.Sync()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logging.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	app := &App{config: cfg, zap: zl}
	defer app.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	for _, step := range []func(context.Context, *App) error{
		WithProvider,
		WithSessionBackend,
		WithMetrics,
		WithHTTPServer,
	} {
		if err := step(ctx, app); err != nil {
			zl.Error("startup failed", zap.Error(err))
			return
		}
	}

	go func() {
		if err := app.srv.Serve(cfg.App.Addr()); err != nil {
			zl.Error("http server stopped", zap.Error(err))
		}
	}()

	zl.Info("authweb started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("provider", cfg.Provider.Kind),
		zap.String("session_backend", cfg.Session.Backend),
	)

	sig := WaitExitSignal()
	zl.Info("shutting down", zap.String("signal", sig.String()))
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	if app.metrics != nil {
		if err := app.metrics.Shutdown(shutdownCtx); err != nil {
			zl.Warn("metrics shutdown", zap.Error(err))
		}
	}
}

func WithProvider(ctx context.Context, app *App) error {
	cfg := app.config

	switch cfg.Provider.Kind {
	case config.ProviderCognito:
		p, err := cognito.NewIdentityProvider(ctx, cognito.Config{
			UserPoolID:      cfg.Cognito.UserPoolID,
			ClientID:        cfg.Cognito.ClientID,
			ClientSecret:    cfg.Cognito.ClientSecret,
			Region:          cfg.Cognito.Region,
			AccessKeyID:     cfg.Cognito.AccessKeyID,
			SecretAccessKey: cfg.Cognito.SecretAccessKey,
			SessionToken:    cfg.Cognito.SessionToken,
			Endpoint:        cfg.Cognito.Endpoint,
			Timeout:         cfg.Cognito.Timeout,
		}, cognito.WithLogger(app.GetLogger("cognito")))
		if err != nil {
			return err
		}
		app.provider = p

	case config.ProviderLocal:
		db, err := openPersistence(ctx, app, cfg.Local.DSN)
		if err != nil {
			return err
		}

		p, err := local.NewIdentityProvider(db, []byte(cfg.Local.JWTSecret),
			local.WithLogger(app.GetLogger("local")),
			local.WithIssuer(cfg.Local.Issuer),
			local.WithTokenTTL(cfg.Local.TokenTTL),
			local.WithCodeTTL(cfg.Local.CodeTTL),
			local.WithBcryptCost(cfg.Local.BcryptCost),
		)
		if err != nil {
			return err
		}
		app.provider = p

	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider.Kind)
	}

	return nil
}

func WithSessionBackend(ctx context.Context, app *App) error {
	cfg := app.config

	switch cfg.Session.Backend {
	case config.BackendMemory:
		backend := sessionstore.NewMemoryBackend(cfg.Session.TTL)
		app.backend = backend
		go sweep(ctx, app.GetLogger("sessions"), func(context.Context) (int64, error) {
			return int64(backend.Sweep()), nil
		})

	case config.BackendRedis:
		client, err := sessionstore.NewRedisClient(ctx, sessionstore.RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return err
		}
		app.onClose(client.Close)
		app.backend = sessionstore.NewRedisBackend(client, cfg.Redis.KeyPrefix, cfg.Session.TTL)

	case config.BackendSQLite:
		db, err := openPersistence(ctx, app, cfg.Session.DSN)
		if err != nil {
			return err
		}

		backend := sessionstore.NewBunBackend(db, cfg.Session.TTL)
		app.backend = backend
		go sweep(ctx, app.GetLogger("sessions"), backend.PurgeExpired)

	default:
		return fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	return nil
}

func WithMetrics(_ context.Context, app *App) error {
	activity := app.zap.Named("activity")
	logSink := auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		record := activitymap.Normalize(event, activitymap.WithActorMasker(logging.MaskEmail))
		activity.Info(record.Verb,
			zap.String("actor", record.ActorID),
			zap.String("result", record.Result),
			zap.Any("metadata", record.Metadata),
			zap.Time("occurred_at", record.OccurredAt),
		)
		return nil
	})

	if !app.config.Metrics.Enabled {
		app.sink = logSink
		return nil
	}

	recorder, err := metrics.NewRecorder(metrics.Options{
		Registerer: prometheus.DefaultRegisterer,
		Namespace:  app.config.Metrics.Namespace,
	})
	if err != nil {
		return err
	}
	app.sink = auth.MultiActivitySink(recorder, logSink)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	app.metrics = &http.Server{
		Addr:              app.config.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := app.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.zap.Error("metrics server stopped", zap.Error(err))
		}
	}()

	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	cfg := app.config

	controller := auth.NewAuthController(app.provider,
		auth.WithLogger(app.GetLogger("auth:ctrl")),
		auth.WithActivitySink(app.sink),
	)

	flow := auth.NewFlow(controller, auth.WithFlowLogger(app.GetLogger("auth:flow")))

	key, err := csrfKey(cfg.Session.CSRFKey)
	if err != nil {
		return err
	}
	if cfg.Session.CSRFKey == "" {
		app.zap.Warn("AUTH_SESSION_CSRF_KEY not set, using a random key; form tokens will not survive a restart")
	}

	ctrl := web.NewController(flow, app.backend,
		web.WithCSRF(web.NewCSRF(key, cfg.Session.CookieName)),
		web.WithLogger(app.GetLogger("web")),
		web.WithDebug(cfg.App.Debug),
		web.WithCookie(web.CookieConfig{
			Name:   cfg.Session.CookieName,
			TTL:    cfg.Session.TTL,
			Secure: cfg.Session.CookieSecure,
		}),
	)

	app.srv = web.NewServer(ctrl, web.ServerConfig{Debug: cfg.App.Debug})
	return nil
}

func csrfKey(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	key := make([]byte, web.MinCSRFKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	return key, nil
}

// sweep drops expired sessions once a minute until ctx is done.
func sweep(ctx context.Context, logger auth.Logger, purge func(context.Context) (int64, error)) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				logger.Warn("session sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Debug("swept %d expired sessions", n)
			}
		}
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
