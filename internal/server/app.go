// Package server initializes and runs the gophauth server: it picks the
// storage backend, connects optional collaborators (Redis, RabbitMQ),
// serves gRPC and Prometheus metrics, and shuts down on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/lockout"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/resettokens"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config    *config.Config
	logger    logging.Logger
	repos     repomanager.RepositoryManager
	redis     *redis.Client
	publisher *notify.AMQPPublisher
	metrics   *metrics.Prometheus
	signer    *auth.Signer
	service   *services.AuthService
	tracing   func(context.Context) error
}

// NewApp connects every backend named in c. On error, whatever was already
// opened is closed.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger, metrics: metrics.NewPrometheus()}

	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if app.tracing, err = telemetry.Setup(ctx, "gophauth", c.OTELEndpoint); err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}

	if app.repos, err = openRepositories(ctx, c, logger); err != nil {
		return nil, err
	}

	app.signer, err = auth.NewSigner(auth.Config{
		Secret:    []byte(c.SecretKey),
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		AccessTTL: c.AccessTokenValidityDuration,
		Leeway:    c.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("signer init error: %w", err)
	}

	opts := []services.Option{services.WithMetrics(app.metrics)}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err = app.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		opts = append(opts,
			services.WithLockout(lockout.NewRedisLimiter(app.redis, lockout.Config{
				Threshold: c.LockoutThreshold,
				Duration:  c.LockoutDuration,
			})),
			services.WithResetTokens(resettokens.NewRedisProvider(app.redis, c.ResetTokenTTL)),
		)
	} else {
		logger.Warn(ctx, "no redis configured: lockout disabled, reset tokens kept in process")
		opts = append(opts, services.WithResetTokens(resettokens.NewMemoryProvider(c.ResetTokenTTL)))
	}

	if c.AMQPURL != "" {
		app.publisher = notify.NewAMQPPublisher(c.AMQPURL)
		opts = append(opts, services.WithNotifier(app.publisher))
	} else {
		opts = append(opts, services.WithNotifier(notify.Logging{Logger: logger.With("module", "notify")}))
	}

	if c.EncryptionKey != "" {
		enc, encErr := cryptox.NewEncrypter([]byte(c.EncryptionKey))
		if encErr != nil {
			return nil, fmt.Errorf("encrypter init error: %w", encErr)
		}
		opts = append(opts, services.WithEncrypter(enc))
	}

	app.service, err = services.NewAuthService(app.repos, password.NewHasher(), app.signer,
		c.RefreshTokenValidityDuration, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth service init error: %w", err)
	}

	if c.AdminUserName != "" {
		if err = app.service.GrantAdmin(ctx, c.AdminUserName); err != nil {
			if !errors.Is(err, services.ErrNotFound) {
				return nil, fmt.Errorf("grant admin: %w", err)
			}
			logger.Warn(ctx, "admin account not registered yet", "username", c.AdminUserName)
			err = nil
		}
	}

	return app, nil
}

func openRepositories(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database configured: using in-memory storage")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	m, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("db migrations error: %w", err)
	}
	return m, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.service, app.signer)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// newMetricsRouter serves the Prometheus registry and a liveness probe.
func (app *App) newMetricsRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 5 * time.Second

	e.GET("/metrics", echo.WrapHandler(app.metrics.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	e := app.newMetricsRouter()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := e.Start(app.config.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives, or a server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}

// Close releases backend connections.
func (app *App) Close() error {
	var errs []error
	if app.publisher != nil {
		errs = append(errs, app.publisher.Close())
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.repos != nil {
		errs = append(errs, app.repos.Close())
	}
	if app.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, app.tracing(ctx))
	}
	return errors.Join(errs...)
}
