package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"wheelaway/pkg/auth"
	"wheelaway/pkg/config"
	"wheelaway/pkg/contracts"
	"wheelaway/pkg/middleware"
	"wheelaway/pkg/tracing"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type namedWorker struct {
	name   string
	worker contracts.Worker
}

type shutdownHook struct {
	name string
	fn   func(context.Context) error
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.RateLimiter
	healthHandler    http.Handler
	appHttpHandler   http.Handler

	workers       []namedWorker
	shutdownHooks []shutdownHook
	workersWG     sync.WaitGroup
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp wires tracing, health endpoints, the middleware stack around appHandler
// and the HTTP server. A nil appHandler serves health endpoints only.
func (a *Application) SetApp(appHandler contracts.Handler) {
	a.setTracing()
	a.setHealthHandler()
	if appHandler != nil {
		a.setAppHandler(appHandler)
	}
	a.setAppServer()
}

// AddWorker registers a background loop started by Run and stopped on shutdown.
func (a *Application) AddWorker(name string, w contracts.Worker) {
	a.workers = append(a.workers, namedWorker{name: name, worker: w})
}

// OnShutdown registers a hook run after the server and workers have stopped.
// Hooks run in reverse registration order.
func (a *Application) OnShutdown(name string, fn func(context.Context) error) {
	a.shutdownHooks = append(a.shutdownHooks, shutdownHook{name: name, fn: fn})
}

// Handler returns the root handler, for in-process tests.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

func (a *Application) setTracing() {
	shutdown, err := tracing.Setup(context.Background(), a.cfg.ServiceName, a.cfg.OTLPEndpoint)
	if err != nil {
		a.cfg.Log.Error("Tracing disabled", "error", err)
		return
	}
	if a.cfg.OTLPEndpoint != "" {
		a.cfg.Log.Info("Tracing enabled", "endpoint", a.cfg.OTLPEndpoint)
	}
	a.OnShutdown("tracing", shutdown)
}

func (a *Application) readinessChecks() map[string]ReadinessCheck {
	checks := map[string]ReadinessCheck{}
	if mc := a.cfg.Client.Mongo; mc != nil {
		checks["database"] = func(ctx context.Context) error {
			return mc.Ping(ctx, readpref.Primary())
		}
	}
	if rc := a.cfg.Client.Redis; rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	healthHandler := NewHealthHandler(a.readinessChecks(), a.cfg.Log)
	healthHandler.RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandler contracts.Handler) {
	cfg := a.cfg
	appRouter := httprouter.New()
	appHandler.RegisterRoutes(appRouter)

	if cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(cfg.Client.Redis, cfg.IdempotencyTTL)
		cfg.Log.Info("Idempotency keys stored in Redis")
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewRateLimiter(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		middleware.ActorKey,
		cfg.Log,
	)

	var public middleware.PublicRoute
	if pr, ok := appHandler.(contracts.PublicRouter); ok {
		public = pr.IsPublic
	}

	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, middleware.HeaderIdempotencyKey, cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.RateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.Authenticate(auth.NewAuthenticator(cfg.JWTSecret), public, cfg.Log)(appHttpHandler)
	if cfg.PaymentWebhookSecret != "" {
		appHttpHandler = middleware.PaymentSignatureVerification(cfg.PaymentWebhookSecret, cfg.Log)(appHttpHandler)
		cfg.Log.Info("Payment callback signature verification enabled")
	}
	appHttpHandler = middleware.ContentTypeValidation(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	if a.appHttpHandler != nil {
		mux.Handle("/", a.appHttpHandler)
	}

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) startWorkers(ctx context.Context) {
	for _, nw := range a.workers {
		a.workersWG.Add(1)
		go func(nw namedWorker) {
			defer a.workersWG.Done()
			a.cfg.Log.Info("Starting background worker", "worker", nw.name)
			if err := nw.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.cfg.Log.Error("Background worker stopped with error", "worker", nw.name, "error", err)
				return
			}
			a.cfg.Log.Info("Background worker stopped", "worker", nw.name)
		}(nw)
	}
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	a.startWorkers(workerCtx)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		cancelWorkers()
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown(cancelWorkers)
	}
}

func (a *Application) gracefulShutdown(cancelWorkers context.CancelFunc) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}
	a.cfg.Log.Info("Server stopped gracefully")

	a.cfg.Log.Info("Stopping background workers...")
	cancelWorkers()
	a.waitWorkers(ctx)
	if a.idempotencyStore != nil {
		a.idempotencyStore.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	a.cfg.Log.Info("Background workers stopped")

	for i := len(a.shutdownHooks) - 1; i >= 0; i-- {
		hook := a.shutdownHooks[i]
		if err := hook.fn(ctx); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "hook", hook.name, "error", err)
		}
	}

	a.cfg.GracefulShutdown()
}

func (a *Application) waitWorkers(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.workersWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.cfg.Log.Warn("Timed out waiting for background workers", "timeout", a.cfg.ShutdownTimeout)
	}
}

// RunWorkersUntil starts registered workers and blocks until ctx is done, then
// waits up to grace for them to return.
func (a *Application) RunWorkersUntil(ctx context.Context, grace time.Duration) {
	a.startWorkers(ctx)
	<-ctx.Done()
	waitCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	a.waitWorkers(waitCtx)
}
