package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/goliatone/go-signup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

//go:embed views
var viewsFS embed.FS

type App struct {
	config   *Config
	db       *bun.DB
	repo     signup.RepositoryManager
	srv      router.Server[*fiber.App]
	metrics  *http.Server
	registry *prometheus.Registry
	http     *signup.HTTPController
	logger   *glog.BaseLogger
}

func (a *App) GetLogger(name string) signup.Logger {
	return logAdapter{l: a.logger.GetLogger(name)}
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Debug),
		glog.WithName("signup"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg, err := LoadConfig()
	if err != nil {
		panic(err)
	}

	if cfg.Debug {
		redacted := *cfg
		redacted.Auth.SigningKey = "***"
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(redacted))
		fmt.Println("============")
	}

	ctx := context.Background()

	shutdownTracing, err := setupTracing(ctx, "go-signup", cfg.OTelEndpoint)
	if err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithMetrics(app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(app); err != nil {
		panic(err)
	}

	if err := WithSignup(app); err != nil {
		panic(err)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go sweep(sweepCtx, app)

	go func() {
		if err := app.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.GetLogger("metrics").Error("metrics server: %v", err)
		}
	}()

	go func() {
		if err := app.srv.Serve(cfg.Addr); err != nil {
			app.GetLogger("http").Error("http server: %v", err)
		}
	}()

	sig := WaitExitSignal()
	app.GetLogger("app").Info("received %s, shutting down", sig)

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("http").Error("http shutdown: %v", err)
	}
	if err := app.metrics.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("metrics").Error("metrics shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		app.GetLogger("tracing").Error("tracing shutdown: %v", err)
	}
	if err := app.db.Close(); err != nil {
		app.GetLogger("persistence").Error("db close: %v", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.DSN)
	if err != nil {
		return err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := signup.CreateSchema(ctx, db); err != nil {
		return err
	}

	app.db = db
	app.repo = signup.NewRepositoryManager(db)

	return app.repo.Validate()
}

func WithMetrics(app *App) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.registry = reg

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	app.metrics = &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return nil
}

func WithHTTPServer(app *App) error {
	templates, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return fmt.Errorf("unable to scope embedded templates: %w", err)
	}

	engine := django.NewFileSystem(http.FS(templates), ".html")
	engine.Reload(app.config.Debug)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		a = router.DefaultFiberOptions(fiber.New(fiberConfig(app.config, engine)))
		a.Use(signup.RemoteAddr())
		return a
	})

	srv.Router().Use(flash.ToMiddleware(flash.DefaultFlash, "flash"))

	app.srv = srv

	return nil
}

// fiberConfig builds the fiber settings. Forwarding headers are trusted
// only when proxies are configured.
func fiberConfig(cfg *Config, views fiber.Views) fiber.Config {
	config := fiber.Config{
		UnescapePath:      true,
		EnablePrintRoutes: cfg.Debug,
		StrictRouting:     false,
		PassLocalsToViews: true,
		Views:             views,
	}

	if len(cfg.TrustedProxies) > 0 {
		config.ProxyHeader = cfg.ProxyHeader
		config.EnableTrustedProxyCheck = true
		config.TrustedProxies = cfg.TrustedProxies
	}

	return config
}

func WithSignup(app *App) error {
	opts := app.config.Auth
	logger := app.GetLogger("signup")

	metrics, err := signup.NewMetrics(app.registry)
	if err != nil {
		return err
	}

	activity := signup.LogActivitySink{Logger: app.GetLogger("activity")}

	tokens := signup.NewTokenServiceFromConfig(opts, app.GetLogger("tokens"))

	sessions := signup.NewSessionService(app.repo, tokens,
		signup.WithSessionLogger(app.GetLogger("sessions")),
		signup.WithSessionActivitySink(activity),
	)

	accounts := signup.NewRegisterUserHandler(app.repo,
		signup.WithPasswordCost(opts.GetPasswordCost()),
		signup.WithRegisterLogger(app.GetLogger("accounts")),
	)

	app.http = signup.RegisterSignupRoutes(app.srv.Router(),
		signup.WithHTTPConfig(opts),
		signup.WithHTTPLogger(logger),
		signup.WithHTTPBackends(accounts, sessions, app.repo.Comments()),
		signup.WithHTTPMetrics(metrics),
		signup.WithHTTPActivitySink(activity),
		signup.WithHTTPClients(signup.NewClientRegistry(sessions, app.config.ClientTTL, logger,
			signup.WithMaxClients(app.config.MaxClients),
		)),
		signup.WithHTTPLimiter(signup.NewSubmissionLimiter(opts.GetSubmissionRate(), opts.GetSubmissionBurst(), 0)),
		signup.WithHTTPDebug(app.config.Debug),
	)

	return nil
}

// sweep evicts idle clients and limiter keys until ctx is done
func sweep(ctx context.Context, app *App) {
	every := app.config.SweepEvery
	if every <= 0 {
		every = time.Minute
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger := app.GetLogger("sweep")
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := app.http.Clients.Sweep(); n > 0 {
				logger.Debug("dropped %d idle clients", n)
			}
			app.http.Limiter.Evict(now)
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
