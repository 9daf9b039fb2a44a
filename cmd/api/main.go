package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refman/docs"
	"refman/internal/backend"
	"refman/internal/config"
	handlers "refman/internal/http/handler"
	"refman/internal/http/middleware"
	"refman/internal/logger"
	refotel "refman/internal/otel"
	"refman/internal/repository"
	"refman/internal/service"
	"refman/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Reference Manager API
// @version 1.0
// @BasePath /
func main() {
	if err := run(); err != nil {
		logger.L().Error("refman exited", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	// Configuration: defaults, then REFMAN_CONFIG yaml, then environment (.env auto-loaded if present).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		File:      cfg.Logging.File,
	})
	l := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := refotel.Init(ctx)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			l.Warn("tracing shutdown", slog.Any("err", err))
		}
	}()

	b, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			l.Warn("closing store", slog.Any("err", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	repoMetrics, err := repository.NewMetrics(reg)
	if err != nil {
		return err
	}
	repo := repository.Instrument(b.Repo, b.Name, repoMetrics)

	// Backups are optional; without MinIO settings the service runs without object storage.
	var objStore storage.Storage
	if cfg.MinIO.Enabled() {
		objStore, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return err
		}
	}
	refSvc := service.NewReferenceService(objStore, repo)

	app := fiber.New(fiber.Config{
		AppName:               "refman",
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == middleware.MetricsPath
	})))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(promMiddleware.Handler())

	app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, b.Health, refSvc)

	addr := net.JoinHostPort(cfg.AppHost, cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		l.Info("listening", slog.String("addr", addr), slog.String("backend", b.Name), slog.Bool("backups", objStore != nil))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
