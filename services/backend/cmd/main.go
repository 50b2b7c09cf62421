package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"EnviroHelpBackend/pkg/config"
	pkglogger "EnviroHelpBackend/pkg/logger"
	"EnviroHelpBackend/pkg/metrics"
	"EnviroHelpBackend/pkg/middleware"
	handler "EnviroHelpBackend/services/backend/internal/handler/http"
	"EnviroHelpBackend/services/backend/internal/server"
)

const serviceName = "envirohelp-backend"

// version задается при сборке через -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run запускает сервис и блокируется до отмены ctx.
// Возвращает код выхода: 0 при плавной остановке, 1 при ошибке конфигурации или запуска, 2 при неверных флагах.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", os.Getenv("CONFIG_PATH"), "path to YAML or JSON config file")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logOpts := pkglogger.Options{
		Environment: cfg.Environment,
		Level:       cfg.Logger.Level,
		Format:      cfg.Logger.Format,
		ServiceName: serviceName,
		Output:      stdout,
	}
	logger, err := pkglogger.New(logOpts)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Строка запуска пишется в stdout при любом logger.level
	logOpts.Level = "info"
	announce, err := pkglogger.New(logOpts)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer announce.Sync()

	logger.Info("Starting EnviroHelp Backend",
		pkglogger.String("version", version),
		pkglogger.String("environment", cfg.Environment))

	if cfg.Tracing.Enabled {
		tp := metrics.InitializeOpenTelemetry(serviceName, version, cfg.Tracing.SampleRatio)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("Failed to shutdown tracer provider", pkglogger.Error(err))
			}
		}()
		logger.Info("OpenTelemetry tracing initialized", pkglogger.Float64("sample_ratio", cfg.Tracing.SampleRatio))
	}

	router := handler.NewRouter(logger)

	mws := []middleware.Middleware{middleware.Logging(logger)}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
		mws = append(mws, m.Middleware(handler.RouteResolver(router)))
	}
	mws = append(mws, middleware.Recovery(logger))

	srv := server.New(cfg, server.Options{
		Handler:  middleware.Chain(router, mws...),
		Metrics:  m,
		Version:  version,
		Announce: announce,
	}, logger)

	if err := srv.Start(ctx); err != nil {
		// Диагностика уже записана сервером в лог, дублируем в stderr для оператора
		fmt.Fprintf(stderr, "Failed to start server: %v\n", err)
		return 1
	}

	if err := srv.Serve(ctx); err != nil {
		logger.Error("Server stopped with error", pkglogger.Error(err))
		return 1
	}

	logger.Info("EnviroHelp Backend stopped")
	return 0
}
