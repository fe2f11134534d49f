package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpGoServer "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/mcphub/configs"
	"github.com/i2y/mcphub/internal/adapter/inbound/mcphttp"
	"github.com/i2y/mcphub/internal/adapter/inbound/mcpserver"
	"github.com/i2y/mcphub/internal/adapter/outbound/argvalidator"
	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/adapter/outbound/invoker"
	"github.com/i2y/mcphub/internal/adapter/outbound/memrepo"
	"github.com/i2y/mcphub/internal/adapter/outbound/native"
	"github.com/i2y/mcphub/internal/adapter/outbound/openapi"
	"github.com/i2y/mcphub/internal/adapter/outbound/sqlitestore"
	"github.com/i2y/mcphub/internal/adapter/outbound/staticsvc"
	"github.com/i2y/mcphub/internal/usecase"
)

const (
	serviceName    = "mcphub"
	serviceVersion = "1.1.0"
)

func main() {
	// === Command Line Flags ===
	var transport string
	flag.StringVar(&transport, "transport", "http", "Transport mode: http, sse or stdio")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	logLevel := cfg.ParsedLogLevel()
	var logger *slog.Logger
	if transport == "stdio" {
		// stdout carries the protocol stream.
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: logLevel}))
		} else {
			defer logFile.Close()
			logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: logLevel}))
		}
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", logLevel.String()), slog.String("transport", transport))

	if err := run(ctx, stop, cfg, transport, logger); err != nil {
		logger.Error("mcphub exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *configs.Config, transport string, logger *slog.Logger) error {
	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry providers.", slog.Any("error", err))
		}
	}()

	// === Dependency Injection ===
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	logger.Debug("HTTP Client configured.", slog.Duration("timeout", cfg.HTTPClientTimeout))

	store, err := sqlitestore.Open(cfg.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	httpInvoker := httpinvoker.New(httpClient, logger)

	var tools []native.Tool
	tools = append(tools, native.TicketTools(httpInvoker, native.ServiceNowConfig{
		InstanceURL: cfg.ServiceNowInstanceURL,
		Username:    cfg.ServiceNowUsername,
		Password:    cfg.ServiceNowPassword,
	}, logger)...)
	tools = append(tools, native.FileTools(cfg.FileShareRoot)...)
	tools = append(tools, native.WeatherTools(httpInvoker, native.WeatherConfig{
		APIKey:  cfg.OpenWeatherAPIKey,
		BaseURL: cfg.OpenWeatherBaseURL,
	}, logger)...)
	tools = append(tools, native.StockTools(httpInvoker, native.StockConfig{
		APIKey:  cfg.AlphaVantageAPIKey,
		BaseURL: cfg.AlphaVantageBaseURL,
	})...)
	registry, err := native.NewRegistry(tools...)
	if err != nil {
		return fmt.Errorf("invalid native tools: %w", err)
	}

	cache := memrepo.NewSchemaCache(cfg.OpenAPICacheTTL, logger)
	builder, err := usecase.NewCatalogBuilder(
		registry,
		[]usecase.StaticToolSource{staticsvc.ServiceNow(), staticsvc.GLPI()},
		cfg.APIs,
		openapi.NewSchemaFetcher(httpClient, !cfg.OpenAPIVerifyTLS, logger),
		openapi.NewToolGenerator(logger),
		cache,
		logger,
	)
	if err != nil {
		return err
	}

	router := invoker.NewRouter(
		httpInvoker,
		registry,
		store,
		cfg.Backends(),
		cfg.APIs,
		logger,
	)

	serveUC := usecase.NewServeToolsUseCase(builder, logger)
	invokeUC := usecase.NewInvokeToolUseCase(builder, argvalidator.New(logger), router, logger)
	syncUC := usecase.NewSyncCatalogUseCase(builder, cache, logger)
	handlers := mcphttp.NewHandlers(serveUC, invokeUC, syncUC, logger)
	logger.Info("Dependencies initialized.", slog.Int("api_count", len(cfg.APIs)))

	// === Transport Mode Selection ===
	switch transport {
	case "http":
		mux := http.NewServeMux()
		handlers.RegisterRoutes(mux)
		handlers.RegisterAdminRoutes(mux)
		srv := newHTTPServer(cfg, cfg.ListenAddr, mux)
		serveInBackground(srv, "MCP HTTP server", stop, logger)

		<-ctx.Done()
		logger.Info("Shutting down servers...")
		return shutdown(cfg, logger, srv)

	case "sse", "stdio":
		registrar := mcpserver.New(serviceName, serviceVersion, invokeUC, logger, mcpserver.WithCatalogSync(syncUC))
		syncUC.OnSync(registrar.Refresh)

		logger.Info("Performing initial catalog synchronization...")
		if _, err := syncUC.Execute(ctx); err != nil {
			logger.Error("Initial catalog sync failed. Server startup continuing, but tools may be missing.", slog.Any("error", err))
		}

		if transport == "stdio" {
			logger.Info("Starting in STDIO mode")
			stdioServer := mcpGoServer.NewStdioServer(registrar.Server())
			if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server: %w", err)
			}
			return nil
		}

		logger.Info("Starting in SSE mode")
		sseServer := mcpGoServer.NewSSEServer(registrar.Server(), mcpGoServer.WithBaseURL("http://"+cfg.ListenAddr))

		adminMux := http.NewServeMux()
		handlers.RegisterRoutes(adminMux)
		handlers.RegisterAdminRoutes(adminMux)
		adminServer := newHTTPServer(cfg, cfg.AdminListenAddr, adminMux)
		serveInBackground(adminServer, "Admin HTTP server", stop, logger)

		go func() {
			logger.Info("MCP SSE server starting.", slog.String("address", cfg.ListenAddr))
			if err := sseServer.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP SSE server failed to start.", slog.Any("error", err))
				stop()
			}
		}()

		<-ctx.Done()
		logger.Info("Shutting down servers...")
		err := shutdown(cfg, logger, adminServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if sseErr := sseServer.Shutdown(shutdownCtx); sseErr != nil {
			logger.Error("MCP SSE server graceful shutdown failed.", slog.Any("error", sseErr))
			err = errors.Join(err, sseErr)
		}
		return err

	default:
		return fmt.Errorf("invalid transport mode %q", transport)
	}
}

func newHTTPServer(cfg *configs.Config, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}
}

func serveInBackground(srv *http.Server, name string, stop context.CancelFunc, logger *slog.Logger) {
	go func() {
		logger.Info(name+" starting.", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(name+" failed to start.", slog.Any("error", err))
			stop()
		}
	}()
}

func shutdown(cfg *configs.Config, logger *slog.Logger, srv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed.", slog.String("address", srv.Addr), slog.Any("error", err))
		return err
	}
	logger.Info("Server shut down gracefully.", slog.String("address", srv.Addr))
	return nil
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP trace and metric exporters.
// It returns a shutdown function to be called on application exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing and metrics disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	var grpcOpts []grpc.DialOption
	if cfg.OtlpInsecure() {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	slog.Info("OpenTelemetry TracerProvider and MeterProvider configured.")

	return func(ctx context.Context) error {
		tracerErr := tp.Shutdown(ctx)
		meterErr := mp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(tracerErr, meterErr, connErr)
	}, nil
}
