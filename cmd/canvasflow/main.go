// =============================================================================
// Canvasflow gateway entry point
// =============================================================================
// Full service entry point: HTTP gateway, health check, Prometheus
// metrics.
//
// Usage:
//
//	canvasflow serve                       # start the gateway
//	canvasflow serve --config config.yaml  # with a config file
//	canvasflow version                     # show version information
//	canvasflow health                      # check gateway health
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/canvasflow/bus"
	"github.com/BaSui01/canvasflow/config"
	"github.com/BaSui01/canvasflow/draft"
	"github.com/BaSui01/canvasflow/internal/database"
	"github.com/BaSui01/canvasflow/internal/metrics"
	"github.com/BaSui01/canvasflow/internal/server"
	"github.com/BaSui01/canvasflow/store"
)

// =============================================================================
// 📦 Version information (injected at build time)
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 Main
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve command
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting canvasflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	collector := metrics.NewCollector("canvasflow", nil, logger)

	// Shared key-value store: channel B records and, optionally, drafts.
	kv, err := store.NewKeyValueStore(cfg.StoreConfigFor(), logger)
	if err != nil {
		logger.Fatal("Failed to create key-value store", zap.Error(err))
	}
	defer kv.Close()

	// Draft persistence backend.
	draftStore, pool, err := buildDraftStore(cfg, kv, logger)
	if err != nil {
		logger.Fatal("Failed to create draft store", zap.Error(err))
	}
	if pool != nil {
		defer pool.Close()
	}

	eventBus := bus.NewEventBus(logger)
	defer eventBus.Stop()

	synchronizer := draft.NewSynchronizer(draftStore, collector, logger)
	defer synchronizer.Stop()

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	if err := synchronizer.Load(loadCtx); err != nil {
		logger.Error("Failed to hydrate drafts, continuing empty", zap.Error(err))
	}
	cancelLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gwCfg := server.DefaultGatewayConfig()
	gwCfg.RecordTTL = cfg.Delivery.RecordTTL
	gateway := server.NewGateway(eventBus, kv, gwCfg, collector, logger)

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	srvCfg.WriteTimeout = cfg.Server.WriteTimeout
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	srv := server.NewManager(
		gateway.Handler(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		srvCfg,
		logger,
	)

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-srv.Errors():
			return err
		case <-gctx.Done():
			return nil
		}
	})

	<-gctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
	}

	logger.Info("canvasflow stopped")
}

// buildDraftStore selects the draft persistence backend.
func buildDraftStore(cfg *config.Config, kv store.KeyValueStore, logger *zap.Logger) (draft.Store, *database.PoolManager, error) {
	switch cfg.Drafts.Backend {
	case "memory":
		return draft.NewMemoryStore(), nil, nil

	case "kv":
		return draft.NewKVStore(kv), nil, nil

	case "database":
		db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN(), logger)
		if err != nil {
			return nil, nil, err
		}
		poolCfg := database.DefaultPoolConfig()
		poolCfg.MaxOpenConns = cfg.Database.MaxOpenConns
		poolCfg.MaxIdleConns = cfg.Database.MaxIdleConns
		poolCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		pool, err := database.NewPoolManager(db, poolCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		ds, err := draft.NewGormStore(pool.DB())
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return ds, pool, nil

	default:
		return nil, nil, fmt.Errorf("unknown draft backend: %s", cfg.Drafts.Backend)
	}
}

// =============================================================================
// 🏥 health command
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Gateway address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 Version and help
// =============================================================================

func printVersion() {
	fmt.Printf("canvasflow %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`canvasflow - workflow canvas synchronization gateway

Usage:
  canvasflow <command> [options]

Commands:
  serve     Start the canvasflow gateway
  version   Show version information
  health    Check gateway health
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  canvasflow serve
  canvasflow serve --config /etc/canvasflow/config.yaml
  canvasflow health --addr http://localhost:8080
  canvasflow version`)
}

// =============================================================================
// 🔧 Logger initialization
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	} else {
		zapConfig.Encoding = "json"
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
