package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/config"
	"github.com/cookduel/duel-server-go/internal/game"
	"github.com/cookduel/duel-server-go/internal/game/cardscripts"
	"github.com/cookduel/duel-server-go/internal/match"
	"github.com/cookduel/duel-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	envFile    = flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("duel server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	source, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	registry, err := cardscripts.Registry()
	if err != nil {
		return fmt.Errorf("build effect registry: %w", err)
	}
	engine := game.NewEngine(logger.Named("engine"), registry, source, cfg.ToRules())

	hub := server.NewHub(logger.Named("hub"))
	recorder := game.NewReplayRecorder(logger.Named("replay"), cfg.Replay.Dir)
	matches := match.NewManager(logger.Named("match"), match.NewDuelHandler(engine, logger), hub, recorder,
		match.ManagerOptions{
			TickInterval: cfg.TickInterval(),
			QueueSize:    cfg.Server.WebSocket.SendQueue,
		})

	grpcServer, healthServer := server.NewGRPCServer(logger.Named("grpc"), cfg.Server.GRPC, matches)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPC.Address, err)
	}
	ws := server.NewWebSocketServer(logger.Named("websocket"), cfg.Server.WebSocket, hub, matches)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		return ws.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down gracefully...")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := matches.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	logger.Info("duel server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Duration("tick_interval", cfg.TickInterval()),
		zap.String("catalog", cfg.Catalog.Source),
	)
	return g.Wait()
}

// openCatalog builds the configured catalog source, wrapped in the redis
// cache when enabled.
func openCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (catalog.Source, func(), error) {
	var (
		source  catalog.Source
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Catalog.Source {
	case config.CatalogPostgres:
		pg, err := catalog.NewPostgres(ctx, cfg.Database.URL, cfg.Database.MaxConns, logger.Named("catalog"))
		if err != nil {
			return nil, nil, fmt.Errorf("open catalog database: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("prepare catalog schema: %w", err)
		}
		closers = append(closers, pg.Close)
		source = pg
	default:
		mem, err := catalog.LoadYAML(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog: %w", err)
		}
		source = mem
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The cache falls through to the source on every error.
			logger.Warn("redis unreachable, catalog reads will bypass the cache", zap.Error(err))
		}
		closers = append(closers, func() { _ = rdb.Close() })
		source = catalog.NewCached(source, rdb, cfg.Redis.TTL, logger.Named("catalog_cache"))
	}

	logger.Info("catalog ready",
		zap.String("source", cfg.Catalog.Source),
		zap.Bool("redis_cache", cfg.Redis.Enabled),
	)
	return source, closeAll, nil
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
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

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
