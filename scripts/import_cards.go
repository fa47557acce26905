package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	batchSize := flag.Int("batch", 500, "statements per transaction")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Catalog file from args or the configured path
	catalogPath := cfg.Catalog.Path
	if flag.NArg() > 0 {
		catalogPath = flag.Arg(0)
	}
	absPath, err := filepath.Abs(catalogPath)
	if err != nil {
		log.Fatalf("Failed to get absolute path: %v", err)
	}

	fmt.Println("=== Cooking Duel Catalog Import ===")
	fmt.Printf("Catalog file: %s\n", absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		log.Fatalf("Failed to read catalog: %v", err)
	}
	file, err := catalog.ParseFile(data)
	if err != nil {
		log.Fatalf("Failed to parse catalog: %v", err)
	}
	fmt.Printf("Found %d cards, %d recipes, %d decks\n", len(file.Cards), len(file.Recipes), len(file.Decks))

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = cfg.Database.URL
	}

	fmt.Printf("Connecting to database...\n")
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	pg, err := catalog.NewPostgres(ctx, dbURL, cfg.Database.MaxConns, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()
	fmt.Println("✓ Database connection established")

	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	start := time.Now()
	written, err := pg.Import(ctx, file, *batchSize)
	if err != nil {
		log.Fatalf("Import failed after %d rows: %v", written, err)
	}
	fmt.Printf("✓ Imported %d rows in %s\n", written, time.Since(start).Round(time.Millisecond))

	if !cfg.Redis.Enabled {
		return
	}
	// Cached entries would otherwise serve the old rows until they expire.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	codes := make([]int, 0, len(file.Cards)+len(file.Recipes))
	for _, c := range file.Cards {
		codes = append(codes, c.Code)
	}
	for _, r := range file.Recipes {
		codes = append(codes, r.Code)
	}
	if err := catalog.NewCached(pg, rdb, cfg.Redis.TTL, logger).Invalidate(ctx, codes...); err != nil {
		log.Printf("Warning: failed to invalidate catalog cache: %v", err)
		return
	}
	fmt.Printf("✓ Invalidated %d cached entries\n", len(codes))
}
