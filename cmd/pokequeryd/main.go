// Read-only JSON API over the loaded pokemon catalog.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/pokedex-pipeline/internal/api"
	"github.com/pokedex-pipeline/internal/config"
	"github.com/pokedex-pipeline/internal/store/postgres"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetOutput(os.Stdout)

	cfg := config.FromEnv()
	flag.StringVar(&cfg.PostgresDSN, "database-url", cfg.PostgresDSN, "PostgreSQL DSN (required)")
	flag.IntVar(&cfg.PoolSize, "pool-size", cfg.PoolSize, "PostgreSQL connection pool size")
	port := flag.String("port", config.EnvString("HTTP_PORT", "8080"), "HTTP listen port")
	flag.Parse()

	if cfg.PostgresDSN == "" {
		flag.Usage()
		log.Fatal("--database-url (or DATABASE_URL) is required")
	}
	cfg.Normalize()

	ctx := context.Background()
	store, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PoolSize)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	r := api.Router(&api.Handler{Store: store})
	log.Printf("query API listening on :%s", *port)
	if err := r.Run(":" + *port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
