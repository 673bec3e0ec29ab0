package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/accession-studio/engine/pkg/config"
	"github.com/accession-studio/engine/pkg/database"
	"github.com/accession-studio/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(context.Background(), cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{Verbose: true})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
