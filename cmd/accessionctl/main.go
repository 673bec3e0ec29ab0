// Command accessionctl runs accessioning operations directly against storage.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/accession-studio/engine/internal/app"
	"github.com/accession-studio/engine/pkg/config"
	"github.com/accession-studio/engine/pkg/logger"
)

func main() {
	build := func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if _, err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
			return nil, err
		}
		return app.New(ctx, cfg)
	}

	if err := newRootCmd(build).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Sync()
}
