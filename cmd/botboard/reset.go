package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func runReset(ctx context.Context, args []string) error {
	fs, cf := newFlagSet("reset")
	yes := fs.Bool("yes", false, "confirm deletion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("refusing to delete without --yes")
	}

	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	adapter := newAdapter(cfg, store, logger)
	if err := adapter.Reset(ctx); err != nil {
		return err
	}

	logger.Info("dashboard data reset", zap.String("prefix", cfg.Store.Prefix))
	fmt.Printf("deleted %s and %s\n", adapter.LatestKey(), adapter.HistoryKey())
	return nil
}
