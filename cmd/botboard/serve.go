package main

import (
	"context"

	"github.com/vadiminshakov/botboard/config"
	"github.com/vadiminshakov/botboard/internal/sink"
	"github.com/vadiminshakov/botboard/internal/storage/journal"
	"github.com/vadiminshakov/botboard/internal/web"
	"go.uber.org/zap"
)

func runServe(ctx context.Context, args []string) error {
	fs, cf := newFlagSet("serve")
	fs.StringVar(&cf.overrides.Addr, "addr", "", "listen address")
	fs.StringVar(&cf.overrides.JournalDir, "journal", "", "snapshot journal directory (empty disables the live stream)")
	if err := fs.Parse(args); err != nil {
		return err
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

	if cfg.IngestToken == "" {
		logger.Warn("ingest token is not set, every ingest will be rejected",
			zap.String("env", config.EnvIngestToken))
	}

	opts := []web.Option{web.WithLogger(logger)}

	if cfg.JournalDir != "" {
		wal, err := journal.NewWALStore(cfg.JournalDir)
		if err != nil {
			return err
		}
		defer wal.Close()
		opts = append(opts, web.WithSinks(wal), web.WithStream(wal))
		logger.Info("snapshot journal enabled", zap.String("dir", cfg.JournalDir))
	}

	if cfg.Influx.Enabled() {
		influx, err := sink.NewInflux(sink.InfluxConfig{
			URL:      cfg.Influx.URL,
			User:     cfg.Influx.User,
			Password: cfg.Influx.Password,
			Database: cfg.Influx.Database,
			Location: cfg.Location,
		})
		if err != nil {
			return err
		}
		defer influx.Close()
		opts = append(opts, web.WithSinks(influx))
		logger.Info("influx mirror enabled", zap.String("database", cfg.Influx.Database))
	}

	adapter := newAdapter(cfg, store, logger)
	server := web.NewServer(cfg.Addr, adapter, cfg.IngestToken, opts...)

	logger.Info("starting botboard",
		zap.String("store", string(cfg.Store.Kind)),
		zap.String("prefix", cfg.Store.Prefix),
		zap.String("access", string(cfg.Store.Access)),
		zap.Int("max_history", cfg.MaxHistory),
	)

	if len(cfg.TLS.Domains) > 0 {
		return server.StartWithAutoTLS(ctx, cfg.TLS.Domains, cfg.TLS.CacheDir)
	}
	return server.Start(ctx)
}
