package main

import (
	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/config"
	"github.com/vadiminshakov/botboard/internal/blob"
	"github.com/vadiminshakov/botboard/internal/blob/httpblob"
	"github.com/vadiminshakov/botboard/internal/blob/memblob"
	"github.com/vadiminshakov/botboard/internal/blob/s3blob"
	"github.com/vadiminshakov/botboard/internal/blob/sqliteblob"
	"github.com/vadiminshakov/botboard/internal/storage"
	"go.uber.org/zap"
)

// openStore builds the configured blob backend. The returned close func is never nil.
func openStore(cfg config.StoreConfig) (blob.Store, func() error, error) {
	noop := func() error { return nil }
	if err := cfg.Validate(); err != nil {
		return nil, noop, err
	}

	switch cfg.Kind {
	case config.StoreHTTP:
		var opts []httpblob.Option
		if cfg.URL != "" {
			opts = append(opts, httpblob.WithBaseURL(cfg.URL))
		}
		return httpblob.New(cfg.Token, opts...), noop, nil
	case config.StoreS3:
		s, err := s3blob.New(s3blob.Config{Bucket: cfg.Bucket, Region: cfg.Region, Endpoint: cfg.Endpoint})
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.StoreSQLite:
		s, err := sqliteblob.Open(cfg.Path, "")
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.StoreMemory:
		return memblob.New(), noop, nil
	default:
		return nil, noop, errors.Errorf("unknown store kind %q", cfg.Kind)
	}
}

func newAdapter(cfg config.Config, store blob.Store, logger *zap.Logger) *storage.Adapter {
	return storage.New(store,
		storage.WithPrefix(cfg.Store.Prefix),
		storage.WithMaxHistory(cfg.MaxHistory),
		storage.WithAccess(cfg.Store.Access),
		storage.WithLogger(logger),
	)
}
