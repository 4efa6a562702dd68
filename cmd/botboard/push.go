package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/domain"
	"github.com/vadiminshakov/botboard/internal/pusher"
)

func runPush(ctx context.Context, args []string) error {
	fs, cf := newFlagSet("push")
	var (
		file    string
		botName string
		mode    string
	)
	fs.StringVar(&file, "file", "", "payload JSON file, - for stdin")
	fs.StringVar(&botName, "bot", "", "bot name stored in meta.bot_name")
	fs.StringVar(&mode, "mode", "", "account mode (REAL or VIRTUAL) when the payload has none")
	fs.StringVar(&cf.overrides.IngestToken, "token", "", "ingest token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if file == "" {
		return errors.New("--file is required")
	}

	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	payload, err := pusher.LoadPayload(file)
	if err != nil {
		return err
	}
	if botName != "" {
		if payload.Meta == nil {
			payload.Meta = map[string]any{}
		}
		payload.Meta["bot_name"] = botName
	}
	if mode != "" && payload.Snapshot.AccountMode == "" {
		payload.Snapshot.AccountMode = domain.AccountMode(strings.ToUpper(strings.TrimSpace(mode)))
	}

	client, err := pusher.New(cfg.Monitor.URL, cfg.IngestToken,
		pusher.WithLogger(logger),
		pusher.WithLocation(cfg.Location),
	)
	if err != nil {
		return err
	}
	return client.Push(ctx, payload)
}
