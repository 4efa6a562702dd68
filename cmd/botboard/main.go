// Command botboard runs the trading bot monitoring dashboard.
//
// Usage:
//
//	botboard serve   [--config config.yaml]   run the ingest/query server and web dashboard
//	botboard monitor [--url http://host:8080] terminal dashboard polling the server
//	botboard push    --file payload.json      send one payload to the ingest endpoint
//	botboard reset   --yes                    delete the stored latest payload and history
//	botboard setup   [--out config.gen.yaml]  interactive config wizard
//
// Environment variables:
//
//	DASHBOARD_INGEST_TOKEN  shared secret for POST /api/ingest
//	BLOB_READ_WRITE_TOKEN   credential of the hosted blob store
//	BLOB_ACCESS             preferred access class (public or private)
//	BOTBOARD_ADDR           listen address
//	DASHBOARD_URL           server used by monitor and push
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/botboard/config"
	"go.uber.org/zap"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{"serve", "run the ingest/query server and web dashboard", runServe},
	{"monitor", "terminal dashboard polling the server", runMonitor},
	{"push", "send a payload file to the ingest endpoint", runPush},
	{"reset", "delete the stored latest payload and history", runReset},
	{"setup", "interactive config wizard", runSetup},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(ctx, os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "botboard %s: %v\n", c.name, err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: botboard <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.usage)
	}
}

// commonFlags are accepted by every command that reads the config.
type commonFlags struct {
	configPath string
	debug      bool
	overrides  config.ConfigTmp
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "path to yaml config")
	fs.BoolVar(&cf.debug, "debug", false, "development logging")
	fs.StringVar(&cf.overrides.Store.Kind, "store", "", "blob backend: http, s3, sqlite or memory")
	fs.StringVar(&cf.overrides.Store.Prefix, "prefix", "", "key prefix of the stored objects")
	fs.StringVar(&cf.overrides.Store.Access, "access", "", "preferred access class: public or private")
	fs.StringVar(&cf.overrides.Monitor.URL, "url", "", "dashboard server url")
	return fs, cf
}

func (cf *commonFlags) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cf.configPath, os.Getenv, cf.overrides)
	if err != nil {
		return config.Config{}, nil, err
	}

	var logger *zap.Logger
	if cf.debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
