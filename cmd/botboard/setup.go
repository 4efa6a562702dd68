package main

import (
	"context"
	"flag"

	"github.com/vadiminshakov/botboard/internal/setup"
)

func runSetup(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	out := fs.String("out", setup.DefaultFilename, "file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return setup.RunTUI(*out)
}
