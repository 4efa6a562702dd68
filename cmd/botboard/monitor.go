package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/vadiminshakov/botboard/config"
	"github.com/vadiminshakov/botboard/internal/dashboard"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const monitorHelp = "[enter] refresh  [off|5|10|15|30|60] auto refresh  [q] quit"

func runMonitor(ctx context.Context, args []string) error {
	fs, cf := newFlagSet("monitor")
	fs.StringVar(&cf.overrides.Monitor.RefreshStr, "refresh", "", "auto refresh interval (off, 5s, 15s, ...)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	poller := dashboard.NewPoller(dashboard.NewClient(cfg.Monitor.URL, nil), logger)
	defer poller.Close()

	var mu sync.Mutex
	poller.Subscribe(func(v dashboard.View) {
		mu.Lock()
		defer mu.Unlock()
		draw(os.Stdout, v, poller)
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Start(ctx, cfg.Monitor.Refresh)
		<-ctx.Done()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return readCommands(ctx, os.Stdin, poller, logger)
	})

	return g.Wait()
}

func draw(w io.Writer, v dashboard.View, p *dashboard.Poller) {
	refresh := "off"
	if d := p.Interval(); d > 0 {
		refresh = d.String()
	}
	fmt.Fprint(w, "\033[H\033[2J")
	fmt.Fprint(w, dashboard.Render(v))
	fmt.Fprintf(w, "\nauto refresh: %s   %s\n", refresh, monitorHelp)
}

// readCommands handles keyboard input until quit, EOF or ctx is done.
func readCommands(ctx context.Context, r io.Reader, p *dashboard.Poller, logger *zap.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			switch cmd := strings.TrimSpace(strings.ToLower(line)); cmd {
			case "q", "quit", "exit":
				return nil
			case "", "r":
				go p.Refresh()
			default:
				d, err := config.ParseRefresh(cmd)
				if err != nil {
					logger.Warn("unknown command", zap.String("input", cmd))
					continue
				}
				p.SetInterval(d)
				go p.Refresh()
			}
		}
	}
}
