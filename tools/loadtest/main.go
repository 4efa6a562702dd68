// Command loadtest holds many concurrent readers against a botboard server:
// SSE subscribers on /api/stream and pollers on /api/data.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	snapshots   atomic.Int64
	queries     atomic.Int64
	queryErrs   atomic.Int64
}

func (c *counters) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("connected", c.connected.Load()),
		zap.Int64("connect_errs", c.connectErrs.Load()),
		zap.Int64("stream_errs", c.streamErrs.Load()),
		zap.Int64("snapshots", c.snapshots.Load()),
		zap.Int64("queries", c.queries.Load()),
		zap.Int64("query_errs", c.queryErrs.Load()),
	}
}

func main() {
	var (
		baseURL   string
		streams   int
		pollers   int
		pollEvery time.Duration
		duration  time.Duration
		rampUp    time.Duration
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "botboard server url")
	flag.IntVar(&streams, "streams", 500, "concurrent /api/stream subscribers")
	flag.IntVar(&pollers, "pollers", 50, "concurrent /api/data pollers")
	flag.DurationVar(&pollEvery, "poll", 5*time.Second, "interval between /api/data requests per poller")
	flag.DurationVar(&duration, "dur", time.Minute, "test duration (0 runs until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread connection starts across this window")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if streams < 0 || pollers < 0 || streams+pollers == 0 {
		logger.Fatal("nothing to run", zap.Int("streams", streams), zap.Int("pollers", pollers))
	}
	if rampUp == 0 && streams > 100 {
		rampUp = max(time.Duration(streams/500)*time.Second, time.Second)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	total := streams + pollers
	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     total + 100,
			MaxIdleConns:        total + 100,
			MaxIdleConnsPerHost: total + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting load",
		zap.String("url", baseURL),
		zap.Int("streams", streams),
		zap.Int("pollers", pollers),
		zap.Duration("ramp", rampUp),
		zap.Duration("duration", duration),
	)

	var c counters
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("status", append(c.fields(), zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))...)
			}
		}
	})

	var gap time.Duration
	if rampUp > 0 {
		gap = rampUp / time.Duration(total)
	}
	for i := 0; i < total; i++ {
		if i > 0 && gap > 0 {
			select {
			case <-gctx.Done():
			case <-time.After(gap):
			}
		}
		if gctx.Err() != nil {
			break
		}
		if i < streams {
			g.Go(func() error { subscribe(gctx, client, baseURL+"/api/stream", &c); return nil })
		} else {
			g.Go(func() error { poll(gctx, client, baseURL+"/api/data", pollEvery, &c); return nil })
		}
	}

	_ = g.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	logger.Info("done", append(c.fields(),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
		zap.Float64("snapshots_per_sec", float64(c.snapshots.Load())/elapsed.Seconds()),
	)...)
}

// subscribe reads one SSE connection until ctx is done or the stream breaks.
func subscribe(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 8<<20)
	for sc.Scan() {
		if sc.Text() == "event: snapshot" {
			c.snapshots.Add(1)
		}
	}
	if ctx.Err() == nil {
		c.streamErrs.Add(1)
	}
}

func poll(ctx context.Context, client *http.Client, url string, every time.Duration, c *counters) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			c.queryErrs.Add(1)
			return
		}
		resp, err := client.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			c.queryErrs.Add(1)
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			c.queryErrs.Add(1)
		default:
			resp.Body.Close()
			c.queries.Add(1)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
