// Package pusher sends dashboard payloads to the ingest endpoint on behalf of the trading bot.
package pusher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/domain"
	"github.com/vadiminshakov/botboard/pkg/retrier"
	"go.uber.org/zap"
)

const (
	ingestPath     = "/api/ingest"
	tokenHeader    = "x-dashboard-token"
	defaultTimeout = 20 * time.Second
)

// StatusError is a non-2xx answer from the ingest endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ingest returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// Client posts payloads to a dashboard server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retrier *retrier.Retrier
	l       *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client with its 20s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetrier sets the backoff used for transient failures.
func WithRetrier(r *retrier.Retrier) Option {
	return func(c *Client) {
		c.retrier = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

// WithLocation sets the timezone used to stamp payloads without a timestamp.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// New creates a push client for the server at baseURL.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("dashboard url is required")
	}
	if token == "" {
		return nil, errors.New("ingest token is required")
	}

	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		l:       zap.NewNop(),
		loc:     time.Local,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = retrier.New(
			retrier.WithMaxRetries(3),
			retrier.WithInitialInterval(2*time.Second),
		)
	}
	return c, nil
}

// Push sends the payload. A payload without a timestamp is stamped with the current time.
// Ingest appends to the history, so only failures to connect are retried: once the request
// may have reached the server (timeouts, resets, any HTTP answer) the error is returned as is.
func (c *Client) Push(ctx context.Context, payload domain.DashboardPayload) error {
	if payload.Snapshot.TS == "" {
		payload.Snapshot.TS = c.now().In(c.loc).Format(domain.TSLayout)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	err = c.retrier.Do(ctx, func(ctx context.Context) error {
		err := c.post(ctx, body)
		if err == nil {
			return nil
		}
		if !notSent(err) {
			return retrier.Permanent(err)
		}
		c.l.Warn("dashboard unreachable", zap.String("ts", payload.Snapshot.TS), zap.Error(err))
		return err
	})
	if err != nil {
		return err
	}

	c.l.Info("payload pushed",
		zap.String("ts", payload.Snapshot.TS),
		zap.Int("holdings", len(payload.Holdings)),
		zap.Int("orders", len(payload.Orders)),
	)
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ingestPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "post payload")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// notSent reports whether err happened while connecting, before any byte of the request left.
func notSent(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// LoadPayload reads a payload JSON document from path ("-" reads stdin).
func LoadPayload(path string) (domain.DashboardPayload, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.DashboardPayload{}, errors.Wrapf(err, "read payload %s", path)
	}

	var p domain.DashboardPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.DashboardPayload{}, errors.Wrapf(err, "decode payload %s", path)
	}
	return p, nil
}
