// Package storage persists the dashboard state (latest payload and bounded snapshot
// history) as two JSON documents in a blob store.
package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/blob"
	"github.com/vadiminshakov/botboard/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultPrefix     = "kosdaqpi/"
	DefaultMaxHistory = 5000

	latestName  = "latest.json"
	historyName = "history.json"
	contentType = "application/json; charset=utf-8"
)

// ErrInvalidPayload is returned by Save for payloads without a snapshot timestamp.
var ErrInvalidPayload = errors.New("invalid payload")

// Adapter loads and saves StoredData against a blob.Store.
// Save is a read-modify-write without any lock on the store: concurrent saves race and the
// last writer wins.
type Adapter struct {
	store      blob.Store
	l          *zap.Logger
	prefix     string
	maxHistory int

	mu     sync.Mutex
	access blob.Access
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithPrefix sets the key namespace both objects live under.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

// WithMaxHistory bounds the history list. Values above DefaultMaxHistory are clamped to it.
func WithMaxHistory(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxHistory = min(n, DefaultMaxHistory)
		}
	}
}

// WithAccess sets the preferred access class for writes.
func WithAccess(access blob.Access) Option {
	return func(a *Adapter) {
		if access != "" {
			a.access = access
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.l = l
		}
	}
}

// New creates an Adapter with defaults: prefix "kosdaqpi/", 5000 history entries, public access.
func New(store blob.Store, opts ...Option) *Adapter {
	a := &Adapter{
		store:      store,
		l:          zap.NewNop(),
		prefix:     DefaultPrefix,
		maxHistory: DefaultMaxHistory,
		access:     blob.AccessPublic,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LatestKey is the pathname of the latest payload document.
func (a *Adapter) LatestKey() string {
	return a.prefix + latestName
}

// HistoryKey is the pathname of the history document.
func (a *Adapter) HistoryKey() string {
	return a.prefix + historyName
}

// Load returns the stored state. Objects that are missing, unreadable or undecodable count
// as absent; only a failure to list the namespace is returned as an error.
func (a *Adapter) Load(ctx context.Context) (domain.StoredData, error) {
	objects, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return domain.EmptyStoredData(), errors.Wrap(err, "list stored objects")
	}

	data := domain.EmptyStoredData()

	if obj, ok := blob.Pick(objects, a.LatestKey()); ok {
		var latest domain.DashboardPayload
		if a.readJSON(ctx, obj, &latest) {
			data.Latest = &latest
		}
	}

	if obj, ok := blob.Pick(objects, a.HistoryKey()); ok {
		var history []domain.Snapshot
		if a.readJSON(ctx, obj, &history) && history != nil {
			data.History = history
		}
	}

	return data, nil
}

func (a *Adapter) readJSON(ctx context.Context, obj blob.Object, dst any) bool {
	body, err := a.store.Get(ctx, obj.URL)
	if err != nil {
		a.l.Warn("stored object unavailable", zap.String("pathname", obj.Pathname), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		a.l.Warn("stored object is not valid json", zap.String("pathname", obj.Pathname), zap.Error(err))
		return false
	}
	return true
}

// Save appends the payload snapshot to history, trims it to the most recent entries and
// writes both the payload (as latest) and the history back in place.
func (a *Adapter) Save(ctx context.Context, payload domain.DashboardPayload) error {
	if !payload.Valid() {
		return ErrInvalidPayload
	}

	current, err := a.Load(ctx)
	if err != nil {
		return err
	}

	history := AppendBounded(current.History, payload.Snapshot, a.maxHistory)

	latestBody, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode latest payload")
	}
	historyBody, err := json.Marshal(history)
	if err != nil {
		return errors.Wrap(err, "encode history")
	}

	if err := a.put(ctx, a.LatestKey(), latestBody); err != nil {
		return err
	}
	if err := a.put(ctx, a.HistoryKey(), historyBody); err != nil {
		return err
	}

	a.l.Debug("payload saved",
		zap.String("ts", payload.Snapshot.TS),
		zap.Int("history_len", len(history)))
	return nil
}

// put writes with the current access class and, when the store rejects that class,
// retries exactly once with the other one. The class that worked is kept for later writes.
func (a *Adapter) put(ctx context.Context, key string, body []byte) error {
	a.mu.Lock()
	access := a.access
	a.mu.Unlock()

	opts := blob.PutOptions{Access: access, ContentType: contentType}
	_, err := a.store.Put(ctx, key, body, opts)
	if err == nil {
		return nil
	}
	if !errors.Is(err, blob.ErrAccessMismatch) {
		return errors.Wrapf(err, "write %s", key)
	}

	a.l.Info("store rejected access class, retrying with the other one",
		zap.String("key", key),
		zap.String("rejected", string(access)),
		zap.String("retry", string(access.Other())))

	opts.Access = access.Other()
	if _, err := a.store.Put(ctx, key, body, opts); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}

	a.mu.Lock()
	a.access = opts.Access
	a.mu.Unlock()
	return nil
}

// Reset deletes every object under the prefix.
func (a *Adapter) Reset(ctx context.Context) error {
	objects, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return errors.Wrap(err, "list stored objects")
	}
	if len(objects) == 0 {
		return nil
	}

	urls := make([]string, 0, len(objects))
	for _, o := range objects {
		urls = append(urls, o.URL)
	}
	if err := a.store.Delete(ctx, urls...); err != nil {
		return errors.Wrap(err, "delete stored objects")
	}

	a.l.Info("stored objects deleted", zap.Int("count", len(urls)), zap.String("prefix", a.prefix))
	return nil
}

// AppendBounded returns history with s appended, keeping at most max of the newest entries.
// The input slice is not modified.
func AppendBounded(history []domain.Snapshot, s domain.Snapshot, max int) []domain.Snapshot {
	n := len(history) + 1
	start := 0
	if max > 0 && n > max {
		start = n - max
	}

	out := make([]domain.Snapshot, 0, n-start)
	if start < len(history) {
		out = append(out, history[start:]...)
	}
	return append(out, s)
}
