package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/botboard/internal/blob"
	"github.com/vadiminshakov/botboard/internal/blob/memblob"
	"github.com/vadiminshakov/botboard/internal/domain"
)

// countingStore records puts and can fail gets or lists on demand.
type countingStore struct {
	blob.Store
	puts      []blob.Access
	failGet   bool
	failList  bool
	failPutFn func(key string) error
}

func (c *countingStore) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	if c.failList {
		return nil, errors.New("store unreachable")
	}
	return c.Store.List(ctx, prefix)
}

func (c *countingStore) Get(ctx context.Context, url string) ([]byte, error) {
	if c.failGet {
		return nil, errors.New("connection reset")
	}
	return c.Store.Get(ctx, url)
}

func (c *countingStore) Put(ctx context.Context, pathname string, body []byte, opts blob.PutOptions) (blob.Object, error) {
	c.puts = append(c.puts, opts.Access)
	if c.failPutFn != nil {
		if err := c.failPutFn(pathname); err != nil {
			return blob.Object{}, err
		}
	}
	return c.Store.Put(ctx, pathname, body, opts)
}

func payloadAt(ts string, total float64) domain.DashboardPayload {
	return domain.DashboardPayload{
		Snapshot: domain.Snapshot{
			TS:          ts,
			AccountMode: domain.AccountModeReal,
			TotalMoney:  total,
		},
		Holdings:      []domain.Record{{"StockCode": "122630", "StockAmt": "10"}},
		Orders:        []domain.Record{},
		StrategyState: []domain.Record{{"Status": "READY"}},
	}
}

func TestAdapter_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	a := New(memblob.New())

	first := payloadAt("2025-01-02 09:00:00", 100)
	second := payloadAt("2025-01-02 09:05:00", 120)
	require.NoError(t, a.Save(ctx, first))
	require.NoError(t, a.Save(ctx, second))

	got, err := a.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.Latest)
	assert.Equal(t, second, *got.Latest)
	require.Len(t, got.History, 2)
	assert.Equal(t, first.Snapshot, got.History[0])
	assert.Equal(t, second.Snapshot, got.History[1])
}

func TestAdapter_LoadEmptyStore(t *testing.T) {
	a := New(memblob.New())
	got, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got.Latest)
	assert.NotNil(t, got.History)
	assert.Empty(t, got.History)
}

func TestAdapter_HistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	a := New(memblob.New(), WithMaxHistory(3))

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Save(ctx, payloadAt(fmt.Sprintf("2025-01-02 09:0%d:00", i), float64(100+i))))
	}

	got, err := a.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.History, 3)
	assert.Equal(t, "2025-01-02 09:02:00", got.History[0].TS)
	assert.Equal(t, "2025-01-02 09:04:00", got.History[2].TS)
	assert.Equal(t, "2025-01-02 09:04:00", got.Latest.Snapshot.TS)
}

func TestAdapter_MaxHistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	a := New(store, WithMaxHistory(20000))

	full := make([]domain.Snapshot, DefaultMaxHistory)
	for i := range full {
		full[i] = domain.Snapshot{TS: fmt.Sprint(i)}
	}
	body, err := json.Marshal(full)
	require.NoError(t, err)
	_, err = store.Put(ctx, a.HistoryKey(), body, blob.PutOptions{Access: blob.AccessPublic})
	require.NoError(t, err)

	require.NoError(t, a.Save(ctx, payloadAt("2025-01-02 09:00:00", 100)))

	got, err := a.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.History, DefaultMaxHistory)
	assert.Equal(t, "1", got.History[0].TS)
	assert.Equal(t, "2025-01-02 09:00:00", got.History[DefaultMaxHistory-1].TS)
}

func TestAppendBounded(t *testing.T) {
	history := make([]domain.Snapshot, DefaultMaxHistory)
	for i := range history {
		history[i] = domain.Snapshot{TS: fmt.Sprint(i)}
	}

	out := AppendBounded(history, domain.Snapshot{TS: "new"}, DefaultMaxHistory)
	require.Len(t, out, DefaultMaxHistory)
	assert.Equal(t, "1", out[0].TS)
	assert.Equal(t, "new", out[len(out)-1].TS)
	assert.Equal(t, "0", history[0].TS, "input must not be modified")

	assert.Equal(t, []domain.Snapshot{{TS: "a"}}, AppendBounded(nil, domain.Snapshot{TS: "a"}, DefaultMaxHistory))
	assert.Equal(t, []domain.Snapshot{{TS: "c"}}, AppendBounded([]domain.Snapshot{{TS: "a"}, {TS: "b"}}, domain.Snapshot{TS: "c"}, 1))
}

func TestAdapter_SaveRejectsPayloadWithoutTimestamp(t *testing.T) {
	store := memblob.New()
	a := New(store)

	err := a.Save(context.Background(), domain.DashboardPayload{Snapshot: domain.Snapshot{TotalMoney: 1}})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Equal(t, 0, store.Len())
}

func TestAdapter_AccessFallback(t *testing.T) {
	t.Run("mismatch is retried once with the other class", func(t *testing.T) {
		store := &countingStore{Store: memblob.New(memblob.WithRequiredAccess(blob.AccessPrivate))}
		a := New(store)

		require.NoError(t, a.Save(context.Background(), payloadAt("2025-01-02 09:00:00", 100)))
		// latest: public rejected, private ok; history reuses private directly
		assert.Equal(t, []blob.Access{blob.AccessPublic, blob.AccessPrivate, blob.AccessPrivate}, store.puts)
	})

	t.Run("second mismatch propagates", func(t *testing.T) {
		store := &countingStore{
			Store: memblob.New(),
			failPutFn: func(string) error {
				return errors.Wrap(blob.ErrAccessMismatch, "store refuses every class")
			},
		}
		a := New(store, WithAccess(blob.AccessPrivate))

		err := a.Save(context.Background(), payloadAt("2025-01-02 09:00:00", 100))
		assert.ErrorIs(t, err, blob.ErrAccessMismatch)
		assert.Equal(t, []blob.Access{blob.AccessPrivate, blob.AccessPublic}, store.puts)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		store := &countingStore{
			Store:     memblob.New(),
			failPutFn: func(string) error { return errors.New("quota exceeded") },
		}
		a := New(store)

		err := a.Save(context.Background(), payloadAt("2025-01-02 09:00:00", 100))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Len(t, store.puts, 1)
	})
}

func TestAdapter_LoadSwallowsObjectErrors(t *testing.T) {
	ctx := context.Background()
	inner := memblob.New()
	a := New(inner)
	require.NoError(t, a.Save(ctx, payloadAt("2025-01-02 09:00:00", 100)))

	t.Run("unfetchable objects are absent", func(t *testing.T) {
		a := New(&countingStore{Store: inner, failGet: true})
		got, err := a.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got.Latest)
		assert.Empty(t, got.History)
	})

	t.Run("corrupt history is absent", func(t *testing.T) {
		_, err := inner.Put(ctx, a.HistoryKey(), []byte("not json"), blob.PutOptions{})
		require.NoError(t, err)

		got, err := a.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got.Latest)
		assert.Empty(t, got.History)
	})

	t.Run("list failure fails the call", func(t *testing.T) {
		a := New(&countingStore{Store: inner, failList: true})
		_, err := a.Load(ctx)
		assert.Error(t, err)
	})
}

func TestAdapter_LoadFallsBackToSuffixedObjects(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	store := memblob.New(memblob.WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))

	_, err := store.Put(ctx, "kosdaqpi/history-old.json", []byte(`[{"ts":"old"}]`), blob.PutOptions{})
	require.NoError(t, err)
	_, err = store.Put(ctx, "kosdaqpi/history-new.json", []byte(`[{"ts":"new"}]`), blob.PutOptions{})
	require.NoError(t, err)

	got, err := New(store).Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, "new", got.History[0].TS)
}

func TestAdapter_Reset(t *testing.T) {
	ctx := context.Background()
	store := memblob.New()
	_, err := store.Put(ctx, "elsewhere/keep.json", []byte(`{}`), blob.PutOptions{})
	require.NoError(t, err)

	a := New(store)
	require.NoError(t, a.Save(ctx, payloadAt("2025-01-02 09:00:00", 100)))
	require.NoError(t, a.Reset(ctx))

	got, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.Latest)
	assert.Empty(t, got.History)
	assert.Equal(t, 1, store.Len())
}
