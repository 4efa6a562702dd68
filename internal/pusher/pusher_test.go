package pusher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/botboard/internal/domain"
	"github.com/vadiminshakov/botboard/pkg/retrier"
)

func fastRetrier() *retrier.Retrier {
	return retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(time.Millisecond))
}

func TestPush(t *testing.T) {
	var got domain.DashboardPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ingest", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-dashboard-token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", "secret", WithRetrier(fastRetrier()))
	require.NoError(t, err)

	err = c.Push(context.Background(), domain.DashboardPayload{
		Snapshot: domain.Snapshot{TS: "2025-03-04 10:15:00", TotalMoney: 100},
		Meta:     map[string]any{"bot_name": "REAL_MyKospidaq_Bot"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04 10:15:00", got.Snapshot.TS)
	assert.Equal(t, "REAL_MyKospidaq_Bot", got.Meta["bot_name"])
}

func TestPush_StampsMissingTimestamp(t *testing.T) {
	var got domain.DashboardPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	kst := time.FixedZone("KST", 9*60*60)
	c, err := New(srv.URL, "secret", WithLocation(kst))
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2025, 3, 4, 1, 15, 0, 0, time.UTC) }

	require.NoError(t, c.Push(context.Background(), domain.DashboardPayload{}))
	assert.Equal(t, "2025-03-04 10:15:00", got.Snapshot.TS)
}

func TestPush_Retries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantCode  int
	}{
		{"ok", []int{http.StatusOK}, 1, 0},
		{"unauthorized is not retried", []int{http.StatusUnauthorized}, 1, http.StatusUnauthorized},
		{"bad request is not retried", []int{http.StatusBadRequest}, 1, http.StatusBadRequest},
		{"server error is not retried", []int{http.StatusInternalServerError}, 1, http.StatusInternalServerError},
		{"bad gateway is not retried", []int{http.StatusBadGateway}, 1, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[n-1])
				_, _ = w.Write([]byte(`{"ok":false,"error":"nope"}`))
			}))
			defer srv.Close()

			c, err := New(srv.URL, "secret", WithRetrier(fastRetrier()))
			require.NoError(t, err)

			err = c.Push(context.Background(), domain.DashboardPayload{Snapshot: domain.Snapshot{TS: "x"}})
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantCode == 0 {
				assert.NoError(t, err)
				return
			}
			var se *StatusError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.Contains(t, se.Error(), "nope")
		})
	}
}

func TestPush_RetriesOnlyConnectFailures(t *testing.T) {
	t.Run("connection refused is retried", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		var retries int
		r := retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(time.Millisecond),
			retrier.WithOnRetry(func(int, time.Duration, error) { retries++ }),
		)
		c, err := New(url, "secret", WithRetrier(r))
		require.NoError(t, err)

		err = c.Push(context.Background(), domain.DashboardPayload{Snapshot: domain.Snapshot{TS: "x"}})
		require.Error(t, err)
		assert.Equal(t, 2, retries)
	})

	t.Run("timeout after sending is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c, err := New(srv.URL, "secret",
			WithRetrier(fastRetrier()),
			WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		)
		require.NoError(t, err)

		err = c.Push(context.Background(), domain.DashboardPayload{Snapshot: domain.Snapshot{TS: "x"}})
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestNew_RequiresURLAndToken(t *testing.T) {
	_, err := New("", "secret")
	assert.Error(t, err)
	_, err = New("http://localhost", "")
	assert.Error(t, err)
}

func TestLoadPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"snapshot":{"ts":"2025-03-04 10:15:00","invest_cnt":3},"orders":[{"OrderSatus":"DONE"}]}`), 0o600))

	p, err := LoadPayload(path)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Snapshot.InvestCnt)
	assert.Equal(t, "DONE", p.Orders[0]["OrderSatus"])

	_, err = LoadPayload(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = LoadPayload(path)
	assert.Error(t, err)
}
