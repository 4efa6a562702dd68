package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/botboard/internal/domain"
)

type stubFetcher struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (s *stubFetcher) Fetch(context.Context) Response {
	s.calls.Add(1)
	if s.fail.Load() {
		return ErrorResponse(errors.New("connection refused"))
	}
	return Response{OK: true, History: []domain.Snapshot{{TotalMoney: 100}, {TotalMoney: 150}}}
}

func TestPoller_RefreshPublishes(t *testing.T) {
	f := &stubFetcher{}
	p := NewPoller(f, nil)

	var got []View
	p.Subscribe(func(v View) { got = append(got, v) })

	v := p.Refresh()
	assert.True(t, v.Data.OK)
	assert.Equal(t, 50.0, v.Series.CumulativeReturn)
	require.Len(t, got, 1)
	assert.Equal(t, v, p.Current())
}

func TestPoller_FailureShowsErrorAndEmptyHistory(t *testing.T) {
	f := &stubFetcher{}
	p := NewPoller(f, nil)
	p.Refresh()

	f.fail.Store(true)
	v := p.Refresh()
	assert.False(t, v.Data.OK)
	assert.Equal(t, "connection refused", v.Data.Error)
	assert.Empty(t, v.Data.History)
	assert.Empty(t, v.Series.Rows)
	assert.Equal(t, v, p.Current())
}

func TestPoller_IntervalPollingAndDisable(t *testing.T) {
	f := &stubFetcher{}
	p := NewPoller(f, nil)
	defer p.Close()

	p.SetInterval(5 * time.Millisecond)
	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, time.Millisecond)

	p.SetInterval(0)
	assert.Equal(t, time.Duration(0), p.Interval())
	// let an in-flight tick finish
	time.Sleep(20 * time.Millisecond)
	settled := f.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, f.calls.Load())
}

func TestPoller_StartAndContextCancel(t *testing.T) {
	f := &stubFetcher{}
	p := NewPoller(f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx, time.Hour)
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.closed && p.stop == nil
	}, time.Second, time.Millisecond)

	// a closed poller ignores interval changes
	p.SetInterval(time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), f.calls.Load())
}
