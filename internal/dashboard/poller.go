package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// View is what the dashboard displays after a fetch.
type View struct {
	Data      Response
	Series    Series
	FetchedAt time.Time
}

// NewView derives the series for a response.
func NewView(resp Response, at time.Time) View {
	return View{Data: resp, Series: Derive(resp.History), FetchedAt: at}
}

// Poller refetches the dashboard state on an interval and on demand.
// Responses are applied in the order they resolve; an older request finishing last wins.
type Poller struct {
	fetcher Fetcher
	l       *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	ctx      context.Context
	interval time.Duration
	stop     chan struct{}
	view     View
	subs     []func(View)
	closed   bool
}

// NewPoller creates a stopped poller.
func NewPoller(fetcher Fetcher, l *zap.Logger) *Poller {
	if l == nil {
		l = zap.NewNop()
	}
	return &Poller{
		fetcher: fetcher,
		l:       l,
		now:     time.Now,
		ctx:     context.Background(),
		view:    NewView(Response{History: nil}, time.Time{}),
	}
}

// Subscribe registers fn to be called with every new view.
func (p *Poller) Subscribe(fn func(View)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Start fetches once and then every interval until ctx is done or Close is called.
// An interval of 0 disables automatic refresh.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	go p.Refresh()
	p.SetInterval(interval)

	go func() {
		<-ctx.Done()
		p.Close()
	}()
}

// SetInterval cancels the running timer and starts a new one with d; 0 disables polling.
func (p *Poller) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.stopLocked()
	p.interval = d
	if d <= 0 {
		return
	}

	stop := make(chan struct{})
	p.stop = stop
	go p.loop(d, stop)
}

// Interval returns the current polling interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) loop(d time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.Refresh()
		}
	}
}

// Refresh fetches now and publishes the resulting view.
func (p *Poller) Refresh() View {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()

	resp := p.fetcher.Fetch(ctx)
	if !resp.OK {
		p.l.Warn("dashboard fetch failed", zap.String("error", resp.Error))
	}
	view := NewView(resp, p.now())

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return view
	}
	p.view = view
	subs := make([]func(View), len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(view)
	}
	return view
}

// Current returns the last published view.
func (p *Poller) Current() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// Close stops the timer. Views fetched after Close are not published.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.closed = true
}

func (p *Poller) stopLocked() {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}
