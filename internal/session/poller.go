package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/charmbracelet/log"
)

// DefaultPollPeriod is the playback status refresh interval.
const DefaultPollPeriod = 3 * time.Second

// DefaultSearchDebounce is the idle time before a search query is issued.
const DefaultSearchDebounce = 400 * time.Millisecond

// PlaybackStatus is the last known "now playing" snapshot. It is replaced
// wholesale on each successful poll; a nil Now means nothing is audibly
// playing, which is distinct from a failed poll (previous value kept).
type PlaybackStatus struct {
	Now      *services.NowPlaying
	PolledAt time.Time
}

// playbackSource is the single streaming call the poller depends on.
type playbackSource interface {
	CurrentlyPlaying(ctx context.Context) (*services.NowPlaying, error)
}

// Poller refreshes the playback status on a fixed period. Ticks never
// overlap: a tick is skipped while the previous request is unresolved, so a
// slow response cannot cause out-of-order status writes.
type Poller struct {
	src      playbackSource
	period   time.Duration
	logger   *log.Logger
	onUpdate func(PlaybackStatus)

	mu       sync.Mutex
	status   PlaybackStatus
	cancel   context.CancelFunc
	inFlight bool
	done     chan struct{}
}

// NewPoller creates a stopped poller. onUpdate, when non-nil, is invoked
// after every successful status replacement.
func NewPoller(src playbackSource, period time.Duration, logger *log.Logger, onUpdate func(PlaybackStatus)) *Poller {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{src: src, period: period, logger: logger, onUpdate: onUpdate}
}

// Start begins polling. A running poller is cancelled and restarted rather
// than stacked; there is never more than one live timer.
func (p *Poller) Start(ctx context.Context) {
	p.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.run(runCtx, done)
}

// Stop cancels the poller and waits for the loop to exit. Safe to call on a
// stopped poller. Leaking an active timer across teardown is a defect.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Status returns a copy of the last known playback status.
func (p *Poller) Status() PlaybackStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	now, err := p.src.CurrentlyPlaying(ctx)

	p.mu.Lock()
	p.inFlight = false
	if err != nil {
		// Stale-but-displayed beats flashing to empty.
		p.mu.Unlock()
		p.logger.Debug("poll tick failed", "err", err)
		return
	}
	status := PlaybackStatus{Now: now, PolledAt: time.Now()}
	p.status = status
	fn := p.onUpdate
	p.mu.Unlock()

	if fn != nil {
		fn(status)
	}
}

// searchSource is the streaming search call the debouncer depends on.
type searchSource interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]services.Track, error)
}

// SearchDebouncer issues a track search after the input has been idle for the
// debounce window, suppressing repeats of the same query. Clearing the input
// cancels any pending fire and substitutes an empty result set rather than
// issuing a query. Results are delivered only when their own request settles,
// and only if the query is still current.
type SearchDebouncer struct {
	src       searchSource
	delay     time.Duration
	onResults func(query string, tracks []services.Track, err error)

	mu        sync.Mutex
	lastQuery string
	timer     *time.Timer
}

// NewSearchDebouncer creates a debouncer delivering to onResults.
func NewSearchDebouncer(src searchSource, delay time.Duration, onResults func(string, []services.Track, error)) *SearchDebouncer {
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	return &SearchDebouncer{src: src, delay: delay, onResults: onResults}
}

// Input feeds the current contents of the search box.
func (d *SearchDebouncer) Input(ctx context.Context, query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	if query == d.lastQuery {
		d.mu.Unlock()
		return
	}
	d.lastQuery = query
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if query == "" {
		d.mu.Unlock()
		d.onResults("", nil, nil)
		return
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(ctx, query)
	})
	d.mu.Unlock()
}

// Cancel drops any pending fire, e.g. on modal close.
func (d *SearchDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.lastQuery = ""
}

func (d *SearchDebouncer) fire(ctx context.Context, query string) {
	tracks, err := d.src.SearchTracks(ctx, query, 20)

	d.mu.Lock()
	current := d.lastQuery == query
	d.mu.Unlock()

	if current {
		d.onResults(query, tracks, err)
	}
}
