package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last keystroke before a
// search is issued.
const DefaultDebounce = 300 * time.Millisecond

// DeliverFunc receives the result of the latest submitted query.
type DeliverFunc func(Result)

// Debouncer coalesces rapid query submissions from one client. Each Submit
// cancels the pending timer and any in-flight search; only the result of the
// latest submission is delivered.
type Debouncer struct {
	searcher *Searcher
	delay    time.Duration
	deliver  DeliverFunc
	logger   *slog.Logger

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool

	// deliverMu serializes deliveries so a stale result cannot overtake a
	// newer one that was already checked.
	deliverMu sync.Mutex
}

// NewDebouncer creates a Debouncer. A non-positive delay uses DefaultDebounce.
func NewDebouncer(searcher *Searcher, delay time.Duration, deliver DeliverFunc, logger *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		searcher: searcher,
		delay:    delay,
		deliver:  deliver,
		logger:   logger,
	}
}

// Submit schedules q. A blank query clears the results immediately. The search
// runs under ctx, which should live as long as the client connection.
func (d *Debouncer) Submit(ctx context.Context, q Query) {
	q = q.Normalize()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.seq++
	seq := d.seq
	d.stopLocked()

	if q.Blank() {
		d.mu.Unlock()
		d.deliverIfCurrent(seq, EmptyResult(q.Query))
		return
	}

	searchCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.timer = time.AfterFunc(d.delay, func() {
		defer cancel()
		d.run(searchCtx, seq, q)
	})
	d.mu.Unlock()
}

// Stop cancels any pending or in-flight search. Later submissions are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.seq++
	d.stopLocked()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		if d.timer.Stop() {
			searchSuperseded.Inc()
		}
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer) run(ctx context.Context, seq uint64, q Query) {
	res, err := d.searcher.Search(ctx, q)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			searchSuperseded.Inc()
			return
		}
		d.logger.WarnContext(ctx, "product search failed",
			slog.String("query", q.Query),
			slog.String("error", err.Error()),
		)
		res = EmptyResult(q.Query)
		res.Failed = true
	}
	d.deliverIfCurrent(seq, res)
}

func (d *Debouncer) current(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return seq == d.seq && !d.closed
}

func (d *Debouncer) deliverIfCurrent(seq uint64, res Result) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	if !d.current(seq) {
		searchSuperseded.Inc()
		return
	}
	d.deliver(res)
}
