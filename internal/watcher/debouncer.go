package watcher

import (
	"context"
	"sort"
	"time"
)

// DefaultDebounce is the debounce window used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// maxWaitFactor bounds how many debounce windows a batch may be held open
// by a steady stream of events.
const maxWaitFactor = 10

// Debouncer groups rapid file changes together. Every event restarts the
// window; when it elapses the pending events are emitted as one batch,
// deduplicated by path (last event wins) and sorted by path. A batch is
// emitted no later than maxWait after its first event, even if events keep
// arriving.
type Debouncer struct {
	delay   time.Duration
	maxWait time.Duration
	output  chan []ChangeEvent
	pending map[string]ChangeEvent
	first   time.Time
}

// NewDebouncer creates a debouncer. A non-positive delay selects
// DefaultDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		delay:   delay,
		maxWait: maxWaitFactor * delay,
		output:  make(chan []ChangeEvent, 10),
		pending: make(map[string]ChangeEvent),
	}
}

// Batches delivers debounced batches. It is closed when Run returns.
func (d *Debouncer) Batches() <-chan []ChangeEvent {
	return d.output
}

// Run consumes events until ctx is done or events is closed. Pending
// events are flushed when events is closed.
func (d *Debouncer) Run(ctx context.Context, events <-chan ChangeEvent) {
	defer close(d.output)

	timer := time.NewTimer(d.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				d.flush(ctx)
				return
			}
			if len(d.pending) == 0 {
				d.first = time.Now()
			}
			d.pending[event.Path] = event
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.wait())
		case <-timer.C:
			d.flush(ctx)
		}
	}
}

// wait is the time left in the current window, capped by maxWait.
func (d *Debouncer) wait() time.Duration {
	wait := d.delay
	if left := d.maxWait - time.Since(d.first); left < wait {
		wait = max(left, 0)
	}
	return wait
}

func (d *Debouncer) flush(ctx context.Context) {
	if len(d.pending) == 0 {
		return
	}

	events := make([]ChangeEvent, 0, len(d.pending))
	for _, event := range d.pending {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Path < events[j].Path
	})
	d.pending = make(map[string]ChangeEvent)

	select {
	case d.output <- events:
	case <-ctx.Done():
	}
}
