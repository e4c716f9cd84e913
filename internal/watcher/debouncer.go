package watcher

import (
	"context"
	"sync"
	"time"
)

// eventDebouncer batches file events until no new event arrived for the
// debounce interval. Only the latest event per path is kept.
type eventDebouncer struct {
	events   map[string]FileEventType
	mutex    sync.Mutex
	debounce time.Duration
	kick     chan struct{}
	flushFn  func(map[string]FileEventType)
}

// newEventDebouncer creates a new event debouncer
func newEventDebouncer(debounce time.Duration, flush func(map[string]FileEventType)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]FileEventType),
		debounce: debounce,
		kick:     make(chan struct{}, 1),
		flushFn:  flush,
	}
}

// addEvent records an event and restarts the quiet period
func (d *eventDebouncer) addEvent(path string, eventType FileEventType) {
	d.mutex.Lock()
	d.events[path] = eventType
	d.mutex.Unlock()

	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// pending returns the number of buffered events
func (d *eventDebouncer) pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.events)
}

// run flushes batches until ctx is done. Flushes happen on this goroutine
// only, so batches never overlap. Pending events are dropped on shutdown.
func (d *eventDebouncer) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
			timer.Reset(d.debounce)
		case <-timer.C:
			d.flush()
		}
	}
}

// flush hands all accumulated events to the flush function
func (d *eventDebouncer) flush() {
	d.mutex.Lock()
	events := d.events
	d.events = make(map[string]FileEventType)
	d.mutex.Unlock()

	if len(events) > 0 {
		d.flushFn(events)
	}
}
