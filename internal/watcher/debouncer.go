package watcher

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Debouncer groups change events that arrive within delay of each other
// into a single batch. Repeated events for a path collapse to the latest.
type Debouncer struct {
	delay    time.Duration
	events   chan ChangeEvent
	output   chan []ChangeEvent
	done     chan struct{}
	stopOnce sync.Once
}

// NewDebouncer creates a new debouncer
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, 100),
		output: make(chan []ChangeEvent, 10),
		done:   make(chan struct{}),
	}
}

// Add queues an event. Events are dropped while the queue is full.
func (d *Debouncer) Add(event ChangeEvent) {
	select {
	case d.events <- event:
	case <-d.done:
	default:
	}
}

// Output returns the channel of debounced batches, sorted by path.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

func (d *Debouncer) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *Debouncer) run(ctx context.Context) {
	pending := make(map[string]ChangeEvent)
	var timer *time.Timer
	var fire <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case event := <-d.events:
			pending[event.Path] = event
			if timer == nil {
				timer = time.NewTimer(d.delay)
			} else {
				timer.Reset(d.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			batch := drain(pending)
			select {
			case d.output <- batch:
			case <-ctx.Done():
				return
			case <-d.done:
				return
			}
		}
	}
}

func drain(pending map[string]ChangeEvent) []ChangeEvent {
	batch := make([]ChangeEvent, 0, len(pending))
	for path, event := range pending {
		batch = append(batch, event)
		delete(pending, path)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}
