package watch

import (
	"time"
)

// DefaultDebounce is the quiescence window before a batch is delivered.
const DefaultDebounce = 200 * time.Millisecond

// Batcher groups raw notifications into debounce batches: events are
// accumulated until the stream has been quiet for the configured
// window, then the whole batch is delivered at once.
type Batcher struct {
	registry *Registry
	window   time.Duration
	out      chan []Raw
	errs     chan error
	done     chan struct{}
}

// NewBatcher starts batching the registry's event stream.
func NewBatcher(registry *Registry, window time.Duration) *Batcher {
	if window <= 0 {
		window = DefaultDebounce
	}
	b := &Batcher{
		registry: registry,
		window:   window,
		out:      make(chan []Raw, 4),
		errs:     make(chan error, 4),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Batches delivers debounced batches in arrival order.
func (b *Batcher) Batches() <-chan []Raw {
	return b.out
}

// Errors forwards watcher failures.
func (b *Batcher) Errors() <-chan error {
	return b.errs
}

// Close stops the batcher. Pending events are discarded.
func (b *Batcher) Close() {
	close(b.done)
}

func (b *Batcher) run() {
	var pending []Raw

	timer := time.NewTimer(b.window)
	if !timer.Stop() {
		<-timer.C
	}
	timerActive := false

	for {
		select {
		case event, ok := <-b.registry.Events():
			if !ok {
				return
			}
			pending = append(pending, FromFsnotify(event))
			if timerActive && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(b.window)
			timerActive = true

		case <-timer.C:
			timerActive = false
			if len(pending) == 0 {
				continue
			}
			batch := pending
			pending = nil
			select {
			case b.out <- batch:
			case <-b.done:
				return
			}

		case err, ok := <-b.registry.Errors():
			if !ok {
				return
			}
			select {
			case b.errs <- err:
			default:
			}

		case <-b.done:
			return
		}
	}
}
