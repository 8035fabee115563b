package realtime

import "sync"

// dispatcher runs queued notifications one at a time, in FIFO order, on a
// single goroutine. push never blocks.
type dispatcher struct {
	mu    sync.Mutex
	items []func()
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(fn func()) {
	d.mu.Lock()
	d.items = append(d.items, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		if d.drain() {
			continue
		}
		select {
		case <-d.wake:
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() bool {
	d.mu.Lock()
	items := d.items
	d.items = nil
	d.mu.Unlock()

	for _, fn := range items {
		fn()
	}
	return len(items) > 0
}

// stop lets the goroutine exit after what is already queued. It does not wait,
// so it is safe to call from inside a notification.
func (d *dispatcher) stop() {
	d.once.Do(func() { close(d.done) })
}
