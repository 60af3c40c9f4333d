package sioclient

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives one event sent by the server.
type Handler func(*Response)

// AnyHandler receives every event, whatever its name.
type AnyHandler func(event string, res *Response)

// Listener is the handle OnAny returns. Two listeners wrapping the same
// function are still different listeners.
type Listener struct {
	fn AnyHandler
}

func (l *Listener) Handler() AnyHandler { return l.fn }

// dispatcher maps event names to their handlers. Catch-all listeners run
// before the named handlers, each list in registration order.
type dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	any      []*Listener
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: make(map[string][]Handler)}
}

func (d *dispatcher) on(event string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], h)
}

func (d *dispatcher) off(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, event)
}

func (d *dispatcher) onAny(fn AnyHandler) *Listener {
	l := &Listener{fn: fn}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.any = append(d.any, l)
	return l
}

func (d *dispatcher) offAny(l *Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, v := range d.any {
		if v == l {
			d.any = append(d.any[:i:i], d.any[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) listenersAny() []*Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Listener(nil), d.any...)
}

// dispatch calls the handlers registered when it starts. Handlers added or
// removed meanwhile only see the next event.
func (d *dispatcher) dispatch(event string, res *Response) {
	d.mu.RLock()
	catchAll := append([]*Listener(nil), d.any...)
	named := append([]Handler(nil), d.handlers[event]...)
	d.mu.RUnlock()

	for _, l := range catchAll {
		l.fn(event, res)
	}
	for _, h := range named {
		h(res)
	}
}

// queue runs functions one at a time in the order they were pushed. Push
// never blocks, so the connection reader can keep reading acknowledgements
// while a handler waits for one.
type queue struct {
	log *zap.SugaredLogger

	mu   sync.Mutex
	fns  []func()
	stop bool
	wake chan struct{}
}

func newQueue(log *zap.SugaredLogger) *queue {
	q := &queue{log: log, wake: make(chan struct{}, 1)}
	go q.loop()
	return q
}

func (q *queue) push(fn func()) {
	q.mu.Lock()
	if q.stop {
		q.mu.Unlock()
		return
	}
	q.fns = append(q.fns, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close lets the queue run what it already holds and then exit. It does not
// wait, a handler may be the caller.
func (q *queue) close() {
	q.mu.Lock()
	q.stop = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) loop() {
	for range q.wake {
		for {
			q.mu.Lock()
			if len(q.fns) == 0 {
				stop := q.stop
				q.mu.Unlock()
				if stop {
					return
				}
				break
			}
			fn := q.fns[0]
			q.fns[0] = nil
			q.fns = q.fns[1:]
			q.mu.Unlock()

			q.run(fn)
		}
	}
}

func (q *queue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("handler panicked", "panic", r)
		}
	}()
	fn()
}
