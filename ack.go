package sioclient

import (
	"sync"
	"time"
)

// AckFunc receives the acknowledgement of an emitted event. Pass one as the
// last argument of Emit.
type AckFunc func(*Response)

type ackResult struct {
	res *Response
	err error
}

// pendingAck is either a callback or a waiting EmitWithAck, never both.
type pendingAck struct {
	fn    AckFunc
	done  chan ackResult
	start time.Time
}

// ackRegistry holds the calls waiting for an answer, keyed by ack id. Each
// entry is taken out at most once, so an acknowledgement resolves once.
type ackRegistry struct {
	metrics *metrics

	mu      sync.Mutex
	pending map[uint64]*pendingAck
}

func newAckRegistry(m *metrics) *ackRegistry {
	return &ackRegistry{metrics: m, pending: make(map[uint64]*pendingAck)}
}

func (r *ackRegistry) add(id uint64, p *pendingAck) {
	p.start = time.Now()

	r.mu.Lock()
	r.pending[id] = p
	r.mu.Unlock()

	r.metrics.pendingAcks.Inc()
}

func (r *ackRegistry) take(id uint64) *pendingAck {
	r.mu.Lock()
	p, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.metrics.pendingAcks.Dec()
	r.metrics.ackDuration.Observe(time.Since(p.start).Seconds())
	return p
}

func (r *ackRegistry) remove(id uint64) {
	r.mu.Lock()
	_, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()

	if ok {
		r.metrics.pendingAcks.Dec()
	}
}

func (r *ackRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// failAll empties the registry. Waiting EmitWithAck calls get err, callbacks
// are dropped.
func (r *ackRegistry) failAll(err error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[uint64]*pendingAck)
	r.mu.Unlock()

	r.metrics.pendingAcks.Sub(float64(len(pending)))
	for _, p := range pending {
		if p.done != nil {
			p.done <- ackResult{err: err}
		}
	}
}
