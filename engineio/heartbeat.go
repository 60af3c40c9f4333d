// Package engineio holds the client side Engine.IO session helpers: the
// heartbeat monitor and the endpoint URL.
package engineio

import (
	"sync"
	"time"

	eiop "github.com/njones/sioclient/engineio/protocol"
)

type HeartbeatMode int

const (
	// ServerDriven is EIO4: the server pings and the client must answer. The
	// connection is dead when no ping shows up within interval+timeout.
	ServerDriven HeartbeatMode = iota
	// ClientDriven is EIO3: the client pings every interval and the server
	// must answer within timeout.
	ClientDriven
)

// ModeFor returns the heartbeat mode used by a protocol revision.
func ModeFor(v eiop.Version) HeartbeatMode {
	if v == eiop.V3 {
		return ClientDriven
	}
	return ServerDriven
}

type HeartbeatState int

const (
	Idle HeartbeatState = iota
	Armed
	Dead
)

func (s HeartbeatState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Dead:
		return "dead"
	}
	return "unknown"
}

type HeartbeatHooks struct {
	SendPing func() // ClientDriven only
	Dead     func()
}

// Heartbeat watches the liveness of one Engine.IO session. The hooks are
// called from timer goroutines and never while the heartbeat holds its lock.
type Heartbeat struct {
	mode              HeartbeatMode
	interval, timeout time.Duration
	hooks             HeartbeatHooks

	mu    sync.Mutex
	state HeartbeatState
	gen   uint64
	timer *time.Timer
}

func NewHeartbeat(mode HeartbeatMode, interval, timeout time.Duration, hooks HeartbeatHooks) *Heartbeat {
	return &Heartbeat{mode: mode, interval: interval, timeout: timeout, hooks: hooks}
}

func (h *Heartbeat) State() HeartbeatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Arm starts the timers. Only an idle heartbeat can be armed.
func (h *Heartbeat) Arm() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != Idle {
		return
	}
	h.state = Armed
	h.next()
}

// Ping records a ping from the server.
func (h *Heartbeat) Ping() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != Armed || h.mode != ServerDriven {
		return
	}
	h.next()
}

// Pong records the server's answer to a client ping.
func (h *Heartbeat) Pong() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != Armed || h.mode != ClientDriven {
		return
	}
	h.next()
}

// Stop cancels any pending timer and returns the heartbeat to Idle.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopTimer()
	h.state = Idle
}

// next schedules the step that follows an armed state: the death deadline when
// the server drives, the next ping when the client drives.
func (h *Heartbeat) next() {
	if h.mode == ServerDriven {
		h.schedule(h.interval+h.timeout, h.expire)
		return
	}
	h.schedule(h.interval, h.ping)
}

func (h *Heartbeat) ping(gen uint64) {
	h.mu.Lock()
	if h.gen != gen || h.state != Armed {
		h.mu.Unlock()
		return
	}
	h.schedule(h.timeout, h.expire)
	h.mu.Unlock()

	if h.hooks.SendPing != nil {
		h.hooks.SendPing()
	}
}

func (h *Heartbeat) expire(gen uint64) {
	h.mu.Lock()
	if h.gen != gen || h.state != Armed {
		h.mu.Unlock()
		return
	}
	h.stopTimer()
	h.state = Dead
	h.mu.Unlock()

	if h.hooks.Dead != nil {
		h.hooks.Dead()
	}
}

// schedule must be called with mu held. A timer that fires after it has been
// replaced sees a stale generation and does nothing.
func (h *Heartbeat) schedule(d time.Duration, fn func(uint64)) {
	h.stopTimer()
	gen := h.gen
	h.timer = time.AfterFunc(d, func() { fn(gen) })
}

func (h *Heartbeat) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.gen++
}
