package sioclient

import "sync"

// DisconnectReason says why a connection ended.
type DisconnectReason string

const (
	IOServerDisconnect DisconnectReason = "io server disconnect"
	IOClientDisconnect DisconnectReason = "io client disconnect"
	PingTimeout        DisconnectReason = "ping timeout"
	TransportClose     DisconnectReason = "transport close"
	TransportError     DisconnectReason = "transport error"
)

func (r DisconnectReason) String() string { return string(r) }

// observers holds the connection lifecycle callbacks. They are called on the
// goroutine that made the change and never while the client holds a lock.
type observers struct {
	mu sync.RWMutex

	connected        []func()
	disconnected     []func(DisconnectReason)
	errors           []func(string)
	ping             []func()
	pong             []func()
	reconnectAttempt []func(int)
	reconnectError   []func(error)
	reconnectFailed  []func()
	reconnected      []func(int)
}

func add[T any](o *observers, list *[]T, fn T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*list = append(*list, fn)
}

func snapshot[T any](o *observers, list *[]T) []T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]T(nil), (*list)...)
}

func (o *observers) fireConnected() {
	for _, fn := range snapshot(o, &o.connected) {
		fn()
	}
}

func (o *observers) fireDisconnected(reason DisconnectReason) {
	for _, fn := range snapshot(o, &o.disconnected) {
		fn(reason)
	}
}

func (o *observers) fireError(message string) {
	for _, fn := range snapshot(o, &o.errors) {
		fn(message)
	}
}

func (o *observers) firePing() {
	for _, fn := range snapshot(o, &o.ping) {
		fn()
	}
}

func (o *observers) firePong() {
	for _, fn := range snapshot(o, &o.pong) {
		fn()
	}
}

func (o *observers) fireReconnectAttempt(attempt int) {
	for _, fn := range snapshot(o, &o.reconnectAttempt) {
		fn(attempt)
	}
}

func (o *observers) fireReconnectError(err error) {
	for _, fn := range snapshot(o, &o.reconnectError) {
		fn(err)
	}
}

func (o *observers) fireReconnectFailed() {
	for _, fn := range snapshot(o, &o.reconnectFailed) {
		fn()
	}
}

func (o *observers) fireReconnected(attempt int) {
	for _, fn := range snapshot(o, &o.reconnected) {
		fn(attempt)
	}
}

// OnConnected is called each time the namespace connection is established,
// reconnections included.
func (c *Client) OnConnected(fn func()) { add(&c.observe, &c.observe.connected, fn) }

func (c *Client) OnDisconnected(fn func(DisconnectReason)) {
	add(&c.observe, &c.observe.disconnected, fn)
}

// OnError is called with the reason of every error packet from the server,
// a refused handshake included.
func (c *Client) OnError(fn func(message string)) { add(&c.observe, &c.observe.errors, fn) }

// OnPing is called when a ping is received (EIO4) or sent (EIO3).
func (c *Client) OnPing(fn func()) { add(&c.observe, &c.observe.ping, fn) }

// OnPong is called when a pong is sent (EIO4) or received (EIO3).
func (c *Client) OnPong(fn func()) { add(&c.observe, &c.observe.pong, fn) }

// OnReconnectAttempt is called before each retry with the 0-based attempt.
func (c *Client) OnReconnectAttempt(fn func(attempt int)) {
	add(&c.observe, &c.observe.reconnectAttempt, fn)
}

// OnReconnectError is called for every failed connection attempt, the first
// one of Connect included.
func (c *Client) OnReconnectError(fn func(error)) {
	add(&c.observe, &c.observe.reconnectError, fn)
}

func (c *Client) OnReconnectFailed(fn func()) {
	add(&c.observe, &c.observe.reconnectFailed, fn)
}

// OnReconnected is called after a lost connection came back, with the number
// of attempts it took.
func (c *Client) OnReconnected(fn func(attempts int)) {
	add(&c.observe, &c.observe.reconnected, fn)
}
