// Package sioclient is a Socket.IO client.
//
// A Client connects to one namespace of a Socket.IO server over WebSocket or
// HTTP long-polling, speaking Engine.IO 3 (socket.io v2 servers) or 4
// (socket.io v3 and v4 servers):
//
//	client, err := sioclient.NewClient("http://localhost:3000/chat",
//		sioclient.WithAuth(map[string]string{"token": "abc"}),
//	)
//	client.On("message", func(res *sioclient.Response) {
//		var text string
//		res.GetValue(0, &text)
//	})
//	err = client.Connect(ctx)
//	res, err := client.EmitWithAck(ctx, "join", "room-1")
//
// A lost connection is retried with a growing, jittered delay until the
// configured number of attempts runs out. A disconnect asked for by the
// server is final.
package sioclient

import (
	"context"
	"net/http"
	"sync"

	"github.com/njones/sioclient/callback"
	eio "github.com/njones/sioclient/engineio"
	eiot "github.com/njones/sioclient/engineio/transport"
	siop "github.com/njones/sioclient/protocol"
	seri "github.com/njones/sioclient/serialize"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const tracerName = "github.com/njones/sioclient"

// State is where a client is in its connection life.
type State int

const (
	Disconnected State = iota
	Opening
	Connected
	Disconnecting
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Opening:
		return "opening"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

type Client struct {
	opts     Options
	rawURL   string
	endpoint eio.Endpoint

	log            *zap.SugaredLogger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	httpClient     *http.Client
	newTransport   TransportFactory

	metrics *metrics
	tracer  trace.Tracer

	handlers *dispatcher
	observe  observers
	acks     *ackRegistry
	ackID    atomic.Uint64

	// connectMu keeps two Connect calls from opening two transports.
	connectMu sync.Mutex

	mu    sync.Mutex
	state State
	id    string
	sess  *session
	loop  *loop
}

// NewClient checks the options and the server address. It does not connect.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	c := &Client{
		opts:         defaultOptions(),
		rawURL:       rawURL,
		log:          zap.NewNop().Sugar(),
		newTransport: defaultTransportFactory,
		handlers:     newDispatcher(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.opts.validate(); err != nil {
		return nil, err
	}

	endpoint, err := eio.ParseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}
	c.endpoint = endpoint
	c.log = c.log.With("namespace", endpoint.Namespace)

	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)
	c.metrics = newMetrics(c.registerer)
	c.acks = newAckRegistry(c.metrics)

	return c, nil
}

// Options returns a copy of the settings the client runs with.
func (c *Client) Options() Options { return c.opts }

func (c *Client) Namespace() string { return c.endpoint.Namespace }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool { return c.State() == Connected }

// ID is the socket id given by the server, empty while disconnected.
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) session() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Connect opens the connection and returns once the namespace handshake is
// done. A failed attempt is retried when reconnection is on; Connect fails
// with ErrConnectionFailed when the attempts run out, ctx ends or
// Disconnect is called. Connecting a connected client does nothing.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.state == Connected {
		c.mu.Unlock()
		return nil
	}
	l := c.startLoop(ctx, Opening)
	c.mu.Unlock()
	defer c.endLoop(l)

	ctx, span := c.tracer.Start(l.ctx, "sioclient.connect", trace.WithAttributes(
		attribute.String("sioclient.url", c.rawURL),
		attribute.String("sioclient.eio", c.opts.EIO.String()),
		attribute.String("sioclient.transport", c.opts.Transport.String()),
	))
	defer span.End()
	l.ctx = ctx

	attempts, err := c.connect(l)
	span.SetAttributes(attribute.Int("sioclient.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Disconnect leaves the namespace and closes the transport. It also stops a
// reconnection in progress. Disconnecting a client that is not connected
// does nothing.
func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	if c.loop != nil {
		c.loop.cancel()
		c.loop = nil
	}
	s := c.sess
	if s == nil {
		c.state = Disconnected
		c.mu.Unlock()
		return
	}
	c.state = Disconnecting
	c.mu.Unlock()

	if !s.ended.CAS(false, true) {
		return
	}

	leave := &siop.Message{Type: siop.Disconnected, Namespace: c.endpoint.Namespace}
	if err := s.write(ctx, leave); err != nil {
		c.log.Debugw("leave namespace", "error", err)
	}
	c.end(s, IOClientDisconnect, false, nil)
}

// On adds a handler for event. Handlers of one event run in the order they
// were added, one event at a time.
func (c *Client) On(event string, h Handler) { c.handlers.on(event, h) }

// Off removes every handler of event.
func (c *Client) Off(event string) { c.handlers.off(event) }

// OnAny adds a handler that sees every event before the named handlers do.
func (c *Client) OnAny(fn AnyHandler) *Listener { return c.handlers.onAny(fn) }

func (c *Client) OffAny(l *Listener) { c.handlers.offAny(l) }

func (c *Client) ListenersAny() []*Listener { return c.handlers.listenersAny() }

// OnCallback adds a handler built from one of the callback adapters. Errors
// it returns are logged.
func (c *Client) OnCallback(event string, cb callback.Callback) {
	c.On(event, func(res *Response) {
		if err := cb.Callback(res); err != nil {
			c.log.Warnw("event callback", "event", event, "error", err)
		}
	})
}

// Emit sends event to the server. When the last argument is an AckFunc, a
// Handler or a func(*Response) the server is asked to acknowledge, and the
// function gets the answer.
func (c *Client) Emit(ctx context.Context, event string, args ...interface{}) error {
	var p *pendingAck
	if n := len(args); n > 0 {
		switch fn := args[n-1].(type) {
		case AckFunc:
			p, args = &pendingAck{fn: fn}, args[:n-1]
		case Handler:
			p, args = &pendingAck{fn: AckFunc(fn)}, args[:n-1]
		case func(*Response):
			p, args = &pendingAck{fn: fn}, args[:n-1]
		}
	}
	_, err := c.emit(ctx, event, args, p)
	return err
}

// EmitWithAck sends event and waits for the server to acknowledge it.
func (c *Client) EmitWithAck(ctx context.Context, event string, args ...interface{}) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "sioclient.emit_with_ack",
		trace.WithAttributes(attribute.String("sioclient.event", event)))
	defer span.End()

	p := &pendingAck{done: make(chan ackResult, 1)}
	id, err := c.emit(ctx, event, args, p)
	if err == nil {
		span.SetAttributes(attribute.Int64("sioclient.ack_id", int64(id)))
		select {
		case r := <-p.done:
			if r.err == nil {
				span.SetStatus(codes.Ok, "")
				return r.res, nil
			}
			err = r.err
		case <-ctx.Done():
			c.acks.remove(id)
			err = ctx.Err()
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (c *Client) emit(ctx context.Context, event string, args []interface{}, p *pendingAck) (uint64, error) {
	s := c.session()
	if s == nil {
		return 0, ErrNotConnected
	}

	msg, err := seri.SerializeCall(c.endpoint.Namespace, event, args...)
	if err != nil {
		return 0, err
	}

	if p != nil {
		msg.AckID, msg.HasAck = c.ackID.Inc()-1, true
		c.acks.add(msg.AckID, p)
	}

	if err := s.send(ctx, msg); err != nil {
		if p != nil {
			c.acks.remove(msg.AckID)
		}
		return 0, err
	}
	return msg.AckID, nil
}

// transportOptions are handed to the factory for every new transport.
func (c *Client) transportOptions() []eiot.Option {
	opts := []eiot.Option{eiot.WithVersion(c.opts.EIO), eiot.WithLogger(c.log)}
	if c.httpClient != nil {
		opts = append(opts, eiot.WithHTTPClient(c.httpClient))
	}
	return opts
}
