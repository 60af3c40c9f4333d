// Package transport moves Engine.IO frames between the client and a server.
// Two transports exist: a WebSocket transport and an HTTP long-polling
// transport. Both hand received frames to Receive and consume the engine level
// close and noop packets themselves.
package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	eiop "github.com/njones/sioclient/engineio/protocol"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Name string

func (name Name) String() string { return string(name) }

const (
	Polling   Name = "polling"
	WebSocket Name = "websocket"
)

// Transporter is an open connection to an Engine.IO server.
//
// Receive is closed when the connection ends; Err then reports why.
type Transporter interface {
	Name() Name
	Open(ctx context.Context, u *url.URL, header http.Header) error
	Send(ctx context.Context, frame eiop.Frame) error
	Receive() <-chan eiop.Frame
	Err() error
	Close() error
}

// Transport holds what both transports share: the receive channel and the
// lifecycle of the goroutine that fills it.
type Transport struct {
	name    Name
	version eiop.Version
	client  *http.Client
	chanBuf int
	log     *zap.SugaredLogger

	receive chan eiop.Frame

	ctx    context.Context
	cancel context.CancelFunc
	grp    *errgroup.Group
	done   chan struct{}

	errMu   sync.Mutex
	err     error
	closed  atomic.Bool
	started atomic.Bool
}

func newTransport(name Name, opts ...Option) *Transport {
	t := &Transport{
		name:    name,
		version: eiop.V4,
		client:  http.DefaultClient,
		chanBuf: 64,
		log:     zap.NewNop().Sugar(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.receive = make(chan eiop.Frame, t.chanBuf)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.grp, t.ctx = errgroup.WithContext(t.ctx)
	return t
}

func (t *Transport) Name() Name                 { return t.name }
func (t *Transport) Version() eiop.Version      { return t.version }
func (t *Transport) Receive() <-chan eiop.Frame { return t.receive }
func (t *Transport) InnerTransport() *Transport { return t }
func (t *Transport) Done() <-chan struct{}      { return t.done }

func (t *Transport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// run starts fn as the single reader of the connection. When fn returns the
// receive channel is closed and the error is kept for Err.
func (t *Transport) run(fn func(context.Context) error) {
	t.started.Store(true)
	t.grp.Go(func() error { return fn(t.ctx) })
	go func() {
		err := t.grp.Wait()
		if t.closed.Load() || err == nil {
			err = ErrTransportClosed
		} else {
			err = ErrTransport.F(t.name, err)
		}

		t.errMu.Lock()
		t.err = err
		t.errMu.Unlock()

		close(t.receive)
		close(t.done)
	}()
}

func (t *Transport) deliver(ctx context.Context, frame eiop.Frame) error {
	select {
	case t.receive <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown marks the transport closed, runs closeConn and waits for the
// reader when one was started. Only the first call does anything.
func (t *Transport) shutdown(closeConn func()) {
	if !t.closed.CAS(false, true) {
		return
	}
	if closeConn != nil {
		closeConn()
	}
	t.cancel()
	if t.started.Load() {
		<-t.done
		return
	}

	t.errMu.Lock()
	t.err = ErrTransportClosed
	t.errMu.Unlock()

	close(t.receive)
	close(t.done)
}
