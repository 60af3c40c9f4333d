package sioclient

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	eiop "github.com/njones/sioclient/engineio/protocol"
	eiot "github.com/njones/sioclient/engineio/transport"
	"github.com/stretchr/testify/assert"
	"go.uber.org/atomic"
)

const (
	testOpenV4 = `0{"sid":"eng-1","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`
	testOpenV3 = `0{"sid":"eng-3","upgrades":[],"pingInterval":30,"pingTimeout":1000}`
	testWait   = 2 * time.Second
)

// fakeServer plays the server side of every transport the client opens.
// serve gets the 1-based number of the connection.
type fakeServer struct {
	t       *testing.T
	opens   atomic.Int32
	openErr func(n int) error
	serve   func(n int, conn *fakeConn)

	mu    sync.Mutex
	conns []*fakeConn
}

func newFakeServer(t *testing.T, serve func(n int, conn *fakeConn)) *fakeServer {
	return &fakeServer{t: t, serve: serve}
}

func (s *fakeServer) factory(name eiot.Name, opts ...eiot.Option) eiot.Transporter {
	return &fakeTransport{server: s, name: name}
}

func (s *fakeServer) conn(i int) *fakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.conns) {
		return s.conns[i]
	}
	return nil
}

type fakeTransport struct {
	server *fakeServer
	name   eiot.Name
	conn   *fakeConn
}

func (tr *fakeTransport) Name() eiot.Name { return tr.name }

func (tr *fakeTransport) Open(ctx context.Context, u *url.URL, header http.Header) error {
	s := tr.server
	n := int(s.opens.Inc())
	if s.openErr != nil {
		if err := s.openErr(n); err != nil {
			return eiot.ErrTransportOpen.F(tr.name, err)
		}
	}

	tr.conn = &fakeConn{
		t:          s.t,
		url:        u,
		header:     header,
		toClient:   make(chan eiop.Frame, 256),
		fromClient: make(chan eiop.Frame, 256),
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	s.conns = append(s.conns, tr.conn)
	s.mu.Unlock()

	if s.serve != nil {
		go s.serve(n, tr.conn)
	}
	return nil
}

func (tr *fakeTransport) Send(ctx context.Context, frame eiop.Frame) error {
	if tr.conn.isClosed() {
		return eiot.ErrTransportClosed
	}
	tr.conn.fromClient <- frame
	return nil
}

func (tr *fakeTransport) Receive() <-chan eiop.Frame { return tr.conn.toClient }
func (tr *fakeTransport) Err() error                 { return eiot.ErrTransportClosed }

func (tr *fakeTransport) Close() error {
	tr.conn.byClient.Store(true)
	tr.conn.drop()
	return nil
}

type fakeConn struct {
	t      *testing.T
	url    *url.URL
	header http.Header

	toClient   chan eiop.Frame
	fromClient chan eiop.Frame

	mu       sync.Mutex
	closed   bool
	done     chan struct{}
	byClient atomic.Bool
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) push(frame eiop.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.toClient <- frame
	}
}

func (c *fakeConn) text(s string)   { c.push(eiop.TextFrame(s)) }
func (c *fakeConn) binary(b []byte) { c.push(eiop.BinaryFrame(b)) }

// drop ends the connection the way a broken network would.
func (c *fakeConn) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.toClient)
		close(c.done)
	}
}

// read returns the next frame from the client. It is false when the
// connection closed first.
func (c *fakeConn) read() (eiop.Frame, bool) {
	select {
	case f := <-c.fromClient:
		return f, true
	case <-c.done:
		select {
		case f := <-c.fromClient:
			return f, true
		default:
			return eiop.Frame{}, false
		}
	case <-time.After(testWait):
		c.t.Errorf("no frame from the client")
		return eiop.Frame{}, false
	}
}

func (c *fakeConn) expect(want string) bool {
	f, ok := c.read()
	if !ok {
		return false
	}
	return assert.Equal(c.t, want, f.String())
}

// handshake answers the EIO4 engine open and the root namespace connect.
func (c *fakeConn) handshake(sid string) bool {
	c.text(testOpenV4)
	if !c.expect("40") {
		return false
	}
	c.text(`40{"sid":"` + sid + `"}`)
	return true
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testWait):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func newTestClient(t *testing.T, server *fakeServer, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithTransportFactory(server.factory),
		WithReconnectionDelay(time.Millisecond),
		WithReconnectionDelayMax(5 * time.Millisecond),
	}, opts...)

	c, err := NewClient("http://example.test/", opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Disconnect(context.Background()) })
	return c
}
