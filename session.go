package sioclient

import (
	"context"
	"encoding/json"
	"sync"

	eio "github.com/njones/sioclient/engineio"
	eiop "github.com/njones/sioclient/engineio/protocol"
	eiot "github.com/njones/sioclient/engineio/transport"
	siop "github.com/njones/sioclient/protocol"
	seri "github.com/njones/sioclient/serialize"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// session is one connected transport: the engine handshake, the namespace
// id, the heartbeat and the reader. A lost session is never reused, a
// reconnection builds a new one.
type session struct {
	client *Client
	log    *zap.SugaredLogger

	tr        eiot.Transporter
	ser       seri.Serializer
	dec       seri.Decoder
	handshake eiop.Handshake
	id        string

	hb    *eio.Heartbeat
	queue *queue

	sendMu sync.Mutex

	ended    atomic.Bool
	dead     chan struct{}
	deadOnce sync.Once
}

func newSession(c *Client, tr eiot.Transporter) *session {
	return &session{
		client: c,
		log:    c.log.With("transport", tr.Name()),
		tr:     tr,
		ser:    c.opts.Serializer,
		dec:    c.opts.Serializer.NewDecoder(),
		dead:   make(chan struct{}),
	}
}

func (s *session) send(ctx context.Context, msg *siop.Message) error {
	if s.ended.Load() {
		return ErrNotConnected
	}
	return s.write(ctx, msg)
}

// write sends msg even on an ended session, for the last words of Disconnect.
func (s *session) write(ctx context.Context, msg *siop.Message) error {
	frames, err := s.ser.Encode(msg)
	if err != nil {
		return err
	}

	// the frames of one binary message must not interleave with another
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	for _, frame := range frames {
		if err := s.tr.Send(ctx, frame); err != nil {
			return err
		}
		s.client.metrics.frames.WithLabelValues("out", frameKind(frame.Binary)).Inc()
	}
	return nil
}

// next returns the next complete message, skipping frames that cannot be
// decoded and frames that only add to a pending binary message.
func (s *session) next(ctx context.Context) (*siop.Message, error) {
	for {
		select {
		case frame, ok := <-s.tr.Receive():
			if !ok {
				return nil, s.tr.Err()
			}
			if msg := s.decode(frame); msg != nil {
				return msg, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *session) decode(frame eiop.Frame) *siop.Message {
	s.client.metrics.frames.WithLabelValues("in", frameKind(frame.Binary)).Inc()

	msg, err := s.dec.Decode(frame)
	if err != nil {
		s.client.metrics.decodeErrors.Inc()
		s.log.Warnw("dropped frame", "error", err)
	}
	return msg
}

// open runs the engine and namespace handshake.
func (s *session) open(ctx context.Context) error {
	c := s.client
	ns := c.endpoint.Namespace

	msg, err := s.next(ctx)
	if err != nil {
		return err
	}
	if msg.Type != siop.Opened {
		return ErrUnexpectedPacket.F(siop.Opened, msg.Type)
	}
	if s.handshake, err = msg.Handshake(); err != nil {
		return ErrHandshake.F(err)
	}
	s.log.Debugw("engine open", "sid", s.handshake.SID,
		"pingInterval", s.handshake.Interval(), "pingTimeout", s.handshake.Timeout())

	// EIO3 servers join the root namespace on their own
	if c.opts.EIO == eiop.V4 || ns != "/" {
		connect := &siop.Message{Type: siop.Connected, Namespace: ns}
		if c.opts.EIO == eiop.V4 && c.opts.Auth != nil {
			if connect.Data, err = json.Marshal(c.opts.Auth); err != nil {
				return ErrHandshake.F(err)
			}
		}
		if err := s.send(ctx, connect); err != nil {
			return err
		}
	}

	for {
		msg, err := s.next(ctx)
		if err != nil {
			return err
		}

		switch msg.Type {
		case siop.Ping:
			if err := s.pong(ctx, msg); err != nil {
				return err
			}
			continue
		case siop.Pong, siop.Opened:
			continue
		}
		if msg.Namespace != ns {
			continue
		}

		switch msg.Type {
		case siop.Connected:
			s.id = s.handshake.SID
			if sid := msg.Sid(); sid != "" {
				s.id = sid
			}
			return nil
		case siop.Error:
			reason := msg.ErrorMessage()
			c.observe.fireError(reason)
			return ErrProtocol.F(ns, reason)
		case siop.Disconnected:
			return ErrUnexpectedPacket.F(siop.Connected, msg.Type)
		default:
			s.log.Debugw("message before connect", "type", msg.Type)
		}
	}
}

// start arms the heartbeat and the reader of a session that finished its
// handshake.
func (s *session) start() {
	s.queue = newQueue(s.log)
	s.hb = eio.NewHeartbeat(eio.ModeFor(s.client.opts.EIO),
		s.handshake.Interval(), s.handshake.Timeout(),
		eio.HeartbeatHooks{SendPing: s.ping, Dead: s.markDead})
	s.hb.Arm()

	go s.read()
}

func (s *session) read() {
	c := s.client
	for {
		select {
		case frame, ok := <-s.tr.Receive():
			if !ok {
				c.lost(s, TransportClose, s.tr.Err())
				return
			}
			if msg := s.decode(frame); msg != nil {
				s.handle(msg)
			}
			if s.ended.Load() {
				return
			}
		case <-s.dead:
			c.lost(s, PingTimeout, nil)
			return
		}
	}
}

func (s *session) handle(msg *siop.Message) {
	c := s.client

	switch msg.Type {
	case siop.Ping:
		s.hb.Ping()
		if err := s.pong(context.Background(), msg); err != nil {
			s.log.Warnw("pong failed", "error", err)
		}
		return
	case siop.Pong:
		s.hb.Pong()
		c.observe.firePong()
		return
	case siop.Opened:
		return
	}

	if msg.Namespace != c.endpoint.Namespace {
		s.log.Debugw("ignored message for another namespace", "namespace", msg.Namespace)
		return
	}

	switch msg.Type {
	case siop.Event, siop.Binary:
		res := &Response{msg: msg, sess: s}
		s.queue.push(func() { c.handlers.dispatch(msg.Event, res) })
	case siop.Ack, siop.BinaryAck:
		p := c.acks.take(msg.AckID)
		if p == nil {
			s.log.Debugw("acknowledgement without a caller", "id", msg.AckID)
			return
		}
		res := &Response{msg: msg, sess: s}
		if p.done != nil {
			p.done <- ackResult{res: res}
			return
		}
		s.queue.push(func() { p.fn(res) })
	case siop.Disconnected:
		c.serverDisconnect(s)
	case siop.Error:
		c.observe.fireError(msg.ErrorMessage())
	}
}

// pong answers a server ping, echoing its payload.
func (s *session) pong(ctx context.Context, ping *siop.Message) error {
	s.client.observe.firePing()
	if err := s.send(ctx, &siop.Message{Type: siop.Pong, Data: ping.Data}); err != nil {
		return err
	}
	s.client.observe.firePong()
	return nil
}

// ping is the client driven heartbeat tick.
func (s *session) ping() {
	if err := s.send(context.Background(), &siop.Message{Type: siop.Ping}); err != nil {
		s.log.Warnw("ping failed", "error", err)
		return
	}
	s.client.observe.firePing()
}

func (s *session) markDead() {
	s.deadOnce.Do(func() { close(s.dead) })
}

// close stops everything the session started. The caller must have won
// ended.
func (s *session) close() {
	if s.hb != nil {
		s.hb.Stop()
	}
	if s.queue != nil {
		s.queue.close()
	}
	if err := s.tr.Close(); err != nil {
		s.log.Debugw("transport close", "error", err)
	}
}
