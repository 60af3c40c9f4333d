package sioclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/njones/sioclient/internal/backoff"
)

// loop is one run of connection attempts, either inside Connect or in the
// background after a lost connection. Only the loop in Client.loop may
// install a session; a replaced or cancelled loop fails at install.
type loop struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// startLoop must be called with mu held.
func (c *Client) startLoop(parent context.Context, state State) *loop {
	if c.loop != nil {
		c.loop.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	l := &loop{ctx: ctx, cancel: cancel}
	c.loop, c.state = l, state
	return l
}

func (c *Client) endLoop(l *loop) {
	l.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loop != l {
		return
	}
	c.loop = nil
	if c.state == Opening || c.state == Reconnecting {
		c.state = Disconnected
	}
}

func (c *Client) setState(l *loop, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loop == l {
		c.state = state
	}
}

// connect makes the first attempt of Connect and hands over to retry when it
// fails. The first failure is reported through OnReconnectError as well.
func (c *Client) connect(l *loop) (int, error) {
	s, err := c.attempt(l.ctx)
	if err == nil {
		if err = c.install(l, s); err != nil {
			return 1, ErrConnectionFailed.F(1, err)
		}
		return 1, nil
	}
	if l.ctx.Err() != nil {
		return 1, ErrConnectionFailed.F(1, err)
	}

	c.log.Warnw("connect failed", "error", err)
	c.observe.fireReconnectError(err)

	if !c.opts.Reconnection {
		c.giveUp(1)
		return 1, ErrConnectionFailed.F(1, err)
	}

	c.setState(l, Reconnecting)
	return c.retry(l, 1, err)
}

// reconnect runs in the background after a lost connection.
func (c *Client) reconnect(l *loop, cause error) {
	defer c.endLoop(l)

	if cause == nil {
		cause = ErrNotConnected
	}
	if _, err := c.retry(l, 0, cause); err != nil {
		c.log.Debugw("reconnect stopped", "error", err)
	}
}

// retry makes up to ReconnectionAttempts attempts, waiting the backoff delay
// before each one. made counts the attempts already behind it.
func (c *Client) retry(l *loop, made int, lastErr error) (int, error) {
	bo := backoff.New(c.opts.ReconnectionDelay, c.opts.ReconnectionDelayMax, c.opts.RandomizationFactor)

	for n := 0; n < c.opts.ReconnectionAttempts; n++ {
		c.metrics.reconnectAttempts.Inc()
		c.observe.fireReconnectAttempt(n)

		delay := bo.Duration()
		c.log.Infow("reconnecting", "attempt", n, "delay", delay)
		if err := sleep(l.ctx, delay); err != nil {
			return made, ErrConnectionFailed.F(made, err)
		}

		made++
		s, err := c.attempt(l.ctx)
		if err == nil {
			if err = c.install(l, s); err != nil {
				return made, ErrConnectionFailed.F(made, err)
			}
			c.observe.fireReconnected(n + 1)
			return made, nil
		}
		if l.ctx.Err() != nil {
			return made, ErrConnectionFailed.F(made, err)
		}

		c.log.Warnw("reconnect failed", "attempt", n, "error", err)
		c.observe.fireReconnectError(err)
		lastErr = err
	}

	c.giveUp(made)
	return made, ErrConnectionFailed.F(made, lastErr)
}

func (c *Client) giveUp(made int) {
	c.metrics.reconnectFailures.Inc()
	c.log.Errorw("giving up", "attempts", made)
	c.observe.fireReconnectFailed()
}

// attempt opens a transport and runs the handshake within ConnectionTimeout.
func (c *Client) attempt(ctx context.Context) (*session, error) {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if c.opts.ConnectionTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, c.opts.ConnectionTimeout)
	}
	defer cancel()

	s, err := c.dial(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		err = ErrConnectTimeout.F(c.opts.ConnectionTimeout)
	}
	return s, err
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	u, err := c.endpoint.URL(c.opts.Path, c.opts.EIO, c.opts.Query)
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(c.opts.ExtraHeaders))
	for k, v := range c.opts.ExtraHeaders {
		header.Set(k, v)
	}

	tr := c.newTransport(c.opts.Transport, c.transportOptions()...)
	c.log.Debugw("opening transport", "url", u.String(), "transport", tr.Name())
	if err := tr.Open(ctx, u, header); err != nil {
		return nil, err
	}

	s := newSession(c, tr)
	if err := s.open(ctx); err != nil {
		s.ended.Store(true)
		s.close()
		return nil, err
	}
	return s, nil
}

// install makes s the live session, unless l was cancelled or replaced.
func (c *Client) install(l *loop, s *session) error {
	c.mu.Lock()
	err := l.ctx.Err()
	if err == nil && c.loop != l {
		err = context.Canceled
	}
	if err != nil {
		c.mu.Unlock()
		s.ended.Store(true)
		s.close()
		return err
	}
	c.sess, c.id, c.state = s, s.id, Connected
	s.start()
	c.mu.Unlock()

	c.metrics.connects.Inc()
	c.log.Infow("connected", "id", s.id, "transport", s.tr.Name())
	c.observe.fireConnected()
	return nil
}

// lost handles a transport that closed or a heartbeat that expired.
func (c *Client) lost(s *session, reason DisconnectReason, cause error) {
	if !s.ended.CAS(false, true) {
		return
	}
	c.log.Warnw("connection lost", "reason", reason, "error", cause)
	c.end(s, reason, c.opts.Reconnection, cause)
}

func (c *Client) serverDisconnect(s *session) {
	if !s.ended.CAS(false, true) {
		return
	}
	c.end(s, IOServerDisconnect, false, nil)
}

// end tears down a session whose ended flag the caller set, reports the
// disconnect and starts reconnecting when retry is set and no Disconnect is
// under way.
func (c *Client) end(s *session, reason DisconnectReason, retry bool, cause error) {
	s.close()

	c.mu.Lock()
	if c.sess != s {
		c.mu.Unlock()
		return
	}
	retry = retry && c.state != Disconnecting
	c.sess, c.id, c.state = nil, "", Disconnected

	var l *loop
	if retry {
		l = c.startLoop(context.Background(), Reconnecting)
	}
	c.mu.Unlock()

	c.acks.failAll(ErrDisconnected)
	c.metrics.disconnects.WithLabelValues(reason.String()).Inc()
	c.log.Infow("disconnected", "reason", reason)
	c.observe.fireDisconnected(reason)

	if l != nil {
		go c.reconnect(l, cause)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
