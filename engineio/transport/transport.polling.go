package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	eiop "github.com/njones/sioclient/engineio/protocol"
)

const closeTimeout = 5 * time.Second

type PollingTransport struct {
	*Transport

	url    *url.URL
	header http.Header

	sendMu sync.Mutex
}

func NewPollingTransport(opts ...Option) *PollingTransport {
	return &PollingTransport{Transport: newTransport(Polling, opts...)}
}

// Open performs the handshake request and starts long polling. The open
// packet and anything sent with it are delivered on Receive like any other
// frame.
func (t *PollingTransport) Open(ctx context.Context, u *url.URL, header http.Header) error {
	pollURL := *u
	switch pollURL.Scheme {
	case "ws":
		pollURL.Scheme = "http"
	case "wss":
		pollURL.Scheme = "https"
	}
	query := pollURL.Query()
	query.Set("transport", Polling.String())
	if t.version == eiop.V3 {
		query.Set("b64", "1")
	}
	pollURL.RawQuery = query.Encode()

	t.url, t.header = &pollURL, header.Clone()

	pay, err := t.get(ctx)
	if err != nil {
		t.shutdown(nil)
		return ErrTransportOpen.F(t.name, err)
	}

	if len(pay) == 0 || pay[0].Binary || len(pay[0].Data) == 0 || pay[0].Data[0] != '0' {
		var first string
		if len(pay) > 0 {
			first = pay[0].String()
		}
		t.shutdown(nil)
		return ErrTransportOpen.F(t.name, ErrNoOpenPacket.F(first))
	}

	handshake, err := eiop.ParseHandshake(pay[0].Data[1:])
	if err != nil {
		t.shutdown(nil)
		return ErrTransportOpen.F(t.name, err)
	}

	query.Set("sid", handshake.SID)
	t.url.RawQuery = query.Encode()

	t.run(func(ctx context.Context) error {
		if closed, err := t.dispatch(ctx, pay); closed || err != nil {
			return err
		}
		return t.poll(ctx)
	})

	return nil
}

func (t *PollingTransport) poll(ctx context.Context) error {
	for {
		pay, err := t.get(ctx)
		if err != nil {
			return err
		}
		if closed, err := t.dispatch(ctx, pay); closed || err != nil {
			return err
		}
	}
}

// dispatch hands frames to the receiver. It reports closed when the server
// ended the session with a close packet.
func (t *PollingTransport) dispatch(ctx context.Context, pay eiop.Payload) (closed bool, err error) {
	for _, frame := range pay {
		switch pt, _ := frame.Type(); {
		case frame.Binary:
		case pt == eiop.ClosePacket:
			return true, nil
		case pt == eiop.NoopPacket:
			continue
		}
		if err := t.deliver(ctx, frame); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (t *PollingTransport) get(ctx context.Context) (eiop.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url.String(), nil)
	if err != nil {
		return nil, err
	}
	t.setHeader(req)
	// asking explicitly turns off the transparent decoding in net/http
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrBadStatus.F(resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	// a malformed record loses that record, not the connection
	pay, err := eiop.DecodePayload(t.version, data)
	if err != nil {
		t.log.Warnw("dropped polling records", "error", err, "kept", len(pay))
	}
	return pay, nil
}

func (t *PollingTransport) post(ctx context.Context, pay eiop.Payload) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	body := eiop.EncodePayload(t.version, pay)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	t.setHeader(req)
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return ErrBadStatus.F(resp.StatusCode)
	}
	return nil
}

func (t *PollingTransport) setHeader(req *http.Request) {
	for k, v := range t.header {
		req.Header[k] = v
	}
}

func (t *PollingTransport) Send(ctx context.Context, frame eiop.Frame) error {
	if !t.started.Load() || t.closed.Load() {
		return ErrTransportClosed
	}
	if err := t.post(ctx, eiop.Payload{frame}); err != nil {
		return ErrTransportSend.F(t.name, err)
	}
	return nil
}

// Close tells the server the session is over, then stops polling.
func (t *PollingTransport) Close() error {
	t.shutdown(func() {
		if !t.started.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		t.post(ctx, eiop.Payload{{Data: eiop.ClosePacket.Bytes()}})
	})
	return nil
}
