package transport

import (
	"context"
	"net/http"
	"net/url"

	eiop "github.com/njones/sioclient/engineio/protocol"
	ws "nhooyr.io/websocket"
)

// maxMessageSize lifts the 32KiB default read limit of the websocket library;
// attachments are routinely larger than that.
const maxMessageSize = 100 << 20

type WebsocketTransport struct {
	*Transport

	conn *ws.Conn
}

func NewWebsocketTransport(opts ...Option) *WebsocketTransport {
	return &WebsocketTransport{Transport: newTransport(WebSocket, opts...)}
}

// Open dials u. The ctx only bounds the dial, the connection itself lives until
// Close or until the server goes away.
func (t *WebsocketTransport) Open(ctx context.Context, u *url.URL, header http.Header) error {
	wsURL := *u
	switch wsURL.Scheme {
	case "http":
		wsURL.Scheme = "ws"
	case "https":
		wsURL.Scheme = "wss"
	}
	query := wsURL.Query()
	query.Set("transport", WebSocket.String())
	wsURL.RawQuery = query.Encode()

	stop := context.AfterFunc(ctx, t.cancel)
	conn, _, err := ws.Dial(t.ctx, wsURL.String(), &ws.DialOptions{
		HTTPClient: t.client,
		HTTPHeader: header,
	})
	if !stop() {
		if conn != nil {
			conn.Close(ws.StatusNormalClosure, "")
		}
		err = ctx.Err()
	}
	if err != nil {
		t.shutdown(nil)
		return ErrTransportOpen.F(t.name, err)
	}

	conn.SetReadLimit(maxMessageSize)
	t.conn = conn
	t.run(t.read)

	return nil
}

func (t *WebsocketTransport) read(ctx context.Context) error {
	for {
		mt, data, err := t.conn.Read(ctx)
		if err != nil {
			if ws.CloseStatus(err) == ws.StatusNormalClosure {
				return nil
			}
			return err
		}

		frame := eiop.Frame{Binary: mt == ws.MessageBinary, Data: data}
		if frame.Binary {
			// EIO3 prefixes binary messages with the message packet type
			if t.version == eiop.V3 && len(data) > 0 && data[0] == byte(eiop.MessagePacket) {
				frame.Data = data[1:]
			}
		} else {
			switch pt, _ := frame.Type(); pt {
			case eiop.ClosePacket:
				return nil
			case eiop.NoopPacket:
				continue
			}
		}

		if err := t.deliver(ctx, frame); err != nil {
			return err
		}
	}
}

func (t *WebsocketTransport) Send(ctx context.Context, frame eiop.Frame) error {
	if t.conn == nil || t.closed.Load() {
		return ErrTransportClosed
	}

	typ, data := ws.MessageText, frame.Data
	if frame.Binary {
		typ = ws.MessageBinary
		if t.version == eiop.V3 {
			data = append([]byte{byte(eiop.MessagePacket)}, data...)
		}
	}

	if err := t.conn.Write(ctx, typ, data); err != nil {
		return ErrTransportSend.F(t.name, err)
	}
	return nil
}

func (t *WebsocketTransport) Close() error {
	t.shutdown(func() {
		if t.conn != nil {
			t.conn.Close(ws.StatusNormalClosure, "")
		}
	})
	return nil
}
