package transport

import (
	"net/http"

	eiop "github.com/njones/sioclient/engineio/protocol"
	"go.uber.org/zap"
)

type Option func(*Transport)

// WithVersion sets the Engine.IO revision. It changes the binary framing on
// websockets and the payload format on polling.
func WithVersion(v eiop.Version) Option {
	return func(t *Transport) { t.version = v }
}

// WithHTTPClient replaces http.DefaultClient for polling requests and the
// websocket handshake.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithBufferSize sets the capacity of the receive channel.
func WithBufferSize(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.chanBuf = n
		}
	}
}

// WithLogger reports frames the transport had to drop.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *Transport) {
		if log != nil {
			t.log = log
		}
	}
}
