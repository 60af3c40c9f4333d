package sioclient

import (
	"math"
	"net/http"
	"time"

	eio "github.com/njones/sioclient/engineio"
	eiop "github.com/njones/sioclient/engineio/protocol"
	eiot "github.com/njones/sioclient/engineio/transport"
	seri "github.com/njones/sioclient/serialize"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options are the connection settings a client was built with.
type Options struct {
	EIO       eiop.Version
	Transport eiot.Name
	// AutoUpgrade is kept for parity with other clients. The client stays on
	// the transport it opened with.
	AutoUpgrade bool

	Reconnection         bool
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	ReconnectionDelayMax time.Duration
	RandomizationFactor  float64

	// ConnectionTimeout bounds one attempt: transport open plus handshake.
	ConnectionTimeout time.Duration

	Query        map[string]string
	ExtraHeaders map[string]string
	// Auth is sent with the namespace connect packet. EIO3 servers have no
	// place for it and it is ignored there.
	Auth interface{}

	Path       string
	Serializer seri.Serializer
}

func defaultOptions() Options {
	return Options{
		EIO:                  eiop.V4,
		Transport:            eiot.WebSocket,
		Reconnection:         true,
		ReconnectionAttempts: math.MaxInt32,
		ReconnectionDelay:    time.Second,
		ReconnectionDelayMax: 5 * time.Second,
		RandomizationFactor:  0.5,
		ConnectionTimeout:    20 * time.Second,
		Path:                 eio.DefaultPath,
		Serializer:           seri.NewJSON(),
	}
}

func (o Options) validate() error {
	switch {
	case !o.EIO.Valid():
		return ErrInvalidOption.F("EIO", o.EIO)
	case o.Transport != eiot.WebSocket && o.Transport != eiot.Polling:
		return ErrInvalidOption.F("Transport", o.Transport)
	case o.ReconnectionAttempts < 0:
		return ErrInvalidOption.F("ReconnectionAttempts", o.ReconnectionAttempts)
	case o.ReconnectionDelay < 0:
		return ErrInvalidOption.F("ReconnectionDelay", o.ReconnectionDelay)
	case o.ReconnectionDelayMax < 0:
		return ErrInvalidOption.F("ReconnectionDelayMax", o.ReconnectionDelayMax)
	case o.RandomizationFactor < 0 || o.RandomizationFactor > 1:
		return ErrInvalidOption.F("RandomizationFactor", o.RandomizationFactor)
	case o.ConnectionTimeout < 0:
		return ErrInvalidOption.F("ConnectionTimeout", o.ConnectionTimeout)
	case o.Serializer == nil:
		return ErrInvalidOption.F("Serializer", nil)
	}
	return nil
}

// TransportFactory builds a fresh transport for each connection attempt.
type TransportFactory func(name eiot.Name, opts ...eiot.Option) eiot.Transporter

func defaultTransportFactory(name eiot.Name, opts ...eiot.Option) eiot.Transporter {
	if name == eiot.Polling {
		return eiot.NewPollingTransport(opts...)
	}
	return eiot.NewWebsocketTransport(opts...)
}

type Option func(*Client)

func WithEIO(v eiop.Version) Option { return func(c *Client) { c.opts.EIO = v } }

func WithTransport(name eiot.Name) Option { return func(c *Client) { c.opts.Transport = name } }

func WithAutoUpgrade(on bool) Option { return func(c *Client) { c.opts.AutoUpgrade = on } }

func WithReconnection(on bool) Option { return func(c *Client) { c.opts.Reconnection = on } }

func WithReconnectionAttempts(n int) Option {
	return func(c *Client) { c.opts.ReconnectionAttempts = n }
}

func WithReconnectionDelay(d time.Duration) Option {
	return func(c *Client) { c.opts.ReconnectionDelay = d }
}

func WithReconnectionDelayMax(d time.Duration) Option {
	return func(c *Client) { c.opts.ReconnectionDelayMax = d }
}

func WithRandomizationFactor(f float64) Option {
	return func(c *Client) { c.opts.RandomizationFactor = f }
}

func WithConnectionTimeout(d time.Duration) Option {
	return func(c *Client) { c.opts.ConnectionTimeout = d }
}

// WithQuery adds query parameters to the engine URL. Later calls add to
// earlier ones.
func WithQuery(query map[string]string) Option {
	return func(c *Client) {
		if c.opts.Query == nil {
			c.opts.Query = make(map[string]string, len(query))
		}
		for k, v := range query {
			c.opts.Query[k] = v
		}
	}
}

func WithExtraHeaders(headers map[string]string) Option {
	return func(c *Client) {
		if c.opts.ExtraHeaders == nil {
			c.opts.ExtraHeaders = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			c.opts.ExtraHeaders[k] = v
		}
	}
}

func WithAuth(auth interface{}) Option { return func(c *Client) { c.opts.Auth = auth } }

func WithPath(path string) Option { return func(c *Client) { c.opts.Path = path } }

func WithSerializer(s seri.Serializer) Option { return func(c *Client) { c.opts.Serializer = s } }

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log.Sugar()
		}
	}
}

// WithMetrics registers the client collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.registerer = reg }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

func WithTransportFactory(fn TransportFactory) Option {
	return func(c *Client) {
		if fn != nil {
			c.newTransport = fn
		}
	}
}
