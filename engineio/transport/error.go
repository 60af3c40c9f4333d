package transport

import erro "github.com/njones/sioclient/internal/errors"

const (
	ErrTransport       erro.String = "[%s] transport: %w"
	ErrTransportOpen   erro.String = "[%s] transport open: %w"
	ErrTransportSend   erro.String = "[%s] transport send: %w"
	ErrTransportClosed erro.String = "transport closed"
	ErrBadStatus       erro.String = "unexpected http status %d"
	ErrNoOpenPacket    erro.String = "expected an open packet, got %q"
)
