package protocol

import erro "github.com/njones/sioclient/internal/errors"

const (
	ErrInvalidHandshake erro.String = "invalid handshake data: %s"
	ErrHandshakeDecode  erro.String = "handshake decode: %w"
	ErrPayloadDecode    erro.String = "[%s] payload decode: %w"
	ErrPayloadEncode    erro.String = "[%s] payload encode: %w"
	ErrPayloadLength    erro.String = "[%s] payload length %q"
	ErrShortPayload     erro.String = "[%s] payload shorter than declared length"
)
