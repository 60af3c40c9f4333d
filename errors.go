package sioclient

import (
	erro "github.com/njones/sioclient/internal/errors"
)

const (
	ErrConnectionFailed erro.String = "connection failed after %d attempts: %w"
	ErrConnectTimeout   erro.String = "no handshake within %s"
	ErrProtocol         erro.String = "server refused namespace %q: %s"
	ErrNotConnected     erro.String = "not connected"
	ErrNoAckRequested   erro.String = "the server did not ask for an acknowledgement"
	ErrHandshake        erro.String = "handshake: %w"
	ErrUnexpectedPacket erro.String = "expected %s, got %s"
	ErrDisconnected     erro.String = "disconnected before the acknowledgement arrived"

	ErrInvalidOption erro.String = "invalid option %s: %v"
)
