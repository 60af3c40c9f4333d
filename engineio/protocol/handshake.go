package protocol

import (
	"encoding/json"
	"time"
)

// Handshake is the body of the open packet the server sends first on every
// new Engine.IO session.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval Duration `json:"pingInterval"`
	PingTimeout  Duration `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// ParseHandshake reads the JSON body of an open packet (without the leading '0').
func ParseHandshake(data []byte) (Handshake, error) {
	var h Handshake
	if len(data) == 0 {
		return h, ErrInvalidHandshake.F("empty")
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, ErrHandshakeDecode.F(err)
	}
	if h.SID == "" {
		return h, ErrInvalidHandshake.F("missing sid")
	}
	return h, nil
}

func (h Handshake) Interval() time.Duration { return h.PingInterval.Duration() }
func (h Handshake) Timeout() time.Duration  { return h.PingTimeout.Duration() }

// CanUpgrade reports whether the server lists name as an upgrade target.
func (h Handshake) CanUpgrade(name string) bool {
	for _, v := range h.Upgrades {
		if v == name {
			return true
		}
	}
	return false
}
