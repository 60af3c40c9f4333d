// Package protocol provides the Engine.IO side of the wire format: packet types,
// protocol versions, the transport frame and the handshake carried by the open packet.
//
// Every Socket.IO message rides on top of an Engine.IO message packet, so a text
// frame on the wire always starts with one of the packet type characters below:
//
//	0{"sid":"lv_VI97HAXpY6yYWAAAC","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":20000}
//	2
//	3
//	42["chat message","hi"]
package protocol

import "strconv"

const (
	OpenPacket PacketType = iota
	ClosePacket
	PingPacket
	PongPacket
	MessagePacket
	UpgradePacket
	NoopPacket

	BinaryPacket PacketType = 255
)

// PacketType is the single leading character of an Engine.IO packet.
type PacketType byte

func (pt PacketType) Bytes() []byte {
	if pt == BinaryPacket {
		return []byte{'b'}
	}
	return []byte{byte(pt) + '0'}
}

func (pt PacketType) String() string {
	switch pt {
	case OpenPacket:
		return "open"
	case ClosePacket:
		return "close"
	case PingPacket:
		return "ping"
	case PongPacket:
		return "pong"
	case MessagePacket:
		return "message"
	case UpgradePacket:
		return "upgrade"
	case NoopPacket:
		return "noop"
	case BinaryPacket:
		return "binary message"
	}
	return "unknown packet type"
}

// TypeOf returns the packet type of a text frame. The bool is false when the
// frame is empty or the first character is not a known packet type.
func TypeOf(data []byte) (PacketType, bool) {
	if len(data) == 0 {
		return 0, false
	}
	if data[0] == 'b' {
		return BinaryPacket, true
	}
	pt := PacketType(data[0] - '0')
	if pt > NoopPacket {
		return 0, false
	}
	return pt, true
}

// Version is the Engine.IO protocol revision sent as the EIO query parameter.
type Version int

const (
	V3 Version = 3 // socket.io v2 servers
	V4 Version = 4 // socket.io v3 and v4 servers
)

func (v Version) String() string { return strconv.Itoa(int(v)) }

func (v Version) Valid() bool { return v == V3 || v == V4 }

// Frame is one unit of data moved by a transport. Text frames hold a complete
// Engine.IO packet (type character included); binary frames hold the raw bytes
// of one attachment or one MessagePack encoded message.
type Frame struct {
	Binary bool
	Data   []byte
}

func TextFrame(s string) Frame     { return Frame{Data: []byte(s)} }
func BinaryFrame(b []byte) Frame   { return Frame{Binary: true, Data: b} }
func (f Frame) String() string     { return string(f.Data) }
func (f Frame) Type() (PacketType, bool) {
	if f.Binary {
		return BinaryPacket, true
	}
	return TypeOf(f.Data)
}
