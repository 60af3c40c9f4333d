package protocol

import (
	"encoding/json"
	"strconv"

	eiop "github.com/njones/sioclient/engineio/protocol"
)

// MessageType is the numeric tag at the front of every frame. The engine
// level packets (open, ping, pong) are one digit, socket.io packets are the
// engine message type 4 followed by the socket.io type.
type MessageType int

const (
	Opened       MessageType = 0
	Ping         MessageType = 2
	Pong         MessageType = 3
	Connected    MessageType = 40
	Disconnected MessageType = 41
	Event        MessageType = 42
	Ack          MessageType = 43
	Error        MessageType = 44
	Binary       MessageType = 45
	BinaryAck    MessageType = 46
)

func (t MessageType) String() string {
	switch t {
	case Opened:
		return "opened"
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Event:
		return "event"
	case Ack:
		return "ack"
	case Error:
		return "error"
	case Binary:
		return "binary event"
	case BinaryAck:
		return "binary ack"
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

func (t MessageType) Valid() bool {
	switch t {
	case Opened, Ping, Pong, Connected, Disconnected, Event, Ack, Error, Binary, BinaryAck:
		return true
	}
	return false
}

// IsBinary reports whether the message is followed by attachment frames.
func (t MessageType) IsBinary() bool { return t == Binary || t == BinaryAck }

// IsAck reports whether the message answers an earlier call.
func (t MessageType) IsAck() bool { return t == Ack || t == BinaryAck }

// Attachments collects the binary frames that follow a Binary or BinaryAck
// text frame, in arrival order.
type Attachments struct {
	BytesCount int
	Bytes      [][]byte
}

// MaxAttachments caps the attachment count a decoded message may declare.
const MaxAttachments = 1 << 10

// NewAttachments expects n attachments. With n == 0 it is ready at once.
// Bytes grows as attachments arrive, n is not trusted for sizing.
func NewAttachments(n int) Attachments {
	return Attachments{BytesCount: n, Bytes: [][]byte{}}
}

// Add appends the next attachment. Attachments beyond BytesCount are rejected.
func (a *Attachments) Add(b []byte) error {
	if len(a.Bytes) >= a.BytesCount {
		return ErrTooManyAttachments.F(a.BytesCount)
	}
	a.Bytes = append(a.Bytes, b)
	return nil
}

// ReadyDelivery is true once every declared attachment has arrived. It is
// never true while Bytes is nil.
func (a Attachments) ReadyDelivery() bool {
	return a.Bytes != nil && len(a.Bytes) == a.BytesCount
}

// Message is one decoded (or to be encoded) socket.io packet.
//
// Args hold the raw JSON of each argument with any binary replaced by a
// placeholder object; Attachments hold the binary. Data is the raw payload
// of the variants that carry a single value: the handshake of Opened, the
// auth or sid object of Connected, the reason of Error, and the optional
// payload text of Ping and Pong.
type Message struct {
	Type      MessageType
	Namespace string

	// AckID is meaningful when HasAck is set. Ack and BinaryAck always carry
	// one; on Event and Binary it asks the other side for an answer.
	AckID  uint64
	HasAck bool

	Event string
	Args  []json.RawMessage
	Attachments

	Data json.RawMessage
}

// ReadyDelivery reports whether the message can be handed to a handler.
// Only the binary variants ever wait.
func (m *Message) ReadyDelivery() bool {
	if !m.Type.IsBinary() {
		return true
	}
	return m.Attachments.ReadyDelivery()
}

// Sid returns the socket id sent with a Connected message by EIO4 servers.
func (m *Message) Sid() string {
	var v struct {
		SID string `json:"sid"`
	}
	if len(m.Data) == 0 || json.Unmarshal(m.Data, &v) != nil {
		return ""
	}
	return v.SID
}

// ErrorMessage returns the reason carried by an Error message. EIO4 servers
// send {"message":"..."}, EIO3 servers send a bare JSON string; anything else
// is returned as is.
func (m *Message) ErrorMessage() string {
	if len(m.Data) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(m.Data, &s); err == nil {
		return s
	}

	var v struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(m.Data, &v); err == nil && v.Message != nil {
		return *v.Message
	}
	return string(m.Data)
}

// Handshake parses the Data of an Opened message.
func (m *Message) Handshake() (eiop.Handshake, error) {
	return eiop.ParseHandshake(m.Data)
}
