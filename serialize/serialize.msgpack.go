package serialize

import (
	"encoding/json"
	"fmt"

	eiop "github.com/njones/sioclient/engineio/protocol"
	siop "github.com/njones/sioclient/protocol"
	"github.com/vmihailenco/msgpack"
)

// MsgPack speaks the socket.io-msgpack-parser format: every socket.io message
// is a single binary frame holding a msgpack map, and binary values sit
// inline. Engine packets (open, ping, pong) stay text.
type MsgPack struct{}

func NewMsgPack() MsgPack { return MsgPack{} }

func (MsgPack) Name() string { return "msgpack" }

type msgpackPacket struct {
	Type int         `msgpack:"type"`
	Nsp  string      `msgpack:"nsp"`
	Data interface{} `msgpack:"data,omitempty"`
	ID   *uint64     `msgpack:"id,omitempty"`
}

// socket.io packet types without the engine prefix
const (
	mpConnect = iota
	mpDisconnect
	mpEvent
	mpAck
	mpConnectError
	mpBinaryEvent
	mpBinaryAck
)

func (MsgPack) Encode(msg *siop.Message) ([]eiop.Frame, error) {
	switch msg.Type {
	case siop.Opened, siop.Ping, siop.Pong:
		text, err := siop.Encode(msg)
		if err != nil {
			return nil, err
		}
		return []eiop.Frame{{Data: text}}, nil
	}

	p := msgpackPacket{Nsp: msg.Namespace}
	if p.Nsp == "" {
		p.Nsp = "/"
	}
	if msg.HasAck || msg.Type.IsAck() {
		id := msg.AckID
		p.ID = &id
	}

	var err error
	switch msg.Type {
	case siop.Connected, siop.Error:
		p.Type = mpConnect
		if msg.Type == siop.Error {
			p.Type = mpConnectError
		}
		if len(msg.Data) > 0 {
			p.Data, err = Reconstruct(msg.Data, nil)
		}
	case siop.Disconnected:
		p.Type = mpDisconnect
	case siop.Event, siop.Binary:
		p.Type = mpEvent
		var args []interface{}
		if args, err = reconstructArgs(msg); err == nil {
			p.Data = append([]interface{}{msg.Event}, args...)
		}
	case siop.Ack, siop.BinaryAck:
		p.Type = mpAck
		var args []interface{}
		if args, err = reconstructArgs(msg); err == nil {
			p.Data = args
		}
	default:
		err = siop.ErrUnknownType.F(msg.Type.String())
	}
	if err != nil {
		return nil, ErrMsgPackEncode.F(err)
	}

	p.Data = fromJSONNumbers(p.Data)
	b, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, ErrMsgPackEncode.F(err)
	}
	return []eiop.Frame{eiop.BinaryFrame(b)}, nil
}

func reconstructArgs(msg *siop.Message) ([]interface{}, error) {
	args := make([]interface{}, 0, len(msg.Args))
	for _, raw := range msg.Args {
		v, err := Reconstruct(raw, msg.Bytes)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func (MsgPack) NewDecoder() Decoder { return msgpackDecoder{} }

type msgpackDecoder struct{}

// Decode never waits: binary values arrive inline so every message is ready
// at once. Binary values are moved to Attachments like the JSON parser does,
// which keeps Response the same for both.
func (msgpackDecoder) Decode(frame eiop.Frame) (*siop.Message, error) {
	if !frame.Binary {
		return siop.Decode(frame.Data)
	}

	var p msgpackPacket
	if err := msgpack.Unmarshal(frame.Data, &p); err != nil {
		return nil, siop.NewDecodeError(nil, ErrMsgPackDecode.F(err))
	}

	msg := &siop.Message{Namespace: p.Nsp}
	if msg.Namespace == "" {
		msg.Namespace = "/"
	}
	if p.ID != nil {
		msg.AckID, msg.HasAck = *p.ID, true
	}

	data := normalize(p.Data)
	switch p.Type {
	case mpConnect, mpConnectError:
		msg.Type = siop.Connected
		if p.Type == mpConnectError {
			msg.Type = siop.Error
		}
		if data != nil {
			raw, err := json.Marshal(data)
			if err != nil {
				return nil, siop.NewDecodeError(nil, ErrMsgPackDecode.F(err))
			}
			msg.Data = raw
		}
	case mpDisconnect:
		msg.Type = siop.Disconnected
	case mpEvent, mpBinaryEvent:
		arr, _ := data.([]interface{})
		if len(arr) == 0 {
			return nil, siop.NewDecodeError(nil, siop.ErrInvalidPayload.F("event without a name"))
		}
		name, ok := arr[0].(string)
		if !ok {
			return nil, siop.NewDecodeError(nil, siop.ErrInvalidPayload.F("event name must be a string"))
		}
		msg.Type, msg.Event = siop.Event, name
		if err := setArgs(msg, arr[1:], siop.Binary); err != nil {
			return nil, err
		}
	case mpAck, mpBinaryAck:
		if !msg.HasAck {
			return nil, siop.NewDecodeError(nil, siop.ErrInvalidPayload.F("ack without an id"))
		}
		arr, _ := data.([]interface{})
		msg.Type = siop.Ack
		if err := setArgs(msg, arr, siop.BinaryAck); err != nil {
			return nil, err
		}
	default:
		return nil, siop.NewDecodeError(nil, ErrMsgPackType.F(p.Type))
	}
	return msg, nil
}

func setArgs(msg *siop.Message, args []interface{}, binaryType siop.MessageType) error {
	raw, bin, err := deconstructArgs(args)
	if err != nil {
		return siop.NewDecodeError(nil, siop.ErrInvalidPayload.F(err.Error()))
	}
	msg.Args = raw
	if len(bin) > 0 {
		msg.Type = binaryType
		msg.Attachments = siop.Attachments{BytesCount: len(bin), Bytes: bin}
	}
	return nil
}

// normalize turns the map[interface{}]interface{} values msgpack may hand
// back into map[string]interface{} so encoding/json can take them.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	}
	return v
}

// fromJSONNumbers swaps json.Number for int64 or float64, msgpack would
// otherwise write them as strings.
func fromJSONNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = fromJSONNumbers(item)
		}
	case []interface{}:
		for i, item := range val {
			val[i] = fromJSONNumbers(item)
		}
	}
	return v
}
