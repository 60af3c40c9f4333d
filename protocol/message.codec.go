package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Decode reads one text frame. Binary variants come back with empty
// Attachments sized to the declared count; the caller feeds them the binary
// frames that follow.
func Decode(frame []byte) (*Message, error) {
	if len(frame) == 0 {
		return nil, newDecodeError(frame, ErrUnknownType, "")
	}

	msg := &Message{Namespace: "/"}
	switch frame[0] {
	case '0':
		msg.Type, msg.Data = Opened, rawOrNil(frame[1:])
		return msg, nil
	case '2':
		msg.Type, msg.Data = Ping, rawOrNil(frame[1:])
		return msg, nil
	case '3':
		msg.Type, msg.Data = Pong, rawOrNil(frame[1:])
		return msg, nil
	case '4':
		if len(frame) < 2 || frame[1] < '0' || frame[1] > '6' {
			return nil, newDecodeError(frame, ErrUnknownType, string(frame[:min(len(frame), 2)]))
		}
		msg.Type = MessageType(40 + int(frame[1]-'0'))
	default:
		return nil, newDecodeError(frame, ErrUnknownType, string(frame[:1]))
	}

	rest := frame[2:]

	if msg.Type.IsBinary() {
		idx := bytes.IndexByte(rest, '-')
		if idx < 1 {
			return nil, newDecodeError(frame, ErrInvalidPayload, "missing attachment count")
		}
		n, err := strconv.Atoi(string(rest[:idx]))
		if err != nil || n < 0 {
			return nil, newDecodeError(frame, ErrInvalidPayload, "bad attachment count")
		}
		if n > MaxAttachments {
			return nil, newDecodeError(frame, ErrInvalidPayload, "attachment count "+strconv.Itoa(n)+" over the limit")
		}
		msg.Attachments = NewAttachments(n)
		rest = rest[idx+1:]
	}

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			end = len(rest)
		}
		nsp := rest[:end]
		if q := bytes.IndexByte(nsp, '?'); q >= 0 {
			nsp = nsp[:q]
		}
		msg.Namespace = string(nsp)
		rest = rest[min(end+1, len(rest)):]
	}

	var digits int
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.ParseUint(string(rest[:digits]), 10, 64)
		if err != nil {
			return nil, newDecodeError(frame, ErrInvalidPayload, "bad ack id")
		}
		msg.AckID, msg.HasAck = id, true
		rest = rest[digits:]
	}

	switch msg.Type {
	case Connected, Error:
		msg.Data = rawOrNil(rest)
	case Disconnected:
	case Event, Binary:
		args, err := decodeArray(rest)
		if err != nil {
			return nil, newDecodeError(frame, ErrInvalidPayload, err.Error())
		}
		if len(args) == 0 || json.Unmarshal(args[0], &msg.Event) != nil {
			return nil, newDecodeError(frame, ErrInvalidPayload, "event name must be a string")
		}
		msg.Args = args[1:]
	case Ack, BinaryAck:
		if !msg.HasAck {
			return nil, newDecodeError(frame, ErrInvalidPayload, "ack without an id")
		}
		args, err := decodeArray(rest)
		if err != nil {
			return nil, newDecodeError(frame, ErrInvalidPayload, err.Error())
		}
		msg.Args = args
	}

	return msg, nil
}

func decodeArray(data []byte) ([]json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = []json.RawMessage{}
	}
	return args, nil
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

// Encode writes the text frame of m. Attachments are not part of it; they are
// sent as binary frames right after.
func Encode(m *Message) ([]byte, error) {
	if !m.Type.Valid() {
		return nil, ErrEncode.F(m.Type, ErrUnknownType.F(m.Type.String()))
	}

	var buf bytes.Buffer
	buf.WriteString(strconv.Itoa(int(m.Type)))

	switch m.Type {
	case Opened, Ping, Pong:
		buf.Write(m.Data)
		return buf.Bytes(), nil
	}

	if m.Type.IsBinary() {
		buf.WriteString(strconv.Itoa(m.BytesCount))
		buf.WriteByte('-')
	}
	if m.Namespace != "" && m.Namespace != "/" {
		buf.WriteString(m.Namespace)
		buf.WriteByte(',')
	}
	if m.HasAck || m.Type.IsAck() {
		buf.WriteString(strconv.FormatUint(m.AckID, 10))
	}

	switch m.Type {
	case Connected, Error:
		buf.Write(m.Data)
	case Event, Binary:
		name, err := MarshalNoEscape(m.Event)
		if err != nil {
			return nil, ErrEncode.F(m.Type, err)
		}
		writeArray(&buf, append([]json.RawMessage{name}, m.Args...))
	case Ack, BinaryAck:
		writeArray(&buf, m.Args)
	}

	return buf.Bytes(), nil
}

func writeArray(buf *bytes.Buffer, items []json.RawMessage) {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if len(item) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
}

// MarshalNoEscape marshals v without turning <, > and & into unicode escapes,
// matching what a JavaScript peer sends.
func MarshalNoEscape(v interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
