package serialize

import (
	eiop "github.com/njones/sioclient/engineio/protocol"
	siop "github.com/njones/sioclient/protocol"
)

// JSON is the default socket.io parser: one text frame per message, then one
// binary frame per attachment.
type JSON struct{}

func NewJSON() JSON { return JSON{} }

func (JSON) Name() string { return "json" }

func (JSON) Encode(msg *siop.Message) ([]eiop.Frame, error) {
	if msg.Type.IsBinary() && len(msg.Bytes) != msg.BytesCount {
		return nil, ErrMissingBinary.F(msg.BytesCount, len(msg.Bytes))
	}

	text, err := siop.Encode(msg)
	if err != nil {
		return nil, err
	}

	frames := []eiop.Frame{{Data: text}}
	if msg.Type.IsBinary() {
		for _, b := range msg.Bytes {
			frames = append(frames, eiop.BinaryFrame(b))
		}
	}
	return frames, nil
}

func (JSON) NewDecoder() Decoder { return &jsonDecoder{} }

// jsonDecoder holds the one binary message whose attachments are still
// arriving. Other text frames pass through while it waits.
type jsonDecoder struct {
	pending *siop.Message
}

func (d *jsonDecoder) Decode(frame eiop.Frame) (*siop.Message, error) {
	if frame.Binary {
		if d.pending == nil {
			return nil, siop.NewDecodeError(nil, siop.ErrUnexpectedAttachment.F())
		}
		if err := d.pending.Add(frame.Data); err != nil {
			return nil, siop.NewDecodeError(nil, err)
		}
		if !d.pending.ReadyDelivery() {
			return nil, nil
		}
		msg := d.pending
		d.pending = nil
		return d.complete(msg)
	}

	msg, err := siop.Decode(frame.Data)
	if err != nil {
		return nil, err
	}
	if msg.ReadyDelivery() {
		return d.complete(msg)
	}

	// a new binary header while another one is unfinished drops the old one
	var dropped error
	if d.pending != nil {
		dropped = siop.NewDecodeError(nil, ErrMissingBinary.F(d.pending.BytesCount, len(d.pending.Bytes)))
	}
	d.pending = msg
	return nil, dropped
}

func (d *jsonDecoder) complete(msg *siop.Message) (*siop.Message, error) {
	if msg.Type.IsBinary() {
		if err := CheckPlaceholders(msg.Args, msg.BytesCount); err != nil {
			return nil, siop.NewDecodeError(nil, err)
		}
	}
	return msg, nil
}
