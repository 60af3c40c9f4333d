package sioclient

import (
	"bytes"
	"context"
	"encoding/json"

	siop "github.com/njones/sioclient/protocol"
	seri "github.com/njones/sioclient/serialize"
)

// Response is an event or an acknowledgement received from the server.
type Response struct {
	msg  *siop.Message
	sess *session
}

// Event is the event name, empty for acknowledgements.
func (r *Response) Event() string { return r.msg.Event }

// String returns the arguments as the JSON array they arrived in, with any
// binary still in placeholder form.
func (r *Response) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, arg := range r.msg.Args {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(arg)
	}
	buf.WriteByte(']')
	return buf.String()
}

func (r *Response) Count() int { return len(r.msg.Args) }

// RawValue returns argument i as received.
func (r *Response) RawValue(i int) (json.RawMessage, error) {
	if i < 0 || i >= len(r.msg.Args) {
		return nil, seri.ErrArgOutOfRange.F(i, len(r.msg.Args))
	}
	return r.msg.Args[i], nil
}

// GetValue decodes argument i into v with the attachments put back in
// place. []byte fields receive the binary values.
func (r *Response) GetValue(i int, v interface{}) error {
	raw, err := r.RawValue(i)
	if err != nil {
		return err
	}
	return seri.Unmarshal(raw, r.msg.Bytes, v)
}

// Bytes returns the attachments of a binary event or acknowledgement.
func (r *Response) Bytes() [][]byte { return r.msg.Bytes }

// AckRequested reports whether the server waits for Callback.
func (r *Response) AckRequested() bool {
	return r.msg.HasAck && !r.msg.Type.IsAck()
}

// Callback answers a server event that asked for an acknowledgement.
func (r *Response) Callback(ctx context.Context, args ...interface{}) error {
	if !r.AckRequested() {
		return ErrNoAckRequested
	}
	msg, err := seri.SerializeAck(r.msg.Namespace, r.msg.AckID, args...)
	if err != nil {
		return err
	}
	return r.sess.send(ctx, msg)
}
