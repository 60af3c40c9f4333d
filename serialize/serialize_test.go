package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	eiop "github.com/njones/sioclient/engineio/protocol"
	siop "github.com/njones/sioclient/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExampleSerializeCall() {
	msg, _ := SerializeCall("/", "upload", map[string]interface{}{
		"name": "a.png",
		"file": []byte{0x89, 0x50},
	}, "done")

	frames, _ := NewJSON().Encode(msg)
	for _, frame := range frames {
		if frame.Binary {
			fmt.Printf("binary % x\n", frame.Data)
			continue
		}
		fmt.Println(frame)
	}

	// Output:
	// 451-["upload",{"file":{"_placeholder":true,"num":0},"name":"a.png"},"done"]
	// binary 89 50
}

type Upload struct {
	Name    string `json:"name"`
	File    []byte `json:"file"`
	Skip    string `json:"-"`
	Empty   string `json:"empty,omitempty"`
	private int
}

type thumbs struct {
	Upload
	Thumbs [][]byte `json:"thumbs"`
}

type attachment struct {
	Name  string    `json:"name"`
	File  io.Reader `json:"file"`
	Thumb []byte    `json:"thumb,omitempty"`
}

func TestSerializeCall(t *testing.T) {
	tests := map[string]struct {
		args      []interface{}
		wantType  siop.MessageType
		wantText  string
		wantBytes [][]byte
	}{
		"no binary": {
			args:     []interface{}{"a", 1, map[string]int{"b": 2}, nil},
			wantType: siop.Event,
			wantText: `42["ev","a",1,{"b":2},null]`,
		},
		"no args": {
			wantType: siop.Event,
			wantText: `42["ev"]`,
		},
		"html is not escaped": {
			args:     []interface{}{"<b>&</b>"},
			wantType: siop.Event,
			wantText: `42["ev","<b>&</b>"]`,
		},
		"raw json": {
			args:     []interface{}{json.RawMessage(`{"x":[1,2]}`)},
			wantType: siop.Event,
			wantText: `42["ev",{"x":[1,2]}]`,
		},
		"top level bytes": {
			args:      []interface{}{[]byte{1}, "x", []byte{2}},
			wantType:  siop.Binary,
			wantText:  `452-["ev",{"_placeholder":true,"num":0},"x",{"_placeholder":true,"num":1}]`,
			wantBytes: [][]byte{{1}, {2}},
		},
		"reader": {
			args:      []interface{}{strings.NewReader("hi")},
			wantType:  siop.Binary,
			wantText:  `451-["ev",{"_placeholder":true,"num":0}]`,
			wantBytes: [][]byte{[]byte("hi")},
		},
		"depth first": {
			args: []interface{}{
				[]interface{}{[]byte{1}, map[string]interface{}{"a": []byte{2}, "b": []interface{}{[]byte{3}}}},
				&bytes.Buffer{},
			},
			wantType:  siop.Binary,
			wantText:  `454-["ev",[{"_placeholder":true,"num":0},{"a":{"_placeholder":true,"num":1},"b":[{"_placeholder":true,"num":2}]}],{"_placeholder":true,"num":3}]`,
			wantBytes: [][]byte{{1}, {2}, {3}, {}},
		},
		"struct with tags": {
			args:      []interface{}{Upload{Name: "a", File: []byte{9}, Skip: "no", private: 1}},
			wantType:  siop.Binary,
			wantText:  `451-["ev",{"name":"a","file":{"_placeholder":true,"num":0}}]`,
			wantBytes: [][]byte{{9}},
		},
		"embedded struct": {
			args:      []interface{}{&thumbs{Upload: Upload{Name: "a", File: []byte{1}}, Thumbs: [][]byte{{2}, {3}}}},
			wantType:  siop.Binary,
			wantText:  `453-["ev",{"name":"a","file":{"_placeholder":true,"num":0},"thumbs":[{"_placeholder":true,"num":1},{"_placeholder":true,"num":2}]}]`,
			wantBytes: [][]byte{{1}, {2}, {3}},
		},
		"nil bytes": {
			args:     []interface{}{[]byte(nil)},
			wantType: siop.Event,
			wantText: `42["ev",null]`,
		},
		"nil reader field": {
			args:     []interface{}{attachment{Name: "a"}},
			wantType: siop.Event,
			wantText: `42["ev",{"name":"a","file":null}]`,
		},
		"nil reader field beside binary": {
			args:      []interface{}{attachment{Name: "a", Thumb: []byte{7}}},
			wantType:  siop.Binary,
			wantText:  `451-["ev",{"name":"a","file":null,"thumb":{"_placeholder":true,"num":0}}]`,
			wantBytes: [][]byte{{7}},
		},
		"reader field": {
			args:      []interface{}{attachment{Name: "a", File: strings.NewReader("hi")}},
			wantType:  siop.Binary,
			wantText:  `451-["ev",{"name":"a","file":{"_placeholder":true,"num":0}}]`,
			wantBytes: [][]byte{[]byte("hi")},
		},
		"nil reader pointer": {
			args:     []interface{}{(*bytes.Buffer)(nil)},
			wantType: siop.Event,
			wantText: `42["ev",null]`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			msg, err := SerializeCall("/", "ev", test.args...)
			require.NoError(t, err)
			assert.Equal(t, test.wantType, msg.Type)
			assert.Equal(t, len(test.wantBytes), msg.BytesCount)
			if test.wantBytes != nil {
				assert.Equal(t, test.wantBytes, msg.Bytes)
			}
			assert.True(t, msg.ReadyDelivery())

			text, err := siop.Encode(msg)
			require.NoError(t, err)
			assert.Equal(t, test.wantText, string(text))
		})
	}
}

func TestSerializeAck(t *testing.T) {
	msg, err := SerializeAck("/admin", 5, "ok")
	require.NoError(t, err)
	text, _ := siop.Encode(msg)
	assert.Equal(t, `43/admin,5["ok"]`, string(text))

	msg, err = SerializeAck("/", 0, []byte{1, 2})
	require.NoError(t, err)
	text, _ = siop.Encode(msg)
	assert.Equal(t, siop.BinaryAck, msg.Type)
	assert.Equal(t, `461-0[{"_placeholder":true,"num":0}]`, string(text))
}

func TestReconstruct(t *testing.T) {
	bin := [][]byte{{1}, {2}}

	have, err := Reconstruct(json.RawMessage(`{"a":{"_placeholder":true,"num":1},"b":[{"_placeholder":true,"num":0},3]}`), bin)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a": []byte{2},
		"b": []interface{}{[]byte{1}, json.Number("3")},
	}, have)

	_, err = Reconstruct(json.RawMessage(`{"_placeholder":true,"num":2}`), bin)
	assert.ErrorIs(t, err, siop.ErrPlaceholderOutOfRange)

	_, err = Reconstruct(json.RawMessage(`{`), bin)
	assert.ErrorIs(t, err, siop.ErrInvalidPayload)

	// not a placeholder unless the flag is true
	have, err = Reconstruct(json.RawMessage(`{"_placeholder":false,"num":0}`), bin)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"_placeholder": false, "num": json.Number("0")}, have)
}

func TestUnmarshal(t *testing.T) {
	t.Run("struct with bytes", func(t *testing.T) {
		var have Upload
		err := Unmarshal(json.RawMessage(`{"name":"a","file":{"_placeholder":true,"num":0}}`), [][]byte{{7, 8}}, &have)
		require.NoError(t, err)
		assert.Equal(t, Upload{Name: "a", File: []byte{7, 8}}, have)
	})

	t.Run("bytes", func(t *testing.T) {
		var have []byte
		require.NoError(t, Unmarshal(json.RawMessage(`{"_placeholder":true,"num":0}`), [][]byte{{7}}, &have))
		assert.Equal(t, []byte{7}, have)
	})

	t.Run("plain", func(t *testing.T) {
		var have int
		require.NoError(t, Unmarshal(json.RawMessage(`42`), nil, &have))
		assert.Equal(t, 42, have)
	})

	t.Run("interface", func(t *testing.T) {
		var have interface{}
		require.NoError(t, Unmarshal(json.RawMessage(`[1,{"_placeholder":true,"num":0}]`), [][]byte{{7}}, &have))
		assert.Equal(t, []interface{}{json.Number("1"), []byte{7}}, have)
	})

	t.Run("out of range", func(t *testing.T) {
		var have []byte
		err := Unmarshal(json.RawMessage(`{"_placeholder":true,"num":1}`), [][]byte{{7}}, &have)
		assert.ErrorIs(t, err, siop.ErrPlaceholderOutOfRange)
	})
}

func decodeAll(t *testing.T, dec Decoder, frames ...eiop.Frame) (msgs []*siop.Message, errs []error) {
	for _, frame := range frames {
		msg, err := dec.Decode(frame)
		if err != nil {
			errs = append(errs, err)
		}
		if msg != nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs, errs
}

func TestJSONDecoder(t *testing.T) {
	t.Run("attachments in order", func(t *testing.T) {
		msgs, errs := decodeAll(t, NewJSON().NewDecoder(),
			eiop.TextFrame(`462-3[{"_placeholder":true,"num":1},{"_placeholder":true,"num":0}]`),
			eiop.BinaryFrame([]byte{0xa}),
			eiop.BinaryFrame([]byte{0xb}),
		)
		require.Empty(t, errs)
		require.Len(t, msgs, 1)
		assert.Equal(t, siop.BinaryAck, msgs[0].Type)
		assert.Equal(t, uint64(3), msgs[0].AckID)
		assert.Equal(t, [][]byte{{0xa}, {0xb}}, msgs[0].Bytes)

		v, err := Reconstruct(msgs[0].Args[0], msgs[0].Bytes)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xb}, v)
	})

	t.Run("text frames pass while waiting", func(t *testing.T) {
		msgs, errs := decodeAll(t, NewJSON().NewDecoder(),
			eiop.TextFrame(`451-["file",{"_placeholder":true,"num":0}]`),
			eiop.TextFrame(`2`),
			eiop.BinaryFrame([]byte{1}),
		)
		require.Empty(t, errs)
		require.Len(t, msgs, 2)
		assert.Equal(t, siop.Ping, msgs[0].Type)
		assert.Equal(t, siop.Binary, msgs[1].Type)
		assert.Equal(t, "file", msgs[1].Event)
	})

	t.Run("zero attachments", func(t *testing.T) {
		msgs, errs := decodeAll(t, NewJSON().NewDecoder(), eiop.TextFrame(`450-["ev"]`))
		require.Empty(t, errs)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].ReadyDelivery())
	})

	t.Run("stray attachment", func(t *testing.T) {
		msgs, errs := decodeAll(t, NewJSON().NewDecoder(), eiop.BinaryFrame([]byte{1}), eiop.TextFrame(`42["ev"]`))
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], siop.ErrUnexpectedAttachment)
		require.Len(t, msgs, 1)
		assert.Equal(t, "ev", msgs[0].Event)
	})

	t.Run("placeholder out of range", func(t *testing.T) {
		msgs, errs := decodeAll(t, NewJSON().NewDecoder(),
			eiop.TextFrame(`451-["file",{"_placeholder":true,"num":4}]`),
			eiop.BinaryFrame([]byte{1}),
		)
		assert.Empty(t, msgs)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], siop.ErrPlaceholderOutOfRange)
	})

	t.Run("unfinished message is replaced", func(t *testing.T) {
		msgs, errs := decodeAll(t, NewJSON().NewDecoder(),
			eiop.TextFrame(`452-["a",{"_placeholder":true,"num":0},{"_placeholder":true,"num":1}]`),
			eiop.BinaryFrame([]byte{1}),
			eiop.TextFrame(`451-["b",{"_placeholder":true,"num":0}]`),
			eiop.BinaryFrame([]byte{2}),
		)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], ErrMissingBinary)
		require.Len(t, msgs, 1)
		assert.Equal(t, "b", msgs[0].Event)
		assert.Equal(t, [][]byte{{2}}, msgs[0].Bytes)
	})

	t.Run("bad frame", func(t *testing.T) {
		_, errs := decodeAll(t, NewJSON().NewDecoder(), eiop.TextFrame(`49`))
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], siop.ErrUnknownType)
	})
}

func TestJSONEncodeMissingBinary(t *testing.T) {
	_, err := NewJSON().Encode(&siop.Message{Type: siop.Binary, Event: "a", Attachments: siop.Attachments{BytesCount: 2, Bytes: [][]byte{{1}}}})
	assert.ErrorIs(t, err, ErrMissingBinary)
}

func TestMsgPackRoundTrip(t *testing.T) {
	tests := map[string]func() *siop.Message{
		"event": func() *siop.Message {
			msg, _ := SerializeCall("/", "hi", "there", 1, 1.5, map[string]interface{}{"ok": true})
			return msg
		},
		"event with ack id and namespace": func() *siop.Message {
			msg, _ := SerializeCall("/admin", "hi")
			msg.AckID, msg.HasAck = 9, true
			return msg
		},
		"binary event": func() *siop.Message {
			msg, _ := SerializeCall("/", "file", map[string]interface{}{"data": []byte{1, 2, 3}})
			return msg
		},
		"ack": func() *siop.Message {
			msg, _ := SerializeAck("/", 0, "ok")
			return msg
		},
		"binary ack": func() *siop.Message {
			msg, _ := SerializeAck("/", 4, []byte{9})
			return msg
		},
		"connected": func() *siop.Message {
			return &siop.Message{Type: siop.Connected, Namespace: "/", Data: json.RawMessage(`{"sid":"abc"}`)}
		},
		"error": func() *siop.Message {
			return &siop.Message{Type: siop.Error, Namespace: "/", Data: json.RawMessage(`{"message":"nope"}`)}
		},
		"disconnected": func() *siop.Message {
			return &siop.Message{Type: siop.Disconnected, Namespace: "/"}
		},
	}

	for name, build := range tests {
		t.Run(name, func(t *testing.T) {
			want := build()

			frames, err := NewMsgPack().Encode(build())
			require.NoError(t, err)
			require.Len(t, frames, 1)
			assert.True(t, frames[0].Binary)

			have, err := NewMsgPack().NewDecoder().Decode(frames[0])
			require.NoError(t, err)
			assert.True(t, have.ReadyDelivery())

			assert.Equal(t, want.Type, have.Type)
			assert.Equal(t, want.Namespace, have.Namespace)
			assert.Equal(t, want.HasAck, have.HasAck)
			assert.Equal(t, want.AckID, have.AckID)
			assert.Equal(t, want.Event, have.Event)
			assert.Equal(t, want.BytesCount, have.BytesCount)
			if want.BytesCount > 0 {
				assert.Equal(t, want.Bytes, have.Bytes)
			}
			require.Len(t, have.Args, len(want.Args))
			for i := range want.Args {
				assert.JSONEq(t, string(want.Args[i]), string(have.Args[i]), "arg %d", i)
			}
			if want.Data != nil {
				assert.JSONEq(t, string(want.Data), string(have.Data))
			}
		})
	}
}

func TestMsgPackEngineFrames(t *testing.T) {
	frames, err := NewMsgPack().Encode(&siop.Message{Type: siop.Pong})
	require.NoError(t, err)
	assert.Equal(t, []eiop.Frame{eiop.TextFrame("3")}, frames)

	msg, err := NewMsgPack().NewDecoder().Decode(eiop.TextFrame("2"))
	require.NoError(t, err)
	assert.Equal(t, siop.Ping, msg.Type)

	_, err = NewMsgPack().NewDecoder().Decode(eiop.BinaryFrame([]byte{0xc1}))
	assert.ErrorIs(t, err, ErrMsgPackDecode)
}
