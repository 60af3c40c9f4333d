// Package serialize turns calls and answers into socket.io messages and back.
//
// Binary values ([]byte, io.Reader) never travel inside the JSON text. Each
// one is swapped for a placeholder object and moved to the message
// attachments, numbered in the order they are met walking the arguments
// depth-first, left to right:
//
//	["upload", {"name":"a.png","file":<bytes>}]
//	=> 451-["upload",{"name":"a.png","file":{"_placeholder":true,"num":0}}] + <bytes>
//
// Reconstruct and Unmarshal reverse the swap once every attachment is in.
package serialize

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"

	eiop "github.com/njones/sioclient/engineio/protocol"
	siop "github.com/njones/sioclient/protocol"
)

// Serializer writes messages to transport frames and hands out decoders for
// the frames that come back.
type Serializer interface {
	Name() string
	Encode(*siop.Message) ([]eiop.Frame, error)
	NewDecoder() Decoder
}

// Decoder reads the frames of one connection in arrival order. Decode returns
// a nil message with a nil error when the frame was taken in but the message
// it belongs to still waits for attachments.
type Decoder interface {
	Decode(eiop.Frame) (*siop.Message, error)
}

// SerializeCall builds an Event, or a Binary message when any argument holds
// binary data.
func SerializeCall(ns, event string, args ...interface{}) (*siop.Message, error) {
	raw, bin, err := deconstructArgs(args)
	if err != nil {
		return nil, err
	}

	msg := &siop.Message{Type: siop.Event, Namespace: ns, Event: event, Args: raw}
	if len(bin) > 0 {
		msg.Type = siop.Binary
		msg.Attachments = siop.Attachments{BytesCount: len(bin), Bytes: bin}
	}
	return msg, nil
}

// SerializeAck builds the answer to a server call with id.
func SerializeAck(ns string, id uint64, args ...interface{}) (*siop.Message, error) {
	raw, bin, err := deconstructArgs(args)
	if err != nil {
		return nil, err
	}

	msg := &siop.Message{Type: siop.Ack, Namespace: ns, AckID: id, HasAck: true, Args: raw}
	if len(bin) > 0 {
		msg.Type = siop.BinaryAck
		msg.Attachments = siop.Attachments{BytesCount: len(bin), Bytes: bin}
	}
	return msg, nil
}

func deconstructArgs(args []interface{}) ([]json.RawMessage, [][]byte, error) {
	var bin [][]byte
	raw := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		r, err := deconstruct(reflect.ValueOf(arg), &bin)
		if err != nil {
			return nil, nil, ErrSerializeArg.F(i, err)
		}
		raw = append(raw, r)
	}
	return raw, bin, nil
}

var (
	typeRawMessage = reflect.TypeOf(json.RawMessage(nil))
	typeReader     = reflect.TypeOf((*io.Reader)(nil)).Elem()
	typeMarshaler  = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

const maxDepth = 64

func placeholder(num int) json.RawMessage {
	return json.RawMessage(`{"_placeholder":true,"num":` + strconv.Itoa(num) + `}`)
}

// deconstruct marshals v, moving binary values to bin. Subtrees that hold no
// binary are marshaled as a whole.
func deconstruct(v reflect.Value, bin *[][]byte) (json.RawMessage, error) {
	return deconstructDepth(v, bin, 0)
}

func deconstructDepth(v reflect.Value, bin *[][]byte, depth int) (json.RawMessage, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	if !v.IsValid() {
		return json.RawMessage("null"), nil
	}

	switch {
	case v.Type() == typeRawMessage:
		if v.Len() == 0 {
			return json.RawMessage("null"), nil
		}
		return json.RawMessage(v.Bytes()), nil
	case isBytes(v.Type()):
		if v.IsNil() {
			return json.RawMessage("null"), nil
		}
		return addBinary(bin, append([]byte(nil), v.Bytes()...)), nil
	case v.Type().Implements(typeReader) && v.CanInterface():
		if isNil(v) {
			return json.RawMessage("null"), nil
		}
		b, err := io.ReadAll(v.Interface().(io.Reader))
		if err != nil {
			return nil, ErrReadBinary.F(err)
		}
		return addBinary(bin, b), nil
	}

	if !v.CanInterface() {
		return nil, ErrUnexported.F(v.Type())
	}
	if !hasBinary(v, 0) {
		return siop.MarshalNoEscape(v.Interface())
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return deconstructDepth(v.Elem(), bin, depth+1)
	case reflect.Slice, reflect.Array:
		items := make([]json.RawMessage, v.Len())
		for i := range items {
			item, err := deconstructDepth(v.Index(i), bin, depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return joinArray(items), nil
	case reflect.Map:
		keys := make([]string, 0, v.Len())
		vals := make(map[string]reflect.Value, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := mapKey(iter.Key())
			keys = append(keys, k)
			vals[k] = iter.Value()
		}
		sort.Strings(keys)

		fields := make([]field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, field{name: k, value: vals[k]})
		}
		return joinObject(fields, bin, depth)
	case reflect.Struct:
		return joinObject(structFields(v), bin, depth)
	}

	return siop.MarshalNoEscape(v.Interface())
}

// isBytes matches []byte and named byte slices, but not json.RawMessage or
// anything that marshals itself.
func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 &&
		t != typeRawMessage && !t.Implements(typeMarshaler)
}

func addBinary(bin *[][]byte, b []byte) json.RawMessage {
	*bin = append(*bin, b)
	return placeholder(len(*bin) - 1)
}

// hasBinary reports whether anything reachable from v would become an
// attachment. Types with their own MarshalJSON are taken as they are.
func hasBinary(v reflect.Value, depth int) bool {
	if !v.IsValid() || depth > maxDepth {
		return false
	}

	t := v.Type()
	switch {
	case t == typeRawMessage:
		return false
	case isBytes(t):
		return !v.IsNil()
	case t.Implements(typeReader):
		return !isNil(v)
	case t.Implements(typeMarshaler):
		return false
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return !v.IsNil() && hasBinary(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if hasBinary(v.Index(i), depth+1) {
				return true
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if hasBinary(iter.Value(), depth+1) {
				return true
			}
		}
	case reflect.Struct:
		for _, f := range structFields(v) {
			if hasBinary(f.value, depth+1) {
				return true
			}
		}
	}
	return false
}

type field struct {
	name  string
	value reflect.Value
}

// structFields lists the exported fields of a struct the way encoding/json
// names them. Untagged embedded structs are flattened.
func structFields(v reflect.Value) []field {
	var fields []field
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Ptr {
				if fv.IsNil() {
					continue
				}
				fv, ft = fv.Elem(), ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				fields = append(fields, structFields(fv)...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		if strings.Contains(opts, "omitempty") && isEmpty(fv) {
			continue
		}
		fields = append(fields, field{name: name, value: fv})
	}
	return fields
}

// isEmpty follows the omitempty rules of encoding/json.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	}
	return false
}

func joinObject(fields []field, bin *[][]byte, depth int) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := siop.MarshalNoEscape(f.name)
		if err != nil {
			return nil, err
		}
		val, err := deconstructDepth(f.value, bin, depth+1)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func joinArray(items []json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func mapKey(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10)
	}
	if s, ok := k.Interface().(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
