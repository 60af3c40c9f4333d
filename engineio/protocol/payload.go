package protocol

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"unicode/utf8"
)

// RecordSeparator splits packets of an EIO4 polling payload.
const RecordSeparator = 0x1E

// Payload is the body of a polling request or response: one or more packets.
type Payload []Frame

// EncodePayload writes frames in the polling format of version v. Binary frames
// are base64 encoded since the client always asks for text payloads.
//
//	v4: 42["a"]\x1eb<base64>
//	v3: 9:42["a"]10:b4<base64>
func EncodePayload(v Version, pay Payload) []byte {
	var buf bytes.Buffer
	for i, frame := range pay {
		var data []byte
		switch {
		case frame.Binary && v == V3:
			data = append([]byte("b4"), base64.StdEncoding.EncodeToString(frame.Data)...)
		case frame.Binary:
			data = append([]byte{'b'}, base64.StdEncoding.EncodeToString(frame.Data)...)
		default:
			data = frame.Data
		}

		if v == V3 {
			buf.WriteString(strconv.Itoa(jsLen(data)))
			buf.WriteByte(':')
			buf.Write(data)
			continue
		}

		if i > 0 {
			buf.WriteByte(RecordSeparator)
		}
		buf.Write(data)
	}
	return buf.Bytes()
}

// DecodePayload splits a polling body into frames. On error the frames
// decoded so far are returned with it; EIO4 also keeps the records after a
// bad one.
func DecodePayload(v Version, data []byte) (Payload, error) {
	if v == V3 {
		return decodePayloadV3(data)
	}
	return decodePayloadV4(data)
}

func decodePayloadV4(data []byte) (pay Payload, err error) {
	if len(data) == 0 {
		return nil, nil
	}
	// records are self delimiting, a bad one is skipped and the first error kept
	for _, rec := range bytes.Split(data, []byte{RecordSeparator}) {
		frame, rerr := decodeRecord(rec, false)
		if rerr != nil {
			if err == nil {
				err = ErrPayloadDecode.F("v4", rerr)
			}
			continue
		}
		pay = append(pay, frame)
	}
	return pay, err
}

func decodePayloadV3(data []byte) (pay Payload, err error) {
	for len(data) > 0 {
		idx := bytes.IndexByte(data, ':')
		if idx < 1 {
			return pay, ErrPayloadLength.F("v3", string(data))
		}
		n, err := strconv.Atoi(string(data[:idx]))
		if err != nil {
			return pay, ErrPayloadLength.F("v3", string(data[:idx]))
		}
		data = data[idx+1:]

		size, ok := jsPrefix(data, n)
		if !ok {
			return pay, ErrShortPayload.F("v3")
		}

		frame, err := decodeRecord(data[:size], true)
		if err != nil {
			return pay, ErrPayloadDecode.F("v3", err)
		}
		pay = append(pay, frame)
		data = data[size:]
	}
	return pay, nil
}

// decodeRecord turns one payload record into a frame. Base64 binary records
// start with 'b'; EIO3 adds the packet type after it, which is dropped here.
func decodeRecord(rec []byte, hasType bool) (Frame, error) {
	if len(rec) == 0 || rec[0] != 'b' {
		return Frame{Data: append([]byte(nil), rec...)}, nil
	}
	rec = rec[1:]
	if hasType && len(rec) > 0 {
		rec = rec[1:]
	}
	raw, err := base64.StdEncoding.DecodeString(string(rec))
	if err != nil {
		return Frame{}, err
	}
	return Frame{Binary: true, Data: raw}, nil
}

// jsLen counts UTF-16 code units, which is how a JavaScript server measures
// the length prefix of an EIO3 payload.
func jsLen(p []byte) (n int) {
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		p = p[size:]
		n++
		if r >= 0x10000 {
			n++
		}
	}
	return n
}

// jsPrefix returns the byte length of the first n UTF-16 code units of p.
func jsPrefix(p []byte, n int) (int, bool) {
	var size int
	for n > 0 {
		if size >= len(p) {
			return size, false
		}
		r, s := utf8.DecodeRune(p[size:])
		size += s
		n--
		if r >= 0x10000 {
			n--
		}
	}
	return size, n == 0
}
