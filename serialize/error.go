package serialize

import erro "github.com/njones/sioclient/internal/errors"

const (
	ErrSerializeArg  erro.String = "serialize argument %d: %w"
	ErrReadBinary    erro.String = "read binary argument: %w"
	ErrUnexported    erro.String = "can not serialize the unexported value of %s"
	ErrTooDeep       erro.String = "value nests too deep to serialize"
	ErrMissingBinary erro.String = "%d attachments declared, %d present"
	ErrArgOutOfRange erro.String = "argument %d out of range of %d"
	ErrMsgPackEncode erro.String = "msgpack encode: %w"
	ErrMsgPackDecode erro.String = "msgpack decode: %w"
	ErrMsgPackType   erro.String = "msgpack packet type %d"
)
