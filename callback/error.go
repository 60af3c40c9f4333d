package callback

import (
	erro "github.com/njones/sioclient/internal/errors"
)

const (
	ErrUnexpectedDataInParams   erro.String = "expected %d callback input parameters, found %d"
	ErrUnexpectedSingleOutParam erro.String = "expected at most a single error return parameter, found %d return parameters"
	ErrNotAFunc                 erro.String = "wrap.Func must be a func, found %T"
	ErrParam                    erro.String = "parameter %d: %w"
	ErrUnknownPanic             erro.String = "unknown panic"
)
