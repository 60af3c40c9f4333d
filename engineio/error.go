package engineio

import erro "github.com/njones/sioclient/internal/errors"

const (
	ErrInvalidURL        erro.String = "invalid server url %q: %w"
	ErrUnsupportedScheme erro.String = "unsupported url scheme %q"
	ErrUnknownEIOVersion erro.String = "unknown engineio version %d"
)
