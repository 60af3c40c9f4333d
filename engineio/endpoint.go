package engineio

import (
	"net/url"
	"strings"

	eiop "github.com/njones/sioclient/engineio/protocol"
)

const DefaultPath = "/socket.io/"

// Endpoint is a parsed server address. The path of the address names the
// Socket.IO namespace, the engine itself always lives under Path.
//
//	http://localhost:3000/admin?token=x  =>  namespace "/admin"
//	                                         http://localhost:3000/socket.io/?EIO=4&token=x
type Endpoint struct {
	Namespace string
	base      *url.URL
}

func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, ErrInvalidURL.F(raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return Endpoint{}, ErrUnsupportedScheme.F(u.Scheme)
	}

	nsp := strings.TrimSuffix(u.Path, "/")
	if nsp == "" {
		nsp = "/"
	}
	return Endpoint{Namespace: nsp, base: u}, nil
}

// URL returns the engine URL for version v. Query values from the server
// address come first, then query, then the engine parameters.
func (e Endpoint) URL(path string, v eiop.Version, query map[string]string) (*url.URL, error) {
	if !v.Valid() {
		return nil, ErrUnknownEIOVersion.F(int(v))
	}
	if path == "" {
		path = DefaultPath
	}

	u := *e.base
	u.Path, u.RawPath = path, ""
	u.Fragment = ""

	q := u.Query()
	for k, val := range query {
		q.Set(k, val)
	}
	q.Set("EIO", v.String())
	u.RawQuery = q.Encode()

	return &u, nil
}
