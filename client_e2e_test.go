package sioclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer is a small Socket.IO v4 server on a real websocket, enough to
// answer connects, echo events and acknowledge calls.
type wsServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	headers chan http.Header
	queries chan string
	auth    chan string
	leave   chan string
}

func newWSServer(t *testing.T) (*wsServer, *httptest.Server) {
	s := &wsServer{
		t:       t,
		headers: make(chan http.Header, 4),
		queries: make(chan string, 4),
		auth:    make(chan string, 4),
		leave:   make(chan string, 4),
	}

	r := chi.NewRouter()
	r.Get("/socket.io/", s.serve)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *wsServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "websocket only", http.StatusBadRequest)
		return
	}
	s.headers <- r.Header.Clone()
	s.queries <- r.URL.RawQuery

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	write := func(text string) bool {
		return conn.WriteMessage(websocket.TextMessage, []byte(text)) == nil
	}

	open, _ := json.Marshal(map[string]interface{}{
		"sid": uuid.NewString(), "upgrades": []string{},
		"pingInterval": 25000, "pingTimeout": 20000,
	})
	if !write("0" + string(open)) {
		return
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		text := string(data)
		switch {
		case strings.HasPrefix(text, "40"):
			s.auth <- strings.TrimPrefix(text, "40")
			write(`40{"sid":"` + uuid.NewString() + `"}`)
			write(`42["welcome","hello from the server"]`)
		case text == "41":
			s.leave <- text
			return
		case strings.HasPrefix(text, `420["add",`):
			var args []int
			if json.Unmarshal([]byte("["+strings.TrimSuffix(strings.TrimPrefix(text, `420["add",`), "]")+"]"), &args) == nil && len(args) == 2 {
				b, _ := json.Marshal([]int{args[0] + args[1]})
				write("430" + string(b))
			}
		case strings.HasPrefix(text, "42"):
			write(text)
		}
	}
}

func TestWebsocketEndToEnd(t *testing.T) {
	server, srv := newWSServer(t)

	c, err := NewClient(srv.URL,
		WithAuth(map[string]string{"user": "wendy"}),
		WithQuery(map[string]string{"room": "nursery"}),
		WithExtraHeaders(map[string]string{"X-Trace": "e2e"}),
		WithReconnection(false),
	)
	require.NoError(t, err)
	defer c.Disconnect(context.Background())

	welcome := make(chan string, 1)
	echoes := make(chan string, 1)
	c.On("welcome", func(res *Response) {
		var msg string
		assert.NoError(t, res.GetValue(0, &msg))
		welcome <- msg
	})
	c.On("echo", func(res *Response) { echoes <- res.String() })

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())
	assert.NotEmpty(t, c.ID())

	assert.Equal(t, `{"user":"wendy"}`, waitFor(t, server.auth))
	assert.Equal(t, "e2e", waitFor(t, server.headers).Get("X-Trace"))
	assert.Contains(t, waitFor(t, server.queries), "room=nursery")
	assert.Equal(t, "hello from the server", waitFor(t, welcome))

	res, err := c.EmitWithAck(context.Background(), "add", 40, 2)
	require.NoError(t, err)
	var sum int
	require.NoError(t, res.GetValue(0, &sum))
	assert.Equal(t, 42, sum)

	require.NoError(t, c.Emit(context.Background(), "echo", "tick", "tock"))
	assert.Equal(t, `["tick","tock"]`, waitFor(t, echoes))

	c.Disconnect(context.Background())
	assert.Equal(t, "41", waitFor(t, server.leave))
	assert.False(t, c.Connected())
}

func TestWebsocketServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := NewClient(srv.URL, WithReconnection(false))
	require.NoError(t, err)

	var reported []error
	c.OnReconnectError(func(err error) { reported = append(reported, err) })

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	require.Len(t, reported, 1)
}
