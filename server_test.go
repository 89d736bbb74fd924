package sio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/karagenc/sioengine/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	eioparser "github.com/karagenc/sioengine/engine.io/parser"
)

func newTestServer(t *testing.T, config *ServerConfig) (*Server, *httptest.Server) {
	if config == nil {
		config = new(ServerConfig)
	}
	config.Registry.PingInterval = time.Minute
	config.Registry.PingTimeout = time.Minute

	io := NewServer(config)
	hs := httptest.NewServer(io)
	t.Cleanup(func() {
		io.Close()
		hs.Close()
	})
	return io, hs
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, url string, body string) (int, string) {
	resp, err := http.Post(url, "text/plain;charset=UTF-8", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

// pollingHandshake opens a polling session and returns its ID.
func pollingHandshake(t *testing.T, hs *httptest.Server) string {
	status, body := get(t, hs.URL+"/?EIO=3&transport=polling")
	require.Equal(t, http.StatusOK, status)

	packets, err := eioparser.DecodePayloads(strings.NewReader(body), false)
	require.NoError(t, err)
	require.Len(t, packets, 2)

	hr, err := eioparser.ParseHandshakeResponse(packets[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"websocket"}, hr.Upgrades)
	assert.Equal(t, int64(60000), hr.PingInterval)
	assert.Equal(t, int64(60000), hr.PingTimeout)

	assert.Equal(t, eioparser.PacketTypeMessage, packets[1].Type)
	assert.Equal(t, "0", string(packets[1].Data))
	return hr.SID
}

func assertServerError(t *testing.T, status int, body string, expectedStatus int, code int) {
	assert.Equal(t, expectedStatus, status)
	var se ServerError
	require.NoError(t, json.Unmarshal([]byte(body), &se))
	expected, ok := GetServerError(code)
	require.True(t, ok)
	assert.Equal(t, expected, se)
}

func TestServerHandshake(t *testing.T) {
	t.Run("should open a polling session", func(t *testing.T) {
		io, hs := newTestServer(t, nil)
		connected := make(chan *Socket, 1)
		io.Root().OnConnect(func(socket *Socket) error {
			connected <- socket
			return nil
		})

		sid := pollingHandshake(t, hs)
		select {
		case socket := <-connected:
			assert.Equal(t, sid, socket.ID())
		case <-time.After(utils.DefaultTestWaitTimeout):
			t.Fatal("connect listener wasn't called")
		}

		session, ok := io.Registry().GetSession(sid)
		require.True(t, ok)
		assert.Equal(t, StateConnected, session.State())
		assert.Equal(t, "polling", session.Connection().Transport().Name())
	})

	t.Run("should reject invalid requests", func(t *testing.T) {
		_, hs := newTestServer(t, &ServerConfig{Transports: []string{"polling"}})

		status, body := get(t, hs.URL+"/?EIO=4&transport=polling")
		assertServerError(t, status, body, http.StatusBadRequest, ErrorUnsupportedProtocolVersion)

		status, body = get(t, hs.URL+"/?EIO=3&transport=polling&sid=unknown")
		assertServerError(t, status, body, http.StatusBadRequest, ErrorUnknownSID)

		status, body = post(t, hs.URL+"/?EIO=3&transport=polling", "1:6")
		assertServerError(t, status, body, http.StatusBadRequest, ErrorBadHandshakeMethod)

		status, body = get(t, hs.URL+"/?EIO=3&transport=carrier-pigeon")
		assertServerError(t, status, body, http.StatusBadRequest, ErrorUnknownTransport)

		// Disabled by the config.
		status, body = get(t, hs.URL+"/?EIO=3&transport=websocket")
		assertServerError(t, status, body, http.StatusBadRequest, ErrorUnknownTransport)
	})

	t.Run("should reject clients that fail authentication", func(t *testing.T) {
		io, hs := newTestServer(t, &ServerConfig{
			Authenticator: func(w http.ResponseWriter, r *http.Request) bool {
				return r.URL.Query().Get("token") == "secret"
			},
		})

		status, body := get(t, hs.URL+"/?EIO=3&transport=polling")
		assertServerError(t, status, body, http.StatusForbidden, ErrorForbidden)
		assert.Empty(t, io.Registry().SessionIDs())

		status, _ = get(t, hs.URL+"/?EIO=3&transport=polling&token=secret")
		assert.Equal(t, http.StatusOK, status)
		assert.Len(t, io.Registry().SessionIDs(), 1)
	})

	t.Run("should refuse requests once closed", func(t *testing.T) {
		io, hs := newTestServer(t, nil)
		io.Close()
		assert.True(t, io.IsClosed())

		status, _ := get(t, hs.URL+"/?EIO=3&transport=polling")
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})
}

func TestServerPolling(t *testing.T) {
	io, hs := newTestServer(t, nil)
	io.Root().OnConnect(func(socket *Socket) error {
		socket.On("hi", func(args Args, ackRequested bool) ([]any, error) {
			name, _ := args.String(0)
			return []any{"hello " + name}, nil
		})
		return nil
	})

	sid := pollingHandshake(t, hs)
	url := hs.URL + "/?EIO=3&transport=polling&sid=" + sid

	status, body := post(t, url, `15:421["hi","bob"]`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	status, body = get(t, url)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `16:431["hello bob"]`, body)

	// Ping
	_, _ = post(t, url, "1:2")
	_, body = get(t, url)
	assert.Equal(t, "1:3", body)

	session, ok := io.Registry().GetSession(sid)
	require.True(t, ok)

	// Close
	_, _ = post(t, url, "1:1")
	waitForState(t, session, StateClosed)
	reason, _ := session.DisconnectReason()
	assert.Equal(t, ReasonClosedRemotely, reason)
}

func readPacket(t *testing.T, ctx context.Context, c *websocket.Conn) *eioparser.Packet {
	mt, data, err := c.Read(ctx)
	require.NoError(t, err)
	p, err := eioparser.Parse(data, mt == websocket.MessageBinary)
	require.NoError(t, err)
	return p
}

func wsURL(hs *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(hs.URL, "http") + "/?" + query
}

func TestServerWebSocket(t *testing.T) {
	io, hs := newTestServer(t, nil)
	received := make(chan string, 1)
	io.Root().OnConnect(func(socket *Socket) error {
		socket.On("hi", func(args Args, ackRequested bool) ([]any, error) {
			s, _ := args.String(0)
			received <- s
			return nil, nil
		})
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(hs, "EIO=3&transport=websocket"), nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	open := readPacket(t, ctx, c)
	require.Equal(t, eioparser.PacketTypeOpen, open.Type)
	hr, err := eioparser.ParseHandshakeResponse(open)
	require.NoError(t, err)
	assert.Empty(t, hr.Upgrades)

	connect := readPacket(t, ctx, c)
	assert.Equal(t, eioparser.PacketTypeMessage, connect.Type)
	assert.Equal(t, "0", string(connect.Data))

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("2")))
	pong := readPacket(t, ctx, c)
	assert.Equal(t, eioparser.PacketTypePong, pong.Type)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`42["hi","ws"]`)))
	select {
	case s := <-received:
		assert.Equal(t, "ws", s)
	case <-time.After(utils.DefaultTestWaitTimeout):
		t.Fatal("event wasn't received")
	}

	session, ok := io.Registry().GetSession(hr.SID)
	require.True(t, ok)
	c.Close(websocket.StatusNormalClosure, "")
	waitForState(t, session, StateClosed)
	reason, _ := session.DisconnectReason()
	assert.Equal(t, ReasonClosedRemotely, reason)
}

func TestServerUpgrade(t *testing.T) {
	io, hs := newTestServer(t, nil)
	sid := pollingHandshake(t, hs)
	pollingURL := hs.URL + "/?EIO=3&transport=polling&sid=" + sid

	session, ok := io.Registry().GetSession(sid)
	require.True(t, ok)
	socket, _ := session.Socket("/")
	socket.Join("room")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(hs, "EIO=3&transport=websocket&sid="+sid), nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("2probe")))
	pong := readPacket(t, ctx, c)
	assert.Equal(t, eioparser.PacketTypePong, pong.Type)
	assert.Equal(t, "probe", string(pong.Data))

	// The pending poll is released with a NOOP.
	_, body := get(t, pollingURL)
	assert.Equal(t, "1:6", body)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("5")))
	require.Eventually(t, func() bool {
		conn := session.Connection()
		return conn != nil && conn.Transport().Name() == "websocket"
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, socket.Emit("after", 1))
	p := readPacket(t, ctx, c)
	assert.Equal(t, eioparser.PacketTypeMessage, p.Type)
	assert.Equal(t, `2["after",1]`, string(p.Data))

	assert.Equal(t, StateConnected, session.State())
	assert.Equal(t, []string{"room"}, socket.Rooms())
}
