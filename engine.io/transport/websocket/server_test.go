package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/karagenc/sioengine/engine.io/parser"
	"github.com/karagenc/sioengine/engine.io/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// Starts a server that echoes back every packet it receives.
func newEchoServer(t *testing.T, query string) (*websocket.Conn, chan error) {
	closed := make(chan error, 1)

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callbacks := transport.NewCallbacks()
		st := NewServerTransport(callbacks, 0, nil)
		callbacks.Set(func(packets ...*parser.Packet) {
			st.Send(packets...)
		}, func(transportName string, err error) {
			closed <- err
		})

		err := st.Handshake(w, r)
		if err != nil {
			t.Error(err)
			return
		}
		st.PostHandshake(w, r)
	}))
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/?" + query
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	return c, closed
}

func TestServerTransportEcho(t *testing.T) {
	c, closed := newEchoServer(t, "EIO=3&transport=websocket")
	ctx := context.Background()

	err := c.Write(ctx, websocket.MessageText, []byte("4hello"))
	require.NoError(t, err)
	mt, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, mt)
	assert.Equal(t, "4hello", string(data))

	err = c.Write(ctx, websocket.MessageBinary, []byte{0x04, 0x01, 0x02})
	require.NoError(t, err)
	mt, data, err = c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, mt)
	assert.Equal(t, []byte{0x04, 0x01, 0x02}, data)

	c.Close(websocket.StatusNormalClosure, "")
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the transport to close")
	}
}

func TestServerTransportBase64(t *testing.T) {
	c, _ := newEchoServer(t, "EIO=3&transport=websocket&b64=1")
	ctx := context.Background()

	err := c.Write(ctx, websocket.MessageBinary, []byte{0x04, 0x01})
	require.NoError(t, err)
	mt, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, mt)
	assert.Equal(t, "b4AQ==", string(data))
}

func TestServerTransportInvalidPacket(t *testing.T) {
	c, closed := newEchoServer(t, "EIO=3&transport=websocket")

	err := c.Write(context.Background(), websocket.MessageText, []byte("9"))
	require.NoError(t, err)

	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the transport to close")
	}
}

func TestSendBeforeHandshake(t *testing.T) {
	st := NewServerTransport(transport.NewCallbacks(), 0, nil)
	p, err := parser.NewPacket(parser.PacketTypeNoop, false, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, st.Send(p), transport.ErrClosed)
}

func TestIsExpectedClose(t *testing.T) {
	assert.True(t, isExpectedClose(nil))
	assert.True(t, isExpectedClose(context.Canceled))
	assert.False(t, isExpectedClose(fmt.Errorf("boom")))
}
