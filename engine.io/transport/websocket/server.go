// Package websocket implements the WebSocket transport on top of nhooyr.io/websocket.
package websocket

import (
	"context"
	"net/http"

	"github.com/karagenc/sioengine/internal/sync"

	"github.com/karagenc/sioengine/engine.io/parser"
	"github.com/karagenc/sioengine/engine.io/transport"
	"nhooyr.io/websocket"
)

type ServerTransport struct {
	readLimit      int64
	supportsBinary bool
	acceptOptions  *websocket.AcceptOptions

	ctx  context.Context
	conn *websocket.Conn

	// Serializes frame writes. nhooyr allows only one writer at a time.
	writeMu sync.Mutex

	callbacks *transport.Callbacks
	closed    chan struct{}
	once      sync.Once
}

var _ transport.ServerTransport = (*ServerTransport)(nil)

func NewServerTransport(
	callbacks *transport.Callbacks,
	maxBufferSize int64,
	acceptOptions *websocket.AcceptOptions,
) *ServerTransport {
	return &ServerTransport{
		readLimit:      maxBufferSize,
		supportsBinary: true,
		callbacks:      callbacks,
		acceptOptions:  acceptOptions,
		closed:         make(chan struct{}),
	}
}

func (t *ServerTransport) Name() string { return "websocket" }

func (t *ServerTransport) QueuedPackets() []*parser.Packet {
	// There's no queue on WebSocket. Packets are directly sent.
	return nil
}

func (t *ServerTransport) Send(packets ...*parser.Packet) error {
	if t.isClosed() || t.conn == nil {
		return transport.ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for _, packet := range packets {
		err := t.send(packet)
		if err != nil {
			go t.close(err)
			return err
		}
	}
	return nil
}

func (t *ServerTransport) send(packet *parser.Packet) error {
	var mt websocket.MessageType
	if packet.IsBinary && t.supportsBinary {
		mt = websocket.MessageBinary
	} else {
		mt = websocket.MessageText
	}

	w, err := t.conn.Writer(t.ctx, mt)
	if err != nil {
		return err
	}
	err = packet.Encode(w, t.supportsBinary)
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (t *ServerTransport) Handshake(w http.ResponseWriter, r *http.Request) (err error) {
	// Clients that cannot handle binary frames ask for base64.
	t.supportsBinary = r.URL.Query().Get("b64") == ""

	t.ctx = r.Context()
	t.conn, err = websocket.Accept(w, r, t.acceptOptions)
	if err != nil {
		return
	}
	if t.readLimit > 0 {
		t.conn.SetReadLimit(t.readLimit)
	}
	return nil
}

func (t *ServerTransport) PostHandshake(w http.ResponseWriter, r *http.Request) {
	for {
		packet, err := t.nextPacket()
		if err != nil {
			t.close(err)
			return
		}
		t.callbacks.OnPacket(packet)
	}
}

func (t *ServerTransport) nextPacket() (*parser.Packet, error) {
	mt, r, err := t.conn.Reader(t.ctx)
	if err != nil {
		return nil, err
	}
	return parser.Decode(r, mt == websocket.MessageBinary)
}

func (t *ServerTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusBadRequest)
}

func (t *ServerTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *ServerTransport) Discard() {
	t.once.Do(func() {
		close(t.closed)
		if t.conn != nil {
			t.conn.Close(websocket.StatusNormalClosure, "")
		}
	})
}

func (t *ServerTransport) close(err error) {
	t.once.Do(func() {
		close(t.closed)
		if isExpectedClose(err) {
			err = nil
		}

		defer t.callbacks.OnClose(t.Name(), err)

		if t.conn != nil {
			t.conn.Close(websocket.StatusNormalClosure, "")
		}
	})
}

func (t *ServerTransport) Close() {
	t.close(nil)
}
