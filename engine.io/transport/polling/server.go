// Package polling implements the HTTP long-polling transport.
package polling

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/karagenc/sioengine/internal/sync"

	"github.com/karagenc/sioengine/engine.io/parser"
	"github.com/karagenc/sioengine/engine.io/transport"
)

type ServerConfig struct {
	// Maximum size of a POST body. 0 means no limit.
	MaxHTTPBufferSize int64

	// How long a GET request is held open while there is nothing to send.
	PollTimeout time.Duration

	// Gzip poll responses for clients that accept it.
	Compression          bool
	CompressionThreshold int
}

type ServerTransport struct {
	maxHTTPBufferSize int64
	supportsBinary    bool

	pq          *pollQueue
	pollTimeout time.Duration

	pollHandler http.Handler

	callbacks *transport.Callbacks

	closed chan struct{}
	once   sync.Once
}

var _ transport.ServerTransport = (*ServerTransport)(nil)

func NewServerTransport(callbacks *transport.Callbacks, config ServerConfig) (*ServerTransport, error) {
	t := &ServerTransport{
		maxHTTPBufferSize: config.MaxHTTPBufferSize,
		supportsBinary:    true,

		pq:          newPollQueue(),
		pollTimeout: config.PollTimeout,

		callbacks: callbacks,
		closed:    make(chan struct{}),
	}

	t.pollHandler = http.HandlerFunc(t.handlePollRequest)
	if config.Compression {
		h, err := withCompression(t.pollHandler, config.CompressionThreshold)
		if err != nil {
			return nil, err
		}
		t.pollHandler = h
	}
	return t, nil
}

func (t *ServerTransport) Name() string { return "polling" }

func (t *ServerTransport) Send(packets ...*parser.Packet) error {
	if t.isClosed() {
		return transport.ErrClosed
	}
	t.pq.push(packets...)
	return nil
}

func (t *ServerTransport) QueuedPackets() []*parser.Packet {
	return t.pq.take()
}

func (t *ServerTransport) Handshake(w http.ResponseWriter, r *http.Request) error {
	// Clients that cannot handle binary data ask for base64.
	t.supportsBinary = r.URL.Query().Get("b64") == ""
	return nil
}

func (t *ServerTransport) PostHandshake(w http.ResponseWriter, r *http.Request) {
	t.ServeHTTP(w, r)
}

func (t *ServerTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		t.pollHandler.ServeHTTP(w, r)
	case http.MethodPost:
		t.handleDataRequest(w, r)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (t *ServerTransport) setHeaders(w http.ResponseWriter, r *http.Request) {
	wh := w.Header()
	userAgent := r.UserAgent()
	if strings.Contains(userAgent, ";MSIE") || strings.Contains(userAgent, "Trident/") {
		wh.Set("X-XSS-Protection", "0")
	}
}

func (t *ServerTransport) writeJSONPBody(w io.Writer, jsonp string, packets []*parser.Packet) error {
	head := []byte("___eio[" + jsonp + "](\"")
	foot := []byte("\");")

	_, err := w.Write(head)
	if err != nil {
		return err
	}

	buf := bytes.Buffer{}
	err = parser.EncodePayloads(&buf, false, packets...)
	if err != nil {
		return err
	}
	template.JSEscape(w, buf.Bytes())

	_, err = w.Write(foot)
	return err
}

func (t *ServerTransport) handlePollRequest(w http.ResponseWriter, r *http.Request) {
	packets := t.pq.wait(r.Context(), t.pollTimeout)
	if len(packets) == 0 {
		// Nothing to send. Answer with a NOOP so that the client starts a new poll.
		noop, _ := parser.NewPacket(parser.PacketTypeNoop, false, nil)
		packets = []*parser.Packet{noop}
	}

	var (
		jsonp = r.URL.Query().Get("j")
		wh    = w.Header()
		buf   = bytes.Buffer{}
	)
	t.setHeaders(w, r)

	if jsonp == "" {
		binary := parser.NeedsBinaryPayload(t.supportsBinary, packets...)
		err := parser.EncodePayloads(&buf, binary, packets...)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			t.close(err)
			return
		}

		if binary {
			wh.Set("Content-Type", "application/octet-stream")
		} else {
			wh.Set("Content-Type", "text/plain; charset=UTF-8")
		}
	} else {
		err := t.writeJSONPBody(&buf, jsonp, packets)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			t.close(err)
			return
		}
		wh.Set("Content-Type", "text/javascript; charset=UTF-8")
	}

	wh.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(buf.Bytes())
	if err != nil {
		t.close(err)
	}
}

var (
	slashReplacer = strings.NewReplacer("\\n", "\n", "\\\\n", "\\n")
	ok            = []byte("ok")
)

func (t *ServerTransport) handleDataRequest(w http.ResponseWriter, r *http.Request) {
	if t.maxHTTPBufferSize > 0 && r.ContentLength > t.maxHTTPBufferSize {
		defer t.close(fmt.Errorf("polling: maxHTTPBufferSize (MaxBufferSize) exceeded"))
		w.WriteHeader(http.StatusBadRequest)
		r.Close = true
		r.Body.Close()
		return
	}

	var body io.Reader = r.Body
	if t.maxHTTPBufferSize > 0 {
		body = io.LimitReader(r.Body, t.maxHTTPBufferSize)
	}

	var (
		packets []*parser.Packet
		jsonp   = r.URL.Query().Get("j")
		err     error
	)

	if jsonp == "" {
		binary := r.Header.Get("Content-Type") == "application/octet-stream"
		packets, err = parser.DecodePayloads(body, binary)
	} else {
		err = r.ParseForm()
		if err == nil {
			d := slashReplacer.Replace(r.PostForm.Get("d"))
			packets, err = parser.DecodePayloads(strings.NewReader(d), false)
		}
	}
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		t.close(err)
		return
	}

	t.callbacks.OnPacket(packets...)

	t.setHeaders(w, r)
	wh := w.Header()

	// text/html is required instead of text/plain to avoid an
	// unwanted download dialog on certain user-agents (GH-43)
	wh.Set("Content-Type", "text/html")
	wh.Set("Content-Length", "2")
	w.WriteHeader(http.StatusOK)
	w.Write(ok)
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
		// Send a NOOP packet to force a poll cycle.
		noop, _ := parser.NewPacket(parser.PacketTypeNoop, false, nil)
		t.pq.push(noop)
	})
}

func (t *ServerTransport) close(err error) {
	t.once.Do(func() {
		close(t.closed)
		defer t.callbacks.OnClose(t.Name(), err)

		p, _ := parser.NewPacket(parser.PacketTypeClose, false, nil)
		t.pq.push(p)
	})
}

func (t *ServerTransport) Close() {
	t.close(nil)
}
