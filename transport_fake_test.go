package sio

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/karagenc/sioengine/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eioparser "github.com/karagenc/sioengine/engine.io/parser"
	"github.com/karagenc/sioengine/engine.io/transport"
	"github.com/karagenc/sioengine/parser"
	jsonparser "github.com/karagenc/sioengine/parser/json"
	"github.com/karagenc/sioengine/parser/json/serializer/stdjson"
)

type fakeTransport struct {
	name     string
	upgrades []string
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Upgrades() []string { return t.upgrades }

func (t *fakeTransport) CreateConnection(session *Session, r *http.Request) (TransportConnection, error) {
	return newFakeConnection(t, session), nil
}

var (
	fakePolling   = &fakeTransport{name: "polling", upgrades: []string{"websocket"}}
	fakeWebSocket = &fakeTransport{name: "websocket"}
)

// fakeConnection records what is sent, and behaves like the real
// transports when aborted: the session learns it asynchronously.
type fakeConnection struct {
	transport *fakeTransport
	session   *Session
	request   *http.Request

	mu        sync.Mutex
	sent      []*eioparser.Packet
	queued    []*eioparser.Packet
	aborted   bool
	discarded bool
	sendErr   error
}

func newFakeConnection(t *fakeTransport, session *Session) *fakeConnection {
	return &fakeConnection{
		transport: t,
		session:   session,
		request:   httptest.NewRequest("GET", "/?EIO=3&transport="+t.name+"&token=abc", nil),
	}
}

func (c *fakeConnection) Transport() Transport { return c.transport }

func (c *fakeConnection) Request() *http.Request { return c.request }

func (c *fakeConnection) Send(packets ...*eioparser.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.aborted || c.discarded {
		return transport.ErrClosed
	}
	c.sent = append(c.sent, packets...)
	return nil
}

func (c *fakeConnection) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aborted {
		return
	}
	c.aborted = true
	go c.session.onConnectionClose(c, nil)
}

func (c *fakeConnection) Disconnect(nsp string, closeConnection bool) {
	c.session.disconnectSocket(nsp, ReasonClosedLocally)
	if closeConnection {
		c.session.SetDisconnectReason(ReasonClosedLocally)
		c.Abort()
	}
}

func (c *fakeConnection) Discard() []*eioparser.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded = true
	queued := c.queued
	c.queued = nil
	return queued
}

func (c *fakeConnection) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *fakeConnection) sentPackets() []*eioparser.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	packets := make([]*eioparser.Packet, len(c.sent))
	copy(packets, c.sent)
	return packets
}

func (c *fakeConnection) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

// messages decodes the MESSAGE packets that were sent,
// with the attachments added to their binary packets.
func (c *fakeConnection) messages(t *testing.T) []*parser.Packet {
	p := testParserCreator()
	var (
		decoded    []*parser.Packet
		inProgress *parser.Packet
	)
	for _, packet := range c.sentPackets() {
		if packet.Type != eioparser.PacketTypeMessage {
			continue
		}
		if packet.IsBinary {
			require.NotNil(t, inProgress, "attachment without a binary packet")
			inProgress.AddAttachment(packet.Data)
			if inProgress.IsComplete() {
				decoded = append(decoded, inProgress)
				inProgress = nil
			}
			continue
		}
		d, err := p.Decode(packet.Data)
		require.NoError(t, err)
		if d.IsComplete() {
			decoded = append(decoded, d)
		} else {
			inProgress = d
		}
	}
	return decoded
}

// frames returns the sent MESSAGE packets as strings.
func (c *fakeConnection) frames() (frames []string) {
	for _, packet := range c.sentPackets() {
		if packet.Type == eioparser.PacketTypeMessage && !packet.IsBinary {
			frames = append(frames, string(packet.Data))
		}
	}
	return
}

var testParserCreator = jsonparser.NewCreator(0, stdjson.New())

type testEnv struct {
	registry *SessionRegistry
	clock    *clock.Mock
	errors   chan error
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		clock:  clock.NewMock(),
		errors: make(chan error, 100),
	}
	env.registry = NewSessionRegistry(&RegistryConfig{
		ParserCreator: testParserCreator,
		PingInterval:  time.Second,
		PingTimeout:   time.Second,
		Scheduler:     NewClockScheduler(env.clock),
		OnError: func(err error) {
			select {
			case env.errors <- err:
			default:
			}
		},
	})
	return env
}

// connect creates a session and binds a polling connection to it.
func (env *testEnv) connect(t *testing.T) (*Session, *fakeConnection) {
	session, err := env.registry.CreateSession(nil)
	require.NoError(t, err)

	conn := newFakeConnection(fakePolling, session)
	require.NoError(t, session.OnConnect(conn))
	conn.reset()
	return session, conn
}

func textMessage(t *testing.T, frame string) *eioparser.Packet {
	p, err := eioparser.NewPacket(eioparser.PacketTypeMessage, false, []byte(frame))
	require.NoError(t, err)
	return p
}

func binaryMessage(t *testing.T, data []byte) *eioparser.Packet {
	p, err := eioparser.NewPacket(eioparser.PacketTypeMessage, true, data)
	require.NoError(t, err)
	return p
}

func outerPacket(t *testing.T, packetType eioparser.PacketType, data string) *eioparser.Packet {
	p, err := eioparser.NewPacket(packetType, false, []byte(data))
	require.NoError(t, err)
	return p
}

func waitForState(t *testing.T, session *Session, state ConnectionState) {
	require.Eventually(t, func() bool {
		return session.State() == state
	}, 5*time.Second, 5*time.Millisecond, "session never reached %s", state)
}

// The session is removed from the registry right after it's marked as closed.
func assertSessionDeleted(t *testing.T, env *testEnv, session *Session) {
	assert.Eventually(t, func() bool {
		_, ok := env.registry.GetSession(session.ID())
		return !ok
	}, 5*time.Second, 5*time.Millisecond)
}
