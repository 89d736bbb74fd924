package sio

import (
	"net/http"
	"time"

	"github.com/karagenc/sioengine/internal/sync"
	"github.com/karagenc/sioengine/parser"
	jsonparser "github.com/karagenc/sioengine/parser/json"
	"github.com/karagenc/sioengine/parser/json/serializer/fast"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
)

type RegistryConfig struct {
	// Codec of the socket.io packets. Defaults to the JSON parser
	// with the fastest serializer available on the platform.
	ParserCreator parser.Creator

	// Clients send a PING every PingInterval. A session that hasn't
	// received anything within PingInterval + PingTimeout times out.
	// Set either of them to a negative value to disable the timeout.
	PingInterval time.Duration
	PingTimeout  time.Duration

	// Runs the timeouts. Defaults to the wall clock.
	Scheduler Scheduler

	// Called with the errors that can't be returned to anyone:
	// failing listeners, protocol violations, failing transports.
	OnError ErrorCallback

	// For debugging purposes. Leave it nil if it is of no use.
	Debugger Debugger
}

// SessionRegistry keeps track of the live sessions and the declared namespaces.
type SessionRegistry struct {
	parserCreator parser.Creator
	pingInterval  time.Duration
	pingTimeout   time.Duration
	scheduler     Scheduler
	onError       ErrorCallback
	debug         Debugger

	sessions *sessionStore
	nsps     *nspStore

	closed    chan struct{}
	closeOnce sync.Once
}

func NewSessionRegistry(config *RegistryConfig) *SessionRegistry {
	if config == nil {
		config = new(RegistryConfig)
	}

	r := &SessionRegistry{
		parserCreator: config.ParserCreator,
		pingInterval:  config.PingInterval,
		pingTimeout:   config.PingTimeout,
		scheduler:     config.Scheduler,
		onError:       config.OnError,
		debug:         config.Debugger,

		sessions: newSessionStore(),
		nsps:     newNspStore(),

		closed: make(chan struct{}),
	}

	if r.parserCreator == nil {
		r.parserCreator = jsonparser.NewCreator(0, fast.New())
	}
	if r.pingInterval == 0 {
		r.pingInterval = defaultPingInterval
	}
	if r.pingTimeout == 0 {
		r.pingTimeout = defaultPingTimeout
	}
	if r.scheduler == nil {
		r.scheduler = NewClockScheduler(nil)
	}
	if r.onError == nil {
		r.onError = func(err error) {}
	}
	if r.debug == nil {
		r.debug = NewNoopDebugger()
	}
	r.debug = r.debug.WithContext("[sio] Registry")

	// Every session joins the root namespace on connect.
	r.CreateNamespace("/")
	return r
}

// Time a session waits for traffic before timing out. 0 means never.
func (r *SessionRegistry) sessionTimeout() time.Duration {
	if r.pingInterval < 0 || r.pingTimeout < 0 {
		return 0
	}
	return r.pingInterval + r.pingTimeout
}

// Clients keep pinging even when the timeout is disabled.
func (r *SessionRegistry) advertisedPingValues() (pingInterval, pingTimeout time.Duration) {
	pingInterval, pingTimeout = r.pingInterval, r.pingTimeout
	if pingInterval < 0 {
		pingInterval = defaultPingInterval
	}
	if pingTimeout < 0 {
		pingTimeout = defaultPingTimeout
	}
	return
}

// CreateSession creates a session with a fresh ID and registers it.
// r is the request that is about to open the first connection of the session.
func (r *SessionRegistry) CreateSession(req *http.Request) (*Session, error) {
	if r.IsClosed() {
		return nil, ErrSessionClosed
	}

	for i := 0; ; i++ {
		sid, err := GenerateBase64ID(Base64IDSize)
		if err != nil {
			return nil, err
		}

		session := newSession(sid, r, req)
		if r.sessions.setIfAbsent(session) {
			r.debug.Log("Session created", sid)
			return session, nil
		}

		if i == Base64IDMaxTry {
			return nil, ErrBase64IDMaxTryReached
		}
	}
}

func (r *SessionRegistry) GetSession(sid string) (session *Session, ok bool) {
	return r.sessions.get(sid)
}

func (r *SessionRegistry) DeleteSession(sid string) {
	r.debug.Log("Session deleted", sid)
	r.sessions.delete(sid)
}

// CreateNamespace declares a namespace. Declaring a namespace
// twice returns the existing one.
func (r *SessionRegistry) CreateNamespace(name string) *Namespace {
	if name == "" {
		name = "/"
	}
	return r.nsps.getOrCreate(name, func() *Namespace {
		r.debug.Log("Namespace created", name)
		return newNamespace(name, r.debug, r.onError)
	})
}

func (r *SessionRegistry) GetNamespace(name string) (nsp *Namespace, ok bool) {
	return r.nsps.get(name)
}

func (r *SessionRegistry) SessionIDs() []string {
	return r.sessions.ids()
}

// NamespaceNames returns the namespaces that the session is connected to.
func (r *SessionRegistry) NamespaceNames(sid string) []string {
	session, ok := r.sessions.get(sid)
	if !ok {
		return nil
	}
	return session.sockets.namespaces()
}

func (r *SessionRegistry) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

// Close refuses new sessions and tears down every live one.
func (r *SessionRegistry) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		for _, session := range r.sessions.getAll() {
			session.close(ReasonClosedLocally)
		}
	})
}
