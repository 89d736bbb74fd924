package sio

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/karagenc/sioengine/internal/sync"

	eioparser "github.com/karagenc/sioengine/engine.io/parser"
	"github.com/karagenc/sioengine/engine.io/transport/polling"
	"nhooyr.io/websocket"
)

const (
	defaultMaxBufferSize  int64 = 1e6
	defaultUpgradeTimeout       = 10 * time.Second
)

// AuthFunc runs before the handshake. Returning false rejects the client.
type AuthFunc func(w http.ResponseWriter, r *http.Request) (ok bool)

type ServerConfig struct {
	Registry RegistryConfig

	// This is a middleware function to authenticate clients before doing the handshake.
	// If this function returns false authentication will fail. Or else, the handshake will begin as usual.
	Authenticator AuthFunc

	// A WebSocket connection that hasn't completed the upgrade
	// within this duration is closed.
	UpgradeTimeout time.Duration

	// MaxBufferSize is used for preventing DOS.
	// This is the equivalent of maxHTTPBufferSize.
	MaxBufferSize        int64
	DisableMaxBufferSize bool

	// Custom WebSocket options to use.
	WebSocketAcceptOptions *websocket.AcceptOptions

	// Gzip polling responses bigger than HTTPCompressionThreshold bytes.
	HTTPCompression          bool
	HTTPCompressionThreshold int

	// Names of the transports to allow. Defaults to polling and websocket.
	Transports []string
}

// Server serves the sessions of a SessionRegistry over HTTP.
type Server struct {
	registry *SessionRegistry

	authenticator  AuthFunc
	upgradeTimeout time.Duration
	transports     map[string]Transport

	debug Debugger

	closed    chan struct{}
	closeOnce sync.Once
}

func NewServer(config *ServerConfig) *Server {
	if config == nil {
		config = new(ServerConfig)
	}

	s := &Server{
		registry:       NewSessionRegistry(&config.Registry),
		authenticator:  config.Authenticator,
		upgradeTimeout: config.UpgradeTimeout,
		transports:     make(map[string]Transport),
		closed:         make(chan struct{}),
	}
	s.debug = s.registry.debug.WithContext("[sio] Server")

	if s.authenticator == nil {
		s.authenticator = func(w http.ResponseWriter, r *http.Request) (ok bool) { return true }
	}
	if s.upgradeTimeout == 0 {
		s.upgradeTimeout = defaultUpgradeTimeout
	}

	maxBufferSize := config.MaxBufferSize
	if config.DisableMaxBufferSize {
		maxBufferSize = 0
	} else if maxBufferSize == 0 {
		maxBufferSize = defaultMaxBufferSize
	}

	// A poll is held at most as long as the session waits for a PING.
	pingInterval, pingTimeout := s.registry.advertisedPingValues()
	available := []Transport{
		NewPollingTransport(polling.ServerConfig{
			MaxHTTPBufferSize:    maxBufferSize,
			PollTimeout:          pingInterval + pingTimeout,
			Compression:          config.HTTPCompression,
			CompressionThreshold: config.HTTPCompressionThreshold,
		}),
		NewWebSocketTransport(maxBufferSize, config.WebSocketAcceptOptions),
	}

	names := config.Transports
	if len(names) == 0 {
		names = []string{"polling", "websocket"}
	}
	for _, t := range available {
		for _, name := range names {
			if t.Name() == name {
				s.transports[name] = t
			}
		}
	}
	return s
}

func (s *Server) Registry() *SessionRegistry { return s.registry }

// Of declares a namespace, or returns it if it's already declared.
func (s *Server) Of(name string) *Namespace {
	return s.registry.CreateNamespace(name)
}

// Root namespace.
func (s *Server) Root() *Namespace { return s.Of("/") }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.IsClosed() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()

	version, err := strconv.Atoi(q.Get("EIO"))
	if err != nil || version != eioparser.ProtocolVersion {
		writeServerError(w, ErrorUnsupportedProtocolVersion)
		return
	}

	sid := q.Get("sid")
	if sid == "" {
		s.handleHandshake(w, r)
		return
	}

	session, ok := s.registry.GetSession(sid)
	if !ok {
		writeServerError(w, ErrorUnknownSID)
		return
	}
	conn, ok := session.Connection().(httpConnection)
	if !ok {
		writeServerError(w, ErrorUnknownSID)
		return
	}

	n := q.Get("transport")
	if conn.Transport().Name() != n {
		s.maybeUpgrade(w, r, session, conn, n)
		return
	}
	conn.ServeHTTP(w, r)
}

func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeServerError(w, ErrorBadHandshakeMethod)
		return
	}

	t, ok := s.transports[r.URL.Query().Get("transport")]
	if !ok {
		writeServerError(w, ErrorUnknownTransport)
		return
	}

	if !s.authenticator(w, r) {
		writeServerError(w, ErrorForbidden)
		return
	}

	session, err := s.registry.CreateSession(r)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		s.registry.onError(err)
		return
	}

	c, err := t.CreateConnection(session, r)
	if err != nil {
		s.registry.DeleteSession(session.ID())
		w.WriteHeader(http.StatusInternalServerError)
		s.registry.onError(wrapInternalError(fmt.Errorf("CreateConnection failed: %w", err)))
		return
	}
	conn := c.(httpConnection)

	err = conn.handshake(w, r)
	if err != nil {
		s.debug.Log("Handshake failed", err)
		s.registry.DeleteSession(session.ID())
		return
	}

	err = session.OnConnect(conn)
	if err != nil {
		s.debug.Log("Connection rejected", session.ID(), err)
	}

	// Polling delivers the handshake (or the rejection) as the response
	// to this very request. WebSocket reads until the connection is gone.
	conn.postHandshake(w, r)
}

func (s *Server) maybeUpgrade(w http.ResponseWriter, r *http.Request, session *Session, active httpConnection, upgradeTo string) {
	t, ok := s.transports[upgradeTo]
	if !ok {
		writeServerError(w, ErrorUnknownTransport)
		return
	}

	allowed := false
	for _, name := range active.Transport().Upgrades() {
		if name == upgradeTo {
			allowed = true
			break
		}
	}
	if !allowed || r.Method != http.MethodGet {
		writeServerError(w, ErrorBadRequest)
		return
	}

	c, err := t.CreateConnection(session, r)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		s.registry.onError(wrapInternalError(fmt.Errorf("CreateConnection failed: %w", err)))
		return
	}
	conn := c.(httpConnection)

	err = conn.handshake(w, r)
	if err != nil {
		s.debug.Log("Upgrade handshake failed", err)
		return
	}

	cancel := s.registry.scheduler.Schedule(func() {
		if session.Connection() != conn {
			s.debug.Log("Upgrade timed out", session.ID())
			conn.Abort()
			s.registry.onError(fmt.Errorf("sio: upgrade failed: UpgradeTimeout exceeded"))
		}
	}, s.upgradeTimeout)
	defer cancel()

	// The probe (PING/PONG) and the UPGRADE packet are handled by the session.
	conn.postHandshake(w, r)
}

func (s *Server) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Close refuses new requests and closes every session.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.registry.Close()
	})
}
