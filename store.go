package sio

import (
	"github.com/karagenc/sioengine/internal/sync"
)

type (
	sessionStore struct {
		sessions map[string]*Session
		mu       sync.Mutex
	}

	nspStore struct {
		nsps map[string]*Namespace
		mu   sync.RWMutex
	}

	// Sockets of one session, by namespace name.
	sessionSocketStore struct {
		sockets map[string]*Socket
		mu      sync.Mutex
	}

	ackStore struct {
		acks map[uint64]AckCallback
		mu   sync.Mutex
	}
)

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func newNspStore() *nspStore {
	return &nspStore{nsps: make(map[string]*Namespace)}
}

func newSessionSocketStore() *sessionSocketStore {
	return &sessionSocketStore{sockets: make(map[string]*Socket)}
}

func newAckStore() *ackStore {
	return &ackStore{acks: make(map[uint64]AckCallback)}
}

func (s *sessionStore) get(sid string) (session *Session, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok = s.sessions[sid]
	return
}

// setIfAbsent reports whether session was stored.
func (s *sessionStore) setIfAbsent(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID()]; exists {
		return false
	}
	s.sessions[session.ID()] = session
	return true
}

func (s *sessionStore) delete(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
}

func (s *sessionStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for sid := range s.sessions {
		ids = append(ids, sid)
	}
	return ids
}

func (s *sessionStore) getAll() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

func (s *nspStore) get(name string) (nsp *Namespace, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nsp, ok = s.nsps[name]
	return
}

func (s *nspStore) getOrCreate(name string, create func() *Namespace) *Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	nsp, ok := s.nsps[name]
	if !ok {
		nsp = create()
		s.nsps[name] = nsp
	}
	return nsp
}

func (s *sessionSocketStore) get(nsp string) (socket *Socket, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	socket, ok = s.sockets[nsp]
	return
}

func (s *sessionSocketStore) set(socket *Socket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[socket.nsp.Name()] = socket
}

// remove reports whether this call removed the socket.
// Whoever removes a socket is responsible for its disconnect notification.
func (s *sessionSocketStore) remove(nsp string) (socket *Socket, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	socket, ok = s.sockets[nsp]
	if ok {
		delete(s.sockets, nsp)
	}
	return
}

func (s *sessionSocketStore) getAndRemoveAll() []*Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	sockets := make([]*Socket, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	s.sockets = make(map[string]*Socket)
	return sockets
}

func (s *sessionSocketStore) namespaces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sockets))
	for name := range s.sockets {
		names = append(names, name)
	}
	return names
}

func (s *ackStore) set(id uint64, ack AckCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks[id] = ack
}

func (s *ackStore) remove(id uint64) (ack AckCallback, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ack, ok = s.acks[id]
	delete(s.acks, id)
	return
}

func (s *ackStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acks)
}

func (s *ackStore) removeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks = make(map[uint64]AckCallback)
}
