// session/session.go
package session

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/herdparty/network"
	"github.com/wfunc/herdparty/replicated"
)

type Session struct {
	ID         string
	ClientID   replicated.ClientID
	Conn       network.Connection
	CreatedAt  time.Time
	lastActive atomic.Int64
}

func NewSession(id string, clientID replicated.ClientID, conn network.Connection) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		ClientID:  clientID,
		Conn:      conn,
		CreatedAt: now,
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) SendJSON(msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message %d: %w", msgID, err)
	}
	return s.Send(msgID, data)
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	nextID   atomic.Uint64
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// NextClientID hands out connection ids, starting at 1.
func (m *Manager) NextClientID() replicated.ClientID {
	return replicated.ClientID(m.nextID.Add(1))
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByClientID(clientID replicated.ClientID) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, session := range m.sessions {
		if session.ClientID == clientID {
			return session, true
		}
	}
	return nil, false
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a copy of the sessions ordered by client id.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session)
	}
	m.mutex.RUnlock()

	slices.SortFunc(out, func(a, b *Session) int {
		switch {
		case a.ClientID < b.ClientID:
			return -1
		case a.ClientID > b.ClientID:
			return 1
		}
		return 0
	})
	return out
}
