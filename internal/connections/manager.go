package connections

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/deepgram/aiproxy/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// TimeoutConfig holds the various timeout settings for WebSocket connections
type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// Session is one live relay connection. Writes to the underlying connection
// must go through WriteJSON or WriteControl so only one goroutine writes at a
// time.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	StartedAt time.Time

	writeMu  sync.Mutex
	timeouts TimeoutConfig
}

// WriteJSON writes v as a text frame under the session write lock.
func (s *Session) WriteJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.Conn.SetWriteDeadline(time.Now().Add(s.timeouts.WriteWait))
	return s.Conn.WriteJSON(v)
}

// Ping sends a ping control frame under the session write lock.
func (s *Session) Ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.timeouts.WriteWait))
}

// Manager tracks the live relay sessions
type Manager struct {
	sessions sync.Map
	count    atomic.Int64
	timeouts TimeoutConfig
}

func NewManager(timeouts TimeoutConfig) *Manager {
	return &Manager{
		timeouts: timeouts,
	}
}

// Open registers conn under a fresh session id.
func (m *Manager) Open(conn *websocket.Conn) *Session {
	session := &Session{
		ID:        uuid.New().String(),
		Conn:      conn,
		StartedAt: time.Now(),
		timeouts:  m.timeouts,
	}
	m.sessions.Store(session.ID, session)
	m.count.Add(1)
	metrics.RelayConnections.Inc()
	return session
}

// Close forgets the session. Closing twice is a no-op.
func (m *Manager) Close(session *Session) {
	if _, loaded := m.sessions.LoadAndDelete(session.ID); loaded {
		m.count.Add(-1)
		metrics.RelayConnections.Dec()
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	value, ok := m.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*Session), true
}

// Count returns the current number of open sessions
func (m *Manager) Count() int {
	return int(m.count.Load())
}

// GetTimeouts returns the current timeout configuration
func (m *Manager) GetTimeouts() TimeoutConfig {
	return m.timeouts
}
