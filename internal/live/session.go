package live

import (
	"sync"
	"time"
)

// State is the connection state of the channel.
type State int

// Connection states.
const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Mode is the delivery strategy in use.
type Mode string

// Delivery modes.
const (
	ModeSocket  Mode = "socket"
	ModePolling Mode = "polling"
)

// Session is the state owned by one channel: socket handle, connection
// state, real-time flag and last update time. Only the channel's run loop
// writes it; Snapshot may be called from anywhere.
type Session struct {
	mu         sync.RWMutex
	conn       Conn
	state      State
	mode       Mode
	realTime   bool
	lastUpdate time.Time
}

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	State           State
	Mode            Mode
	RealTimeEnabled bool
	LastUpdate      time.Time
}

// Snapshot returns the current session values.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:           s.state,
		Mode:            s.mode,
		RealTimeEnabled: s.realTime,
		LastUpdate:      s.lastUpdate,
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) opened(conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.state = Connected
	s.realTime = true
	s.mu.Unlock()
}

// closed clears the connection and returns the handle that was held.
func (s *Session) closed() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.conn
	s.conn = nil
	s.state = Disconnected
	s.realTime = false
	return conn
}

func (s *Session) setMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastUpdate = t
	s.mu.Unlock()
}
