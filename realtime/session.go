package realtime

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// State tracks a connection through its lifecycle. Transitions only move
// forward: Connecting -> Authenticating -> Active -> Closed, with a failed
// handshake jumping straight to Closed. No session reaches Active without a
// verified identity.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// frameWriter is the slice of *websocket.Conn the session needs; tests swap
// in fakes.
type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1 // websocket.TextMessage

// Session is one live connection: an authenticated identity plus its
// ephemeral room memberships. Nothing about it is persisted; on process
// restart every client reconnects and rejoins.
type Session struct {
	ID       string
	UserID   string
	UserName string

	conn  frameWriter
	send  chan []byte
	state atomic.Int32
	log   *log.Logger

	mu     sync.Mutex
	closed bool
	joined map[string]struct{}

	dropped atomic.Uint64
}

func newSession(id string, conn frameWriter, buffer int, logger *log.Logger) *Session {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Session{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, buffer),
		log:    logger,
		joined: make(map[string]struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) transition(to State) {
	s.state.Store(int32(to))
}

// enqueue hands a frame to the session's writer without blocking. A session
// whose buffer is full is a slow consumer; its frame is dropped (delivery is
// at-most-once) so the other members of the room are never stalled.
func (s *Session) enqueue(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.State() != StateActive {
		return
	}
	select {
	case s.send <- frame:
	default:
		n := s.dropped.Add(1)
		if s.log != nil {
			s.log.WithFields(log.Fields{
				"session": s.ID,
				"user":    s.UserID,
				"dropped": n,
			}).Warn("slow session, frame dropped")
		}
	}
}

// writeLoop drains the send queue onto the wire. It is the only goroutine
// writing to the connection, which preserves enqueue order per session.
func (s *Session) writeLoop() {
	for frame := range s.send {
		if err := s.conn.WriteMessage(textMessage, frame); err != nil {
			if s.log != nil {
				s.log.WithError(err).WithField("session", s.ID).Debug("session write failed")
			}
			s.Close()
			// Keep draining so a racing enqueue cannot block on a full
			// channel after close.
			continue
		}
	}
}

// Close tears the session down. Safe to call from any goroutine, repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.transition(StateClosed)
	close(s.send)
	s.mu.Unlock()
	_ = s.conn.Close()
}

func (s *Session) markJoined(boardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joined[boardID]; ok {
		return false
	}
	s.joined[boardID] = struct{}{}
	return true
}

func (s *Session) markLeft(boardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joined[boardID]; !ok {
		return false
	}
	delete(s.joined, boardID)
	return true
}

func (s *Session) joinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.joined))
	for id := range s.joined {
		rooms = append(rooms, id)
	}
	return rooms
}
