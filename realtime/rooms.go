package realtime

import (
	"encoding/json"
	"sync"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

// Registry is the process-local room table: one room per board, holding the
// live sessions that joined it. It starts empty, is mutated only through
// Join/Leave/Disconnect and vanishes with the process; clients rejoin on
// reconnect.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	log   *log.Logger
}

type room struct {
	// Held across a whole fan-out so two publishes into the same room cannot
	// interleave; order within a room follows publish-call order.
	mu      sync.Mutex
	members map[*Session]struct{}
}

// NewRegistry creates an empty room registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{rooms: make(map[string]*room), log: logger}
}

// Join adds the session to the board's room. It is idempotent: joining a room
// the session is already in reports false and changes nothing.
func (r *Registry) Join(boardID string, s *Session) bool {
	if !s.markJoined(boardID) {
		return false
	}
	// The insert happens under the registry lock: a concurrent last-member
	// leave would otherwise delete the room between lookup and insert,
	// leaving the session attached to a room Publish can no longer find.
	r.mu.Lock()
	rm, ok := r.rooms[boardID]
	if !ok {
		rm = &room{members: make(map[*Session]struct{})}
		r.rooms[boardID] = rm
	}
	rm.mu.Lock()
	rm.members[s] = struct{}{}
	rm.mu.Unlock()
	r.mu.Unlock()
	return true
}

// Leave removes the session from the board's room. Leaving a room the session
// is not in is a no-op and reports false.
func (r *Registry) Leave(boardID string, s *Session) bool {
	if !s.markLeft(boardID) {
		return false
	}
	r.detach(boardID, s)
	return true
}

// LeaveAll removes the session from every room it joined and returns those
// board ids, one entry per room, so the caller can emit one user-left each.
func (r *Registry) LeaveAll(s *Session) []string {
	boards := s.joinedRooms()
	for _, boardID := range boards {
		if s.markLeft(boardID) {
			r.detach(boardID, s)
		}
	}
	return boards
}

func (r *Registry) detach(boardID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[boardID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.members, s)
	empty := len(rm.members) == 0
	rm.mu.Unlock()
	if empty {
		// A room only exists while it has members.
		delete(r.rooms, boardID)
	}
}

// MemberCount reports the current size of a board's room.
func (r *Registry) MemberCount(boardID string) int {
	r.mu.RLock()
	rm, ok := r.rooms[boardID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Publish fans the event out to every member of the board's room except the
// originating session, which already applied the change locally. Delivery is
// best-effort and unacknowledged; a session that disconnects mid-delivery
// simply misses the event.
func (r *Registry) Publish(boardID string, evt domain.EventType, payload json.RawMessage, originSessionID string) {
	frame, err := encodeFrame(evt, payload)
	if err != nil {
		if r.log != nil {
			r.log.WithError(err).WithField("event", evt).Error("encode frame")
		}
		return
	}

	r.mu.RLock()
	rm, ok := r.rooms[boardID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	for member := range rm.members {
		if member.ID == originSessionID {
			continue
		}
		member.enqueue(frame)
	}
	rm.mu.Unlock()
}

func encodeFrame(evt domain.EventType, payload json.RawMessage) ([]byte, error) {
	return sonic.ConfigStd.Marshal(domain.Event{Type: evt, Data: payload})
}
