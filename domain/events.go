package domain

import "encoding/json"

// EventType tags a live-protocol event. Unknown tags are rejected at the
// boundary rather than relayed as opaque blobs.
type EventType string

// Client-emitted events.
const (
	EventJoinBoard  EventType = "join-board"
	EventLeaveBoard EventType = "leave-board"

	EventCardCreated EventType = "card-created"
	EventCardUpdated EventType = "card-updated"
	EventCardDeleted EventType = "card-deleted"
	EventCardMoved   EventType = "card-moved"

	EventListCreated EventType = "list-created"
	EventListUpdated EventType = "list-updated"
	EventListDeleted EventType = "list-deleted"

	EventCommentAdded   EventType = "comment-added"
	EventMemberAssigned EventType = "member-assigned"

	EventTypingStart EventType = "typing-start"
	EventTypingStop  EventType = "typing-stop"
)

// Server-emitted events.
const (
	EventUserJoined        EventType = "user-joined"
	EventUserLeft          EventType = "user-left"
	EventUserTyping        EventType = "user-typing"
	EventUserStoppedTyping EventType = "user-stopped-typing"
)

var relayable = map[EventType]struct{}{
	EventCardCreated:    {},
	EventCardUpdated:    {},
	EventCardDeleted:    {},
	EventCardMoved:      {},
	EventListCreated:    {},
	EventListUpdated:    {},
	EventListDeleted:    {},
	EventCommentAdded:   {},
	EventMemberAssigned: {},
}

// Relayable reports whether the event is a board mutation that gets fanned
// out verbatim (enriched with the publisher identity) to the board room.
func (t EventType) Relayable() bool {
	_, ok := relayable[t]
	return ok
}

// Event is one live-protocol frame.
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RoomScope is the part of a client payload that routes it: every relayed
// event carries the board id, typing events additionally carry the card id.
type RoomScope struct {
	BoardID string `json:"boardId"`
	CardID  string `json:"cardId,omitempty"`
}

// ScopeOf extracts the routing scope from a raw payload.
func ScopeOf(data json.RawMessage) (RoomScope, error) {
	var s RoomScope
	if len(data) == 0 {
		return s, Validationf("empty event payload")
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, Validationf("malformed event payload: %v", err)
	}
	if s.BoardID == "" {
		return s, Validationf("event payload missing boardId")
	}
	return s, nil
}

// EnrichPayload merges the publisher's identity into a payload before fan-out,
// mirroring what the board room's peers need to attribute the change.
func EnrichPayload(data json.RawMessage, userID, userName string) (json.RawMessage, error) {
	fields := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, Validationf("malformed event payload: %v", err)
		}
	}
	fields["userId"] = userID
	fields["userName"] = userName
	return json.Marshal(fields)
}

// Presence builds the payload for user-joined / user-left notifications.
func Presence(userID, userName string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"userId": userID, "userName": userName})
	return data
}

// TypingPayload builds the payload relayed for typing indicators.
func TypingPayload(cardID, userID, userName string) json.RawMessage {
	fields := map[string]string{"cardId": cardID, "userId": userID}
	if userName != "" {
		fields["userName"] = userName
	}
	data, _ := json.Marshal(fields)
	return data
}
