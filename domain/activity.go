package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity is one immutable audit record. Records are append-only; nothing in
// the mutation path ever updates or deletes one.
type Activity struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Action     string            `json:"action"`
	EntityType string            `json:"entityType"`
	EntityID   string            `json:"entityId"`
	BoardID    string            `json:"boardId"`
	UserID     string            `json:"userId"`
	Data       map[string]string `json:"data,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	User       *User             `json:"user,omitempty"`
}

// NewActivity stamps a fresh record with an id and creation time.
func NewActivity(typ, action, entityType, entityID, boardID, userID string, data map[string]string) Activity {
	return Activity{
		ID:         uuid.NewString(),
		Type:       typ,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BoardID:    boardID,
		UserID:     userID,
		Data:       data,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewNotification stamps a fresh in-app notification for one recipient.
func NewNotification(typ, title, message, userID string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}
