package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

type userEntity struct {
	aztables.Entity
	Name   string `json:"Name"`
	Email  string `json:"Email"`
	Avatar string `json:"Avatar,omitempty"`
}

func userFromEntity(ent userEntity) domain.User {
	return domain.User{ID: ent.RowKey, Name: ent.Name, Email: ent.Email, Avatar: ent.Avatar}
}

// GetUser loads a user profile.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	resp, err := s.users.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		return domain.User{}, mapTableError(err)
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.User{}, err
	}
	return userFromEntity(ent), nil
}

// GetUserByEmail locates a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var out domain.User
	found := false
	err := queryEntities(ctx, s.users, fmt.Sprintf("Email eq '%s'", email), nil, func(raw []byte) error {
		var ent userEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		out = userFromEntity(ent)
		found = true
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, domain.ErrNotFound
	}
	return out, nil
}

type notificationEntity struct {
	aztables.Entity
	Type          string `json:"Type"`
	Title         string `json:"Title"`
	Message       string `json:"Message"`
	Data          string `json:"Data,omitempty"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// InsertNotification persists an in-app notification row.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) error {
	var data string
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return err
		}
		data = string(raw)
	}
	ent := notificationEntity{
		Entity:        aztables.Entity{PartitionKey: n.UserID, RowKey: n.ID},
		Type:          n.Type,
		Title:         n.Title,
		Message:       n.Message,
		Data:          data,
		CreatedAt:     n.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	return addEntity(ctx, s.notifications, ent)
}

// EmailMessage is the payload handed to the outbound email queue; a separate
// sender drains the queue so handlers never wait on delivery.
type EmailMessage struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Args     map[string]string `json:"args,omitempty"`
}

// EnqueueEmail queues one outbound email.
func (s *Store) EnqueueEmail(ctx context.Context, msg EmailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := s.emailQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDependency, err)
	}
	return nil
}
