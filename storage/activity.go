package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

type activityEntity struct {
	aztables.Entity
	ActivityID    string `json:"ActivityId"`
	Type          string `json:"Type"`
	Action        string `json:"Action"`
	EntityType    string `json:"EntityType"`
	EntityID      string `json:"EntityId"`
	UserID        string `json:"UserId"`
	Data          string `json:"Data,omitempty"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// activityRowKey orders rows newest-first: the table sorts ascending by row
// key, so the key counts down from MaxInt64 by creation time.
func activityRowKey(createdAt time.Time, id string) string {
	return fmt.Sprintf("%019d_%s", math.MaxInt64-createdAt.UnixNano(), id)
}

// AppendActivity writes one immutable audit record.
func (s *Store) AppendActivity(ctx context.Context, a domain.Activity) error {
	var data string
	if len(a.Data) > 0 {
		raw, err := json.Marshal(a.Data)
		if err != nil {
			return err
		}
		data = string(raw)
	}
	ent := activityEntity{
		Entity:        aztables.Entity{PartitionKey: a.BoardID, RowKey: activityRowKey(a.CreatedAt, a.ID)},
		ActivityID:    a.ID,
		Type:          a.Type,
		Action:        a.Action,
		EntityType:    a.EntityType,
		EntityID:      a.EntityID,
		UserID:        a.UserID,
		Data:          data,
		CreatedAt:     a.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	return addEntity(ctx, s.activities, ent)
}

// ActivitiesForBoard returns the most recent limit records, newest first.
func (s *Store) ActivitiesForBoard(ctx context.Context, boardID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	top := int32(limit)
	activities := []domain.Activity{}
	err := queryEntities(ctx, s.activities, fmt.Sprintf("PartitionKey eq '%s'", boardID), &top, func(raw []byte) error {
		if len(activities) >= limit {
			return nil
		}
		var ent activityEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		a := domain.Activity{
			ID:         ent.ActivityID,
			Type:       ent.Type,
			Action:     ent.Action,
			EntityType: ent.EntityType,
			EntityID:   ent.EntityID,
			BoardID:    ent.PartitionKey,
			UserID:     ent.UserID,
			CreatedAt:  time.UnixMilli(ent.CreatedAt).UTC(),
		}
		if ent.Data != "" {
			if err := json.Unmarshal([]byte(ent.Data), &a.Data); err != nil {
				return err
			}
		}
		activities = append(activities, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return activities, nil
}

type commentEntity struct {
	aztables.Entity
	Text          string `json:"Text"`
	UserID        string `json:"UserId"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// AddComment persists a card comment.
func (s *Store) AddComment(ctx context.Context, c domain.Comment) error {
	ent := commentEntity{
		Entity:        aztables.Entity{PartitionKey: c.CardID, RowKey: c.ID},
		Text:          c.Text,
		UserID:        c.User.ID,
		CreatedAt:     c.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	return addEntity(ctx, s.comments, ent)
}

// CommentsForCard returns a card's comments, newest first, each joined with
// the commenting user's profile.
func (s *Store) CommentsForCard(ctx context.Context, cardID string) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	err := queryEntities(ctx, s.comments, fmt.Sprintf("PartitionKey eq '%s'", cardID), nil, func(raw []byte) error {
		var ent commentEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		c := domain.Comment{
			ID:        ent.RowKey,
			Text:      ent.Text,
			CardID:    ent.PartitionKey,
			CreatedAt: time.UnixMilli(ent.CreatedAt).UTC(),
		}
		if u, err := s.GetUser(ctx, ent.UserID); err == nil {
			c.User = u
		} else {
			c.User = domain.User{ID: ent.UserID}
		}
		comments = append(comments, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}
