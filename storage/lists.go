package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

type listEntity struct {
	aztables.Entity
	Title         string `json:"Title"`
	Position      int    `json:"Position"`
	IsArchived    bool   `json:"IsArchived"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// ListUpdate carries a partial list update; nil fields are left untouched.
type ListUpdate struct {
	aztables.Entity
	Title      *string `json:"Title,omitempty"`
	Position   *int    `json:"Position,omitempty"`
	IsArchived *bool   `json:"IsArchived,omitempty"`
}

func listFromEntity(ent listEntity) domain.List {
	return domain.List{
		ID:         ent.RowKey,
		Title:      ent.Title,
		Position:   ent.Position,
		BoardID:    ent.PartitionKey,
		IsArchived: ent.IsArchived,
		CreatedAt:  time.UnixMilli(ent.CreatedAt).UTC(),
	}
}

// CreateList persists a new list row.
func (s *Store) CreateList(ctx context.Context, l domain.List) error {
	ent := listEntity{
		Entity:        aztables.Entity{PartitionKey: l.BoardID, RowKey: l.ID},
		Title:         l.Title,
		Position:      l.Position,
		IsArchived:    l.IsArchived,
		CreatedAt:     l.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	return addEntity(ctx, s.lists, ent)
}

// GetList locates a list by id alone.
func (s *Store) GetList(ctx context.Context, listID string) (domain.List, error) {
	var out domain.List
	err := findByRowKey(ctx, s.lists, listID, func(raw []byte) error {
		var ent listEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		out = listFromEntity(ent)
		return nil
	})
	return out, err
}

// UpdateList applies a partial update as one atomic row write. Concurrent
// position updates from different clients may race; readers tolerate the
// resulting duplicates via the stable display sort.
func (s *Store) UpdateList(ctx context.Context, boardID, listID string, upd ListUpdate) error {
	upd.PartitionKey = boardID
	upd.RowKey = listID
	return mergeEntity(ctx, s.lists, upd)
}

// DeleteList removes the list and its cards.
func (s *Store) DeleteList(ctx context.Context, boardID, listID string) error {
	cards, err := s.CardsForList(ctx, boardID, listID)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if err := s.DeleteCard(ctx, boardID, c.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return deleteEntity(ctx, s.lists, boardID, listID)
}

// ListsForBoard returns every list row of a board, archived included.
func (s *Store) ListsForBoard(ctx context.Context, boardID string) ([]domain.List, error) {
	lists := []domain.List{}
	err := queryEntities(ctx, s.lists, fmt.Sprintf("PartitionKey eq '%s'", boardID), nil, func(raw []byte) error {
		var ent listEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		lists = append(lists, listFromEntity(ent))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lists, nil
}

type labelEntity struct {
	aztables.Entity
	Name  string `json:"Name"`
	Color string `json:"Color"`
}

// CreateLabel persists a board label.
func (s *Store) CreateLabel(ctx context.Context, l domain.Label) error {
	ent := labelEntity{
		Entity: aztables.Entity{PartitionKey: l.BoardID, RowKey: l.ID},
		Name:   l.Name,
		Color:  l.Color,
	}
	return addEntity(ctx, s.labels, ent)
}

// LabelsForBoard returns the board's labels.
func (s *Store) LabelsForBoard(ctx context.Context, boardID string) ([]domain.Label, error) {
	labels := []domain.Label{}
	err := queryEntities(ctx, s.labels, fmt.Sprintf("PartitionKey eq '%s'", boardID), nil, func(raw []byte) error {
		var ent labelEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		labels = append(labels, domain.Label{ID: ent.RowKey, Name: ent.Name, Color: ent.Color, BoardID: ent.PartitionKey})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return labels, nil
}
