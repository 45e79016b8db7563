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

type cardEntity struct {
	aztables.Entity
	Title         string `json:"Title"`
	Description   string `json:"Description,omitempty"`
	Position      int    `json:"Position"`
	ListID        string `json:"ListId"`
	DueDate       string `json:"DueDate,omitempty"`
	IsCompleted   bool   `json:"IsCompleted"`
	CompletedAt   string `json:"CompletedAt,omitempty"`
	IsArchived    bool   `json:"IsArchived"`
	Cover         string `json:"Cover,omitempty"`
	CreatedBy     string `json:"CreatedBy"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

// CardUpdate carries a partial card update; nil fields are left untouched.
type CardUpdate struct {
	aztables.Entity
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	Position    *int    `json:"Position,omitempty"`
	ListID      *string `json:"ListId,omitempty"`
	DueDate     *string `json:"DueDate,omitempty"`
	IsCompleted *bool   `json:"IsCompleted,omitempty"`
	CompletedAt *string `json:"CompletedAt,omitempty"`
	IsArchived  *bool   `json:"IsArchived,omitempty"`
	Cover       *string `json:"Cover,omitempty"`
}

func cardFromEntity(ent cardEntity) domain.Card {
	c := domain.Card{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Position:    ent.Position,
		ListID:      ent.ListID,
		BoardID:     ent.PartitionKey,
		IsCompleted: ent.IsCompleted,
		IsArchived:  ent.IsArchived,
		Cover:       ent.Cover,
		CreatedBy:   ent.CreatedBy,
		CreatedAt:   time.UnixMilli(ent.CreatedAt).UTC(),
	}
	if ent.DueDate != "" {
		if ts, err := time.Parse(time.RFC3339, ent.DueDate); err == nil {
			c.DueDate = &ts
		}
	}
	if ent.CompletedAt != "" {
		if ts, err := time.Parse(time.RFC3339, ent.CompletedAt); err == nil {
			c.CompletedAt = &ts
		}
	}
	return c
}

func cardToEntity(c domain.Card) cardEntity {
	ent := cardEntity{
		Entity:        aztables.Entity{PartitionKey: c.BoardID, RowKey: c.ID},
		Title:         c.Title,
		Description:   c.Description,
		Position:      c.Position,
		ListID:        c.ListID,
		IsCompleted:   c.IsCompleted,
		IsArchived:    c.IsArchived,
		Cover:         c.Cover,
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt.UnixMilli(),
		CreatedAtType: edmInt64,
	}
	if c.DueDate != nil {
		ent.DueDate = c.DueDate.UTC().Format(time.RFC3339)
	}
	if c.CompletedAt != nil {
		ent.CompletedAt = c.CompletedAt.UTC().Format(time.RFC3339)
	}
	return ent
}

// CreateCard persists a new card row.
func (s *Store) CreateCard(ctx context.Context, c domain.Card) error {
	return addEntity(ctx, s.cards, cardToEntity(c))
}

// GetCard locates a card by id alone.
func (s *Store) GetCard(ctx context.Context, cardID string) (domain.Card, error) {
	var out domain.Card
	err := findByRowKey(ctx, s.cards, cardID, func(raw []byte) error {
		var ent cardEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		out = cardFromEntity(ent)
		return nil
	})
	return out, err
}

// UpdateCard applies a partial update as one atomic row write.
func (s *Store) UpdateCard(ctx context.Context, boardID, cardID string, upd CardUpdate) error {
	upd.PartitionKey = boardID
	upd.RowKey = cardID
	return mergeEntity(ctx, s.cards, upd)
}

// MoveCard reparents a card to (list, position). Only the moved card's own
// row changes; siblings in the source and destination lists are never
// renumbered. Within one board the move is a single atomic row write; across
// boards it is an insert followed by a delete of the old row.
func (s *Store) MoveCard(ctx context.Context, card domain.Card, destBoardID, destListID string, position int) error {
	if destBoardID == card.BoardID {
		listID := destListID
		pos := position
		return s.UpdateCard(ctx, card.BoardID, card.ID, CardUpdate{ListID: &listID, Position: &pos})
	}
	moved := card
	moved.BoardID = destBoardID
	moved.ListID = destListID
	moved.Position = position
	if err := addEntity(ctx, s.cards, cardToEntity(moved)); err != nil {
		return err
	}
	return deleteEntity(ctx, s.cards, card.BoardID, card.ID)
}

// DeleteCard removes the card with its member and label attachments and its
// comments.
func (s *Store) DeleteCard(ctx context.Context, boardID, cardID string) error {
	memberRows, err := s.attachmentRowKeys(ctx, s.cardMembers, boardID, cardID)
	if err != nil {
		return err
	}
	for _, rk := range memberRows {
		if err := deleteEntity(ctx, s.cardMembers, boardID, rk); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	labelRows, err := s.attachmentRowKeys(ctx, s.cardLabels, boardID, cardID)
	if err != nil {
		return err
	}
	for _, rk := range labelRows {
		if err := deleteEntity(ctx, s.cardLabels, boardID, rk); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	if err := deletePartition(ctx, s.comments, cardID); err != nil {
		return err
	}
	return deleteEntity(ctx, s.cards, boardID, cardID)
}

// CardsForBoard returns every card row of a board, archived included.
func (s *Store) CardsForBoard(ctx context.Context, boardID string) ([]domain.Card, error) {
	cards := []domain.Card{}
	err := queryEntities(ctx, s.cards, fmt.Sprintf("PartitionKey eq '%s'", boardID), nil, func(raw []byte) error {
		var ent cardEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		cards = append(cards, cardFromEntity(ent))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// CardsForList returns the cards of one list.
func (s *Store) CardsForList(ctx context.Context, boardID, listID string) ([]domain.Card, error) {
	cards := []domain.Card{}
	filter := fmt.Sprintf("PartitionKey eq '%s' and ListId eq '%s'", boardID, listID)
	err := queryEntities(ctx, s.cards, filter, nil, func(raw []byte) error {
		var ent cardEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		cards = append(cards, cardFromEntity(ent))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// Card member and label attachments live in board-partitioned tables with a
// composite row key so a whole board hydrates in one scan per table.

type attachmentEntity struct {
	aztables.Entity
	CardID  string `json:"CardId"`
	MatchID string `json:"MatchId"`
}

func attachmentRowKey(cardID, matchID string) string {
	return cardID + "_" + matchID
}

// AssignCardMember attaches a user to a card; duplicates fail with ErrConflict.
func (s *Store) AssignCardMember(ctx context.Context, boardID, cardID, userID string) error {
	ent := attachmentEntity{
		Entity:  aztables.Entity{PartitionKey: boardID, RowKey: attachmentRowKey(cardID, userID)},
		CardID:  cardID,
		MatchID: userID,
	}
	return addEntity(ctx, s.cardMembers, ent)
}

// RemoveCardMember detaches a user from a card.
func (s *Store) RemoveCardMember(ctx context.Context, boardID, cardID, userID string) error {
	return deleteEntity(ctx, s.cardMembers, boardID, attachmentRowKey(cardID, userID))
}

// AddCardLabel attaches a label to a card; duplicates fail with ErrConflict.
func (s *Store) AddCardLabel(ctx context.Context, boardID, cardID, labelID string) error {
	ent := attachmentEntity{
		Entity:  aztables.Entity{PartitionKey: boardID, RowKey: attachmentRowKey(cardID, labelID)},
		CardID:  cardID,
		MatchID: labelID,
	}
	return addEntity(ctx, s.cardLabels, ent)
}

// RemoveCardLabel detaches a label from a card.
func (s *Store) RemoveCardLabel(ctx context.Context, boardID, cardID, labelID string) error {
	return deleteEntity(ctx, s.cardLabels, boardID, attachmentRowKey(cardID, labelID))
}

// CardMemberIDs lists the user ids attached to a card.
func (s *Store) CardMemberIDs(ctx context.Context, boardID, cardID string) ([]string, error) {
	var ids []string
	filter := fmt.Sprintf("PartitionKey eq '%s' and CardId eq '%s'", boardID, cardID)
	err := queryEntities(ctx, s.cardMembers, filter, nil, func(raw []byte) error {
		var ent attachmentEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		ids = append(ids, ent.MatchID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) attachmentRowKeys(ctx context.Context, client *aztables.Client, boardID, cardID string) ([]string, error) {
	var rowKeys []string
	filter := fmt.Sprintf("PartitionKey eq '%s' and CardId eq '%s'", boardID, cardID)
	err := queryEntities(ctx, client, filter, nil, func(raw []byte) error {
		var ent attachmentEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		rowKeys = append(rowKeys, ent.RowKey)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rowKeys, nil
}

func (s *Store) cardMemberIndex(ctx context.Context, boardID string) (map[string][]string, error) {
	return s.attachmentIndex(ctx, s.cardMembers, boardID)
}

func (s *Store) cardLabelIndex(ctx context.Context, boardID string) (map[string][]string, error) {
	return s.attachmentIndex(ctx, s.cardLabels, boardID)
}

func (s *Store) attachmentIndex(ctx context.Context, client *aztables.Client, boardID string) (map[string][]string, error) {
	index := make(map[string][]string)
	err := queryEntities(ctx, client, fmt.Sprintf("PartitionKey eq '%s'", boardID), nil, func(raw []byte) error {
		var ent attachmentEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		index[ent.CardID] = append(index[ent.CardID], ent.MatchID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}
