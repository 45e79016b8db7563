package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

type boardEntity struct {
	aztables.Entity
	Title          string `json:"Title"`
	Description    string `json:"Description,omitempty"`
	Background     string `json:"Background"`
	BackgroundType string `json:"BackgroundType"`
	Visibility     string `json:"Visibility"`
	IsStarred      bool   `json:"IsStarred"`
	IsClosed       bool   `json:"IsClosed"`
	OwnerID        string `json:"OwnerId"`
	CreatedAt      int64  `json:"CreatedAt,string"`
	CreatedAtType  string `json:"CreatedAt@odata.type"`
}

// BoardUpdate carries a partial board update; nil fields are left untouched.
type BoardUpdate struct {
	aztables.Entity
	Title          *string `json:"Title,omitempty"`
	Description    *string `json:"Description,omitempty"`
	Background     *string `json:"Background,omitempty"`
	BackgroundType *string `json:"BackgroundType,omitempty"`
	Visibility     *string `json:"Visibility,omitempty"`
	IsStarred      *bool   `json:"IsStarred,omitempty"`
	IsClosed       *bool   `json:"IsClosed,omitempty"`
}

type memberEntity struct {
	aztables.Entity
	Role string `json:"Role"`
}

func boardFromEntity(ent boardEntity) domain.Board {
	return domain.Board{
		ID:             ent.RowKey,
		Title:          ent.Title,
		Description:    ent.Description,
		Background:     ent.Background,
		BackgroundType: ent.BackgroundType,
		Visibility:     domain.Visibility(ent.Visibility),
		IsStarred:      ent.IsStarred,
		IsClosed:       ent.IsClosed,
		OwnerID:        ent.OwnerID,
		CreatedAt:      time.UnixMilli(ent.CreatedAt).UTC(),
	}
}

// CreateBoard persists a new board row.
func (s *Store) CreateBoard(ctx context.Context, b domain.Board) error {
	ent := boardEntity{
		Entity:         aztables.Entity{PartitionKey: b.ID, RowKey: b.ID},
		Title:          b.Title,
		Description:    b.Description,
		Background:     b.Background,
		BackgroundType: b.BackgroundType,
		Visibility:     string(b.Visibility),
		IsStarred:      b.IsStarred,
		IsClosed:       b.IsClosed,
		OwnerID:        b.OwnerID,
		CreatedAt:      b.CreatedAt.UnixMilli(),
		CreatedAtType:  edmInt64,
	}
	return addEntity(ctx, s.boards, ent)
}

// GetBoard loads a bare board row without its collections.
func (s *Store) GetBoard(ctx context.Context, boardID string) (domain.Board, error) {
	resp, err := s.boards.GetEntity(ctx, boardID, boardID, nil)
	if err != nil {
		return domain.Board{}, mapTableError(err)
	}
	var ent boardEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Board{}, err
	}
	return boardFromEntity(ent), nil
}

// UpdateBoard applies a partial update as one atomic row write.
func (s *Store) UpdateBoard(ctx context.Context, boardID string, upd BoardUpdate) error {
	upd.PartitionKey = boardID
	upd.RowKey = boardID
	return mergeEntity(ctx, s.boards, upd)
}

// DeleteBoard removes the board and cascades to every owned collection:
// lists, cards, memberships, labels, comments and activities.
func (s *Store) DeleteBoard(ctx context.Context, boardID string) error {
	cards, err := s.CardsForBoard(ctx, boardID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	for _, c := range cards {
		if err := deletePartition(ctx, s.comments, c.ID); err != nil {
			return err
		}
	}
	for _, client := range []*aztables.Client{s.lists, s.cards, s.boardMembers, s.cardMembers, s.labels, s.cardLabels, s.activities} {
		if err := deletePartition(ctx, client, boardID); err != nil {
			return err
		}
	}
	return deleteEntity(ctx, s.boards, boardID, boardID)
}

// ListBoardsForUser returns the open boards the user is a member of, starred
// first, then newest first.
func (s *Store) ListBoardsForUser(ctx context.Context, userID string) ([]domain.Board, error) {
	var boardIDs []string
	err := queryEntities(ctx, s.boardMembers, fmt.Sprintf("RowKey eq '%s'", userID), nil, func(raw []byte) error {
		var ent memberEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		boardIDs = append(boardIDs, ent.PartitionKey)
		return nil
	})
	if err != nil {
		return nil, err
	}

	boards := []domain.Board{}
	for _, id := range boardIDs {
		b, err := s.GetBoard(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			// Membership row outlived the board; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		if b.IsClosed {
			continue
		}
		boards = append(boards, b)
	}
	sort.SliceStable(boards, func(i, j int) bool {
		if boards[i].IsStarred != boards[j].IsStarred {
			return boards[i].IsStarred
		}
		return boards[i].CreatedAt.After(boards[j].CreatedAt)
	})
	return boards, nil
}

// HydrateBoard assembles the full read projection: lists with their cards
// (non-archived, display order), members, labels and the owner.
func (s *Store) HydrateBoard(ctx context.Context, boardID string) (domain.Board, error) {
	board, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}

	lists, err := s.ListsForBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	cards, err := s.CardsForBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	cardMembers, err := s.cardMemberIndex(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	cardLabels, err := s.cardLabelIndex(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	labels, err := s.LabelsForBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	labelByID := make(map[string]domain.Label, len(labels))
	for _, l := range labels {
		labelByID[l.ID] = l
	}

	byList := make(map[string][]domain.Card)
	for _, c := range cards {
		if c.IsArchived {
			continue
		}
		for _, uid := range cardMembers[c.ID] {
			u, err := s.GetUser(ctx, uid)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return domain.Board{}, err
			}
			c.Members = append(c.Members, u)
		}
		for _, lid := range cardLabels[c.ID] {
			if l, ok := labelByID[lid]; ok {
				c.Labels = append(c.Labels, l)
			}
		}
		byList[c.ListID] = append(byList[c.ListID], c)
	}

	visible := lists[:0]
	for _, l := range lists {
		if l.IsArchived {
			continue
		}
		l.Cards = byList[l.ID]
		domain.SortCards(l.Cards)
		visible = append(visible, l)
	}
	domain.SortLists(visible)
	board.Lists = visible
	board.Labels = labels

	members, err := s.MembersForBoard(ctx, boardID)
	if err != nil {
		return domain.Board{}, err
	}
	board.Members = members

	if owner, err := s.GetUser(ctx, board.OwnerID); err == nil {
		board.Owner = &owner
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Board{}, err
	}

	return board, nil
}

// AddBoardMember records a membership; adding an existing member fails with
// ErrConflict.
func (s *Store) AddBoardMember(ctx context.Context, boardID, userID string, role domain.Role) error {
	ent := memberEntity{
		Entity: aztables.Entity{PartitionKey: boardID, RowKey: userID},
		Role:   string(role),
	}
	return addEntity(ctx, s.boardMembers, ent)
}

// GetBoardRole returns the user's role on the board, or ErrNotFound when they
// are not a member.
func (s *Store) GetBoardRole(ctx context.Context, boardID, userID string) (domain.Role, error) {
	resp, err := s.boardMembers.GetEntity(ctx, boardID, userID, nil)
	if err != nil {
		return "", mapTableError(err)
	}
	var ent memberEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return "", err
	}
	return domain.Role(ent.Role), nil
}

// RemoveBoardMember deletes a membership row.
func (s *Store) RemoveBoardMember(ctx context.Context, boardID, userID string) error {
	return deleteEntity(ctx, s.boardMembers, boardID, userID)
}

// MembersForBoard lists memberships joined with user profiles.
func (s *Store) MembersForBoard(ctx context.Context, boardID string) ([]domain.Member, error) {
	members := []domain.Member{}
	err := queryEntities(ctx, s.boardMembers, fmt.Sprintf("PartitionKey eq '%s'", boardID), nil, func(raw []byte) error {
		var ent memberEntity
		if err := json.Unmarshal(raw, &ent); err != nil {
			return err
		}
		u, err := s.GetUser(ctx, ent.RowKey)
		if errors.Is(err, domain.ErrNotFound) {
			u = domain.User{ID: ent.RowKey}
		} else if err != nil {
			return err
		}
		members = append(members, domain.Member{User: u, Role: domain.Role(ent.Role)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
