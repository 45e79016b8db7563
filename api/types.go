package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ayzaz027-alt/trello-clone/domain"
	"github.com/ayzaz027-alt/trello-clone/notify"
	"github.com/ayzaz027-alt/trello-clone/storage"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	CreateBoard(ctx context.Context, b domain.Board) error
	GetBoard(ctx context.Context, boardID string) (domain.Board, error)
	UpdateBoard(ctx context.Context, boardID string, upd storage.BoardUpdate) error
	DeleteBoard(ctx context.Context, boardID string) error
	AddBoardMember(ctx context.Context, boardID, userID string, role domain.Role) error
	GetBoardRole(ctx context.Context, boardID, userID string) (domain.Role, error)
	RemoveBoardMember(ctx context.Context, boardID, userID string) error
	MembersForBoard(ctx context.Context, boardID string) ([]domain.Member, error)

	CreateList(ctx context.Context, l domain.List) error
	GetList(ctx context.Context, listID string) (domain.List, error)
	UpdateList(ctx context.Context, boardID, listID string, upd storage.ListUpdate) error
	DeleteList(ctx context.Context, boardID, listID string) error
	ListsForBoard(ctx context.Context, boardID string) ([]domain.List, error)
	CreateLabel(ctx context.Context, l domain.Label) error
	LabelsForBoard(ctx context.Context, boardID string) ([]domain.Label, error)

	CreateCard(ctx context.Context, c domain.Card) error
	GetCard(ctx context.Context, cardID string) (domain.Card, error)
	UpdateCard(ctx context.Context, boardID, cardID string, upd storage.CardUpdate) error
	MoveCard(ctx context.Context, card domain.Card, destBoardID, destListID string, position int) error
	DeleteCard(ctx context.Context, boardID, cardID string) error
	CardsForList(ctx context.Context, boardID, listID string) ([]domain.Card, error)
	AssignCardMember(ctx context.Context, boardID, cardID, userID string) error
	RemoveCardMember(ctx context.Context, boardID, cardID, userID string) error
	AddCardLabel(ctx context.Context, boardID, cardID, labelID string) error
	RemoveCardLabel(ctx context.Context, boardID, cardID, labelID string) error
	CardMemberIDs(ctx context.Context, boardID, cardID string) ([]string, error)

	AddComment(ctx context.Context, c domain.Comment) error
	CommentsForCard(ctx context.Context, cardID string) ([]domain.Comment, error)
	AppendActivity(ctx context.Context, a domain.Activity) error
	ActivitiesForBoard(ctx context.Context, boardID string, limit int) ([]domain.Activity, error)

	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// BoardCache is the read-through cache in front of Storage. Fetches report
// whether the value was served from cache; invalidations are fire-and-forget.
type BoardCache interface {
	FetchBoard(ctx context.Context, boardID string) (domain.Board, bool, error)
	FetchUserBoards(ctx context.Context, userID string) ([]domain.Board, bool, error)
	InvalidateBoard(ctx context.Context, boardID string)
	InvalidateUserBoards(ctx context.Context, userID string)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Dispatcher hands notification effects to a background pool. A false return
// means the effect was dropped; mutations never fail because of it.
type Dispatcher interface {
	Dispatch(effect notify.Effect) bool
}

// envelope is the uniform response body shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Cached  bool   `json:"cached,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func respondCached(c echo.Context, data any, cached bool) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data, Cached: cached})
}

func respondMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Success: true, Message: message})
}

// fail maps a domain error onto an HTTP status and the failure envelope.
func fail(c echo.Context, err error) error {
	return c.JSON(statusForError(err), envelope{Success: false, Message: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
