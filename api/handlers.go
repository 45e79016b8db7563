package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/ayzaz027-alt/trello-clone/domain"
)

const requestBodyMaxSize = 1 << 20

// API holds the handler dependencies.
type API struct {
	store    Storage
	cache    BoardCache
	auth     Authenticator
	notifier Dispatcher
	log      *log.Logger
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, cache BoardCache, auth Authenticator, notifier Dispatcher, logger *log.Logger) *API {
	a := &API{store: store, cache: cache, auth: auth, notifier: notifier, log: logger}

	e.GET("/healthz", a.healthz)

	e.GET("/api/boards", a.getBoards)
	e.POST("/api/boards", a.createBoard)
	e.GET("/api/boards/:id", a.getBoard)
	e.PUT("/api/boards/:id", a.updateBoard)
	e.DELETE("/api/boards/:id", a.deleteBoard)
	e.POST("/api/boards/:id/members", a.addBoardMember)
	e.DELETE("/api/boards/:id/members/:userId", a.removeBoardMember)
	e.GET("/api/boards/:id/activities", a.getBoardActivities)

	e.POST("/api/boards/:boardId/lists", a.createList)
	e.PUT("/api/boards/:boardId/lists/reorder", a.reorderLists)
	e.PUT("/api/lists/:id", a.updateList)
	e.DELETE("/api/lists/:id", a.deleteList)
	e.PUT("/api/lists/:id/archive", a.archiveList)
	e.PUT("/api/lists/:id/restore", a.restoreList)
	e.POST("/api/lists/:id/copy", a.copyList)

	e.POST("/api/lists/:listId/cards", a.createCard)
	e.GET("/api/cards/:id", a.getCard)
	e.PUT("/api/cards/:id", a.updateCard)
	e.DELETE("/api/cards/:id", a.deleteCard)
	e.PUT("/api/cards/:id/move", a.moveCard)
	e.PUT("/api/cards/:id/archive", a.archiveCard)
	e.POST("/api/cards/:id/members", a.assignCardMember)
	e.DELETE("/api/cards/:id/members/:userId", a.removeCardMember)
	e.POST("/api/cards/:id/labels", a.addCardLabel)
	e.DELETE("/api/cards/:id/labels/:labelId", a.removeCardLabel)
	e.POST("/api/cards/:id/comments", a.addComment)

	return a
}

func (a *API) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// userID authenticates the request and returns the caller's id.
func (a *API) userID(c echo.Context) (string, error) {
	return a.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// bindBody decodes a size-capped JSON request body.
func bindBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	if err := sonic.ConfigStd.NewDecoder(lr).Decode(out); err != nil {
		// An absent body binds the zero value.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.Validationf("invalid request body")
	}
	return nil
}

// requireRole checks that the caller is a member of the board with at least
// the given role. A missing membership on an existing board is Forbidden; a
// missing board is NotFound.
func (a *API) requireRole(ctx context.Context, boardID, userID string, min domain.Role) (domain.Role, error) {
	role, err := a.store.GetBoardRole(ctx, boardID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if _, berr := a.store.GetBoard(ctx, boardID); berr != nil {
				return "", berr
			}
			return "", domain.Forbiddenf("not a board member")
		}
		return "", err
	}
	if role.Level() < min.Level() {
		return "", domain.Forbiddenf("requires %s role", min)
	}
	return role, nil
}

// recordActivity appends an audit record. Failures are logged and swallowed;
// the mutation already committed.
func (a *API) recordActivity(ctx context.Context, act domain.Activity) {
	if err := a.store.AppendActivity(ctx, act); err != nil {
		a.log.WithError(err).WithFields(log.Fields{
			"board_id": act.BoardID,
			"action":   act.Action,
		}).Error("activity append failed")
	}
}
