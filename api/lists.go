package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayzaz027-alt/trello-clone/domain"
	"github.com/ayzaz027-alt/trello-clone/storage"
)

type createListRequest struct {
	Title string `json:"title"`
}

func (a *API) createList(c echo.Context) error {
	ctx := c.Request().Context()
	boardID := c.Param("boardId")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, boardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req createListRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Title == "" {
		return fail(c, domain.Validationf("title is required"))
	}

	siblings, err := a.store.ListsForBoard(ctx, boardID)
	if err != nil {
		return fail(c, err)
	}
	list := domain.List{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Position:  domain.NextListPosition(siblings),
		BoardID:   boardID,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateList(ctx, list); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("list", "created", "list", list.ID, boardID, userID,
		map[string]string{"title": list.Title}))
	a.cache.InvalidateBoard(ctx, boardID)

	return respond(c, http.StatusCreated, list)
}

type reorderListsRequest struct {
	Lists []domain.PositionUpdate `json:"lists"`
}

type reorderFailure struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type reorderResult struct {
	Updated int              `json:"updated"`
	Failed  []reorderFailure `json:"failed,omitempty"`
}

// reorderLists applies each position update independently. A failed item does
// not roll back the others; callers get the per-item failures back.
func (a *API) reorderLists(c echo.Context) error {
	ctx := c.Request().Context()
	boardID := c.Param("boardId")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, boardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req reorderListsRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if len(req.Lists) == 0 {
		return fail(c, domain.Validationf("lists are required"))
	}

	result := reorderResult{}
	for _, item := range req.Lists {
		pos := item.Position
		if err := a.store.UpdateList(ctx, boardID, item.ID, storage.ListUpdate{Position: &pos}); err != nil {
			result.Failed = append(result.Failed, reorderFailure{ID: item.ID, Message: err.Error()})
			continue
		}
		result.Updated++
	}

	a.recordActivity(ctx, domain.NewActivity("list", "reordered", "board", boardID, boardID, userID, nil))
	a.cache.InvalidateBoard(ctx, boardID)

	return respond(c, http.StatusOK, result)
}

type updateListRequest struct {
	Title    *string `json:"title"`
	Position *int    `json:"position"`
}

func (a *API) updateList(c echo.Context) error {
	ctx := c.Request().Context()
	listID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	list, err := a.store.GetList(ctx, listID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, list.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req updateListRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Title != nil && *req.Title == "" {
		return fail(c, domain.Validationf("title cannot be empty"))
	}

	upd := storage.ListUpdate{Title: req.Title, Position: req.Position}
	if err := a.store.UpdateList(ctx, list.BoardID, listID, upd); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("list", "updated", "list", listID, list.BoardID, userID, nil))
	a.cache.InvalidateBoard(ctx, list.BoardID)

	updated, err := a.store.GetList(ctx, listID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, updated)
}

func (a *API) deleteList(c echo.Context) error {
	ctx := c.Request().Context()
	listID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	list, err := a.store.GetList(ctx, listID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, list.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	if err := a.store.DeleteList(ctx, list.BoardID, listID); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("list", "deleted", "list", listID, list.BoardID, userID,
		map[string]string{"title": list.Title}))
	a.cache.InvalidateBoard(ctx, list.BoardID)

	return respondMessage(c, http.StatusOK, "List deleted")
}

func (a *API) archiveList(c echo.Context) error {
	return a.setListArchived(c, true, "archived")
}

func (a *API) restoreList(c echo.Context) error {
	return a.setListArchived(c, false, "restored")
}

func (a *API) setListArchived(c echo.Context, archived bool, action string) error {
	ctx := c.Request().Context()
	listID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	list, err := a.store.GetList(ctx, listID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, list.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	if err := a.store.UpdateList(ctx, list.BoardID, listID, storage.ListUpdate{IsArchived: &archived}); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("list", action, "list", listID, list.BoardID, userID,
		map[string]string{"title": list.Title}))
	a.cache.InvalidateBoard(ctx, list.BoardID)

	list.IsArchived = archived
	return respond(c, http.StatusOK, list)
}

type copyListRequest struct {
	Title string `json:"title"`
}

// copyList clones a list and its cards to the end of the same board.
func (a *API) copyList(c echo.Context) error {
	ctx := c.Request().Context()
	listID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	source, err := a.store.GetList(ctx, listID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, source.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req copyListRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	title := req.Title
	if title == "" {
		title = source.Title + " (copy)"
	}

	siblings, err := a.store.ListsForBoard(ctx, source.BoardID)
	if err != nil {
		return fail(c, err)
	}
	clone := domain.List{
		ID:        uuid.NewString(),
		Title:     title,
		Position:  domain.NextListPosition(siblings),
		BoardID:   source.BoardID,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateList(ctx, clone); err != nil {
		return fail(c, err)
	}

	cards, err := a.store.CardsForList(ctx, source.BoardID, listID)
	if err != nil {
		return fail(c, err)
	}
	for _, card := range cards {
		if card.IsArchived {
			continue
		}
		copied := card
		copied.ID = uuid.NewString()
		copied.ListID = clone.ID
		copied.CreatedBy = userID
		copied.CreatedAt = time.Now().UTC()
		copied.Members = nil
		copied.Labels = nil
		if err := a.store.CreateCard(ctx, copied); err != nil {
			return fail(c, err)
		}
		clone.Cards = append(clone.Cards, copied)
	}

	a.recordActivity(ctx, domain.NewActivity("list", "copied", "list", clone.ID, source.BoardID, userID,
		map[string]string{"sourceTitle": source.Title, "title": clone.Title}))
	a.cache.InvalidateBoard(ctx, source.BoardID)

	return respond(c, http.StatusCreated, clone)
}
