package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayzaz027-alt/trello-clone/domain"
	"github.com/ayzaz027-alt/trello-clone/notify"
	"github.com/ayzaz027-alt/trello-clone/storage"
)

func (a *API) getBoards(c echo.Context) (err error) {
	ctx := c.Request().Context()
	metrics, spanCtx := newBoardRequestMetrics(ctx, a.log, "/api/boards")
	ctx = spanCtx
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	userID, authErr := a.userID(c)
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		err = fail(c, authErr)
		return err
	}

	fetchStart := time.Now()
	boards, cached, fetchErr := a.cache.FetchUserBoards(ctx, userID)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		err = fail(c, fetchErr)
		return err
	}
	metrics.SetBoardsReturned(len(boards))
	metrics.SetServedFromCache(cached)

	encodeStart := time.Now()
	err = respondCached(c, boards, cached)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

type createBoardRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Background     string `json:"background"`
	BackgroundType string `json:"backgroundType"`
	Visibility     string `json:"visibility"`
}

func (a *API) createBoard(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}

	var req createBoardRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Title == "" {
		return fail(c, domain.Validationf("title is required"))
	}
	visibility := domain.VisibilityPrivate
	if req.Visibility != "" {
		visibility = domain.Visibility(req.Visibility)
		if visibility != domain.VisibilityPrivate && visibility != domain.VisibilityPublic {
			return fail(c, domain.Validationf("invalid visibility %q", req.Visibility))
		}
	}
	backgroundType := req.BackgroundType
	if backgroundType == "" {
		backgroundType = "color"
	}
	background := req.Background
	if background == "" {
		background = "#0079BF"
	}

	board := domain.Board{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Description:    req.Description,
		Background:     background,
		BackgroundType: backgroundType,
		Visibility:     visibility,
		OwnerID:        userID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.CreateBoard(ctx, board); err != nil {
		return fail(c, err)
	}
	if err := a.store.AddBoardMember(ctx, board.ID, userID, domain.RoleOwner); err != nil {
		return fail(c, err)
	}

	for i, title := range domain.DefaultListTitles {
		list := domain.List{
			ID:        uuid.NewString(),
			Title:     title,
			Position:  i,
			BoardID:   board.ID,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.store.CreateList(ctx, list); err != nil {
			return fail(c, err)
		}
		board.Lists = append(board.Lists, list)
	}
	for _, tmpl := range domain.DefaultLabels {
		label := domain.Label{
			ID:      uuid.NewString(),
			Name:    tmpl.Name,
			Color:   tmpl.Color,
			BoardID: board.ID,
		}
		if err := a.store.CreateLabel(ctx, label); err != nil {
			return fail(c, err)
		}
		board.Labels = append(board.Labels, label)
	}

	a.recordActivity(ctx, domain.NewActivity("board", "created", "board", board.ID, board.ID, userID,
		map[string]string{"title": board.Title}))
	a.cache.InvalidateUserBoards(ctx, userID)

	return respond(c, http.StatusCreated, board)
}

func (a *API) getBoard(c echo.Context) (err error) {
	ctx := c.Request().Context()
	metrics, spanCtx := newBoardRequestMetrics(ctx, a.log, "/api/boards/:id")
	ctx = spanCtx
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	boardID := c.Param("id")

	authStart := time.Now()
	userID, authErr := a.userID(c)
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		err = fail(c, authErr)
		return err
	}

	if _, roleErr := a.requireRole(ctx, boardID, userID, domain.RoleMember); roleErr != nil {
		metrics.SetErrorStage("membership")
		err = fail(c, roleErr)
		return err
	}

	fetchStart := time.Now()
	board, cached, fetchErr := a.cache.FetchBoard(ctx, boardID)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		err = fail(c, fetchErr)
		return err
	}
	metrics.SetBoardsReturned(1)
	metrics.SetServedFromCache(cached)

	encodeStart := time.Now()
	err = respondCached(c, board, cached)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

type updateBoardRequest struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Background     *string `json:"background"`
	BackgroundType *string `json:"backgroundType"`
	Visibility     *string `json:"visibility"`
	IsStarred      *bool   `json:"isStarred"`
	IsClosed       *bool   `json:"isClosed"`
}

func (a *API) updateBoard(c echo.Context) error {
	ctx := c.Request().Context()
	boardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, boardID, userID, domain.RoleAdmin); err != nil {
		return fail(c, err)
	}

	var req updateBoardRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Title != nil && *req.Title == "" {
		return fail(c, domain.Validationf("title cannot be empty"))
	}
	if req.Visibility != nil {
		v := domain.Visibility(*req.Visibility)
		if v != domain.VisibilityPrivate && v != domain.VisibilityPublic {
			return fail(c, domain.Validationf("invalid visibility %q", *req.Visibility))
		}
	}

	upd := storage.BoardUpdate{
		Title:          req.Title,
		Description:    req.Description,
		Background:     req.Background,
		BackgroundType: req.BackgroundType,
		Visibility:     req.Visibility,
		IsStarred:      req.IsStarred,
		IsClosed:       req.IsClosed,
	}
	if err := a.store.UpdateBoard(ctx, boardID, upd); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("board", "updated", "board", boardID, boardID, userID, nil))
	a.cache.InvalidateBoard(ctx, boardID)
	a.cache.InvalidateUserBoards(ctx, userID)

	board, err := a.store.GetBoard(ctx, boardID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, board)
}

func (a *API) deleteBoard(c echo.Context) error {
	ctx := c.Request().Context()
	boardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	role, err := a.requireRole(ctx, boardID, userID, domain.RoleMember)
	if err != nil {
		return fail(c, err)
	}
	if role != domain.RoleOwner {
		return fail(c, domain.Forbiddenf("only the owner can delete a board"))
	}

	// Collect memberships first so every member's board list gets refreshed.
	members, err := a.store.MembersForBoard(ctx, boardID)
	if err != nil {
		return fail(c, err)
	}
	if err := a.store.DeleteBoard(ctx, boardID); err != nil {
		return fail(c, err)
	}

	a.cache.InvalidateBoard(ctx, boardID)
	for _, m := range members {
		a.cache.InvalidateUserBoards(ctx, m.ID)
	}

	return respondMessage(c, http.StatusOK, "Board deleted")
}

type addBoardMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) addBoardMember(c echo.Context) error {
	ctx := c.Request().Context()
	boardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, boardID, userID, domain.RoleAdmin); err != nil {
		return fail(c, err)
	}

	var req addBoardMemberRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Email == "" {
		return fail(c, domain.Validationf("email is required"))
	}
	role := domain.RoleMember
	if req.Role != "" {
		role = domain.Role(req.Role)
		if role != domain.RoleMember && role != domain.RoleAdmin {
			return fail(c, domain.Validationf("invalid role %q", req.Role))
		}
	}

	invitee, err := a.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return fail(c, err)
	}
	if err := a.store.AddBoardMember(ctx, boardID, invitee.ID, role); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fail(c, domain.Conflictf("user is already a board member"))
		}
		return fail(c, err)
	}

	board, err := a.store.GetBoard(ctx, boardID)
	if err != nil {
		return fail(c, err)
	}
	inviter, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("board", "member_added", "board", boardID, boardID, userID,
		map[string]string{"memberName": invitee.Name}))
	a.notifier.Dispatch(notify.BoardInvitation(invitee.Email, board, inviter.Name))
	a.cache.InvalidateBoard(ctx, boardID)
	a.cache.InvalidateUserBoards(ctx, invitee.ID)

	return respond(c, http.StatusCreated, domain.Member{User: invitee, Role: role})
}

func (a *API) removeBoardMember(c echo.Context) error {
	ctx := c.Request().Context()
	boardID := c.Param("id")
	targetID := c.Param("userId")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, boardID, userID, domain.RoleAdmin); err != nil {
		return fail(c, err)
	}

	targetRole, err := a.store.GetBoardRole(ctx, boardID, targetID)
	if err != nil {
		return fail(c, err)
	}
	if targetRole == domain.RoleOwner {
		return fail(c, domain.Forbiddenf("cannot remove the board owner"))
	}
	if err := a.store.RemoveBoardMember(ctx, boardID, targetID); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("board", "member_removed", "board", boardID, boardID, userID,
		map[string]string{"memberId": targetID}))
	a.cache.InvalidateBoard(ctx, boardID)
	a.cache.InvalidateUserBoards(ctx, targetID)

	return respondMessage(c, http.StatusOK, "Member removed")
}

const activityPageLimit = 50

func (a *API) getBoardActivities(c echo.Context) error {
	ctx := c.Request().Context()
	boardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, boardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	activities, err := a.store.ActivitiesForBoard(ctx, boardID, activityPageLimit)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, activities)
}
