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

type createCardRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
}

func (a *API) createCard(c echo.Context) error {
	ctx := c.Request().Context()
	listID := c.Param("listId")
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

	var req createCardRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Title == "" {
		return fail(c, domain.Validationf("title is required"))
	}

	siblings, err := a.store.CardsForList(ctx, list.BoardID, listID)
	if err != nil {
		return fail(c, err)
	}
	card := domain.Card{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Position:    domain.NextCardPosition(siblings),
		ListID:      listID,
		BoardID:     list.BoardID,
		DueDate:     req.DueDate,
		CreatedBy:   userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.CreateCard(ctx, card); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("card", "created", "card", card.ID, list.BoardID, userID,
		map[string]string{"title": card.Title, "listTitle": list.Title}))
	a.cache.InvalidateBoard(ctx, list.BoardID)

	return respond(c, http.StatusCreated, card)
}

func (a *API) getCard(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	memberIDs, err := a.store.CardMemberIDs(ctx, card.BoardID, cardID)
	if err != nil {
		return fail(c, err)
	}
	for _, id := range memberIDs {
		user, err := a.store.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return fail(c, err)
		}
		card.Members = append(card.Members, user)
	}

	comments, err := a.store.CommentsForCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}

	return respond(c, http.StatusOK, struct {
		domain.Card
		Comments []domain.Comment `json:"comments"`
	}{Card: card, Comments: comments})
}

type updateCardRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	IsCompleted *bool      `json:"isCompleted"`
	Cover       *string    `json:"cover"`
}

func (a *API) updateCard(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req updateCardRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Title != nil && *req.Title == "" {
		return fail(c, domain.Validationf("title cannot be empty"))
	}

	upd := storage.CardUpdate{
		Title:       req.Title,
		Description: req.Description,
		Cover:       req.Cover,
		IsCompleted: req.IsCompleted,
	}
	if req.DueDate != nil {
		due := req.DueDate.UTC().Format(time.RFC3339Nano)
		upd.DueDate = &due
	}
	if req.IsCompleted != nil {
		completedAt := ""
		if *req.IsCompleted {
			completedAt = time.Now().UTC().Format(time.RFC3339Nano)
		}
		upd.CompletedAt = &completedAt
	}
	if err := a.store.UpdateCard(ctx, card.BoardID, cardID, upd); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("card", "updated", "card", cardID, card.BoardID, userID,
		map[string]string{"title": card.Title}))
	a.cache.InvalidateBoard(ctx, card.BoardID)

	updated, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, http.StatusOK, updated)
}

func (a *API) deleteCard(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	if err := a.store.DeleteCard(ctx, card.BoardID, cardID); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("card", "deleted", "card", cardID, card.BoardID, userID,
		map[string]string{"title": card.Title}))
	a.cache.InvalidateBoard(ctx, card.BoardID)

	return respondMessage(c, http.StatusOK, "Card deleted")
}

type moveCardRequest struct {
	ListID   string `json:"listId"`
	BoardID  string `json:"boardId"`
	Position *int   `json:"position"`
}

// moveCard reparents a card. Only the moved card's row is written; siblings
// keep their positions. When source and destination boards differ, both
// boards' caches are invalidated.
func (a *API) moveCard(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req moveCardRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.ListID == "" {
		return fail(c, domain.Validationf("listId is required"))
	}
	destBoardID := req.BoardID
	if destBoardID == "" {
		destBoardID = card.BoardID
	}
	if destBoardID != card.BoardID {
		if _, err := a.requireRole(ctx, destBoardID, userID, domain.RoleMember); err != nil {
			return fail(c, err)
		}
	}

	destList, err := a.store.GetList(ctx, req.ListID)
	if err != nil {
		return fail(c, err)
	}
	if destList.BoardID != destBoardID {
		return fail(c, domain.Validationf("list %s does not belong to board %s", req.ListID, destBoardID))
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		siblings, err := a.store.CardsForList(ctx, destBoardID, req.ListID)
		if err != nil {
			return fail(c, err)
		}
		position = domain.NextCardPosition(siblings)
	}

	if err := a.store.MoveCard(ctx, card, destBoardID, req.ListID, position); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("card", "moved", "card", cardID, destBoardID, userID,
		map[string]string{"title": card.Title, "fromList": card.ListID, "toList": req.ListID}))
	a.cache.InvalidateBoard(ctx, card.BoardID)
	if destBoardID != card.BoardID {
		a.cache.InvalidateBoard(ctx, destBoardID)
	}

	card.BoardID = destBoardID
	card.ListID = req.ListID
	card.Position = position
	return respond(c, http.StatusOK, card)
}

func (a *API) archiveCard(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	archived := !card.IsArchived
	if err := a.store.UpdateCard(ctx, card.BoardID, cardID, storage.CardUpdate{IsArchived: &archived}); err != nil {
		return fail(c, err)
	}

	action := "archived"
	if !archived {
		action = "restored"
	}
	a.recordActivity(ctx, domain.NewActivity("card", action, "card", cardID, card.BoardID, userID,
		map[string]string{"title": card.Title}))
	a.cache.InvalidateBoard(ctx, card.BoardID)

	card.IsArchived = archived
	return respond(c, http.StatusOK, card)
}

type assignCardMemberRequest struct {
	UserID string `json:"userId"`
}

func (a *API) assignCardMember(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req assignCardMemberRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.UserID == "" {
		return fail(c, domain.Validationf("userId is required"))
	}
	if _, err := a.store.GetBoardRole(ctx, card.BoardID, req.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fail(c, domain.Validationf("user is not a board member"))
		}
		return fail(c, err)
	}

	if err := a.store.AssignCardMember(ctx, card.BoardID, cardID, req.UserID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fail(c, domain.Conflictf("user is already assigned to this card"))
		}
		return fail(c, err)
	}

	assignee, err := a.store.GetUser(ctx, req.UserID)
	if err != nil {
		return fail(c, err)
	}
	assigner, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	board, err := a.store.GetBoard(ctx, card.BoardID)
	if err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("card", "member_assigned", "card", cardID, card.BoardID, userID,
		map[string]string{"title": card.Title, "memberName": assignee.Name}))
	a.notifier.Dispatch(notify.CardAssigned(assignee, card, board.Title, assigner.Name))
	a.cache.InvalidateBoard(ctx, card.BoardID)

	return respond(c, http.StatusCreated, assignee)
}

func (a *API) removeCardMember(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	targetID := c.Param("userId")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	if err := a.store.RemoveCardMember(ctx, card.BoardID, cardID, targetID); err != nil {
		return fail(c, err)
	}

	a.recordActivity(ctx, domain.NewActivity("card", "member_removed", "card", cardID, card.BoardID, userID,
		map[string]string{"title": card.Title, "memberId": targetID}))
	a.cache.InvalidateBoard(ctx, card.BoardID)

	return respondMessage(c, http.StatusOK, "Member removed from card")
}

type addCardLabelRequest struct {
	LabelID string `json:"labelId"`
}

func (a *API) addCardLabel(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req addCardLabelRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.LabelID == "" {
		return fail(c, domain.Validationf("labelId is required"))
	}
	labels, err := a.store.LabelsForBoard(ctx, card.BoardID)
	if err != nil {
		return fail(c, err)
	}
	var label *domain.Label
	for i := range labels {
		if labels[i].ID == req.LabelID {
			label = &labels[i]
			break
		}
	}
	if label == nil {
		return fail(c, domain.NotFoundf("label %s", req.LabelID))
	}

	if err := a.store.AddCardLabel(ctx, card.BoardID, cardID, req.LabelID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return fail(c, domain.Conflictf("label is already on this card"))
		}
		return fail(c, err)
	}

	a.cache.InvalidateBoard(ctx, card.BoardID)
	return respond(c, http.StatusCreated, label)
}

func (a *API) removeCardLabel(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	labelID := c.Param("labelId")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	if err := a.store.RemoveCardLabel(ctx, card.BoardID, cardID, labelID); err != nil {
		return fail(c, err)
	}

	a.cache.InvalidateBoard(ctx, card.BoardID)
	return respondMessage(c, http.StatusOK, "Label removed from card")
}

type addCommentRequest struct {
	Text string `json:"text"`
}

func (a *API) addComment(c echo.Context) error {
	ctx := c.Request().Context()
	cardID := c.Param("id")
	userID, err := a.userID(c)
	if err != nil {
		return fail(c, err)
	}
	card, err := a.store.GetCard(ctx, cardID)
	if err != nil {
		return fail(c, err)
	}
	if _, err := a.requireRole(ctx, card.BoardID, userID, domain.RoleMember); err != nil {
		return fail(c, err)
	}

	var req addCommentRequest
	if err := bindBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Text == "" {
		return fail(c, domain.Validationf("text is required"))
	}

	author, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	comment := domain.Comment{
		ID:        uuid.NewString(),
		Text:      req.Text,
		CardID:    cardID,
		User:      author,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AddComment(ctx, comment); err != nil {
		return fail(c, err)
	}

	// Card members other than the author hear about it off the request path.
	memberIDs, err := a.store.CardMemberIDs(ctx, card.BoardID, cardID)
	if err == nil {
		for _, id := range memberIDs {
			if id == userID {
				continue
			}
			member, merr := a.store.GetUser(ctx, id)
			if merr != nil {
				continue
			}
			a.notifier.Dispatch(notify.CommentAdded(member, card, author.Name, comment.Text, comment.ID))
		}
	} else {
		a.log.WithError(err).WithField("card_id", cardID).Error("comment notification lookup failed")
	}

	a.recordActivity(ctx, domain.NewActivity("comment", "added", "card", cardID, card.BoardID, userID,
		map[string]string{"cardTitle": card.Title}))
	a.cache.InvalidateBoard(ctx, card.BoardID)

	return respond(c, http.StatusCreated, comment)
}
