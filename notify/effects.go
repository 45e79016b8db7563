package notify

import (
	"fmt"

	"github.com/ayzaz027-alt/trello-clone/domain"
	"github.com/ayzaz027-alt/trello-clone/storage"
)

// Template names understood by the email sender draining the queue.
const (
	TemplateWelcome         = "welcome"
	TemplateBoardInvitation = "boardInvitation"
	TemplateCardAssigned    = "cardAssigned"
	TemplateCommentAdded    = "commentNotification"
	TemplateDueDateReminder = "dueDateReminder"
)

// BoardInvitation builds the effect for adding a member to a board: an
// invitation email to the new member.
func BoardInvitation(to string, board domain.Board, inviterName string) Effect {
	return Effect{
		Email: &storage.EmailMessage{
			To:       to,
			Template: TemplateBoardInvitation,
			Args: map[string]string{
				"boardId":     board.ID,
				"boardName":   board.Title,
				"inviterName": inviterName,
			},
		},
	}
}

// CardAssigned builds the effect for assigning a user to a card: an email
// plus an in-app notification for the assignee.
func CardAssigned(assignee domain.User, card domain.Card, boardTitle, assignerName string) Effect {
	n := domain.NewNotification(
		"card_assigned",
		"Card Assignment",
		fmt.Sprintf("You were assigned to %q", card.Title),
		assignee.ID,
	)
	n.Data = map[string]string{"cardId": card.ID, "cardTitle": card.Title}
	return Effect{
		Email: &storage.EmailMessage{
			To:       assignee.Email,
			Template: TemplateCardAssigned,
			Args: map[string]string{
				"cardId":       card.ID,
				"cardTitle":    card.Title,
				"boardName":    boardTitle,
				"assignerName": assignerName,
			},
		},
		Notification: &n,
	}
}

// CommentAdded builds the effect for one card member other than the author:
// an email plus an in-app notification.
func CommentAdded(member domain.User, card domain.Card, commenterName, text, commentID string) Effect {
	n := domain.NewNotification(
		"comment",
		"New Comment",
		fmt.Sprintf("%s commented on %q", commenterName, card.Title),
		member.ID,
	)
	n.Data = map[string]string{"cardId": card.ID, "commentId": commentID}
	return Effect{
		Email: &storage.EmailMessage{
			To:       member.Email,
			Template: TemplateCommentAdded,
			Args: map[string]string{
				"cardId":        card.ID,
				"cardTitle":     card.Title,
				"commenterName": commenterName,
				"comment":       text,
			},
		},
		Notification: &n,
	}
}
