package domain

import "time"

// Role describes a user's membership level on a board.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Level maps roles onto a comparable scale so handlers can enforce a minimum.
func (r Role) Level() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Visibility controls who may read a board.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Member is a user together with their role on a board.
type Member struct {
	User
	Role Role `json:"role"`
}

type Label struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	BoardID string `json:"boardId"`
}

type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CardID    string    `json:"cardId"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

type Card struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position    int        `json:"position"`
	ListID      string     `json:"listId"`
	BoardID     string     `json:"boardId"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	IsArchived  bool       `json:"isArchived"`
	Cover       string     `json:"cover,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	Members     []User     `json:"members,omitempty"`
	Labels      []Label    `json:"labels,omitempty"`
}

type List struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Position   int       `json:"position"`
	BoardID    string    `json:"boardId"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
	Cards      []Card    `json:"cards,omitempty"`
}

type Board struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Background     string     `json:"background"`
	BackgroundType string     `json:"backgroundType"`
	Visibility     Visibility `json:"visibility"`
	IsStarred      bool       `json:"isStarred"`
	IsClosed       bool       `json:"isClosed"`
	OwnerID        string     `json:"ownerId"`
	CreatedAt      time.Time  `json:"createdAt"`
	Owner          *User      `json:"owner,omitempty"`
	Lists          []List     `json:"lists,omitempty"`
	Members        []Member   `json:"members,omitempty"`
	Labels         []Label    `json:"labels,omitempty"`
}

// Notification is a persisted in-app notification delivered outside the
// mutation path.
type Notification struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	UserID    string            `json:"userId"`
	CreatedAt time.Time         `json:"createdAt"`
}

// DefaultListTitles are created, in order, for every new board.
var DefaultListTitles = []string{"To Do", "In Progress", "Done"}

// DefaultLabels are seeded for every new board.
var DefaultLabels = []Label{
	{Name: "High Priority", Color: "#EB5A46"},
	{Name: "Medium Priority", Color: "#F2D600"},
	{Name: "Low Priority", Color: "#61BD4F"},
	{Name: "Bug", Color: "#C377E0"},
	{Name: "Feature", Color: "#0079BF"},
}
