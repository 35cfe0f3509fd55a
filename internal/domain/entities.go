package domain

import "time"

// User is an account that can own projects and send messages.
type User struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Project is the unit of collaboration. The owner always has access;
// everyone else needs a membership row.
type Project struct {
	ID          uint      `json:"id"`
	OwnerID     uint      `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Member grants a user access to a project with a role.
type Member struct {
	ID        uint      `json:"id"`
	ProjectID uint      `json:"projectId"`
	UserID    uint      `json:"userId"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Channel is an optional sub-scope of a project's chat. Messages with a
// nil channel id belong to the general channel.
type Channel struct {
	ID        uint      `json:"id"`
	ProjectID uint      `json:"projectId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is a work item inside a project.
type Task struct {
	ID        uint      `json:"id"`
	ProjectID uint      `json:"projectId"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a persisted chat entry. Immutable once created; at least one
// of Content or AttachmentURL is set. AuthorUsername and AuthorEmail are
// populated from the users table when the message is read back.
type Message struct {
	ID             uint
	ProjectID      uint
	ChannelID      *uint
	UserID         uint
	Content        string
	AttachmentURL  *string
	AttachmentMime *string
	CreatedAt      time.Time

	AuthorUsername string
	AuthorEmail    string
}
