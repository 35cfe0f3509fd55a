package domain

import "time"

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username     string    `gorm:"type:varchar(50);not null"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:           m.ID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

// ProjectModel is the GORM model for the projects table.
type ProjectModel struct {
	ID          uint      `gorm:"primaryKey"`
	OwnerID     uint      `gorm:"index;not null"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Description string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (ProjectModel) TableName() string { return "projects" }

func (m *ProjectModel) ToDomain() *Project {
	return &Project{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// MemberModel is the GORM model for the members table.
type MemberModel struct {
	ID        uint      `gorm:"primaryKey"`
	ProjectID uint      `gorm:"uniqueIndex:idx_members_project_user;not null"`
	UserID    uint      `gorm:"uniqueIndex:idx_members_project_user;not null"`
	Role      string    `gorm:"type:varchar(20);not null;default:'member'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User UserModel `gorm:"foreignKey:UserID"`
}

func (MemberModel) TableName() string { return "members" }

func (m *MemberModel) ToDomain() *Member {
	return &Member{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Username:  m.User.Username,
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
	}
}

// ChannelModel is the GORM model for the channels table.
type ChannelModel struct {
	ID        uint      `gorm:"primaryKey"`
	ProjectID uint      `gorm:"index;not null"`
	Name      string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ChannelModel) TableName() string { return "channels" }

func (m *ChannelModel) ToDomain() *Channel {
	return &Channel{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

// TaskModel is the GORM model for the tasks table.
type TaskModel struct {
	ID        uint      `gorm:"primaryKey"`
	ProjectID uint      `gorm:"index;not null"`
	Title     string    `gorm:"type:varchar(200);not null"`
	Status    string    `gorm:"type:varchar(20);not null;default:'todo'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (TaskModel) TableName() string { return "tasks" }

func (m *TaskModel) ToDomain() *Task {
	return &Task{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Title:     m.Title,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

// MessageModel is the GORM model for the messages table. Content is the
// canonical text column; Body is a legacy column that older rows used and
// is only ever read as a fallback, never written.
type MessageModel struct {
	ID             uint      `gorm:"primaryKey"`
	ProjectID      uint      `gorm:"index:idx_messages_room;not null"`
	ChannelID      *uint     `gorm:"index:idx_messages_room"`
	UserID         uint      `gorm:"index;not null"`
	Content        *string   `gorm:"type:text"`
	Body           *string   `gorm:"type:text"`
	AttachmentURL  *string   `gorm:"type:varchar(500)"`
	AttachmentMime *string   `gorm:"type:varchar(100)"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`

	Author UserModel `gorm:"foreignKey:UserID"`
}

func (MessageModel) TableName() string { return "messages" }

// ToDomain resolves the legacy body fallback once, at the storage
// boundary, so callers only ever see one text field.
func (m *MessageModel) ToDomain() *Message {
	content := ""
	if m.Content != nil {
		content = *m.Content
	}
	if content == "" && m.Body != nil {
		content = *m.Body
	}
	return &Message{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		ChannelID:      m.ChannelID,
		UserID:         m.UserID,
		Content:        content,
		AttachmentURL:  m.AttachmentURL,
		AttachmentMime: m.AttachmentMime,
		CreatedAt:      m.CreatedAt,
		AuthorUsername: m.Author.Username,
		AuthorEmail:    m.Author.Email,
	}
}
