package repository

import (
	"context"
	"errors"

	"github.com/devboard/devboard/internal/domain"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrMembershipNotFound = errors.New("membership not found")
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uint) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// ProjectRepository persists projects and their memberships.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id uint) (*domain.Project, error)
	ListForUser(ctx context.Context, userID uint) ([]domain.Project, error)
	AddMember(ctx context.Context, member *domain.Member) error
	FindMembership(ctx context.Context, userID, projectID uint) (*domain.Member, error)
	ListMembers(ctx context.Context, projectID uint) ([]domain.Member, error)
}

// BoardRepository persists the per-project channels and tasks.
type BoardRepository interface {
	CreateChannel(ctx context.Context, channel *domain.Channel) error
	ListChannels(ctx context.Context, projectID uint) ([]domain.Channel, error)
	CreateTask(ctx context.Context, task *domain.Task) error
	ListTasks(ctx context.Context, projectID uint) ([]domain.Task, error)
}

// MessageRepository appends and reads chat messages. Messages are never
// updated or deleted here.
type MessageRepository interface {
	// Create persists a message and fills in its storage-assigned id and
	// creation time.
	Create(ctx context.Context, msg *domain.Message) error
	// FindRecent returns up to limit messages for the exact
	// (project, channel) pair, newest first. A nil channel id selects the
	// general channel only.
	FindRecent(ctx context.Context, projectID uint, channelID *uint, limit int) ([]domain.Message, error)
}
