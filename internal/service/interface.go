package service

import (
	"context"
	"errors"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/internal/hub"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProjectNotFound    = errors.New("project not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user not found")
)

// RealtimeService handles the WebSocket event surface: room joins, chat
// fan-out with history replay, and call signaling relay.
type RealtimeService interface {
	HandleJoinProject(ctx context.Context, c *hub.Client, msg *domain.JoinProjectMessage)
	HandleSendMessage(ctx context.Context, c *hub.Client, msg *domain.SendMessageMessage)
	HandleCallJoin(ctx context.Context, c *hub.Client, msg *domain.CallJoinMessage)
	HandleCallSignal(ctx context.Context, c *hub.Client, msg *domain.CallSignalMessage)
	HandleCallLeave(ctx context.Context, c *hub.Client, msg *domain.CallLeaveMessage)
	HandleDisconnect(c *hub.Client)

	// BroadcastRoom fans a frame out to a room locally and over the
	// backplane so other instances deliver it too.
	BroadcastRoom(ctx context.Context, room string, frame interface{}, exclude string)

	Start(ctx context.Context) error
	Stop() error
}

// TokenPair carries both tokens and their expiries back to the client.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	AccessExpiresAt  int64  `json:"accessExpiresAt"`
	RefreshExpiresAt int64  `json:"refreshExpiresAt"`
}

// AuthService manages accounts and token lifecycles.
type AuthService interface {
	Register(ctx context.Context, email, username, password string) (*domain.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

// ProjectService manages projects, memberships, channels and tasks, and
// pushes the resulting events into project rooms.
type ProjectService interface {
	CreateProject(ctx context.Context, ownerID uint, name, description string) (*domain.Project, error)
	GetProject(ctx context.Context, userID, projectID uint) (*domain.Project, error)
	ListProjects(ctx context.Context, userID uint) ([]domain.Project, error)
	AddMember(ctx context.Context, actorID, projectID uint, email string) (*domain.Member, error)
	ListMembers(ctx context.Context, userID, projectID uint) ([]domain.Member, error)
	CreateChannel(ctx context.Context, userID, projectID uint, name string) (*domain.Channel, error)
	ListChannels(ctx context.Context, userID, projectID uint) ([]domain.Channel, error)
	CreateTask(ctx context.Context, userID, projectID uint, title string) (*domain.Task, error)
	ListTasks(ctx context.Context, userID, projectID uint) ([]domain.Task, error)
	Presence(ctx context.Context, userID, projectID uint) (map[string]int, error)
}
