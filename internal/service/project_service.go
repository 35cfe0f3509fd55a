package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devboard/devboard/internal/access"
	"github.com/devboard/devboard/internal/audit"
	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/internal/hub"
	"github.com/devboard/devboard/internal/repository"
	pkglog "github.com/devboard/devboard/pkg/log"
)

type projectService struct {
	projects repository.ProjectRepository
	boards   repository.BoardRepository
	users    repository.UserRepository
	checker  *access.Checker
	hub      *hub.Hub
	realtime RealtimeService
}

// NewProjectService creates the project, membership, channel and task
// service. Mutations that other members should see in real time are
// pushed into the project room through the realtime service.
func NewProjectService(
	projects repository.ProjectRepository,
	boards repository.BoardRepository,
	users repository.UserRepository,
	checker *access.Checker,
	h *hub.Hub,
	realtime RealtimeService,
) ProjectService {
	return &projectService{
		projects: projects,
		boards:   boards,
		users:    users,
		checker:  checker,
		hub:      h,
		realtime: realtime,
	}
}

func (s *projectService) CreateProject(ctx context.Context, ownerID uint, name, description string) (*domain.Project, error) {
	project := &domain.Project{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}

	// The owner also gets a membership row so member listings are
	// complete without special-casing ownership.
	member := &domain.Member{
		ProjectID: project.ID,
		UserID:    ownerID,
		Role:      domain.RoleOwner,
	}
	if err := s.projects.AddMember(ctx, member); err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionProjectCreate, ownerID, project.Name)
	return project, nil
}

func (s *projectService) GetProject(ctx context.Context, userID, projectID uint) (*domain.Project, error) {
	if err := s.requireAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context, userID uint) ([]domain.Project, error) {
	return s.projects.ListForUser(ctx, userID)
}

// AddMember grants a user access by email. Owner-only.
func (s *projectService) AddMember(ctx context.Context, actorID, projectID uint, email string) (*domain.Member, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, ErrForbidden
	}

	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	member := &domain.Member{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      domain.RoleMember,
	}
	if err := s.projects.AddMember(ctx, member); err != nil {
		return nil, err
	}
	member.Username = user.Username

	// A cached deny for this user is now stale.
	s.checker.Invalidate(ctx, user.ID, projectID)

	s.realtime.BroadcastRoom(ctx, domain.ProjectRoom(projectID), &domain.MemberAddedMessage{
		Type:      domain.MsgTypeMemberAdded,
		ProjectID: projectID,
		UserID:    user.ID,
		Username:  user.Username,
	}, "")

	audit.Log(ctx, audit.ActionMemberAdd, actorID, user.Email)
	return member, nil
}

func (s *projectService) ListMembers(ctx context.Context, userID, projectID uint) ([]domain.Member, error) {
	if err := s.requireAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.projects.ListMembers(ctx, projectID)
}

func (s *projectService) CreateChannel(ctx context.Context, userID, projectID uint, name string) (*domain.Channel, error) {
	if err := s.requireAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}

	channel := &domain.Channel{
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
	}
	if err := s.boards.CreateChannel(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *projectService) ListChannels(ctx context.Context, userID, projectID uint) ([]domain.Channel, error) {
	if err := s.requireAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.boards.ListChannels(ctx, projectID)
}

func (s *projectService) CreateTask(ctx context.Context, userID, projectID uint, title string) (*domain.Task, error) {
	if err := s.requireAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}

	task := &domain.Task{
		ProjectID: projectID,
		Title:     strings.TrimSpace(title),
		Status:    "todo",
	}
	if err := s.boards.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.realtime.BroadcastRoom(ctx, domain.ProjectRoom(projectID), &domain.TaskCreatedMessage{
		Type:      domain.MsgTypeTaskCreated,
		ProjectID: projectID,
		TaskID:    task.ID,
		Title:     task.Title,
	}, "")

	audit.Log(ctx, audit.ActionTaskCreate, userID, task.Title)
	return task, nil
}

func (s *projectService) ListTasks(ctx context.Context, userID, projectID uint) ([]domain.Task, error) {
	if err := s.requireAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.boards.ListTasks(ctx, projectID)
}

// Presence reports local room occupancy for a project's rooms.
func (s *projectService) Presence(ctx context.Context, userID, projectID uint) (map[string]int, error) {
	if err := s.requireAccess(ctx, userID, projectID); err != nil {
		return nil, err
	}

	out := make(map[string]int)
	for _, prefix := range []string{
		domain.ProjectRoom(projectID),
		fmt.Sprintf("chat:%d:", projectID),
		domain.CallRoom(projectID),
	} {
		for room, n := range s.hub.RoomSizes(prefix) {
			out[room] = n
		}
	}
	return out, nil
}

func (s *projectService) requireAccess(ctx context.Context, userID, projectID uint) error {
	allowed, err := s.checker.CanAccess(ctx, userID, projectID)
	if err != nil {
		pkglog.Ctx(ctx).Error().Err(err).
			Uint(pkglog.FieldProjectID, projectID).
			Msg("access check failed")
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}
