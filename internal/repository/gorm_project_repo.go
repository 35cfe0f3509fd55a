package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/pkg/log"
)

// GormProjectRepository implements ProjectRepository using GORM.
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository creates a new GORM-based project repository.
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

// Create creates a new project.
func (r *GormProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	model := &domain.ProjectModel{
		OwnerID:     project.OwnerID,
		Name:        project.Name,
		Description: project.Description,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to create project in db")
		return err
	}
	project.ID = model.ID
	project.CreatedAt = model.CreatedAt
	log.Ctx(ctx).Debug().Uint(log.FieldProjectID, project.ID).Msg("project created in db")
	return nil
}

// GetByID retrieves a project by id.
func (r *GormProjectRepository) GetByID(ctx context.Context, id uint) (*domain.Project, error) {
	var model domain.ProjectModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Uint(log.FieldProjectID, id).Msg("failed to get project by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListForUser retrieves projects the user owns or is a member of,
// newest first.
func (r *GormProjectRepository) ListForUser(ctx context.Context, userID uint) ([]domain.Project, error) {
	var models []domain.ProjectModel
	result := r.db.WithContext(ctx).
		Where("owner_id = ? OR id IN (?)",
			userID,
			r.db.Model(&domain.MemberModel{}).Select("project_id").Where("user_id = ?", userID),
		).
		Order("created_at DESC").
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Uint(log.FieldUserID, userID).Msg("failed to list projects")
		return nil, result.Error
	}

	projects := make([]domain.Project, len(models))
	for i, model := range models {
		projects[i] = *model.ToDomain()
	}
	return projects, nil
}

// AddMember adds a membership row.
func (r *GormProjectRepository) AddMember(ctx context.Context, member *domain.Member) error {
	model := &domain.MemberModel{
		ProjectID: member.ProjectID,
		UserID:    member.UserID,
		Role:      member.Role,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		log.Ctx(ctx).Error().Err(err).Uint(log.FieldProjectID, member.ProjectID).Msg("failed to add member in db")
		return err
	}
	member.ID = model.ID
	member.CreatedAt = model.CreatedAt
	return nil
}

// FindMembership retrieves the membership row for (user, project).
func (r *GormProjectRepository) FindMembership(ctx context.Context, userID, projectID uint) (*domain.Member, error) {
	var model domain.MemberModel
	result := r.db.WithContext(ctx).
		First(&model, "user_id = ? AND project_id = ?", userID, projectID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).
			Uint(log.FieldUserID, userID).Uint(log.FieldProjectID, projectID).
			Msg("failed to find membership")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListMembers retrieves all members of a project with usernames resolved.
func (r *GormProjectRepository) ListMembers(ctx context.Context, projectID uint) ([]domain.Member, error) {
	var models []domain.MemberModel
	result := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Uint(log.FieldProjectID, projectID).Msg("failed to list members")
		return nil, result.Error
	}

	members := make([]domain.Member, len(models))
	for i, model := range models {
		members[i] = *model.ToDomain()
	}
	return members, nil
}
