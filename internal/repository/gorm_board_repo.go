package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/pkg/log"
)

// GormBoardRepository implements BoardRepository using GORM.
type GormBoardRepository struct {
	db *gorm.DB
}

// NewGormBoardRepository creates a new GORM-based board repository.
func NewGormBoardRepository(db *gorm.DB) *GormBoardRepository {
	return &GormBoardRepository{db: db}
}

// CreateChannel creates a chat channel in a project.
func (r *GormBoardRepository) CreateChannel(ctx context.Context, channel *domain.Channel) error {
	model := &domain.ChannelModel{
		ProjectID: channel.ProjectID,
		Name:      channel.Name,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		log.Ctx(ctx).Error().Err(err).Uint(log.FieldProjectID, channel.ProjectID).Msg("failed to create channel in db")
		return err
	}
	channel.ID = model.ID
	channel.CreatedAt = model.CreatedAt
	return nil
}

// ListChannels retrieves a project's channels in creation order.
func (r *GormBoardRepository) ListChannels(ctx context.Context, projectID uint) ([]domain.Channel, error) {
	var models []domain.ChannelModel
	result := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Uint(log.FieldProjectID, projectID).Msg("failed to list channels")
		return nil, result.Error
	}

	channels := make([]domain.Channel, len(models))
	for i, model := range models {
		channels[i] = *model.ToDomain()
	}
	return channels, nil
}

// CreateTask creates a task in a project.
func (r *GormBoardRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	model := &domain.TaskModel{
		ProjectID: task.ProjectID,
		Title:     task.Title,
		Status:    task.Status,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		log.Ctx(ctx).Error().Err(err).Uint(log.FieldProjectID, task.ProjectID).Msg("failed to create task in db")
		return err
	}
	task.ID = model.ID
	task.Status = model.Status
	task.CreatedAt = model.CreatedAt
	return nil
}

// ListTasks retrieves a project's tasks, newest first.
func (r *GormBoardRepository) ListTasks(ctx context.Context, projectID uint) ([]domain.Task, error) {
	var models []domain.TaskModel
	result := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Uint(log.FieldProjectID, projectID).Msg("failed to list tasks")
		return nil, result.Error
	}

	tasks := make([]domain.Task, len(models))
	for i, model := range models {
		tasks[i] = *model.ToDomain()
	}
	return tasks, nil
}
