package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create appends a message. Only the canonical content column is written;
// the legacy body column stays untouched.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	var content *string
	if msg.Content != "" {
		content = &msg.Content
	}

	model := &domain.MessageModel{
		ProjectID:      msg.ProjectID,
		ChannelID:      msg.ChannelID,
		UserID:         msg.UserID,
		Content:        content,
		AttachmentURL:  msg.AttachmentURL,
		AttachmentMime: msg.AttachmentMime,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		log.Ctx(ctx).Error().Err(err).
			Uint(log.FieldProjectID, msg.ProjectID).
			Msg("failed to create message in db")
		return err
	}

	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt
	return nil
}

// FindRecent returns up to limit messages for the exact (project, channel)
// pair, newest first by storage id. Authors are resolved in the same
// query so delivery objects can carry the username.
func (r *GormMessageRepository) FindRecent(ctx context.Context, projectID uint, channelID *uint, limit int) ([]domain.Message, error) {
	query := r.db.WithContext(ctx).
		Preload("Author").
		Where("project_id = ?", projectID)

	if channelID == nil {
		query = query.Where("channel_id IS NULL")
	} else {
		query = query.Where("channel_id = ?", *channelID)
	}

	var models []domain.MessageModel
	result := query.Order("id DESC").Limit(limit).Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).
			Uint(log.FieldProjectID, projectID).
			Msg("failed to load recent messages")
		return nil, result.Error
	}

	messages := make([]domain.Message, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// Models returns the GORM models owned by this package, for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&domain.UserModel{},
		&domain.ProjectModel{},
		&domain.MemberModel{},
		&domain.ChannelModel{},
		&domain.TaskModel{},
		&domain.MessageModel{},
	}
}
