package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/devboard/devboard/internal/domain"
	"github.com/devboard/devboard/pkg/log"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user.
func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	model := &domain.UserModel{
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to create user in db")
		return err
	}
	user.ID = model.ID
	user.CreatedAt = model.CreatedAt
	return nil
}

// GetByID retrieves a user by id.
func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Uint(log.FieldUserID, id).Msg("failed to get user by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetByEmail retrieves a user by email.
func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Msg("failed to get user by email")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}
