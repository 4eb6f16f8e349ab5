package repository

import (
	"context"
	"fmt"
	"time"

	"chorus/internal/cache"
	"chorus/internal/models"

	"gorm.io/gorm"
)

// UserRepository reads the users that author posts and comments.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

const userTTL = 5 * time.Minute

func userKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, userKey(id), &user, userTTL, func() error {
		return readDB(r.db).WithContext(ctx).First(&user, id).Error
	})
	if err != nil {
		return nil, storeError(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return storeError(r.db.WithContext(ctx).Create(user).Error, "User", user.Email)
}
