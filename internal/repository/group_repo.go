package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/groupflow/activity-sync-api/internal/models"
)

// ErrGroupNotFound is returned when a group id does not resolve.
var ErrGroupNotFound = errors.New("group not found")

// GroupRepository reads group membership owned by the CRUD layer.
type GroupRepository interface {
	FindByID(ctx context.Context, id string) (models.Group, error)
	Members(ctx context.Context, id string) ([]string, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs a repository backed by GORM.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) FindByID(ctx context.Context, id string) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Group{}, ErrGroupNotFound
		}
		return models.Group{}, err
	}
	return group, nil
}

func (r *groupRepository) Members(ctx context.Context, id string) ([]string, error) {
	group, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), group.Members...), nil
}
