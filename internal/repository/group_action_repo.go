package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/groupflow/activity-sync-api/internal/models"
)

// ErrGroupActionNotFound is returned when a reaction references an unknown action.
var ErrGroupActionNotFound = errors.New("group action not found")

// GroupActionRepository reads recent group actions and records reactions.
type GroupActionRepository interface {
	ListRecent(ctx context.Context, groupID string, since time.Time, limit int) ([]models.GroupAction, error)
	AddReaction(ctx context.Context, groupID, actionID, userID string) error
}

type groupActionRepository struct {
	db *gorm.DB
}

// NewGroupActionRepository constructs a repository backed by GORM.
func NewGroupActionRepository(db *gorm.DB) GroupActionRepository {
	return &groupActionRepository{db: db}
}

func (r *groupActionRepository) ListRecent(ctx context.Context, groupID string, since time.Time, limit int) ([]models.GroupAction, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var actions []models.GroupAction
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND created_at > ?", groupID, since).
		Limit(limit).
		Find(&actions).Error; err != nil {
		return nil, err
	}

	return actions, nil
}

// AddReaction appends userID to the action's reacted set. Re-applying the
// same reaction is a no-op, so redelivered webhook events converge.
func (r *groupActionRepository) AddReaction(ctx context.Context, groupID, actionID, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var action models.GroupAction
		if err := tx.First(&action, "id = ? AND group_id = ?", actionID, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupActionNotFound
			}
			return err
		}

		for _, reacted := range action.ReactedUserIDs {
			if reacted == userID {
				return nil
			}
		}

		action.ReactedUserIDs = append(action.ReactedUserIDs, userID)
		return tx.Model(&models.GroupAction{}).
			Where("id = ?", action.ID).
			Update("reacted_user_ids", action.ReactedUserIDs).Error
	})
}
