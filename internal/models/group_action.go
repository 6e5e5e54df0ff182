package models

import (
	"time"

	"gorm.io/datatypes"
)

// Group action categories considered by the badge aggregator.
const (
	GroupActionTypePrayer    = "prayer"
	GroupActionTypeGratitude = "gratitude"
)

// GroupAction is a prayer or gratitude post within a group. Created by the
// CRUD layer; the sync engine reads the viewer list for badge computation and
// appends to ReactedUserIDs when a reaction message arrives.
type GroupAction struct {
	ID             string                      `gorm:"primaryKey;size:64" json:"id"`
	GroupID        string                      `gorm:"size:64;index" json:"group_id"`
	Type           string                      `gorm:"size:32;index" json:"type"`
	Content        string                      `gorm:"type:text" json:"content"`
	CreatorID      string                      `gorm:"size:64" json:"creator_id"`
	ViewerIDs      datatypes.JSONSlice[string] `gorm:"type:json" json:"viewer_ids"`
	ReactedUserIDs datatypes.JSONSlice[string] `gorm:"type:json" json:"reacted_user_ids"`
	CreatedAt      time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// ViewedBy reports whether the user has opened this action.
func (a GroupAction) ViewedBy(userID string) bool {
	for _, viewer := range a.ViewerIDs {
		if viewer == userID {
			return true
		}
	}
	return false
}
