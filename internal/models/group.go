package models

import (
	"time"

	"gorm.io/datatypes"
)

// Group is the membership record owned by the CRUD layer. The sync engine
// only reads it to drive fan-out.
type Group struct {
	ID        string                      `gorm:"primaryKey;size:64" json:"id"`
	Name      string                      `gorm:"size:255" json:"name"`
	Members   datatypes.JSONSlice[string] `gorm:"type:json" json:"members"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// User carries the default-group pointer badge tasks are filtered against.
type User struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	Name           string    `gorm:"size:255" json:"name"`
	DefaultGroupID string    `gorm:"size:64;index" json:"default_group_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
