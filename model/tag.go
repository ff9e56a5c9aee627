package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag is a user-scoped label. Names are unique per user.
type Tag struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36" validate:"required"`
	UserID    string    `json:"user_id" gorm:"size:36;not null;uniqueIndex:idx_tags_user_name" validate:"required"`
	Name      string    `json:"name" gorm:"size:64;not null;uniqueIndex:idx_tags_user_name" validate:"required,max=64"`
	Category  *string   `json:"category" gorm:"size:64" validate:"omitempty,max=64"`
	Version   int64     `json:"version" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Tag) TableName() string {
	return "tags"
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

type CreateTagInput struct {
	UserID   string  `json:"user_id" validate:"required"`
	Name     string  `json:"name" validate:"required,max=64"`
	Category *string `json:"category,omitempty" validate:"omitempty,max=64"`
}

type UpdateTagInput struct {
	ID              string           `json:"id" validate:"required"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
	Name            Optional[string] `json:"name"`
	Category        Optional[string] `json:"category"`
}

// TrackTag links a tag to a track. It carries no ordering.
type TrackTag struct {
	TrackID string `gorm:"primaryKey;size:36"`
	TagID   string `gorm:"primaryKey;size:36;index"`
	Tag     *Tag   `gorm:"foreignKey:TagID"`
}

func (TrackTag) TableName() string {
	return "track_tags"
}
