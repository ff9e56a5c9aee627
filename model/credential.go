package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const ProviderLocal = "local"

// Credential is how a subject proves who they are. Its ID is the subject id
// and therefore also the id of the subject's Profile.
type Credential struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	Email           string    `json:"email" gorm:"size:255;uniqueIndex;not null" validate:"required,email"`
	PasswordHash    string    `json:"-" gorm:"size:255"`
	Provider        string    `json:"provider" gorm:"size:32;not null;uniqueIndex:idx_credentials_provider" validate:"required"`
	ProviderSubject *string   `json:"provider_subject,omitempty" gorm:"size:255;uniqueIndex:idx_credentials_provider"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Credential) TableName() string {
	return "credentials"
}

func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
