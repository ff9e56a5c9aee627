package model

import (
	"time"

	"gorm.io/gorm"
)

// Profile is the public identity of an authenticated subject.
// Its ID is the subject id issued by the authentication layer.
type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36" validate:"required"`
	Email     string    `json:"email" gorm:"size:255;not null" validate:"required,email"`
	Name      string    `json:"name" gorm:"size:100;not null" validate:"required,max=100"`
	Handle    string    `json:"handle" gorm:"size:64;uniqueIndex;not null" validate:"required,min=3,max=64,handle"`
	DOB       *string   `json:"dob" gorm:"column:dob;size:10" validate:"omitempty,datetime=2006-01-02"`
	Bio       *string   `json:"bio" gorm:"type:text" validate:"omitempty,max=2000"`
	AvatarURL *string   `json:"avatar_url" gorm:"size:1024"`
	Version   int64     `json:"version" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// CreateProfileInput is written once at sign-up.
type CreateProfileInput struct {
	ID        string  `json:"id" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Name      string  `json:"name" validate:"required,max=100"`
	Handle    string  `json:"handle" validate:"required,min=3,max=64,handle"`
	DOB       *string `json:"dob,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Bio       *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// UpdateProfileInput changes only the fields that are Set.
type UpdateProfileInput struct {
	ID              string           `json:"id" validate:"required"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
	Email           Optional[string] `json:"email"`
	Name            Optional[string] `json:"name"`
	Handle          Optional[string] `json:"handle"`
	DOB             Optional[string] `json:"dob"`
	Bio             Optional[string] `json:"bio"`
	AvatarURL       Optional[string] `json:"avatar_url"`
}

// ProfileSummary is the slice of a profile returned by search.
type ProfileSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Handle    string  `json:"handle"`
	AvatarURL *string `json:"avatar_url"`
}
