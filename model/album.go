package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Album is an owned, ordered collection of tracks.
type Album struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36" validate:"required"`
	OwnerID     string    `json:"owner_id" gorm:"size:36;index;not null" validate:"required"`
	Title       string    `json:"title" gorm:"size:255;not null" validate:"required,max=255"`
	Description *string   `json:"description" gorm:"type:text" validate:"omitempty,max=5000"`
	CoverArtURL *string   `json:"cover_art_url" gorm:"size:1024"`
	IsPublic    bool      `json:"is_public" gorm:"not null"`
	Version     int64     `json:"version" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Album) TableName() string {
	return "albums"
}

func (a *Album) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}

type CreateAlbumInput struct {
	OwnerID     string  `json:"owner_id" validate:"required"`
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	CoverArtURL *string `json:"cover_art_url,omitempty"`
	IsPublic    bool    `json:"is_public"`
}

type UpdateAlbumInput struct {
	ID              string           `json:"id" validate:"required"`
	ExpectedVersion *int64           `json:"expected_version,omitempty"`
	Title           Optional[string] `json:"title"`
	Description     Optional[string] `json:"description"`
	CoverArtURL     Optional[string] `json:"cover_art_url"`
	IsPublic        Optional[bool]   `json:"is_public"`
}

// AlbumTrack places one track in one album. (album_id, track_id) is unique;
// Position orders the album but is neither unique nor contiguous.
type AlbumTrack struct {
	AlbumID  string    `json:"album_id" gorm:"primaryKey;size:36" validate:"required"`
	TrackID  string    `json:"track_id" gorm:"primaryKey;size:36" validate:"required"`
	Position int       `json:"position" gorm:"not null;index"`
	AddedAt  time.Time `json:"added_at" gorm:"autoCreateTime"`
	// Track is only loaded by ListWithTracks.
	Track *Track `json:"track,omitempty" gorm:"foreignKey:TrackID" validate:"-"`
}

func (AlbumTrack) TableName() string {
	return "album_tracks"
}

// PositionUpdate is one item of a batch reorder.
type PositionUpdate struct {
	TrackID  string `json:"track_id" validate:"required"`
	Position int    `json:"position"`
}
