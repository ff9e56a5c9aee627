package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Track is an uploaded audio file owned by a profile.
type Track struct {
	ID           string         `json:"id" gorm:"primaryKey;size:36" validate:"required"`
	OwnerID      string         `json:"owner_id" gorm:"size:36;index;not null" validate:"required"`
	Title        string         `json:"title" gorm:"size:255;not null" validate:"required,max=255"`
	Artist       *string        `json:"artist" gorm:"size:255" validate:"omitempty,max=255"`
	AlbumID      *string        `json:"album_id" gorm:"size:36"`
	TrackDate    *time.Time     `json:"track_date"`
	FileURL      string         `json:"file_url" gorm:"size:1024;not null" validate:"required"`
	FileSize     *int64         `json:"file_size" validate:"omitempty,gte=0"`
	DurationSecs *int64         `json:"duration_secs" validate:"omitempty,gte=0"`
	CoverArtURL  *string        `json:"cover_art_url" gorm:"size:1024"`
	IsPublic     bool           `json:"is_public" gorm:"not null"`
	WaveformData datatypes.JSON `json:"waveform_data"`
	// Tags mirrors the track's rows in track_tags, in display order.
	Tags      StringList `json:"tags" gorm:"type:text" validate:"dive,required,max=64"`
	Version   int64      `json:"version" gorm:"not null"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Track) TableName() string {
	return "tracks"
}

func (t *Track) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

// Duration returns the known duration in seconds, zero when unknown.
func (t *Track) Duration() int64 {
	if t.DurationSecs == nil {
		return 0
	}
	return *t.DurationSecs
}

type CreateTrackInput struct {
	OwnerID      string         `json:"owner_id" validate:"required"`
	Title        string         `json:"title" validate:"required,max=255"`
	Artist       *string        `json:"artist,omitempty" validate:"omitempty,max=255"`
	AlbumID      *string        `json:"album_id,omitempty"`
	TrackDate    *time.Time     `json:"track_date,omitempty"`
	FileURL      string         `json:"file_url" validate:"required"`
	FileSize     *int64         `json:"file_size,omitempty" validate:"omitempty,gte=0"`
	DurationSecs *int64         `json:"duration_secs,omitempty" validate:"omitempty,gte=0"`
	CoverArtURL  *string        `json:"cover_art_url,omitempty"`
	IsPublic     bool           `json:"is_public"`
	WaveformData datatypes.JSON `json:"waveform_data,omitempty"`
	Tags         []string       `json:"tags,omitempty" validate:"dive,required,max=64"`
}

type UpdateTrackInput struct {
	ID              string                   `json:"id" validate:"required"`
	ExpectedVersion *int64                   `json:"expected_version,omitempty"`
	Title           Optional[string]         `json:"title"`
	Artist          Optional[string]         `json:"artist"`
	AlbumID         Optional[string]         `json:"album_id"`
	TrackDate       Optional[time.Time]      `json:"track_date"`
	FileURL         Optional[string]         `json:"file_url"`
	FileSize        Optional[int64]          `json:"file_size"`
	DurationSecs    Optional[int64]          `json:"duration_secs"`
	CoverArtURL     Optional[string]         `json:"cover_art_url"`
	IsPublic        Optional[bool]           `json:"is_public"`
	WaveformData    Optional[datatypes.JSON] `json:"waveform_data"`
	// Tags replaces the whole list when Set.
	Tags Optional[[]string] `json:"tags"`
}
