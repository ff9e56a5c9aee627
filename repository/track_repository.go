package repository

import (
	"context"
	"fmt"

	"metawave/logger"
	"metawave/model"
	"metawave/schema"

	"gorm.io/gorm"
)

// TrackRepository defines the track data operations.
type TrackRepository interface {
	GetByID(ctx context.Context, id string) (*model.Track, error)
	// ListByOwner returns the owner's tracks, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Track, error)
	// ListPublicByOwner is ListByOwner restricted to public tracks.
	ListPublicByOwner(ctx context.Context, ownerID string) ([]model.Track, error)
	// ListByAlbum joins album_tracks to tracks and returns the tracks in album order.
	ListByAlbum(ctx context.Context, albumID string) ([]model.Track, error)
	// Create links inline tags in the same transaction, creating missing
	// ones for the owner.
	Create(ctx context.Context, in model.CreateTrackInput) (*model.Track, error)
	Update(ctx context.Context, in model.UpdateTrackInput) (*model.Track, error)
	// UpdateTags replaces the track's tag list wholesale.
	UpdateTags(ctx context.Context, trackID string, names []string) (model.StringList, error)
	// Delete removes the track with its album placements and tag links.
	Delete(ctx context.Context, id string) (string, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository creates a GORM-backed TrackRepository.
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	return getTrack(ctx, r.db, id)
}

func getTrack(ctx context.Context, tx *gorm.DB, id string) (*model.Track, error) {
	var t model.Track
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	if err := schema.Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormTrackRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Track, error) {
	return r.list(ctx, r.db.Where("owner_id = ?", ownerID))
}

func (r *gormTrackRepository) ListPublicByOwner(ctx context.Context, ownerID string) ([]model.Track, error) {
	return r.list(ctx, r.db.Where("owner_id = ? AND is_public = ?", ownerID, true))
}

func (r *gormTrackRepository) list(ctx context.Context, q *gorm.DB) ([]model.Track, error) {
	tracks := make([]model.Track, 0)
	if err := q.WithContext(ctx).Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, translate(err)
	}
	if err := schema.ValidateAll(tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (r *gormTrackRepository) ListByAlbum(ctx context.Context, albumID string) ([]model.Track, error) {
	tracks := make([]model.Track, 0)
	err := r.db.WithContext(ctx).
		Select("tracks.*").
		Joins("JOIN album_tracks ON album_tracks.track_id = tracks.id").
		Where("album_tracks.album_id = ?", albumID).
		Order(albumOrder).
		Find(&tracks).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := schema.ValidateAll(tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (r *gormTrackRepository) Create(ctx context.Context, in model.CreateTrackInput) (*model.Track, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	t := &model.Track{
		OwnerID:      in.OwnerID,
		Title:        in.Title,
		Artist:       in.Artist,
		AlbumID:      in.AlbumID,
		TrackDate:    in.TrackDate,
		FileURL:      in.FileURL,
		FileSize:     in.FileSize,
		DurationSecs: in.DurationSecs,
		CoverArtURL:  in.CoverArtURL,
		IsPublic:     in.IsPublic,
		WaveformData: in.WaveformData,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return translate(err)
		}
		if len(in.Tags) == 0 {
			return nil
		}
		names, err := syncTrackTags(ctx, tx, t.ID, t.OwnerID, in.Tags)
		if err != nil {
			return err
		}
		return tx.Model(t).UpdateColumn("tags", names).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create track %q: %w", in.Title, err)
	}
	logger.Debug("track created", logger.String("trackId", t.ID), logger.String("ownerId", t.OwnerID))
	return r.GetByID(ctx, t.ID)
}

func (r *gormTrackRepository) Update(ctx context.Context, in model.UpdateTrackInput) (*model.Track, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	patch := schema.NewPatch("track")
	schema.Set(patch, "title", in.Title, "required,max=255", false)
	schema.Set(patch, "artist", in.Artist, "max=255", true)
	schema.Set(patch, "album_id", in.AlbumID, "", true)
	schema.Set(patch, "track_date", in.TrackDate, "", true)
	schema.Set(patch, "file_url", in.FileURL, "required", false)
	schema.Set(patch, "file_size", in.FileSize, "gte=0", true)
	schema.Set(patch, "duration_secs", in.DurationSecs, "gte=0", true)
	schema.Set(patch, "cover_art_url", in.CoverArtURL, "", true)
	schema.Set(patch, "is_public", in.IsPublic, "", false)
	schema.Set(patch, "waveform_data", in.WaveformData, "", true)
	if in.Tags.Set {
		// a null list clears the tags
		schema.Set(patch, "tags", in.Tags, "dive,required,max=64", true)
	}
	if err := patch.Err(); err != nil {
		return nil, err
	}
	values := patch.Values()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Tags.Set {
			current, err := getTrack(ctx, tx, in.ID)
			if err != nil {
				return err
			}
			names, err := syncTrackTags(ctx, tx, current.ID, current.OwnerID, in.Tags.Value)
			if err != nil {
				return err
			}
			values["tags"] = names
		}
		return updateVersioned(ctx, tx, &model.Track{}, in.ID, in.ExpectedVersion, values)
	})
	if err != nil {
		return nil, fmt.Errorf("update track %s: %w", in.ID, err)
	}
	logger.Debug("track updated", logger.String("trackId", in.ID), logger.Int("fields", len(values)-1))
	return r.GetByID(ctx, in.ID)
}

func (r *gormTrackRepository) UpdateTags(ctx context.Context, trackID string, names []string) (model.StringList, error) {
	t, err := r.Update(ctx, model.UpdateTrackInput{ID: trackID, Tags: model.Some(names)})
	if err != nil {
		return nil, err
	}
	return t.Tags, nil
}

// Delete removes the track together with its album and tag links.
func (r *gormTrackRepository) Delete(ctx context.Context, id string) (string, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&model.AlbumTrack{}).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", id).Delete(&model.TrackTag{}).Error; err != nil {
			return err
		}
		return deleteByID(ctx, tx, &model.Track{}, id)
	})
	if err != nil {
		return "", fmt.Errorf("delete track %s: %w", id, err)
	}
	logger.Debug("track deleted", logger.String("trackId", id))
	return id, nil
}

// syncTrackTags makes track_tags for trackID match names exactly, creating
// missing tags for the owner, and returns the normalized display list.
func syncTrackTags(ctx context.Context, tx *gorm.DB, trackID, ownerID string, names []string) (model.StringList, error) {
	names = normalizeNames(names)
	tx = tx.WithContext(ctx)

	if err := tx.Where("track_id = ?", trackID).Delete(&model.TrackTag{}).Error; err != nil {
		return nil, err
	}
	for _, name := range names {
		tag, err := findOrCreateTag(tx, ownerID, name)
		if err != nil {
			return nil, err
		}
		if err := tx.Create(&model.TrackTag{TrackID: trackID, TagID: tag.ID}).Error; err != nil {
			return nil, translate(err)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	return model.StringList(names), nil
}

func findOrCreateTag(tx *gorm.DB, userID, name string) (*model.Tag, error) {
	var tag model.Tag
	err := tx.Where("user_id = ? AND name = ?", userID, name).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if translate(err) != ErrNotFound {
		return nil, err
	}
	tag = model.Tag{UserID: userID, Name: name}
	if err := schema.Validate(&model.CreateTagInput{UserID: userID, Name: name}); err != nil {
		return nil, err
	}
	if err := tx.Create(&tag).Error; err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}
