package repository

import (
	"context"
	"fmt"

	"metawave/logger"
	"metawave/model"
	"metawave/schema"

	"gorm.io/gorm"
)

// albumOrder is the display order of an album. Positions may repeat, so
// insertion time and track id break ties.
const albumOrder = "album_tracks.position ASC, album_tracks.added_at ASC, album_tracks.track_id ASC"

// AlbumTrackRepository manages track placements inside albums.
type AlbumTrackRepository interface {
	// ListByAlbum returns the album's rows by position, then added_at, then track id.
	ListByAlbum(ctx context.Context, albumID string) ([]model.AlbumTrack, error)
	// ListWithTracks is ListByAlbum with each row's Track loaded in the same
	// round of queries. Track is nil for a row whose track no longer exists.
	ListWithTracks(ctx context.Context, albumID string) ([]model.AlbumTrack, error)
	// Add places a track in an album. A track appears at most once per album (ErrDuplicate).
	Add(ctx context.Context, albumID, trackID string, position int) (*model.AlbumTrack, error)
	// UpdatePosition moves one row; ErrNotFound when the track is not in the album.
	UpdatePosition(ctx context.Context, albumID, trackID string, position int) (*model.AlbumTrack, error)
	Remove(ctx context.Context, albumID, trackID string) error
	Count(ctx context.Context, albumID string) (int64, error)
	// BatchUpdatePositions applies every update or none of them.
	BatchUpdatePositions(ctx context.Context, albumID string, updates []model.PositionUpdate) ([]model.AlbumTrack, error)
}

type gormAlbumTrackRepository struct {
	db *gorm.DB
}

// NewGormAlbumTrackRepository creates a GORM-backed AlbumTrackRepository.
func NewGormAlbumTrackRepository(db *gorm.DB) AlbumTrackRepository {
	return &gormAlbumTrackRepository{db: db}
}

func (r *gormAlbumTrackRepository) ListByAlbum(ctx context.Context, albumID string) ([]model.AlbumTrack, error) {
	rows := make([]model.AlbumTrack, 0)
	err := r.db.WithContext(ctx).
		Where("album_id = ?", albumID).
		Order(albumOrder).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := schema.ValidateAll(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormAlbumTrackRepository) ListWithTracks(ctx context.Context, albumID string) ([]model.AlbumTrack, error) {
	rows := make([]model.AlbumTrack, 0)
	err := r.db.WithContext(ctx).
		Preload("Track").
		Where("album_id = ?", albumID).
		Order(albumOrder).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	for i := range rows {
		if err := schema.Validate(&rows[i]); err != nil {
			return nil, err
		}
		if rows[i].Track != nil {
			if err := schema.Validate(rows[i].Track); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

func (r *gormAlbumTrackRepository) Add(ctx context.Context, albumID, trackID string, position int) (*model.AlbumTrack, error) {
	row := &model.AlbumTrack{AlbumID: albumID, TrackID: trackID, Position: position}
	if err := schema.Validate(row); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("add track %s to album %s: %w", trackID, albumID, translate(err))
	}
	logger.Debug("track added to album",
		logger.String("albumId", albumID),
		logger.String("trackId", trackID),
		logger.Int("position", position))
	return getAlbumTrack(ctx, r.db, albumID, trackID)
}

func (r *gormAlbumTrackRepository) UpdatePosition(ctx context.Context, albumID, trackID string, position int) (*model.AlbumTrack, error) {
	row, err := setPosition(ctx, r.db, albumID, trackID, position)
	if err != nil {
		return nil, fmt.Errorf("move track %s in album %s: %w", trackID, albumID, err)
	}
	return row, nil
}

// setPosition rewrites one placement. MySQL reports zero affected rows when
// the position is unchanged, so existence is decided by reading the row back.
func setPosition(ctx context.Context, tx *gorm.DB, albumID, trackID string, position int) (*model.AlbumTrack, error) {
	err := tx.WithContext(ctx).Model(&model.AlbumTrack{}).
		Where("album_id = ? AND track_id = ?", albumID, trackID).
		Update("position", position).Error
	if err != nil {
		return nil, translate(err)
	}
	return getAlbumTrack(ctx, tx, albumID, trackID)
}

func getAlbumTrack(ctx context.Context, tx *gorm.DB, albumID, trackID string) (*model.AlbumTrack, error) {
	var row model.AlbumTrack
	err := tx.WithContext(ctx).
		Where("album_id = ? AND track_id = ?", albumID, trackID).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := schema.Validate(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *gormAlbumTrackRepository) Remove(ctx context.Context, albumID, trackID string) error {
	res := r.db.WithContext(ctx).
		Where("album_id = ? AND track_id = ?", albumID, trackID).
		Delete(&model.AlbumTrack{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logger.Debug("track removed from album", logger.String("albumId", albumID), logger.String("trackId", trackID))
	return nil
}

func (r *gormAlbumTrackRepository) Count(ctx context.Context, albumID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AlbumTrack{}).
		Where("album_id = ?", albumID).
		Count(&n).Error
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (r *gormAlbumTrackRepository) BatchUpdatePositions(ctx context.Context, albumID string, updates []model.PositionUpdate) ([]model.AlbumTrack, error) {
	for i := range updates {
		if err := schema.Validate(&updates[i]); err != nil {
			return nil, err
		}
	}
	out := make([]model.AlbumTrack, 0, len(updates))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			row, err := setPosition(ctx, tx, albumID, u.TrackID, u.Position)
			if err != nil {
				return fmt.Errorf("track %s: %w", u.TrackID, err)
			}
			out = append(out, *row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reorder album %s: %w", albumID, err)
	}
	logger.Debug("album reordered", logger.String("albumId", albumID), logger.Int("updates", len(updates)))
	return out, nil
}
