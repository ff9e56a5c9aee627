package repository

import (
	"context"
	"fmt"

	"metawave/logger"
	"metawave/model"
	"metawave/schema"

	"gorm.io/gorm"
)

// AlbumRepository defines the album data operations.
type AlbumRepository interface {
	GetByID(ctx context.Context, id string) (*model.Album, error)
	// ListByOwner returns the owner's albums, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Album, error)
	Create(ctx context.Context, in model.CreateAlbumInput) (*model.Album, error)
	Update(ctx context.Context, in model.UpdateAlbumInput) (*model.Album, error)
	// Delete removes the album and its track placements. Tracks are kept.
	Delete(ctx context.Context, id string) (string, error)
}

type gormAlbumRepository struct {
	db *gorm.DB
}

// NewGormAlbumRepository creates a GORM-backed AlbumRepository.
func NewGormAlbumRepository(db *gorm.DB) AlbumRepository {
	return &gormAlbumRepository{db: db}
}

func (r *gormAlbumRepository) GetByID(ctx context.Context, id string) (*model.Album, error) {
	var a model.Album
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	if err := schema.Validate(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormAlbumRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Album, error) {
	albums := make([]model.Album, 0)
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&albums).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := schema.ValidateAll(albums); err != nil {
		return nil, err
	}
	return albums, nil
}

func (r *gormAlbumRepository) Create(ctx context.Context, in model.CreateAlbumInput) (*model.Album, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	a := &model.Album{
		OwnerID:     in.OwnerID,
		Title:       in.Title,
		Description: in.Description,
		CoverArtURL: in.CoverArtURL,
		IsPublic:    in.IsPublic,
	}
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, fmt.Errorf("create album %q: %w", in.Title, translate(err))
	}
	logger.Debug("album created", logger.String("albumId", a.ID), logger.String("ownerId", a.OwnerID))
	return r.GetByID(ctx, a.ID)
}

func (r *gormAlbumRepository) Update(ctx context.Context, in model.UpdateAlbumInput) (*model.Album, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	patch := schema.NewPatch("album")
	schema.Set(patch, "title", in.Title, "required,max=255", false)
	schema.Set(patch, "description", in.Description, "max=5000", true)
	schema.Set(patch, "cover_art_url", in.CoverArtURL, "", true)
	schema.Set(patch, "is_public", in.IsPublic, "", false)
	if err := patch.Err(); err != nil {
		return nil, err
	}

	if err := updateVersioned(ctx, r.db, &model.Album{}, in.ID, in.ExpectedVersion, patch.Values()); err != nil {
		return nil, fmt.Errorf("update album %s: %w", in.ID, err)
	}
	logger.Debug("album updated", logger.String("albumId", in.ID))
	return r.GetByID(ctx, in.ID)
}

func (r *gormAlbumRepository) Delete(ctx context.Context, id string) (string, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("album_id = ?", id).Delete(&model.AlbumTrack{}).Error; err != nil {
			return err
		}
		return deleteByID(ctx, tx, &model.Album{}, id)
	})
	if err != nil {
		return "", fmt.Errorf("delete album %s: %w", id, err)
	}
	logger.Debug("album deleted", logger.String("albumId", id))
	return id, nil
}
