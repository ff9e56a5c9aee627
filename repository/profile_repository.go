package repository

import (
	"context"
	"fmt"

	"metawave/logger"
	"metawave/model"
	"metawave/schema"

	"gorm.io/gorm"
)

const defaultSearchLimit = 20

// ProfileRepository defines the profile data operations.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByHandle(ctx context.Context, handle string) (*model.Profile, error)
	// Create stores a profile under the id of its authentication subject.
	Create(ctx context.Context, in model.CreateProfileInput) (*model.Profile, error)
	// Update writes only the fields set on in. With ExpectedVersion set, a
	// stale version fails with ErrConflict.
	Update(ctx context.Context, in model.UpdateProfileInput) (*model.Profile, error)
	Delete(ctx context.Context, id string) (string, error)
	// Search matches name or handle case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]model.ProfileSummary, error)
}

type gormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a GORM-backed ProfileRepository.
func NewGormProfileRepository(db *gorm.DB) ProfileRepository {
	return &gormProfileRepository{db: db}
}

func (r *gormProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormProfileRepository) GetByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	return r.first(ctx, "handle = ?", handle)
}

func (r *gormProfileRepository) first(ctx context.Context, query string, arg interface{}) (*model.Profile, error) {
	var p model.Profile
	if err := r.db.WithContext(ctx).Where(query, arg).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	if err := schema.Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormProfileRepository) Create(ctx context.Context, in model.CreateProfileInput) (*model.Profile, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	p := &model.Profile{
		ID:        in.ID,
		Email:     in.Email,
		Name:      in.Name,
		Handle:    in.Handle,
		DOB:       in.DOB,
		Bio:       in.Bio,
		AvatarURL: in.AvatarURL,
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create profile %s: %w", in.Handle, translate(err))
	}
	logger.Debug("profile created", logger.String("profileId", p.ID), logger.String("handle", p.Handle))
	return r.GetByID(ctx, p.ID)
}

func (r *gormProfileRepository) Update(ctx context.Context, in model.UpdateProfileInput) (*model.Profile, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	patch := schema.NewPatch("profile")
	schema.Set(patch, "email", in.Email, "required,email", false)
	schema.Set(patch, "name", in.Name, "required,max=100", false)
	schema.Set(patch, "handle", in.Handle, "required,min=3,max=64,handle", false)
	schema.Set(patch, "dob", in.DOB, "datetime=2006-01-02", true)
	schema.Set(patch, "bio", in.Bio, "max=2000", true)
	schema.Set(patch, "avatar_url", in.AvatarURL, "", true)
	if err := patch.Err(); err != nil {
		return nil, err
	}

	if err := updateVersioned(ctx, r.db, &model.Profile{}, in.ID, in.ExpectedVersion, patch.Values()); err != nil {
		return nil, fmt.Errorf("update profile %s: %w", in.ID, err)
	}
	logger.Debug("profile updated", logger.String("profileId", in.ID))
	return r.GetByID(ctx, in.ID)
}

func (r *gormProfileRepository) Delete(ctx context.Context, id string) (string, error) {
	if err := deleteByID(ctx, r.db, &model.Profile{}, id); err != nil {
		return "", fmt.Errorf("delete profile %s: %w", id, err)
	}
	logger.Debug("profile deleted", logger.String("profileId", id))
	return id, nil
}

func (r *gormProfileRepository) Search(ctx context.Context, query string, limit int) ([]model.ProfileSummary, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results := make([]model.ProfileSummary, 0)
	if query == "" {
		return results, nil
	}
	pattern := likePattern(query)
	err := r.db.WithContext(ctx).Model(&model.Profile{}).
		Select("id", "name", "handle", "avatar_url").
		Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(handle) LIKE ? ESCAPE '!'", pattern, pattern).
		Order("handle ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, translate(err)
	}
	return results, nil
}
