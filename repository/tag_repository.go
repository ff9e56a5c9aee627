package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"metawave/logger"
	"metawave/model"
	"metawave/schema"

	"gorm.io/gorm"
)

// ErrOwnerMismatch is returned when a tag is applied to another user's track.
var ErrOwnerMismatch = errors.New("tag and track belong to different users")

// TagRepository defines the tag data operations. Links between tags and
// tracks are mirrored into Track.Tags in the same transaction.
type TagRepository interface {
	GetByID(ctx context.Context, id string) (*model.Tag, error)
	// ListByUser returns the user's tags sorted by name.
	ListByUser(ctx context.Context, userID string) ([]model.Tag, error)
	Create(ctx context.Context, in model.CreateTagInput) (*model.Tag, error)
	Update(ctx context.Context, in model.UpdateTagInput) (*model.Tag, error)
	Delete(ctx context.Context, id string) (string, error)
	ListForTrack(ctx context.Context, trackID string) ([]model.Tag, error)
	// AddToTrack is a no-op when the link already exists.
	AddToTrack(ctx context.Context, trackID, tagID string) error
	RemoveFromTrack(ctx context.Context, trackID, tagID string) error
}

type gormTagRepository struct {
	db *gorm.DB
}

// NewGormTagRepository creates a GORM-backed TagRepository.
func NewGormTagRepository(db *gorm.DB) TagRepository {
	return &gormTagRepository{db: db}
}

func (r *gormTagRepository) GetByID(ctx context.Context, id string) (*model.Tag, error) {
	return getTag(ctx, r.db, id)
}

func getTag(ctx context.Context, tx *gorm.DB, id string) (*model.Tag, error) {
	var t model.Tag
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	if err := schema.Validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormTagRepository) ListByUser(ctx context.Context, userID string) ([]model.Tag, error) {
	tags := make([]model.Tag, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, translate(err)
	}
	if err := schema.ValidateAll(tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *gormTagRepository) Create(ctx context.Context, in model.CreateTagInput) (*model.Tag, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	t := &model.Tag{UserID: in.UserID, Name: in.Name, Category: in.Category}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("create tag %q: %w", in.Name, translate(err))
	}
	logger.Debug("tag created", logger.String("tagId", t.ID), logger.String("name", t.Name))
	return r.GetByID(ctx, t.ID)
}

// Update renames or recategorises a tag. A rename is carried into the tag
// list of every linked track.
func (r *gormTagRepository) Update(ctx context.Context, in model.UpdateTagInput) (*model.Tag, error) {
	if err := schema.Validate(&in); err != nil {
		return nil, err
	}
	patch := schema.NewPatch("tag")
	schema.Set(patch, "name", in.Name, "required,max=64", false)
	schema.Set(patch, "category", in.Category, "max=64", true)
	if err := patch.Err(); err != nil {
		return nil, err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldName string
		if in.Name.Set {
			current, err := getTag(ctx, tx, in.ID)
			if err != nil {
				return err
			}
			oldName = current.Name
		}
		if err := updateVersioned(ctx, tx, &model.Tag{}, in.ID, in.ExpectedVersion, patch.Values()); err != nil {
			return err
		}
		if oldName == "" || oldName == in.Name.Value {
			return nil
		}
		return rewriteLinkedTracks(ctx, tx, in.ID, func(list []string) []string {
			for i, n := range list {
				if n == oldName {
					list[i] = in.Name.Value
				}
			}
			return list
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update tag %s: %w", in.ID, err)
	}
	logger.Debug("tag updated", logger.String("tagId", in.ID))
	return r.GetByID(ctx, in.ID)
}

// Delete removes the tag, its links, and its name from linked tracks.
func (r *gormTagRepository) Delete(ctx context.Context, id string) (string, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := getTag(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := rewriteLinkedTracks(ctx, tx, id, func(list []string) []string {
			return without(list, tag.Name)
		}); err != nil {
			return err
		}
		if err := tx.Where("tag_id = ?", id).Delete(&model.TrackTag{}).Error; err != nil {
			return err
		}
		return deleteByID(ctx, tx, &model.Tag{}, id)
	})
	if err != nil {
		return "", fmt.Errorf("delete tag %s: %w", id, err)
	}
	logger.Debug("tag deleted", logger.String("tagId", id))
	return id, nil
}

func (r *gormTagRepository) ListForTrack(ctx context.Context, trackID string) ([]model.Tag, error) {
	var links []model.TrackTag
	err := r.db.WithContext(ctx).
		Preload("Tag").
		Where("track_id = ?", trackID).
		Find(&links).Error
	if err != nil {
		return nil, translate(err)
	}
	tags := make([]model.Tag, 0, len(links))
	for _, l := range links {
		if l.Tag != nil {
			tags = append(tags, *l.Tag)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	if err := schema.ValidateAll(tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *gormTagRepository) AddToTrack(ctx context.Context, trackID, tagID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		track, err := getTrack(ctx, tx, trackID)
		if err != nil {
			return err
		}
		tag, err := getTag(ctx, tx, tagID)
		if err != nil {
			return err
		}
		if track.OwnerID != tag.UserID {
			return ErrOwnerMismatch
		}

		var n int64
		if err := tx.Model(&model.TrackTag{}).
			Where("track_id = ? AND tag_id = ?", trackID, tagID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&model.TrackTag{TrackID: trackID, TagID: tagID}).Error; err != nil {
			return translate(err)
		}
		if track.Tags.Contains(tag.Name) {
			return nil
		}
		list := append(model.StringList{}, track.Tags...)
		list = append(list, tag.Name)
		return updateVersioned(ctx, tx, &model.Track{}, trackID, nil, map[string]interface{}{"tags": list})
	})
	if err != nil {
		return fmt.Errorf("tag track %s with %s: %w", trackID, tagID, err)
	}
	logger.Debug("tag added to track", logger.String("trackId", trackID), logger.String("tagId", tagID))
	return nil
}

func (r *gormTagRepository) RemoveFromTrack(ctx context.Context, trackID, tagID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := getTag(ctx, tx, tagID)
		if err != nil {
			return err
		}
		res := tx.Where("track_id = ? AND tag_id = ?", trackID, tagID).Delete(&model.TrackTag{})
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		track, err := getTrack(ctx, tx, trackID)
		if err != nil {
			return err
		}
		return updateVersioned(ctx, tx, &model.Track{}, trackID, nil,
			map[string]interface{}{"tags": model.StringList(without(track.Tags, tag.Name))})
	})
	if err != nil {
		return fmt.Errorf("untag track %s from %s: %w", trackID, tagID, err)
	}
	logger.Debug("tag removed from track", logger.String("trackId", trackID), logger.String("tagId", tagID))
	return nil
}

// rewriteLinkedTracks applies edit to the tag list of every track linked to tagID.
func rewriteLinkedTracks(ctx context.Context, tx *gorm.DB, tagID string, edit func([]string) []string) error {
	var tracks []model.Track
	err := tx.WithContext(ctx).
		Where("id IN (?)", tx.Model(&model.TrackTag{}).Select("track_id").Where("tag_id = ?", tagID)).
		Find(&tracks).Error
	if err != nil {
		return err
	}
	for _, t := range tracks {
		list := edit(append([]string{}, t.Tags...))
		if err := updateVersioned(ctx, tx, &model.Track{}, t.ID, nil,
			map[string]interface{}{"tags": model.StringList(list)}); err != nil {
			return err
		}
	}
	return nil
}

func without(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
