package repository

import (
	"context"
	"fmt"

	"metawave/logger"
	"metawave/model"
	"metawave/schema"

	"gorm.io/gorm"
)

// CredentialRepository stores sign-in credentials.
type CredentialRepository interface {
	// GetByID looks up by subject id, which is also the profile id.
	GetByID(ctx context.Context, id string) (*model.Credential, error)
	GetByEmail(ctx context.Context, email string) (*model.Credential, error)
	// GetByProvider finds an account created through an OAuth provider.
	GetByProvider(ctx context.Context, provider, subject string) (*model.Credential, error)
	// Create fills c.ID. A taken email is ErrDuplicate.
	Create(ctx context.Context, c *model.Credential) error
	Delete(ctx context.Context, id string) error
}

type gormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a GORM-backed CredentialRepository.
func NewGormCredentialRepository(db *gorm.DB) CredentialRepository {
	return &gormCredentialRepository{db: db}
}

func (r *gormCredentialRepository) GetByID(ctx context.Context, id string) (*model.Credential, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

func (r *gormCredentialRepository) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	return r.first(ctx, r.db.Where("email = ?", email))
}

func (r *gormCredentialRepository) GetByProvider(ctx context.Context, provider, subject string) (*model.Credential, error) {
	return r.first(ctx, r.db.Where("provider = ? AND provider_subject = ?", provider, subject))
}

func (r *gormCredentialRepository) first(ctx context.Context, q *gorm.DB) (*model.Credential, error) {
	var c model.Credential
	if err := q.WithContext(ctx).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *gormCredentialRepository) Create(ctx context.Context, c *model.Credential) error {
	if err := schema.Validate(c); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create credential for %s: %w", c.Email, translate(err))
	}
	logger.Debug("credential created", logger.String("subject", c.ID), logger.String("provider", c.Provider))
	return nil
}

func (r *gormCredentialRepository) Delete(ctx context.Context, id string) error {
	if err := deleteByID(ctx, r.db, &model.Credential{}, id); err != nil {
		return fmt.Errorf("delete credential %s: %w", id, err)
	}
	return nil
}
