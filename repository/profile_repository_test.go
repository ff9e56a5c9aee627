package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"metawave/internal/testdb"
	"metawave/model"
	"metawave/schema"
)

func seedProfile(t *testing.T, gdb *gorm.DB, id, handle string) *model.Profile {
	t.Helper()
	p, err := NewGormProfileRepository(gdb).Create(context.Background(), model.CreateProfileInput{
		ID:     id,
		Email:  handle + "@example.com",
		Name:   "User " + handle,
		Handle: handle,
	})
	require.NoError(t, err)
	return p
}

func TestProfileRepository_CreateAndGet(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormProfileRepository(gdb)
	ctx := context.Background()

	created := seedProfile(t, gdb, "u1", "alice_1")
	assert.Equal(t, int64(1), created.Version)

	byID, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice_1", byID.Handle)

	byHandle, err := repo.GetByHandle(ctx, "alice_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", byHandle.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileRepository_CreateRejectsBadHandle(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormProfileRepository(gdb)

	_, err := repo.Create(context.Background(), model.CreateProfileInput{
		ID: "u1", Email: "a@example.com", Name: "A", Handle: "no spaces",
	})
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))

	var count int64
	require.NoError(t, gdb.Model(&model.Profile{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProfileRepository_DuplicateHandle(t *testing.T) {
	gdb := testdb.New(t)
	seedProfile(t, gdb, "u1", "alice")

	_, err := NewGormProfileRepository(gdb).Create(context.Background(), model.CreateProfileInput{
		ID: "u2", Email: "b@example.com", Name: "B", Handle: "alice",
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestProfileRepository_PartialUpdate(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormProfileRepository(gdb)
	ctx := context.Background()

	_, err := repo.Create(ctx, model.CreateProfileInput{
		ID: "u1", Email: "a@example.com", Name: "Alice", Handle: "alice",
		Bio: model.StrPtr("hello"),
	})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, model.UpdateProfileInput{
		ID:   "u1",
		Name: model.Some("Alice B"),
		Bio:  model.Null[string](),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Nil(t, updated.Bio)
	assert.Equal(t, "alice", updated.Handle)
	assert.Equal(t, "a@example.com", updated.Email)
	assert.Equal(t, int64(2), updated.Version)
}

func TestProfileRepository_UpdateRejectsNullName(t *testing.T) {
	gdb := testdb.New(t)
	seedProfile(t, gdb, "u1", "alice")

	_, err := NewGormProfileRepository(gdb).Update(context.Background(), model.UpdateProfileInput{
		ID:   "u1",
		Name: model.Null[string](),
	})
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))
}

func TestProfileRepository_VersionConflict(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormProfileRepository(gdb)
	ctx := context.Background()
	seedProfile(t, gdb, "u1", "alice")

	v1 := int64(1)
	_, err := repo.Update(ctx, model.UpdateProfileInput{ID: "u1", ExpectedVersion: &v1, Name: model.Some("First")})
	require.NoError(t, err)

	_, err = repo.Update(ctx, model.UpdateProfileInput{ID: "u1", ExpectedVersion: &v1, Name: model.Some("Second")})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)

	_, err = repo.Update(ctx, model.UpdateProfileInput{ID: "missing", Name: model.Some("X")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileRepository_Delete(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormProfileRepository(gdb)
	ctx := context.Background()
	seedProfile(t, gdb, "u1", "alice")

	id, err := repo.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = repo.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Delete(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileRepository_Search(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormProfileRepository(gdb)
	ctx := context.Background()
	seedProfile(t, gdb, "u1", "zed_music")
	seedProfile(t, gdb, "u2", "Ana_beats")
	seedProfile(t, gdb, "u3", "bob")

	results, err := repo.Search(ctx, "B", 0)
	require.NoError(t, err)
	handles := make([]string, 0, len(results))
	for _, r := range results {
		handles = append(handles, r.Handle)
	}
	assert.Equal(t, []string{"Ana_beats", "bob"}, handles)

	results, err = repo.Search(ctx, "_", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = repo.Search(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = repo.Search(ctx, "user", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestProfileRepository_UpdateIsIdempotent(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormProfileRepository(gdb)
	ctx := context.Background()
	seedProfile(t, gdb, "u1", "alice")

	patch := model.UpdateProfileInput{
		ID:  "u1",
		Bio: model.Some("same every time"),
		DOB: model.Some("1990-04-01"),
	}
	first, err := repo.Update(ctx, patch)
	require.NoError(t, err)
	second, err := repo.Update(ctx, patch)
	require.NoError(t, err)

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	first.Version, second.Version = 0, 0
	assert.Equal(t, first, second)
}
