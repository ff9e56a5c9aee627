package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metawave/internal/testdb"
	"metawave/model"
)

func TestTagRepository_CRUD(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTagRepository(gdb)
	ctx := context.Background()

	jazz, err := repo.Create(ctx, model.CreateTagInput{UserID: "u1", Name: "jazz", Category: model.StrPtr("genre")})
	require.NoError(t, err)
	_, err = repo.Create(ctx, model.CreateTagInput{UserID: "u1", Name: "ambient"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, model.CreateTagInput{UserID: "u2", Name: "jazz"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, model.CreateTagInput{UserID: "u1", Name: "jazz"})
	assert.ErrorIs(t, err, ErrDuplicate)

	list, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ambient", list[0].Name)
	assert.Equal(t, "jazz", list[1].Name)

	updated, err := repo.Update(ctx, model.UpdateTagInput{ID: jazz.ID, Category: model.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, updated.Category)
	assert.Equal(t, "jazz", updated.Name)
}

func TestTagRepository_LinksMirrorIntoTrack(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTagRepository(gdb)
	tracks := NewGormTrackRepository(gdb)
	ctx := context.Background()

	tr := seedTrack(t, gdb, "u1", "Song", true)
	tag, err := repo.Create(ctx, model.CreateTagInput{UserID: "u1", Name: "chill"})
	require.NoError(t, err)

	require.NoError(t, repo.AddToTrack(ctx, tr.ID, tag.ID))
	require.NoError(t, repo.AddToTrack(ctx, tr.ID, tag.ID))

	got, err := tracks.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"chill"}, got.Tags)

	renamed, err := repo.Update(ctx, model.UpdateTagInput{ID: tag.ID, Name: model.Some("mellow")})
	require.NoError(t, err)
	assert.Equal(t, "mellow", renamed.Name)

	got, err = tracks.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"mellow"}, got.Tags)

	require.NoError(t, repo.RemoveFromTrack(ctx, tr.ID, tag.ID))
	assert.ErrorIs(t, repo.RemoveFromTrack(ctx, tr.ID, tag.ID), ErrNotFound)

	got, err = tracks.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestTagRepository_DeleteClearsTracks(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTagRepository(gdb)
	tracks := NewGormTrackRepository(gdb)
	ctx := context.Background()

	tr, err := tracks.Create(ctx, model.CreateTrackInput{
		OwnerID: "u1", Title: "Song", FileURL: "x", Tags: []string{"keep", "drop"},
	})
	require.NoError(t, err)

	userTags, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	var dropID string
	for _, tg := range userTags {
		if tg.Name == "drop" {
			dropID = tg.ID
		}
	}
	require.NotEmpty(t, dropID)

	_, err = repo.Delete(ctx, dropID)
	require.NoError(t, err)

	got, err := tracks.GetByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"keep"}, got.Tags)

	_, err = repo.GetByID(ctx, dropID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTagRepository_OwnerMismatch(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTagRepository(gdb)
	ctx := context.Background()

	tr := seedTrack(t, gdb, "u1", "Song", true)
	other, err := repo.Create(ctx, model.CreateTagInput{UserID: "u2", Name: "theirs"})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.AddToTrack(ctx, tr.ID, other.ID), ErrOwnerMismatch)
}

func TestCredentialRepository(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormCredentialRepository(gdb)
	ctx := context.Background()

	local := &model.Credential{Email: "a@example.com", PasswordHash: "hash", Provider: model.ProviderLocal}
	require.NoError(t, repo.Create(ctx, local))
	require.NotEmpty(t, local.ID)

	gh := &model.Credential{Email: "b@example.com", Provider: "github", ProviderSubject: model.StrPtr("42")}
	require.NoError(t, repo.Create(ctx, gh))

	byEmail, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, local.ID, byEmail.ID)

	byProvider, err := repo.GetByProvider(ctx, "github", "42")
	require.NoError(t, err)
	assert.Equal(t, gh.ID, byProvider.ID)

	err = repo.Create(ctx, &model.Credential{Email: "a@example.com", Provider: model.ProviderLocal})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, repo.Delete(ctx, local.ID))
	_, err = repo.GetByID(ctx, local.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
