package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"metawave/internal/testdb"
	"metawave/model"
	"metawave/schema"
)

func seedTrack(t *testing.T, gdb *gorm.DB, owner, title string, public bool) *model.Track {
	t.Helper()
	tr, err := NewGormTrackRepository(gdb).Create(context.Background(), model.CreateTrackInput{
		OwnerID:  owner,
		Title:    title,
		FileURL:  "https://cdn.example.com/tracks/" + owner + "/" + title + ".mp3",
		IsPublic: public,
	})
	require.NoError(t, err)
	return tr
}

func TestTrackRepository_CreateGetDelete(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTrackRepository(gdb)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.CreateTrackInput{
		OwnerID:      "u1",
		Title:        "Intro",
		FileURL:      "https://cdn.example.com/a.mp3",
		FileSize:     model.Int64Ptr(1024),
		DurationSecs: model.Int64Ptr(95),
		WaveformData: datatypes.JSON(`[0.1,0.5,0.2]`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Version)
	assert.Nil(t, created.Tags)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro", got.Title)
	assert.Equal(t, int64(95), got.Duration())
	assert.JSONEq(t, `[0.1,0.5,0.2]`, string(got.WaveformData))

	id, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackRepository_CreateValidatesBeforeWrite(t *testing.T) {
	gdb := testdb.New(t)
	_, err := NewGormTrackRepository(gdb).Create(context.Background(), model.CreateTrackInput{
		OwnerID:  "u1",
		FileURL:  "x",
		FileSize: model.Int64Ptr(-1),
	})
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))

	var count int64
	require.NoError(t, gdb.Model(&model.Track{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTrackRepository_ListByOwner(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTrackRepository(gdb)
	ctx := context.Background()

	old := seedTrack(t, gdb, "u1", "old", true)
	hidden := seedTrack(t, gdb, "u1", "hidden", false)
	seedTrack(t, gdb, "u2", "other", true)
	require.NoError(t, gdb.Model(&model.Track{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().UTC().Add(-time.Hour)).Error)

	all, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, hidden.ID, all[0].ID)
	assert.Equal(t, old.ID, all[1].ID)

	public, err := repo.ListPublicByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, old.ID, public[0].ID)

	none, err := repo.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestTrackRepository_PartialUpdate(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTrackRepository(gdb)
	ctx := context.Background()

	tr, err := repo.Create(ctx, model.CreateTrackInput{
		OwnerID: "u1",
		Title:   "Demo",
		Artist:  model.StrPtr("Someone"),
		FileURL: "https://cdn.example.com/a.mp3",
	})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, model.UpdateTrackInput{
		ID:       tr.ID,
		Title:    model.Some("Demo (final)"),
		Artist:   model.Null[string](),
		IsPublic: model.Some(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "Demo (final)", updated.Title)
	assert.Nil(t, updated.Artist)
	assert.True(t, updated.IsPublic)
	assert.Equal(t, tr.FileURL, updated.FileURL)
	assert.Equal(t, int64(2), updated.Version)

	_, err = repo.Update(ctx, model.UpdateTrackInput{ID: tr.ID, FileURL: model.Null[string]()})
	assert.True(t, schema.IsValidation(err))
}

func TestTrackRepository_TagsStayInSync(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTrackRepository(gdb)
	tags := NewGormTagRepository(gdb)
	ctx := context.Background()

	tr, err := repo.Create(ctx, model.CreateTrackInput{
		OwnerID: "u1",
		Title:   "Song",
		FileURL: "https://cdn.example.com/s.mp3",
		Tags:    []string{"rock", "live"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"rock", "live"}, tr.Tags)

	list, err := repo.UpdateTags(ctx, tr.ID, []string{" live ", "demo", "live"})
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"live", "demo"}, list)

	linked, err := tags.ListForTrack(ctx, tr.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(linked))
	for _, tg := range linked {
		names = append(names, tg.Name)
	}
	assert.Equal(t, []string{"demo", "live"}, names)

	// "rock" survives as a user tag even though no track uses it
	userTags, err := tags.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, userTags, 3)

	updated, err := repo.Update(ctx, model.UpdateTrackInput{ID: tr.ID, Tags: model.Null[[]string]()})
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)

	linked, err = tags.ListForTrack(ctx, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestTrackRepository_DeleteRemovesLinks(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTrackRepository(gdb)
	pivot := NewGormAlbumTrackRepository(gdb)
	ctx := context.Background()

	tr, err := repo.Create(ctx, model.CreateTrackInput{
		OwnerID: "u1", Title: "Song", FileURL: "x", Tags: []string{"a"},
	})
	require.NoError(t, err)
	_, err = pivot.Add(ctx, "album-1", tr.ID, 1)
	require.NoError(t, err)

	_, err = repo.Delete(ctx, tr.ID)
	require.NoError(t, err)

	n, err := pivot.Count(ctx, "album-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	var links int64
	require.NoError(t, gdb.Model(&model.TrackTag{}).Count(&links).Error)
	assert.Zero(t, links)
}

func TestTrackRepository_UpdateIsIdempotent(t *testing.T) {
	gdb := testdb.New(t)
	repo := NewGormTrackRepository(gdb)
	tags := NewGormTagRepository(gdb)
	ctx := context.Background()

	tr := seedTrack(t, gdb, "u1", "A", false)
	patch := model.UpdateTrackInput{
		ID:     tr.ID,
		Title:  model.Some("B"),
		Artist: model.Null[string](),
		Tags:   model.Some([]string{"x", "y"}),
	}

	first, err := repo.Update(ctx, patch)
	require.NoError(t, err)
	firstLinks, err := tags.ListForTrack(ctx, tr.ID)
	require.NoError(t, err)

	second, err := repo.Update(ctx, patch)
	require.NoError(t, err)
	secondLinks, err := tags.ListForTrack(ctx, tr.ID)
	require.NoError(t, err)

	// version counts writes and moves like updated_at
	assert.Equal(t, first.Version+1, second.Version)
	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	first.Version, second.Version = 0, 0
	assert.Equal(t, first, second)
	assert.Equal(t, firstLinks, secondLinks)
}
