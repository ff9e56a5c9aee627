package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"metawave/model"
)

func validProfile() model.Profile {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.Profile{
		ID:        "0b3c4f9e-0000-4000-8000-000000000001",
		Email:     "ada@example.com",
		Name:      "Ada",
		Handle:    "ada_l",
		DOB:       model.StrPtr("1990-12-10"),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestValidate_ProfileHandle(t *testing.T) {
	tests := []struct {
		name    string
		handle  string
		wantErr bool
	}{
		{"letters digits underscore", "ada_99", false},
		{"too short", "ab", true},
		{"dash not allowed", "ada-l", true},
		{"space not allowed", "ada l", true},
		{"empty", "", true},
		{"exactly three", "a_1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			p.Handle = tt.handle
			err := Validate(&p)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Contains(t, err.Error(), "handle")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_ProfileEmailAndDOB(t *testing.T) {
	p := validProfile()
	p.Email = "not-an-email"
	p.DOB = model.StrPtr("10/12/1990")

	err := Validate(&p)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "profile", ve.Entity)
	fields := []string{}
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"email", "dob"}, fields)
}

func TestValidate_CreateTrackInput(t *testing.T) {
	in := model.CreateTrackInput{
		OwnerID:  "owner",
		Title:    "",
		FileURL:  "https://cdn/x.mp3",
		FileSize: model.Int64Ptr(-1),
		Tags:     []string{"ok", ""},
	}

	err := Validate(&in)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "createtrackinput", ve.Entity)
	rules := map[string]string{}
	for _, f := range ve.Fields {
		rules[f.Field] = f.Rule
	}
	assert.Equal(t, "required", rules["title"])
	assert.Equal(t, "gte", rules["file_size"])
	assert.Equal(t, "required", rules["tags[1]"])
}

func TestPatch(t *testing.T) {
	p := NewPatch("track")
	Set(p, "title", model.Some("New"), "required,max=255", false)
	Set(p, "artist", model.Null[string](), "", true)
	Set(p, "file_size", model.Optional[int64]{}, "gte=0", true)

	require.NoError(t, p.Err())
	assert.Equal(t, map[string]any{"title": "New", "artist": nil}, p.Values())
}

func TestPatch_Errors(t *testing.T) {
	p := NewPatch("track")
	Set(p, "title", model.Null[string](), "required", false)
	Set(p, "file_size", model.Some[int64](-5), "gte=0", true)

	err := p.Err()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []FieldError{{Field: "title", Rule: "notnull"}, {Field: "file_size", Rule: "gte"}}, ve.Fields)
	assert.Equal(t, "invalid track: title cannot be null; file_size failed \"gte\"", err.Error())
}

func TestRoundTrip(t *testing.T) {
	now := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("profile", func(t *testing.T) {
		p := validProfile()
		roundTrip(t, &p, &model.Profile{})
	})
	t.Run("track", func(t *testing.T) {
		tr := model.Track{
			ID: "t1", OwnerID: "o1", Title: "Aurora", Artist: model.StrPtr("MetaWave"),
			TrackDate: &date, FileURL: "https://cdn/a.mp3", FileSize: model.Int64Ptr(6400000),
			DurationSecs: model.Int64Ptr(312), IsPublic: true,
			WaveformData: datatypes.JSON(`[0.1,0.5]`), Tags: model.StringList{"ambient"},
			Version: 2, CreatedAt: now, UpdatedAt: now,
		}
		roundTrip(t, &tr, &model.Track{})
	})
	t.Run("album", func(t *testing.T) {
		a := model.Album{ID: "a1", OwnerID: "o1", Title: "Night", Description: model.StrPtr("d"), Version: 1, CreatedAt: now, UpdatedAt: now}
		roundTrip(t, &a, &model.Album{})
	})
	t.Run("album track", func(t *testing.T) {
		at := model.AlbumTrack{AlbumID: "a1", TrackID: "t1", Position: 3, AddedAt: now}
		roundTrip(t, &at, &model.AlbumTrack{})
	})
	t.Run("tag", func(t *testing.T) {
		tg := model.Tag{ID: "g1", UserID: "o1", Name: "ambient", Category: model.StrPtr("mood"), Version: 1, CreatedAt: now, UpdatedAt: now}
		roundTrip(t, &tg, &model.Tag{})
	})
}

func roundTrip[T any](t *testing.T, in *T, out *T) {
	t.Helper()
	require.NoError(t, Validate(in))
	b, err := json.Marshal(in)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
	require.NoError(t, Validate(out))
	assert.Equal(t, in, out)
}
