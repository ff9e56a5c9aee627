package export

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/dhowden/tag"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metawave/storage"
)

func TestWriteZip_BestEffort(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("https://cdn.example.com")
	url1, err := store.Upload(ctx, storage.BucketTracks, "u1/a.mp3", strings.NewReader("AAA"), 3, "", false)
	require.NoError(t, err)
	url2, err := store.Upload(ctx, storage.BucketTracks, "u1/b.mp3", strings.NewReader("BBB"), 3, "", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = WriteZip(ctx, &buf, "My: Album", []Entry{
		{Title: "Song", URL: url1},
		{Title: "gone", URL: "https://cdn.example.com/tracks/u1/missing.mp3"},
		{Title: "song", URL: url2},
		{Title: "a/b", URL: url1},
	}, store)

	var be *BatchError
	require.ErrorAs(t, err, &be)
	require.Len(t, be.Failures, 1)
	assert.Equal(t, "gone", be.Failures[0].Title)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	contents := map[string]string{}
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(data)
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"My_ Album/Song.mp3", "My_ Album/a_b.mp3", "My_ Album/song (2).mp3"}, names)
	assert.Equal(t, "BBB", contents["My_ Album/song (2).mp3"])
}

func TestWriteZip_NoFolder(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("")
	url, err := store.Upload(ctx, storage.BucketTracks, "x.mp3", strings.NewReader("X"), 1, "", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteZip(ctx, &buf, "", []Entry{{Title: "  ", URL: url}}, store))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "track.mp3", zr.File[0].Name)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "AC_DC", SanitizeName("AC/DC"))
	assert.Equal(t, "what_", SanitizeName(" what? "))
	assert.Equal(t, "hidden", SanitizeName("..hidden"))
}

func TestTagMP3(t *testing.T) {
	body := []byte{0xFF, 0xFB, 0x90, 0x00, 1, 2, 3, 4}
	cover := []byte("\x89PNG\r\n\x1a\nfakeimage")

	tagged, err := TagMP3(body, TagInfo{Title: "Song", Artist: "Artist", Album: "Album", Year: 2023, Cover: cover})
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(tagged, body))

	m, err := tag.ReadFrom(bytes.NewReader(tagged))
	require.NoError(t, err)
	assert.Equal(t, "Song", m.Title())
	assert.Equal(t, "Artist", m.Artist())
	assert.Equal(t, "Album", m.Album())
	assert.Equal(t, 2023, m.Year())
	assert.Equal(t, downloadComment, m.Comment())
	require.NotNil(t, m.Picture())
	assert.Equal(t, cover, m.Picture().Data)
	assert.Equal(t, "image/png", m.Picture().MIMEType)

	// tagging again replaces the tag rather than stacking a second one
	retagged, err := TagMP3(tagged, TagInfo{Title: "Other"})
	require.NoError(t, err)
	stripped, err := stripID3v2(retagged)
	require.NoError(t, err)
	assert.Equal(t, body, stripped)
}

func TestStripID3v2_Truncated(t *testing.T) {
	_, err := stripID3v2([]byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0x7F, 0x7F})
	assert.Error(t, err)

	out, err := stripID3v2([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), out)
}
