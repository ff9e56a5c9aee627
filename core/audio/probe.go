package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"

	"metawave/logger"

	"github.com/dhowden/tag"
	"github.com/llehouerou/go-mp3"
)

// Cover is artwork embedded in an audio file.
type Cover struct {
	Data     []byte
	MIMEType string
	Ext      string
}

// Metadata is what an upload tells us about itself. Every field is optional.
type Metadata struct {
	Title        string
	Artist       string
	Album        string
	Year         int
	Cover        *Cover
	DurationSecs *int64
}

// Probe reads embedded tags and the MP3 duration. Unreadable tags or audio
// leave the matching fields empty; only I/O failures are returned.
func Probe(r io.ReadSeeker) (*Metadata, error) {
	md := &Metadata{}

	m, err := tag.ReadFrom(r)
	switch {
	case err == nil:
		md.Title = strings.TrimSpace(m.Title())
		md.Artist = strings.TrimSpace(m.Artist())
		md.Album = strings.TrimSpace(m.Album())
		md.Year = m.Year()
		if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
			md.Cover = &Cover{Data: pic.Data, MIMEType: pic.MIMEType, Ext: pic.Ext}
		}
	case errors.Is(err, tag.ErrNoTagsFound):
	default:
		logger.Debug("unreadable audio tags", logger.ErrorField(err))
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind audio: %w", err)
	}
	if secs, ok := mp3Duration(r); ok {
		md.DurationSecs = &secs
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind audio: %w", err)
	}
	return md, nil
}

func mp3Duration(r io.ReadSeeker) (secs int64, ok bool) {
	defer func() {
		// the decoder panics on some malformed frames
		if rec := recover(); rec != nil {
			logger.Debug("mp3 decoder panicked", logger.Any("panic", rec))
			ok = false
		}
	}()

	d, err := mp3.NewDecoder(r)
	if err != nil {
		logger.Debug("not an mp3 stream", logger.ErrorField(err))
		return 0, false
	}
	rate := d.SampleRate()
	count := d.SampleCount()
	if rate <= 0 || count <= 0 {
		return 0, false
	}
	return int64(math.Round(float64(count) / float64(rate))), true
}

// TitleFromFilename strips the directory and the audio extension.
func TitleFromFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if ext := path.Ext(base); strings.EqualFold(ext, ".mp3") {
		base = base[:len(base)-len(ext)]
	}
	return strings.TrimSpace(base)
}

// Filename names embedded artwork for upload.
func (c *Cover) Filename() string {
	ext := strings.TrimPrefix(c.Ext, ".")
	if ext == "" {
		switch c.MIMEType {
		case "image/png":
			ext = "png"
		default:
			ext = "jpg"
		}
	}
	return "embedded." + strings.ToLower(ext)
}
