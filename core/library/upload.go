package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"metawave/core/audio"
	"metawave/logger"
	"metawave/model"
	"metawave/storage"
)

// File is an uploaded file.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// UploadInput is a track upload. Fields left empty are filled from the
// file's embedded tags where possible.
type UploadInput struct {
	Audio     File
	Cover     *File
	Title     string
	Artist    *string
	TrackDate *time.Time
	IsPublic  bool
	Tags      []string
	Waveform  []byte
}

// cleanName keeps the last path element of an uploaded file name.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

func contentType(f File) string {
	if f.ContentType != "" && f.ContentType != "application/octet-stream" {
		return f.ContentType
	}
	return storage.ContentType(f.Name)
}

// readLimited reads all of r, failing with ErrTooLarge past the upload limit.
func (l *Library) readLimited(r io.Reader) ([]byte, error) {
	if l.maxUploadBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, l.maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(l.maxUploadBytes)))
	}
	return data, nil
}

// UploadTrack stores an audio file and its cover, then creates the track.
func (l *Library) UploadTrack(ctx context.Context, ownerID string, in UploadInput) (*model.Track, error) {
	data, err := l.readLimited(in.Audio.Reader)
	if err != nil {
		return nil, err
	}

	md, err := audio.Probe(bytes.NewReader(data))
	if err != nil {
		logger.Warn("failed to probe upload", logger.String("file", in.Audio.Name), logger.ErrorField(err))
		md = &audio.Metadata{}
	}

	audioPath := fmt.Sprintf("%s/%s.mp3", ownerID, uuid.NewString())
	fileURL, err := l.store.Upload(ctx, storage.BucketTracks, audioPath, bytes.NewReader(data), int64(len(data)), contentType(in.Audio), false)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}

	coverURL := l.uploadTrackCover(ctx, ownerID, in.Cover, md.Cover)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = md.Title
	}
	if title == "" {
		title = audio.TitleFromFilename(in.Audio.Name)
	}
	if title == "" {
		title = "Untitled"
	}
	artist := in.Artist
	if artist == nil && md.Artist != "" {
		artist = model.StrPtr(md.Artist)
	}

	t, err := l.tracks.Create(ctx, model.CreateTrackInput{
		OwnerID:      ownerID,
		Title:        title,
		Artist:       artist,
		TrackDate:    in.TrackDate,
		FileURL:      fileURL,
		FileSize:     model.Int64Ptr(int64(len(data))),
		DurationSecs: md.DurationSecs,
		CoverArtURL:  coverURL,
		IsPublic:     in.IsPublic,
		WaveformData: in.Waveform,
		Tags:         in.Tags,
	})
	if err != nil {
		if delErr := l.store.Delete(ctx, storage.BucketTracks, audioPath); delErr != nil {
			logger.Warn("failed to remove orphaned upload", logger.String("path", audioPath), logger.ErrorField(delErr))
		}
		return nil, err
	}
	logger.Info("track uploaded",
		logger.String("trackId", t.ID),
		logger.String("ownerId", ownerID),
		logger.String("size", humanize.Bytes(uint64(len(data)))))
	return t, nil
}

// uploadTrackCover stores the explicit cover, else the embedded one. A
// failure leaves the track without cover.
func (l *Library) uploadTrackCover(ctx context.Context, ownerID string, explicit *File, embedded *audio.Cover) *string {
	var (
		name string
		ct   string
		r    io.Reader
	)
	switch {
	case explicit != nil && explicit.Reader != nil:
		name, ct, r = cleanName(explicit.Name), contentType(*explicit), explicit.Reader
	case embedded != nil && len(embedded.Data) > 0:
		name, ct, r = embedded.Filename(), embedded.MIMEType, bytes.NewReader(embedded.Data)
	default:
		return nil
	}
	data, err := l.readLimited(r)
	if err != nil {
		logger.Warn("failed to read cover", logger.String("file", name), logger.ErrorField(err))
		return nil
	}
	if ct == "" {
		ct = storage.ContentType(name)
	}
	coverPath := fmt.Sprintf("%s/covers/%s-%s", ownerID, uuid.NewString(), name)
	url, err := l.store.Upload(ctx, storage.BucketCovers, coverPath, bytes.NewReader(data), int64(len(data)), ct, false)
	if err != nil {
		logger.Warn("failed to upload cover", logger.String("path", coverPath), logger.ErrorField(err))
		return nil
	}
	return &url
}

func (l *Library) uploadImage(ctx context.Context, bucket storage.Bucket, objectPath string, f File, overwrite bool) (string, error) {
	if f.Reader == nil {
		return "", errors.New("no file")
	}
	data, err := l.readLimited(f.Reader)
	if err != nil {
		return "", err
	}
	return l.store.Upload(ctx, bucket, objectPath, bytes.NewReader(data), int64(len(data)), contentType(f), overwrite)
}

// UploadAvatar replaces a profile's avatar.
func (l *Library) UploadAvatar(ctx context.Context, profileID string, f File) (*model.Profile, error) {
	url, err := l.uploadImage(ctx, storage.BucketAvatars, fmt.Sprintf("avatars/%s/%s", profileID, cleanName(f.Name)), f, true)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	return l.profiles.Update(ctx, model.UpdateProfileInput{ID: profileID, AvatarURL: model.Some(url)})
}

// UploadAlbumCover replaces an album's cover.
func (l *Library) UploadAlbumCover(ctx context.Context, albumID, ownerID string, f File) (*model.Album, error) {
	if _, err := l.OwnedAlbum(ctx, albumID, ownerID); err != nil {
		return nil, err
	}
	url, err := l.uploadImage(ctx, storage.BucketCovers, fmt.Sprintf("albums/%s/%s", albumID, cleanName(f.Name)), f, true)
	if err != nil {
		return nil, fmt.Errorf("upload album cover: %w", err)
	}
	return l.albums.Update(ctx, model.UpdateAlbumInput{ID: albumID, CoverArtURL: model.Some(url)})
}

// UploadTrackCover replaces one track's cover.
func (l *Library) UploadTrackCover(ctx context.Context, trackID, ownerID string, f File) (*model.Track, error) {
	if _, err := l.OwnedTrack(ctx, trackID, ownerID); err != nil {
		return nil, err
	}
	url, err := l.uploadImage(ctx, storage.BucketCovers, fmt.Sprintf("tracks/%s/cover-%s", trackID, uuid.NewString()), f, false)
	if err != nil {
		return nil, fmt.Errorf("upload track cover: %w", err)
	}
	return l.tracks.Update(ctx, model.UpdateTrackInput{ID: trackID, CoverArtURL: model.Some(url)})
}

// ApplyCoverToTracks uploads one cover and sets it on each listed track the
// owner owns, one track at a time. Failed tracks are reported through
// *BatchError; the rest keep the new cover.
func (l *Library) ApplyCoverToTracks(ctx context.Context, ownerID string, trackIDs []string, f File) (string, error) {
	url, err := l.uploadImage(ctx, storage.BucketCovers, fmt.Sprintf("%s/batch-covers/%s-%s", ownerID, uuid.NewString(), cleanName(f.Name)), f, false)
	if err != nil {
		return "", fmt.Errorf("upload cover: %w", err)
	}

	var failures []ItemFailure
	for _, id := range trackIDs {
		if _, err := l.OwnedTrack(ctx, id, ownerID); err != nil {
			failures = append(failures, ItemFailure{ID: id, Err: err})
			continue
		}
		if _, err := l.tracks.Update(ctx, model.UpdateTrackInput{ID: id, CoverArtURL: model.Some(url)}); err != nil {
			logger.Warn("failed to apply cover", logger.String("trackId", id), logger.ErrorField(err))
			failures = append(failures, ItemFailure{ID: id, Err: err})
		}
	}
	return url, batchResult("apply cover", len(trackIDs), failures)
}
