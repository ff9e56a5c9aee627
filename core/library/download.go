package library

import (
	"context"
	"errors"
	"io"

	"metawave/core/export"
	"metawave/logger"
	"metawave/model"
)

// Download is a tagged audio file ready to send.
type Download struct {
	Filename string
	Data     []byte
}

// DownloadTrack fetches a track and rewrites its ID3 tag with the track's
// current metadata and cover. A missing cover is skipped.
func (l *Library) DownloadTrack(ctx context.Context, trackID, viewerID string) (*Download, error) {
	t, err := l.Track(ctx, trackID, viewerID)
	if err != nil {
		return nil, err
	}
	data, err := l.fetch(ctx, t.FileURL)
	if err != nil {
		return nil, err
	}

	info := export.TagInfo{Title: t.Title}
	if t.Artist != nil {
		info.Artist = *t.Artist
	}
	if t.TrackDate != nil {
		info.Year = t.TrackDate.Year()
	}
	if t.AlbumID != nil {
		if a, err := l.albums.GetByID(ctx, *t.AlbumID); err == nil {
			info.Album = a.Title
		}
	}
	if t.CoverArtURL != nil {
		cover, err := l.fetch(ctx, *t.CoverArtURL)
		if err != nil {
			logger.Warn("failed to fetch cover for download", logger.String("trackId", t.ID), logger.ErrorField(err))
		} else {
			info.Cover = cover
		}
	}

	tagged, err := export.TagMP3(data, info)
	if err != nil {
		return nil, err
	}
	name := export.SanitizeName(t.Title)
	if name == "" {
		name = "track"
	}
	return &Download{Filename: name + ".mp3", Data: tagged}, nil
}

func (l *Library) fetch(ctx context.Context, url string) ([]byte, error) {
	rc, err := l.store.OpenURL(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ExportTracks writes a zip of the viewer's visible tracks among trackIDs.
// Tracks that cannot be read are left out and reported through
// *export.BatchError after the archive is complete.
func (l *Library) ExportTracks(ctx context.Context, w io.Writer, viewerID string, trackIDs []string) error {
	entries := make([]export.Entry, 0, len(trackIDs))
	var skipped []export.Failure
	for _, id := range trackIDs {
		t, err := l.Track(ctx, id, viewerID)
		if err != nil {
			logger.Warn("skipping track in export", logger.String("trackId", id), logger.ErrorField(err))
			skipped = append(skipped, export.Failure{Title: id, Err: err})
			continue
		}
		entries = append(entries, entryFor(t))
	}

	err := export.WriteZip(ctx, w, "", entries, l.store)
	if len(skipped) == 0 {
		return err
	}
	var partial *export.BatchError
	switch {
	case err == nil:
		return &export.BatchError{Failures: skipped}
	case errors.As(err, &partial):
		return &export.BatchError{Failures: append(skipped, partial.Failures...)}
	default:
		return err
	}
}

// ExportAlbum writes a zip of an album in display order under a folder
// named after the album.
func (l *Library) ExportAlbum(ctx context.Context, w io.Writer, albumID, viewerID string) (string, error) {
	view, err := l.AlbumView(ctx, albumID, viewerID)
	if err != nil {
		return "", err
	}
	entries := make([]export.Entry, 0, len(view.Tracks))
	for i := range view.Tracks {
		entries = append(entries, entryFor(&view.Tracks[i].Track))
	}
	folder := export.SanitizeName(view.Album.Title)
	if folder == "" {
		folder = "album"
	}
	return folder + ".zip", export.WriteZip(ctx, w, folder, entries, l.store)
}

func entryFor(t *model.Track) export.Entry {
	return export.Entry{Title: t.Title, URL: t.FileURL}
}
