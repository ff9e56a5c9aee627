// Package library composes the repositories and the object store into the
// operations the HTTP surface exposes: album views and ordering, uploads,
// batch edits and downloads.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metawave/model"
	"metawave/repository"
	"metawave/storage"
)

var (
	// ErrForbidden is returned when the viewer may not see or change a record.
	ErrForbidden = errors.New("forbidden")
	// ErrStalePivot is returned when an album row points at a track that no
	// longer belongs to the album's owner.
	ErrStalePivot = errors.New("album references a missing track")
	// ErrTooLarge is returned for uploads over the configured limit.
	ErrTooLarge = errors.New("file too large")
	// ErrBadOrder is returned when a reorder does not match the album.
	ErrBadOrder = errors.New("order does not match album contents")
)

// ItemFailure is one item of a batch that failed.
type ItemFailure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// BatchError is returned by best-effort batches. Items not listed succeeded
// and are not rolled back.
type BatchError struct {
	Op       string
	Total    int
	Failures []ItemFailure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ID, f.Err))
	}
	return fmt.Sprintf("%s: %d of %d items failed: %s", e.Op, len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// FailedIDs lists the ids of the failed items.
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.ID)
	}
	return ids
}

func batchResult(op string, total int, failures []ItemFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return &BatchError{Op: op, Total: total, Failures: failures}
}

// Library is the application layer over one store.
type Library struct {
	tracks         repository.TrackRepository
	albums         repository.AlbumRepository
	pivot          repository.AlbumTrackRepository
	profiles       repository.ProfileRepository
	store          storage.ObjectStore
	maxUploadBytes int64
}

func New(
	tracks repository.TrackRepository,
	albums repository.AlbumRepository,
	pivot repository.AlbumTrackRepository,
	profiles repository.ProfileRepository,
	store storage.ObjectStore,
	maxUploadMB int,
) *Library {
	return &Library{
		tracks:         tracks,
		albums:         albums,
		pivot:          pivot,
		profiles:       profiles,
		store:          store,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// CanViewTrack reports whether viewerID may see the track.
func CanViewTrack(t *model.Track, viewerID string) bool {
	return t.IsPublic || (viewerID != "" && t.OwnerID == viewerID)
}

// CanViewAlbum reports whether viewerID may see the album.
func CanViewAlbum(a *model.Album, viewerID string) bool {
	return a.IsPublic || (viewerID != "" && a.OwnerID == viewerID)
}

// Track returns the track when viewerID may see it.
func (l *Library) Track(ctx context.Context, id, viewerID string) (*model.Track, error) {
	t, err := l.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanViewTrack(t, viewerID) {
		return nil, ErrForbidden
	}
	return t, nil
}

// Album returns the album when viewerID may see it.
func (l *Library) Album(ctx context.Context, id, viewerID string) (*model.Album, error) {
	a, err := l.albums.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanViewAlbum(a, viewerID) {
		return nil, ErrForbidden
	}
	return a, nil
}

// OwnedTrack returns the track when ownerID owns it.
func (l *Library) OwnedTrack(ctx context.Context, id, ownerID string) (*model.Track, error) {
	t, err := l.tracks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return t, nil
}

// OwnedAlbum returns the album when ownerID owns it.
func (l *Library) OwnedAlbum(ctx context.Context, id, ownerID string) (*model.Album, error) {
	a, err := l.albums.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return a, nil
}

// TracksFor lists a profile's tracks as seen by viewerID.
func (l *Library) TracksFor(ctx context.Context, ownerID, viewerID string) ([]model.Track, error) {
	if ownerID == viewerID {
		return l.tracks.ListByOwner(ctx, ownerID)
	}
	return l.tracks.ListPublicByOwner(ctx, ownerID)
}

// AlbumsFor lists a profile's albums as seen by viewerID.
func (l *Library) AlbumsFor(ctx context.Context, ownerID, viewerID string) ([]model.Album, error) {
	albums, err := l.albums.ListByOwner(ctx, ownerID)
	if err != nil || ownerID == viewerID {
		return albums, err
	}
	public := make([]model.Album, 0, len(albums))
	for _, a := range albums {
		if a.IsPublic {
			public = append(public, a)
		}
	}
	return public, nil
}
