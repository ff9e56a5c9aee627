package library

import (
	"context"
	"fmt"
	"time"

	"metawave/logger"
	"metawave/model"
)

// AlbumEntry is one track as shown in an album.
type AlbumEntry struct {
	Position int         `json:"position"`
	AddedAt  *time.Time  `json:"added_at,omitempty"`
	Track    model.Track `json:"track"`
}

// AlbumView is an album with its tracks in display order. Available is
// only filled for the owner: their tracks not yet in the album.
type AlbumView struct {
	Album     model.Album   `json:"album"`
	IsOwner   bool          `json:"is_owner"`
	Tracks    []AlbumEntry  `json:"tracks"`
	Available []model.Track `json:"available,omitempty"`
}

// AlbumView renders an album for viewerID. The owner sees every track with
// its stored position; anyone else sees the public tracks of a public album
// numbered from 0.
func (l *Library) AlbumView(ctx context.Context, albumID, viewerID string) (*AlbumView, error) {
	album, err := l.albums.GetByID(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && album.OwnerID == viewerID {
		return l.ownerView(ctx, album)
	}
	if !album.IsPublic {
		return nil, ErrForbidden
	}

	tracks, err := l.tracks.ListByAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	view := &AlbumView{Album: *album, Tracks: make([]AlbumEntry, 0, len(tracks))}
	for _, t := range tracks {
		if !t.IsPublic {
			continue
		}
		view.Tracks = append(view.Tracks, AlbumEntry{Position: len(view.Tracks), Track: t})
	}
	return view, nil
}

func (l *Library) ownerView(ctx context.Context, album *model.Album) (*AlbumView, error) {
	rows, err := l.pivot.ListWithTracks(ctx, album.ID)
	if err != nil {
		return nil, err
	}
	view := &AlbumView{Album: *album, IsOwner: true, Tracks: make([]AlbumEntry, 0, len(rows))}
	inAlbum := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Track == nil || r.Track.OwnerID != album.OwnerID {
			return nil, fmt.Errorf("%w: album %s track %s", ErrStalePivot, album.ID, r.TrackID)
		}
		addedAt := r.AddedAt
		view.Tracks = append(view.Tracks, AlbumEntry{Position: r.Position, AddedAt: &addedAt, Track: *r.Track})
		inAlbum[r.TrackID] = true
	}

	owned, err := l.tracks.ListByOwner(ctx, album.OwnerID)
	if err != nil {
		return nil, err
	}
	view.Available = make([]model.Track, 0, len(owned))
	for _, t := range owned {
		if !inAlbum[t.ID] {
			view.Available = append(view.Available, t)
		}
	}
	return view, nil
}

// AddTracks appends tracks to the end of an album, one at a time. Each
// successful add takes the next position after the current count. Failed
// items are reported through *BatchError; the rest are still added.
func (l *Library) AddTracks(ctx context.Context, albumID, ownerID string, trackIDs []string) ([]model.AlbumTrack, error) {
	if _, err := l.OwnedAlbum(ctx, albumID, ownerID); err != nil {
		return nil, err
	}
	count, err := l.pivot.Count(ctx, albumID)
	if err != nil {
		return nil, err
	}

	added := make([]model.AlbumTrack, 0, len(trackIDs))
	var failures []ItemFailure
	for _, id := range trackIDs {
		if _, err := l.OwnedTrack(ctx, id, ownerID); err != nil {
			failures = append(failures, ItemFailure{ID: id, Err: err})
			continue
		}
		row, err := l.pivot.Add(ctx, albumID, id, int(count)+1)
		if err != nil {
			logger.Warn("failed to add track to album",
				logger.String("albumId", albumID), logger.String("trackId", id), logger.ErrorField(err))
			failures = append(failures, ItemFailure{ID: id, Err: err})
			continue
		}
		count++
		added = append(added, *row)
	}
	return added, batchResult("add tracks", len(trackIDs), failures)
}

// RemoveTrack takes a track out of an album.
func (l *Library) RemoveTrack(ctx context.Context, albumID, ownerID, trackID string) error {
	if _, err := l.OwnedAlbum(ctx, albumID, ownerID); err != nil {
		return err
	}
	return l.pivot.Remove(ctx, albumID, trackID)
}

// MoveTrack moves the item at index from to index to in the current order
// and stores 1-based positions for the whole album in one transaction.
func (l *Library) MoveTrack(ctx context.Context, albumID, ownerID string, from, to int) ([]model.AlbumTrack, error) {
	if _, err := l.OwnedAlbum(ctx, albumID, ownerID); err != nil {
		return nil, err
	}
	rows, err := l.pivot.ListByAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if from < 0 || from >= len(rows) || to < 0 || to >= len(rows) {
		return nil, fmt.Errorf("%w: move %d to %d in %d tracks", ErrBadOrder, from, to, len(rows))
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.TrackID)
	}
	moved := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{moved}, ids[to:]...)...)
	return l.persistOrder(ctx, albumID, ids)
}

// Reorder stores an explicit order. trackIDs must name every track of the
// album exactly once.
func (l *Library) Reorder(ctx context.Context, albumID, ownerID string, trackIDs []string) ([]model.AlbumTrack, error) {
	if _, err := l.OwnedAlbum(ctx, albumID, ownerID); err != nil {
		return nil, err
	}
	rows, err := l.pivot.ListByAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(trackIDs) {
		return nil, fmt.Errorf("%w: got %d tracks, album has %d", ErrBadOrder, len(trackIDs), len(rows))
	}
	pending := make(map[string]bool, len(rows))
	for _, r := range rows {
		pending[r.TrackID] = true
	}
	for _, id := range trackIDs {
		if !pending[id] {
			return nil, fmt.Errorf("%w: unexpected or repeated track %s", ErrBadOrder, id)
		}
		delete(pending, id)
	}
	return l.persistOrder(ctx, albumID, trackIDs)
}

func (l *Library) persistOrder(ctx context.Context, albumID string, ids []string) ([]model.AlbumTrack, error) {
	updates := make([]model.PositionUpdate, 0, len(ids))
	for i, id := range ids {
		updates = append(updates, model.PositionUpdate{TrackID: id, Position: i + 1})
	}
	return l.pivot.BatchUpdatePositions(ctx, albumID, updates)
}
