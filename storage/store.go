package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	// ErrObjectExists is returned by a non-overwriting upload onto a taken path.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectNotFound is returned when a path or URL names no stored object.
	ErrObjectNotFound = errors.New("object not found")
)

// Bucket is a logical namespace. All buckets share one physical store and
// are kept apart by key prefix.
type Bucket string

const (
	BucketTracks  Bucket = "tracks"
	BucketCovers  Bucket = "covers"
	BucketAvatars Bucket = "avatars"
)

// ObjectStore holds uploaded audio and images.
type ObjectStore interface {
	// Upload stores the object and returns its public URL.
	Upload(ctx context.Context, bucket Bucket, objectPath string, r io.Reader, size int64, contentType string, overwrite bool) (string, error)
	Open(ctx context.Context, bucket Bucket, objectPath string) (io.ReadCloser, error)
	// OpenURL opens an object by the public URL Upload returned for it.
	OpenURL(ctx context.Context, url string) (io.ReadCloser, error)
	PublicURL(bucket Bucket, objectPath string) string
	Delete(ctx context.Context, bucket Bucket, objectPath string) error
}

// Key is the physical key of an object.
func Key(bucket Bucket, objectPath string) string {
	return path.Join(string(bucket), strings.TrimPrefix(objectPath, "/"))
}

// keyFromURL reverses PublicURL for objects under base.
func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}

// ContentType guesses the MIME type of an object from its name.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
