package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/minio/minio-go/v7"
)

// BucketStats summarises a listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	// ByKind is total size per coarse media kind (audio, image, other).
	ByKind map[string]int64
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// List returns the objects under prefix with summary stats.
func (s *MinioStore) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{ByKind: make(map[string]int64)}
	var objects []ObjectInfo

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: recursive}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("list %s: %w", prefix, object.Err)
		}
		info := ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		}
		stats.add(info)
		objects = append(objects, info)
	}
	return objects, stats, nil
}

func (st *BucketStats) add(o ObjectInfo) {
	st.TotalObjects++
	st.TotalSize += o.Size
	if o.LastModified.After(st.LastModified) {
		st.LastModified = o.LastModified
	}
	ct := o.ContentType
	if ct == "" {
		ct = ContentType(o.Key)
	}
	st.ByKind[kindOf(ct)] += o.Size
}

func kindOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	default:
		return "other"
	}
}

// DeletePrefix removes every object under prefix and returns how many were removed.
func (s *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if strings.Trim(prefix, "/") == "" {
		return 0, fmt.Errorf("refusing to delete the whole bucket")
	}
	objects, _, err := s.List(ctx, prefix, true)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, fmt.Errorf("prefix %s: %w", prefix, ErrObjectNotFound)
	}

	ch := make(chan minio.ObjectInfo, len(objects))
	for _, o := range objects {
		ch <- minio.ObjectInfo{Key: o.Key}
	}
	close(ch)

	for rerr := range s.client.RemoveObjects(ctx, s.bucket, ch, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, fmt.Errorf("delete %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return len(objects), nil
}

// PrintStats writes a human-readable summary of stats.
func PrintStats(w io.Writer, bucket, prefix string, stats *BucketStats) {
	fmt.Fprintf(w, "bucket:        %s\n", bucket)
	if prefix != "" {
		fmt.Fprintf(w, "prefix:        %s\n", prefix)
	}
	fmt.Fprintf(w, "objects:       %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "total size:    %s\n", humanize.Bytes(uint64(stats.TotalSize)))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "last modified: %s (%s)\n", stats.LastModified.Format(time.RFC3339), humanize.Time(stats.LastModified))
	}
	kinds := make([]string, 0, len(stats.ByKind))
	for k := range stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-6s %s\n", k, humanize.Bytes(uint64(stats.ByKind[k])))
	}
}

// PrintTree writes objects grouped by directory, directories sorted.
func PrintTree(w io.Writer, objects []ObjectInfo) {
	byDir := make(map[string][]ObjectInfo)
	for _, o := range objects {
		dir := path.Dir(o.Key)
		byDir[dir] = append(byDir[dir], o)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		indent := ""
		if dir != "." {
			indent = strings.Repeat("  ", strings.Count(dir, "/"))
			fmt.Fprintf(w, "%s%s/\n", indent, dir)
			indent += "  "
		}
		for _, o := range byDir[dir] {
			fmt.Fprintf(w, "%s%s (%s)\n", indent, path.Base(o.Key), humanize.Bytes(uint64(o.Size)))
		}
	}
}
