// Package export builds downloadable archives and tagged MP3 files.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"metawave/logger"

	"github.com/klauspost/compress/zip"
)

// Opener reads a stored object by its public URL.
type Opener interface {
	OpenURL(ctx context.Context, url string) (io.ReadCloser, error)
}

// Entry is one track to put in an archive.
type Entry struct {
	Title string `json:"title"`
	URL   string `json:"file_url"`
}

// Failure is one entry that could not be archived.
type Failure struct {
	Title string
	Err   error
}

// BatchError lists the entries left out of an otherwise written archive.
type BatchError struct {
	Failures []Failure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Title, f.Err))
	}
	return fmt.Sprintf("%d of the tracks could not be exported: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// WriteZip streams one "<title>.mp3" per entry, optionally under folder.
// Entries are fetched one at a time; a failed entry is skipped and reported
// through *BatchError after the archive has been closed.
func WriteZip(ctx context.Context, w io.Writer, folder string, entries []Entry, src Opener) error {
	zw := zip.NewWriter(w)
	names := newNamer()
	prefix := ""
	if f := SanitizeName(folder); folder != "" && f != "" {
		prefix = f + "/"
	}

	var failures []Failure
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		data, err := fetch(ctx, src, e.URL)
		if err != nil {
			logger.Warn("skipping track in archive", logger.String("title", e.Title), logger.ErrorField(err))
			failures = append(failures, Failure{Title: e.Title, Err: err})
			continue
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     prefix + names.next(e.Title),
			Method:   zip.Store,
			Modified: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("create archive entry: %w", err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write archive entry: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if len(failures) > 0 {
		return &BatchError{Failures: failures}
	}
	return nil
}

func fetch(ctx context.Context, src Opener, url string) ([]byte, error) {
	rc, err := src.OpenURL(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// SanitizeName makes s safe as a single path element.
func SanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(strings.TrimSpace(s), ".")
	return s
}

type namer struct {
	seen map[string]int
}

func newNamer() *namer {
	return &namer{seen: make(map[string]int)}
}

// next returns "<title>.mp3", or "<title> (n).mp3" for the nth repeat.
func (n *namer) next(title string) string {
	base := SanitizeName(title)
	if base == "" {
		base = "track"
	}
	key := strings.ToLower(base)
	n.seen[key]++
	if c := n.seen[key]; c > 1 {
		return fmt.Sprintf("%s (%d).mp3", base, c)
	}
	return base + ".mp3"
}
