// Package insights derives catalogue statistics from a user's tracks.
// Everything here is pure and recomputed on every request.
package insights

import (
	"sort"
	"time"

	"metawave/model"

	"github.com/dustin/go-humanize"
)

const (
	topTags     = 10
	topLongest  = 5
	secondsADay = 24 * 60 * 60
)

// MonthPoint is upload activity for one calendar month.
type MonthPoint struct {
	Month   string  `json:"month"` // YYYY-MM
	Label   string  `json:"label"` // Jan 2024
	Uploads int     `json:"uploads"`
	Minutes float64 `json:"minutes"`
}

type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DurationBucket struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Tracks int    `json:"tracks"`
}

// TrackRef is the slice of a track shown in highlight lists.
type TrackRef struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	DurationSecs int64     `json:"duration_secs"`
	CreatedAt    time.Time `json:"created_at"`
}

// Report is the full insights payload.
type Report struct {
	TotalTracks         int              `json:"total_tracks"`
	TotalDurationSecs   int64            `json:"total_duration_secs"`
	AverageDurationSecs float64          `json:"average_duration_secs"`
	TotalFileSize       int64            `json:"total_file_size"`
	TotalFileSizeHuman  string           `json:"total_file_size_human"`
	Activity            []MonthPoint     `json:"activity"`
	Tags                []TagCount       `json:"tags"`
	Durations           []DurationBucket `json:"durations"`
	Longest             []TrackRef       `json:"longest"`
	Newest              *TrackRef        `json:"newest"`
	AverageGapDays      *float64         `json:"average_gap_days"`
	MostUsedTag         string           `json:"most_used_tag,omitempty"`
	ActiveMonths        int              `json:"active_months"`
	FirstActivityLabel  string           `json:"first_activity_label,omitempty"`
}

// Compute builds the report for tracks.
func Compute(tracks []model.Track) Report {
	r := Report{
		TotalTracks: len(tracks),
		Activity:    Activity(tracks),
		Tags:        TagHistogram(tracks),
		Durations:   DurationHistogram(tracks),
		Longest:     Longest(tracks, topLongest),
		Newest:      Newest(tracks),
	}

	var withDuration int
	for i := range tracks {
		if d := tracks[i].Duration(); d > 0 {
			r.TotalDurationSecs += d
			withDuration++
		}
		if tracks[i].FileSize != nil {
			r.TotalFileSize += *tracks[i].FileSize
		}
	}
	if withDuration > 0 {
		r.AverageDurationSecs = float64(r.TotalDurationSecs) / float64(withDuration)
	}
	r.TotalFileSizeHuman = humanize.Bytes(uint64(max(r.TotalFileSize, 0)))

	if gap, ok := AverageGapDays(tracks); ok {
		r.AverageGapDays = &gap
	}
	if len(r.Tags) > 0 {
		r.MostUsedTag = r.Tags[0].Name
	}
	r.ActiveMonths = len(r.Activity)
	if len(r.Activity) > 0 {
		r.FirstActivityLabel = r.Activity[0].Label
	}
	return r
}

// activityTime is the release date when known, else the upload time.
func activityTime(t *model.Track) time.Time {
	if t.TrackDate != nil && !t.TrackDate.IsZero() {
		return t.TrackDate.UTC()
	}
	return t.CreatedAt.UTC()
}

// Activity groups uploads by calendar month (UTC), oldest first.
func Activity(tracks []model.Track) []MonthPoint {
	byMonth := make(map[string]*MonthPoint)
	for i := range tracks {
		at := activityTime(&tracks[i])
		if at.IsZero() {
			continue
		}
		key := at.Format("2006-01")
		p, ok := byMonth[key]
		if !ok {
			p = &MonthPoint{Month: key, Label: at.Format("Jan 2006")}
			byMonth[key] = p
		}
		p.Uploads++
		p.Minutes += float64(tracks[i].Duration()) / 60
	}

	out := make([]MonthPoint, 0, len(byMonth))
	for _, p := range byMonth {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// TagHistogram returns the most used tags. Equal counts keep the order in
// which the tags were first seen.
func TagHistogram(tracks []model.Track) []TagCount {
	var order []string
	counts := make(map[string]int)
	for i := range tracks {
		for _, name := range tracks[i].Tags {
			if _, ok := counts[name]; !ok {
				order = append(order, name)
			}
			counts[name]++
		}
	}

	out := make([]TagCount, 0, len(order))
	for _, name := range order {
		out = append(out, TagCount{Name: name, Count: counts[name]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > topTags {
		out = out[:topTags]
	}
	return out
}

var bands = []struct {
	key, label string
	from, to   int64 // seconds; to == 0 is open ended
}{
	{"<2min", "Under 2 min", 0, 120},
	{"2–5min", "2 – 5 min", 120, 300},
	{"5–10min", "5 – 10 min", 300, 600},
	{">10min", "Over 10 min", 600, 0},
}

// DurationHistogram counts tracks per length band. Tracks without a
// positive duration are left out, and so are empty bands.
func DurationHistogram(tracks []model.Track) []DurationBucket {
	counts := make([]int, len(bands))
	for i := range tracks {
		d := tracks[i].Duration()
		if d <= 0 {
			continue
		}
		for b, band := range bands {
			if d >= band.from && (band.to == 0 || d < band.to) {
				counts[b]++
				break
			}
		}
	}

	var out []DurationBucket
	for b, band := range bands {
		if counts[b] > 0 {
			out = append(out, DurationBucket{Key: band.key, Label: band.label, Tracks: counts[b]})
		}
	}
	return out
}

func ref(t *model.Track) TrackRef {
	return TrackRef{ID: t.ID, Title: t.Title, DurationSecs: t.Duration(), CreatedAt: t.CreatedAt}
}

// Longest returns up to n tracks with a known duration, longest first.
func Longest(tracks []model.Track, n int) []TrackRef {
	var out []TrackRef
	for i := range tracks {
		if tracks[i].Duration() > 0 {
			out = append(out, ref(&tracks[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DurationSecs > out[j].DurationSecs })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Newest is the most recently uploaded track.
func Newest(tracks []model.Track) *TrackRef {
	var newest *model.Track
	for i := range tracks {
		if newest == nil || tracks[i].CreatedAt.After(newest.CreatedAt) {
			newest = &tracks[i]
		}
	}
	if newest == nil {
		return nil
	}
	r := ref(newest)
	return &r
}

// AverageGapDays is the mean time between consecutive uploads.
func AverageGapDays(tracks []model.Track) (float64, bool) {
	if len(tracks) < 2 {
		return 0, false
	}
	times := make([]time.Time, 0, len(tracks))
	for i := range tracks {
		times = append(times, tracks[i].CreatedAt)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	total := times[len(times)-1].Sub(times[0])
	return total.Seconds() / float64(len(times)-1) / secondsADay, true
}
