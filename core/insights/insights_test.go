package insights

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metawave/model"
)

func track(id string, created time.Time, secs int64, tags ...string) model.Track {
	t := model.Track{ID: id, Title: "Track " + id, CreatedAt: created, Tags: tags}
	if secs > 0 {
		t.DurationSecs = model.Int64Ptr(secs)
	}
	return t
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestActivity_GroupsByMonth(t *testing.T) {
	tracks := []model.Track{
		track("2", day(2024, 2, 10), 200),
		track("1", day(2024, 1, 5), 100),
		track("3", day(2024, 2, 20), 300),
	}

	got := Activity(tracks)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01", got[0].Month)
	assert.Equal(t, "Jan 2024", got[0].Label)
	assert.Equal(t, 1, got[0].Uploads)
	assert.InDelta(t, 1.67, got[0].Minutes, 0.01)
	assert.Equal(t, "2024-02", got[1].Month)
	assert.Equal(t, 2, got[1].Uploads)
	assert.InDelta(t, 8.33, got[1].Minutes, 0.01)
}

func TestActivity_PrefersReleaseDate(t *testing.T) {
	released := day(2023, 12, 31)
	tr := track("1", day(2024, 3, 1), 60)
	tr.TrackDate = &released

	got := Activity([]model.Track{tr})
	require.Len(t, got, 1)
	assert.Equal(t, "2023-12", got[0].Month)
}

func TestTagHistogram_TiesKeepFirstSeenOrder(t *testing.T) {
	tracks := []model.Track{
		track("1", day(2024, 1, 1), 0, "a", "b"),
		track("2", day(2024, 1, 2), 0, "b"),
		track("3", day(2024, 1, 3), 0, "b", "c"),
	}

	assert.Equal(t, []TagCount{{"b", 3}, {"a", 1}, {"c", 1}}, TagHistogram(tracks))
}

func TestTagHistogram_TopTen(t *testing.T) {
	var tags []string
	for i := 0; i < 12; i++ {
		tags = append(tags, string(rune('a'+i)))
	}
	got := TagHistogram([]model.Track{track("1", day(2024, 1, 1), 0, tags...)})
	assert.Len(t, got, 10)
	assert.Equal(t, "a", got[0].Name)
}

func TestDurationHistogram(t *testing.T) {
	tests := []struct {
		name string
		secs []int64
		want []DurationBucket
	}{
		{
			name: "one per band",
			secs: []int64{90, 150, 400, 700, 0},
			want: []DurationBucket{
				{Key: "<2min", Label: "Under 2 min", Tracks: 1},
				{Key: "2–5min", Label: "2 – 5 min", Tracks: 1},
				{Key: "5–10min", Label: "5 – 10 min", Tracks: 1},
				{Key: ">10min", Label: "Over 10 min", Tracks: 1},
			},
		},
		{
			name: "lower bound is inclusive",
			secs: []int64{120, 300, 600},
			want: []DurationBucket{
				{Key: "2–5min", Label: "2 – 5 min", Tracks: 1},
				{Key: "5–10min", Label: "5 – 10 min", Tracks: 1},
				{Key: ">10min", Label: "Over 10 min", Tracks: 1},
			},
		},
		{
			name: "no durations",
			secs: []int64{0, 0},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tracks []model.Track
			for i, s := range tt.secs {
				tracks = append(tracks, track(string(rune('a'+i)), day(2024, 1, 1), s))
			}
			assert.Equal(t, tt.want, DurationHistogram(tracks))
		})
	}
}

func TestCompute(t *testing.T) {
	tracks := []model.Track{
		track("1", day(2024, 1, 1), 100, "x"),
		track("2", day(2024, 1, 3), 0),
		track("3", day(2024, 1, 5), 500, "x", "y"),
	}
	tracks[0].FileSize = model.Int64Ptr(1_000_000)
	tracks[2].FileSize = model.Int64Ptr(2_500_000)

	r := Compute(tracks)
	assert.Equal(t, 3, r.TotalTracks)
	assert.Equal(t, int64(600), r.TotalDurationSecs)
	assert.InDelta(t, 300, r.AverageDurationSecs, 0.001)
	assert.Equal(t, int64(3_500_000), r.TotalFileSize)
	assert.Equal(t, "3.5 MB", r.TotalFileSizeHuman)
	require.Len(t, r.Longest, 2)
	assert.Equal(t, "3", r.Longest[0].ID)
	require.NotNil(t, r.Newest)
	assert.Equal(t, "3", r.Newest.ID)
	require.NotNil(t, r.AverageGapDays)
	assert.InDelta(t, 2.0, *r.AverageGapDays, 0.0001)
	assert.Equal(t, "x", r.MostUsedTag)
	assert.Equal(t, 1, r.ActiveMonths)
	assert.Equal(t, "Jan 2024", r.FirstActivityLabel)
}

func TestCompute_Empty(t *testing.T) {
	r := Compute(nil)
	assert.Zero(t, r.TotalTracks)
	assert.Nil(t, r.Newest)
	assert.Nil(t, r.AverageGapDays)
	assert.Empty(t, r.Activity)
	assert.Empty(t, r.MostUsedTag)
	assert.Equal(t, "0 B", r.TotalFileSizeHuman)
}

func TestPrint(t *testing.T) {
	report := Compute([]model.Track{
		track("1", day(2024, 1, 5), 90, "rock"),
		track("2", day(2024, 1, 25), 150, "rock", "live"),
	})

	var buf bytes.Buffer
	Print(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "tracks:          2")
	assert.Contains(t, out, "total duration:  4m0s")
	assert.Contains(t, out, "average length:  2m0s")
	assert.Contains(t, out, "Jan 2024")
	assert.Contains(t, out, "rock")
	assert.Contains(t, out, "1. Track 2 (2m30s)")
	assert.Contains(t, out, "newest: Track 2")

	buf.Reset()
	Print(&buf, Compute(nil))
	assert.Contains(t, buf.String(), "tracks:          0")
	assert.NotContains(t, buf.String(), "activity")
}
