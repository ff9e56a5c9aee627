package insights

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Print writes the report as plain text for the command line.
func Print(w io.Writer, r Report) {
	fmt.Fprintf(w, "tracks:          %d\n", r.TotalTracks)
	fmt.Fprintf(w, "total duration:  %s\n", time.Duration(r.TotalDurationSecs)*time.Second)
	fmt.Fprintf(w, "average length:  %s\n", time.Duration(r.AverageDurationSecs*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(w, "storage used:    %s\n", r.TotalFileSizeHuman)
	if r.AverageGapDays != nil {
		fmt.Fprintf(w, "upload every:    %s days\n", humanize.FtoaWithDigits(*r.AverageGapDays, 1))
	}
	if r.FirstActivityLabel != "" {
		fmt.Fprintf(w, "active since:    %s (%d months)\n", r.FirstActivityLabel, r.ActiveMonths)
	}

	if len(r.Activity) > 0 {
		fmt.Fprintln(w, "\nactivity")
		for _, m := range r.Activity {
			fmt.Fprintf(w, "  %-9s %3d uploads  %6.1f min\n", m.Label, m.Uploads, m.Minutes)
		}
	}
	if len(r.Tags) > 0 {
		fmt.Fprintln(w, "\ntop tags")
		for _, t := range r.Tags {
			fmt.Fprintf(w, "  %-20s %s\n", t.Name, strings.Repeat("#", t.Count))
		}
	}
	if len(r.Durations) > 0 {
		fmt.Fprintln(w, "\nlengths")
		for _, d := range r.Durations {
			fmt.Fprintf(w, "  %-12s %d\n", d.Label, d.Tracks)
		}
	}
	if len(r.Longest) > 0 {
		fmt.Fprintln(w, "\nlongest")
		for i, t := range r.Longest {
			fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, t.Title, time.Duration(t.DurationSecs)*time.Second)
		}
	}
	if r.Newest != nil {
		fmt.Fprintf(w, "\nnewest: %s, %s\n", r.Newest.Title, humanize.Time(r.Newest.CreatedAt))
	}
}
