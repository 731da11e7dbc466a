package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatDuration(secs float64) string {
	if secs <= 0 {
		return "-"
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Second).String()
}

func formatDistance(meters float64) string {
	if meters <= 0 {
		return "-"
	}
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%s m", humanize.Commaf(meters))
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
