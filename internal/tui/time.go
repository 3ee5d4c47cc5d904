package tui

import (
	"fmt"
	"time"

	"github.com/mrz1836/autocompose/internal/clock"
)

// RelativeTimeWith formats t relative to c's now, e.g. "just now",
// "5 minutes ago", "2 days ago". Future times read "in ...".
func RelativeTimeWith(t time.Time, c clock.Clock) string {
	diff := c.Now().Sub(t)
	if diff < 0 {
		return "in " + span(-diff)
	}
	if diff < time.Minute {
		return "just now"
	}
	return span(diff) + " ago"
}

func span(d time.Duration) string {
	switch {
	case d < time.Minute:
		return plural(int(d.Seconds()), "second")
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 7*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	default:
		return plural(int(d.Hours()/24/7), "week")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
