package config

import (
	"fmt"
	"strings"
	"time"
)

// WorkingHours is a daily ordering window expressed as offsets from local
// midnight. A window whose Close is before Open wraps past midnight
// (e.g. 18:00-02:00).
type WorkingHours struct {
	Open  time.Duration
	Close time.Duration
}

// ParseWorkingHours parses "HH:MM-HH:MM". Equal bounds mean "always open".
func ParseWorkingHours(s string) (WorkingHours, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return WorkingHours{}, fmt.Errorf("WORKING_HOURS: expected HH:MM-HH:MM, got %q", s)
	}
	open, err := parseClock(from)
	if err != nil {
		return WorkingHours{}, fmt.Errorf("WORKING_HOURS: %w", err)
	}
	closing, err := parseClock(to)
	if err != nil {
		return WorkingHours{}, fmt.Errorf("WORKING_HOURS: %w", err)
	}
	return WorkingHours{Open: open, Close: closing}, nil
}

// Contains reports whether t (already in the shop's location) falls inside
// the window. Open is inclusive, Close exclusive.
func (w WorkingHours) Contains(t time.Time) bool {
	if w.Open == w.Close {
		return true
	}
	sinceMidnight := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	if w.Open < w.Close {
		return sinceMidnight >= w.Open && sinceMidnight < w.Close
	}
	return sinceMidnight >= w.Open || sinceMidnight < w.Close
}

// String renders the window back as "HH:MM-HH:MM".
func (w WorkingHours) String() string {
	return formatClock(w.Open) + "-" + formatClock(w.Close)
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}
