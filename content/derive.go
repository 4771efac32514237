package content

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the layout raw date inputs are stored in.
const DateLayout = "2006-01-02"

const displayLayout = "January 2, 2006"

// ParseDate reads a raw date input. Full timestamps are accepted too.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FormatDate renders a raw date as "March 15, 1996". Empty or unparseable
// input yields "".
func FormatDate(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return ""
	}
	return t.Format(displayLayout)
}

// YearsActive composes a career range: "2011–Present" while still active,
// "2011–2015" once ended, "2011" with no end. A missing or malformed start
// year, or an end before the start, yields "".
func YearsActive(start, end string, present bool) string {
	s, ok := year(start)
	if !ok {
		return ""
	}
	if present {
		return strconv.Itoa(s) + "–Present"
	}
	if strings.TrimSpace(end) == "" {
		return strconv.Itoa(s)
	}
	e, ok := year(end)
	if !ok || e < s {
		return ""
	}
	return strconv.Itoa(s) + "–" + strconv.Itoa(e)
}

func year(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1800 {
		return 0, false
	}
	return y, true
}

// IsUpcoming reports whether a release date lies after now.
func IsUpcoming(releaseDate string, now time.Time) bool {
	t, ok := ParseDate(releaseDate)
	return ok && t.After(now)
}
