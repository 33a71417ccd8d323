package domain

import (
	"strings"
	"time"
)

// PublishDateLayout is the canonical stored form. Fixed width and UTC, so
// lexical order matches chronological order.
const PublishDateLayout = "2006-01-02T15:04:05Z"

var publishDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizePublishDate converts a feed date into PublishDateLayout.
// The second return is false when no known layout matches.
func NormalizePublishDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(PublishDateLayout), true
		}
	}
	return "", false
}

// FormatPublishDate renders t in the canonical stored form.
func FormatPublishDate(t time.Time) string {
	return t.UTC().Format(PublishDateLayout)
}

// IsCanonicalPublishDate reports whether s is already in the stored form.
func IsCanonicalPublishDate(s string) bool {
	t, err := time.Parse(PublishDateLayout, s)
	return err == nil && t.Format(PublishDateLayout) == s
}

// ParsePublishDate parses a stored publish date, accepting legacy forms too.
func ParsePublishDate(s string) (time.Time, bool) {
	norm, ok := NormalizePublishDate(s)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(PublishDateLayout, norm)
	return t, err == nil
}
