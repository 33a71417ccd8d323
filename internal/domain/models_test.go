package domain

import (
	"testing"
	"time"
)

func TestProcessingStatus_Constants(t *testing.T) {
	tests := []struct {
		name     string
		status   ProcessingStatus
		expected string
	}{
		{"none", StatusNone, "none"},
		{"queued", StatusQueued, "queued"},
		{"processing", StatusProcessing, "processing"},
		{"ready", StatusReady, "ready"},
		{"error", StatusError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.status) != tt.expected {
				t.Errorf("ProcessingStatus %s = %q, want %q", tt.name, tt.status, tt.expected)
			}
			if !tt.status.Valid() {
				t.Errorf("Expected %s to be valid", tt.status)
			}
		})
	}

	if ProcessingStatus("cutting").Valid() {
		t.Error("Expected backend-only status to be invalid")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ProcessingStatus
		want     bool
	}{
		{StatusNone, StatusQueued, true},
		{"", StatusProcessing, true},
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusError, true},
		{StatusQueued, StatusReady, false},
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusError, true},
		{StatusProcessing, StatusQueued, true},
		{StatusError, StatusQueued, true},
		{StatusError, StatusProcessing, false},
		{StatusError, StatusReady, false},
		{StatusReady, StatusQueued, false},
		{StatusReady, StatusProcessing, false},
		{StatusReady, StatusReady, true},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEnqueueable(t *testing.T) {
	for _, s := range []ProcessingStatus{StatusNone, StatusError, ""} {
		if !s.Enqueueable() {
			t.Errorf("Expected %q to be enqueueable", s)
		}
	}
	for _, s := range []ProcessingStatus{StatusQueued, StatusProcessing, StatusReady} {
		if s.Enqueueable() {
			t.Errorf("Expected %q to not be enqueueable", s)
		}
	}
}

func TestStatusUpdate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		update  StatusUpdate
		wantErr bool
	}{
		{"processing", MarkProcessing(), false},
		{"plain queued", MarkStatus(StatusQueued), false},
		{"ready with path", MarkReady("/audio/ab.mp3", Durations{}), false},
		{"ready without path", MarkReady(" ", Durations{}), true},
		{"failed with message", MarkFailed("boom"), false},
		{"failed without message", MarkFailed(""), true},
		{"unknown status", MarkStatus("done"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizePublishDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"2024-01-15T08:00:00Z", "2024-01-15T08:00:00Z", true},
		{"2024-01-15T10:00:00+02:00", "2024-01-15T08:00:00Z", true},
		{"Mon, 15 Jan 2024 08:00:00 +0000", "2024-01-15T08:00:00Z", true},
		{"Mon, 15 Jan 2024 08:00:00 GMT", "2024-01-15T08:00:00Z", true},
		{"Tue, 2 Jan 2024 09:30:00 -0500", "2024-01-02T14:30:00Z", true},
		{"2024-03-01", "2024-03-01T00:00:00Z", true},
		{"  2024-03-01 12:00:00 ", "2024-03-01T12:00:00Z", true},
		{"yesterday", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizePublishDate(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizePublishDate(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizedDatesSortChronologically(t *testing.T) {
	earlier, _ := NormalizePublishDate("Sun, 31 Dec 2023 23:00:00 -0500")
	later, _ := NormalizePublishDate("2024-01-01T05:00:00Z")

	if !(earlier < later) {
		t.Errorf("Expected %s to sort before %s", earlier, later)
	}
}

func TestIsCanonicalPublishDate(t *testing.T) {
	if !IsCanonicalPublishDate("2024-01-15T08:00:00Z") {
		t.Error("Expected canonical date to be recognised")
	}
	if IsCanonicalPublishDate("Mon, 15 Jan 2024 08:00:00 +0000") {
		t.Error("Expected RFC 1123 date to be non-canonical")
	}
	if IsCanonicalPublishDate("2024-01-15T08:00:00.5Z") {
		t.Error("Expected fractional seconds to be non-canonical")
	}
}

func TestFormatAndParsePublishDate(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600))
	s := FormatPublishDate(ts)
	if s != "2024-05-06T06:08:09Z" {
		t.Errorf("FormatPublishDate = %s", s)
	}

	parsed, ok := ParsePublishDate(s)
	if !ok || !parsed.Equal(ts) {
		t.Errorf("ParsePublishDate(%s) = %v, %v", s, parsed, ok)
	}
}
