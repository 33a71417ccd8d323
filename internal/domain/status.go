package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ProcessingStatus is the lifecycle state of a processing record.
type ProcessingStatus string

const (
	StatusNone       ProcessingStatus = "none"
	StatusQueued     ProcessingStatus = "queued"
	StatusProcessing ProcessingStatus = "processing"
	StatusReady      ProcessingStatus = "ready"
	StatusError      ProcessingStatus = "error"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Valid reports whether s is one of the known statuses.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusNone, StatusQueued, StatusProcessing, StatusReady, StatusError:
		return true
	}
	return false
}

// Enqueueable reports whether an episode in this state may be picked up by a bulk enqueue.
func (s ProcessingStatus) Enqueueable() bool {
	return s == StatusNone || s == StatusError || s == ""
}

var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusNone:       {StatusQueued, StatusProcessing, StatusReady, StatusError},
	StatusQueued:     {StatusProcessing, StatusError},
	StatusProcessing: {StatusReady, StatusError, StatusQueued},
	StatusError:      {StatusQueued},
}

// CanTransition reports whether a record may move from one status to another.
// Writing the current status again is always allowed.
func CanTransition(from, to ProcessingStatus) bool {
	if from == "" {
		from = StatusNone
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Durations carries what the processing service reported about the output audio.
// Nil fields are stored as NULL.
type Durations struct {
	Original   *float64
	Processed  *float64
	AdsRemoved *float64
}

// StatusUpdate is one transition applied to a processing record. Build it
// with MarkStatus, MarkProcessing, MarkReady or MarkFailed.
type StatusUpdate struct {
	Durations     Durations
	Status        ProcessingStatus
	ProcessedPath string
	Error         string
}

func MarkStatus(status ProcessingStatus) StatusUpdate {
	return StatusUpdate{Status: status}
}

func MarkProcessing() StatusUpdate {
	return StatusUpdate{Status: StatusProcessing}
}

func MarkReady(path string, d Durations) StatusUpdate {
	return StatusUpdate{Status: StatusReady, ProcessedPath: path, Durations: d}
}

func MarkFailed(message string) StatusUpdate {
	return StatusUpdate{Status: StatusError, Error: message}
}

// Validate checks the payload matches the target status.
func (u StatusUpdate) Validate() error {
	if !u.Status.Valid() {
		return fmt.Errorf("unknown status %q", u.Status)
	}
	switch u.Status {
	case StatusReady:
		if strings.TrimSpace(u.ProcessedPath) == "" {
			return errors.New("ready status requires a processed path")
		}
	case StatusError:
		if strings.TrimSpace(u.Error) == "" {
			return errors.New("error status requires a message")
		}
	}
	return nil
}
