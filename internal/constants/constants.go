// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort                = "8080"
	DefaultDBPath              = "adfreecast.db"
	DefaultAudioDir            = "processed"
	DefaultProcessorURL        = "http://127.0.0.1:8000"
	DefaultBaseURL             = "http://localhost:8080"
	DefaultConcurrency         = 2
	DefaultPollInterval        = 2 * time.Second
	DefaultStatusInterval      = 5 * time.Second
	DefaultProcessingTimeout   = 15 * time.Minute
	DefaultStartDelay          = 5 * time.Second
	DefaultFeedRefreshInterval = 0
	DefaultProcessorRPS        = 5.0
	DefaultHTTPTimeout         = 5 * time.Minute
	ImageHTTPTimeout           = 30 * time.Second
	FeedHTTPTimeout            = 30 * time.Second
	DefaultRetryCount          = 3
	DefaultRetryBase           = 1 * time.Second
	DefaultCacheTTL            = 7 * 24 * time.Hour
	DefaultLockFile            = "adfreecast.lock"
)

// Queue
const (
	QueueSummaryLimit = 20
)

// Processing messages
const (
	MsgProcessingTimedOut = "Processing timed out"
	MsgProcessingFailed   = "Processing failed"
)

// MIME Types
const (
	MimeTypeFLAC = "audio/flac"
	MimeTypeMP3  = "audio/mpeg"
	MimeTypeMP4  = "audio/mp4"
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeRSS  = "application/rss+xml; charset=utf-8"
	MimeTypeJSON = "application/json"
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtM4A  = ".m4a"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)
