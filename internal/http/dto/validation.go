package dto

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cesargomez89/adfreecast/internal/store"
)

// maxPriority keeps client supplied priorities in a sane band.
const maxPriority = 1000

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func validatePriority(priority int) []ValidationError {
	if priority < -maxPriority || priority > maxPriority {
		return []ValidationError{{Field: "priority", Message: fmt.Sprintf("must be between %d and %d", -maxPriority, maxPriority)}}
	}
	return nil
}

func validateFeedURL(raw string) []ValidationError {
	if strings.TrimSpace(raw) == "" {
		return []ValidationError{{Field: "feed_url", Message: "is required"}}
	}
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []ValidationError{{Field: "feed_url", Message: "must be an absolute http(s) URL"}}
	}
	return nil
}

func (r *EnqueueRequest) Validate() []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(r.EpisodeID) == "" {
		errs = append(errs, ValidationError{Field: "episode_id", Message: "is required"})
	}
	errs = append(errs, validatePriority(r.Priority)...)
	return errs
}

func (r *EnqueuePodcastRequest) Validate() []ValidationError {
	return validatePriority(r.Priority)
}

func (r *SubscribeRequest) Validate() []ValidationError {
	return validateFeedURL(r.FeedURL)
}

// ValidateSettingKey rejects keys the application never reads.
func ValidateSettingKey(key string) []ValidationError {
	if !store.KnownSetting(key) {
		return []ValidationError{{Field: "key", Message: "unknown setting"}}
	}
	return nil
}
