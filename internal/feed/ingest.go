// Package feed reads subscribed podcast feeds and publishes the ad-free ones.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/cesargomez89/adfreecast/internal/constants"
	"github.com/cesargomez89/adfreecast/internal/domain"
)

var ErrNoEpisodes = errors.New("feed has no audio episodes")

// Parsed is a feed mapped onto the domain.
type Parsed struct {
	Subscription domain.Subscription
	Episodes     []domain.Episode
	// Skipped counts items without a usable GUID or audio enclosure.
	Skipped int
}

type Ingester struct {
	parser *gofeed.Parser
	now    func() time.Time
}

func NewIngester(client *http.Client) *Ingester {
	if client == nil {
		client = &http.Client{Timeout: constants.FeedHTTPTimeout}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "adfreecast/1.0"
	return &Ingester{parser: parser, now: time.Now}
}

// PodcastID derives a stable subscription id from the feed URL.
func PodcastID(feedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(feedURL))).String()
}

// EpisodeID scopes an item GUID to its podcast.
func EpisodeID(podcastID, guid string) string {
	return podcastID + ":" + guid
}

func (i *Ingester) Fetch(ctx context.Context, feedURL, podcastID string) (*Parsed, error) {
	parsed, err := i.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return i.build(parsed, feedURL, podcastID)
}

func (i *Ingester) Parse(r io.Reader, feedURL, podcastID string) (*Parsed, error) {
	parsed, err := i.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return i.build(parsed, feedURL, podcastID)
}

func (i *Ingester) build(f *gofeed.Feed, feedURL, podcastID string) (*Parsed, error) {
	if podcastID == "" {
		podcastID = PodcastID(feedURL)
	}

	out := &Parsed{Subscription: subscriptionFrom(f, feedURL, podcastID)}

	now := i.now()
	seen := make(map[string]bool)
	for _, item := range f.Items {
		ep, ok := episodeFrom(item, out.Subscription, now)
		if !ok || seen[ep.ID] {
			out.Skipped++
			continue
		}
		seen[ep.ID] = true
		out.Episodes = append(out.Episodes, ep)
	}

	if len(out.Episodes) == 0 {
		return out, ErrNoEpisodes
	}
	return out, nil
}

func subscriptionFrom(f *gofeed.Feed, feedURL, podcastID string) domain.Subscription {
	sub := domain.Subscription{
		ID:          podcastID,
		Title:       strings.TrimSpace(f.Title),
		FeedURL:     feedURL,
		Description: strings.TrimSpace(f.Description),
	}
	if sub.Title == "" {
		sub.Title = feedURL
	}

	if f.ITunesExt != nil {
		sub.Artist = f.ITunesExt.Author
		sub.ArtworkURL = f.ITunesExt.Image
		if len(f.ITunesExt.Categories) > 0 && f.ITunesExt.Categories[0] != nil {
			sub.Genre = f.ITunesExt.Categories[0].Text
		}
	}
	if sub.Artist == "" && len(f.Authors) > 0 && f.Authors[0] != nil {
		sub.Artist = f.Authors[0].Name
	}
	if sub.ArtworkURL == "" && f.Image != nil {
		sub.ArtworkURL = f.Image.URL
	}
	return sub
}

func episodeFrom(item *gofeed.Item, sub domain.Subscription, now time.Time) (domain.Episode, bool) {
	audioURL := audioEnclosure(item)
	if audioURL == "" {
		return domain.Episode{}, false
	}

	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = audioURL
	}

	ep := domain.Episode{
		ID:          EpisodeID(sub.ID, guid),
		PodcastID:   sub.ID,
		Title:       strings.TrimSpace(item.Title),
		Description: strings.TrimSpace(item.Description),
		AudioURL:    audioURL,
		ArtworkURL:  sub.ArtworkURL,
	}
	if ep.Title == "" {
		ep.Title = guid
	}

	if date, ok := domain.NormalizePublishDate(item.Published); ok {
		ep.PublishDate = date
	} else if item.PublishedParsed != nil {
		ep.PublishDate = domain.FormatPublishDate(*item.PublishedParsed)
	} else {
		ep.PublishDate = domain.FormatPublishDate(now)
	}

	if item.Image != nil && item.Image.URL != "" {
		ep.ArtworkURL = item.Image.URL
	}
	if item.ITunesExt != nil {
		if item.ITunesExt.Image != "" {
			ep.ArtworkURL = item.ITunesExt.Image
		}
		if d, ok := ParseDuration(item.ITunesExt.Duration); ok {
			ep.Duration = &d
		}
		if ep.Description == "" {
			ep.Description = strings.TrimSpace(item.ITunesExt.Summary)
		}
	}
	return ep, true
}

var audioExts = map[string]bool{
	".mp3": true, ".m4a": true, ".mp4": true, ".aac": true,
	".flac": true, ".ogg": true, ".opus": true, ".wav": true,
}

// audioEnclosure returns the first enclosure that looks like audio.
func audioEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc.URL
		}
		if enc.Type == "" {
			u := enc.URL
			if idx := strings.IndexAny(u, "?#"); idx != -1 {
				u = u[:idx]
			}
			if audioExts[strings.ToLower(path.Ext(u))] {
				return enc.URL
			}
		}
	}
	return ""
}

// ParseDuration reads an itunes:duration value: HH:MM:SS, MM:SS or seconds.
func ParseDuration(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, false
	}

	total := 0
	for i, p := range parts {
		if i == len(parts)-1 {
			// Seconds may carry a fraction.
			f, err := strconv.ParseFloat(p, 64)
			if err != nil || f < 0 {
				return 0, false
			}
			total = total*60 + int(f)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
