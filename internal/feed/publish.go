package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"github.com/cesargomez89/adfreecast/internal/constants"
	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/store"
)

const (
	defaultCombinedTitle       = "Ad-free podcasts"
	defaultCombinedDescription = "Every processed episode, ads removed."
)

// SettingsReader is the part of the settings store the publisher reads.
type SettingsReader interface {
	GetOr(ctx context.Context, key, fallback string) string
}

// Publisher renders RSS for processed episodes.
type Publisher struct {
	BaseURL  string
	Settings SettingsReader
	now      func() time.Time
}

func NewPublisher(baseURL string, settings SettingsReader) *Publisher {
	return &Publisher{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Settings: settings,
		now:      time.Now,
	}
}

func (p *Publisher) setting(ctx context.Context, key, fallback string) string {
	if p.Settings == nil {
		return fallback
	}
	return p.Settings.GetOr(ctx, key, fallback)
}

// PodcastFeed renders the ad-free feed for one subscription.
func (p *Publisher) PodcastFeed(ctx context.Context, sub *domain.Subscription, episodes []domain.ReadyEpisode) (string, error) {
	description := sub.Description
	if description == "" {
		description = sub.Title
	}

	ch := p.channel(sub.Title, p.BaseURL+"/feeds/"+sub.ID, description, episodes)
	ch.IAuthor = firstNonEmpty(sub.Artist, p.setting(ctx, store.SettingFeedAuthor, ""))
	if sub.ArtworkURL != "" {
		ch.AddImage(sub.ArtworkURL)
	}
	if sub.Genre != "" {
		ch.AddCategory(sub.Genre, nil)
	}

	return p.render(&ch, episodes)
}

// CombinedFeed renders every ready episode of every subscription.
func (p *Publisher) CombinedFeed(ctx context.Context, episodes []domain.ReadyEpisode) (string, error) {
	title := p.setting(ctx, store.SettingFeedTitle, defaultCombinedTitle)
	description := p.setting(ctx, store.SettingFeedDescription, defaultCombinedDescription)

	ch := p.channel(title, p.BaseURL+"/feed.xml", description, episodes)
	ch.IAuthor = p.setting(ctx, store.SettingFeedAuthor, "")
	if image := p.setting(ctx, store.SettingFeedImage, ""); image != "" {
		ch.AddImage(image)
	}

	return p.render(&ch, episodes)
}

func (p *Publisher) channel(title, link, description string, episodes []domain.ReadyEpisode) podcast.Podcast {
	built := p.now()
	var pub *time.Time
	for _, ep := range episodes {
		if t, ok := domain.ParsePublishDate(ep.PublishDate); ok && (pub == nil || t.After(*pub)) {
			pub = &t
		}
	}
	if pub == nil {
		pub = &built
	}
	return podcast.New(title, link, description, pub, &built)
}

func (p *Publisher) render(ch *podcast.Podcast, episodes []domain.ReadyEpisode) (string, error) {
	for _, ep := range episodes {
		item, err := p.item(ep)
		if err != nil {
			return "", err
		}
		if _, err := ch.AddItem(item); err != nil {
			return "", fmt.Errorf("add episode %s: %w", ep.ID, err)
		}
	}
	return ch.String(), nil
}

func (p *Publisher) item(ep domain.ReadyEpisode) (podcast.Item, error) {
	name := filepath.Base(ep.ProcessedPath)
	if ep.ProcessedPath == "" || name == "." {
		return podcast.Item{}, fmt.Errorf("episode %s has no processed file", ep.ID)
	}

	title := firstNonEmpty(ep.Title, ep.ID)
	item := podcast.Item{
		Title:       title,
		Description: firstNonEmpty(ep.Description, title),
	}

	if t, ok := domain.ParsePublishDate(ep.PublishDate); ok {
		item.AddPubDate(&t)
	}

	var size int64
	if info, err := os.Stat(ep.ProcessedPath); err == nil {
		size = info.Size()
	}
	item.AddEnclosure(p.BaseURL+"/audio/"+name, enclosureType(name), size)

	if ep.ProcessedDuration != nil && *ep.ProcessedDuration > 0 {
		item.AddDuration(int64(*ep.ProcessedDuration))
	}
	if ep.ArtworkURL != "" {
		item.AddImage(ep.ArtworkURL)
	}
	return item, nil
}

func enclosureType(name string) podcast.EnclosureType {
	if strings.EqualFold(filepath.Ext(name), constants.ExtM4A) {
		return podcast.M4A
	}
	return podcast.MP3
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
