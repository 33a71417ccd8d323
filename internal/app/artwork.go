package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cesargomez89/adfreecast/internal/constants"
	"github.com/cesargomez89/adfreecast/internal/httpclient"
	"github.com/cesargomez89/adfreecast/internal/logger"
)

// maxArtworkBytes bounds a single cover download.
const maxArtworkBytes = 10 << 20

type ArtworkCache interface {
	GetCache(ctx context.Context, key string) ([]byte, error)
	SetCache(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// ArtworkService downloads cover art for tagging, keeping copies in the
// store cache so every episode of a show does not refetch the same image.
type ArtworkService struct {
	cache  ArtworkCache
	client *httpclient.Client
	ttl    time.Duration
	Logger *logger.Logger
}

func NewArtworkService(cache ArtworkCache, client *httpclient.Client, log *logger.Logger) *ArtworkService {
	if client == nil {
		client = httpclient.NewClient(&http.Client{Timeout: constants.ImageHTTPTimeout}, 0)
	}
	return &ArtworkService{
		cache:  cache,
		client: client,
		ttl:    constants.DefaultCacheTTL,
		Logger: log.WithComponent("artwork"),
	}
}

func (s *ArtworkService) Fetch(ctx context.Context, urlStr string) ([]byte, error) {
	if urlStr == "" {
		return nil, nil
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsedURL.Scheme)
	}

	key := "artwork:" + urlStr
	if s.cache != nil {
		if data, err := s.cache.GetCache(ctx, key); err != nil {
			s.Logger.Warn("Artwork cache read failed", "url", urlStr, "error", err)
		} else if data != nil {
			return data, nil
		}
	}

	data, err := s.download(ctx, urlStr)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(data) > 0 {
		if err := s.cache.SetCache(ctx, key, data, s.ttl); err != nil {
			s.Logger.Warn("Artwork cache write failed", "url", urlStr, "error", err)
		}
	}
	return data, nil
}

func (s *ArtworkService) download(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "adfreecast/1.0")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d (URL: %s)", resp.StatusCode, urlStr)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxArtworkBytes)); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return buf.Bytes(), nil
}
