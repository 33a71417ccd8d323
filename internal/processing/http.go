package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cesargomez89/adfreecast/internal/constants"
	"github.com/cesargomez89/adfreecast/internal/httpclient"
)

// HTTPClient implements Client against the backend's REST API.
type HTTPClient struct {
	BaseURL string
	Client  *httpclient.Client
}

func NewHTTPClient(baseURL string, client *httpclient.Client) *HTTPClient {
	if client == nil {
		client = httpclient.NewClient(nil, constants.DefaultProcessorRPS)
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
	}
}

type jobResponse struct {
	JobID             string   `json:"job_id"`
	Status            string   `json:"status"`
	Progress          int      `json:"progress"`
	ProcessedAudioURL *string  `json:"processed_audio_url"`
	AdsRemoved        *float64 `json:"ads_removed"`
	Duration          *float64 `json:"duration"`
	Error             *string  `json:"error"`
}

func (r jobResponse) toStatus() *JobStatus {
	s := &JobStatus{
		JobID:      r.JobID,
		State:      mapState(r.Status),
		Backend:    r.Status,
		Progress:   r.Progress,
		AdsRemoved: r.AdsRemoved,
		Duration:   r.Duration,
	}
	if r.ProcessedAudioURL != nil {
		s.ProcessedAudioURL = *r.ProcessedAudioURL
	}
	if r.Error != nil {
		s.Error = *r.Error
	}
	return s
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", constants.MimeTypeJSON)

	var resp jobResponse
	if err := c.do(httpReq, &resp); err != nil {
		return "", fmt.Errorf("submit %s: %w", req.EpisodeID, err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit %s: backend returned no job id", req.EpisodeID)
	}
	return resp.JobID, nil
}

func (c *HTTPClient) PollStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var resp jobResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("status %s: %w", jobID, err)
	}
	if resp.JobID == "" {
		resp.JobID = jobID
	}
	return resp.toStatus(), nil
}

func (c *HTTPClient) FetchResult(ctx context.Context, jobID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/audio/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio %s: %w", jobID, err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch audio %s: %w", jobID, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = constants.MimeTypeMP3
	}
	return &Result{Body: resp.Body, ContentType: contentType}, nil
}

func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	var h Health
	if err := c.do(req, &h); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &h, nil
}

func (c *HTTPClient) do(req *http.Request, target any) error {
	resp, err := c.Client.Do(req.Context(), req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrJobNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return fmt.Errorf("backend request failed: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("backend request failed: %s", resp.Status)
	}
	return nil
}
