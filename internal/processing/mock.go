package processing

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/cesargomez89/adfreecast/internal/constants"
)

// MockClient is an in-memory backend. Each job walks through its script one
// PollStatus call at a time and then keeps returning the last entry.
type MockClient struct {
	mu sync.Mutex

	// Scripts is keyed by episode id. Episodes without a script complete on
	// the first poll.
	Scripts     map[string][]JobStatus
	SubmitErr   error
	FetchErr    error
	Audio       []byte
	ContentType string

	// Gate, when set, blocks Submit until it is closed or the context ends.
	Gate chan struct{}

	submitted []SubmitRequest
	jobs      map[string]string
	polls     map[string]int
}

func NewMockClient() *MockClient {
	return &MockClient{
		Scripts:     map[string][]JobStatus{},
		Audio:       []byte("ID3mock-audio"),
		ContentType: constants.MimeTypeMP3,
		jobs:        map[string]string{},
		polls:       map[string]int{},
	}
}

func (m *MockClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, req)
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	jobID := "job-" + req.EpisodeID
	m.jobs[jobID] = req.EpisodeID
	return jobID, nil
}

func (m *MockClient) PollStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	episodeID, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	script := m.Scripts[episodeID]
	if len(script) == 0 {
		return &JobStatus{JobID: jobID, State: JobComplete, Backend: "complete", Progress: 100}, nil
	}

	n := m.polls[jobID]
	m.polls[jobID] = n + 1
	if n >= len(script) {
		n = len(script) - 1
	}
	st := script[n]
	st.JobID = jobID
	return &st, nil
}

func (m *MockClient) FetchResult(ctx context.Context, jobID string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if _, ok := m.jobs[jobID]; !ok {
		return nil, ErrJobNotFound
	}
	return &Result{
		Body:        io.NopCloser(bytes.NewReader(m.Audio)),
		ContentType: m.ContentType,
	}, nil
}

func (m *MockClient) Health(ctx context.Context) (*Health, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Health{Status: "ok", Backend: "mock", Jobs: len(m.jobs)}, nil
}

// Submitted returns a copy of every request seen so far.
func (m *MockClient) Submitted() []SubmitRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SubmitRequest(nil), m.submitted...)
}
