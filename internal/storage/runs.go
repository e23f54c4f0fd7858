package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"assay/internal/runner"
	"assay/pkg/logging"
)

const runsEntity = "runs"

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// RunStore persists finished run results.
type RunStore interface {
	// Save stores a run result under its RunID
	Save(ctx context.Context, result *runner.RunResult) error

	// Get loads a run result by ID
	Get(ctx context.Context, runID string) (*runner.RunResult, error)

	// List returns run summaries, newest first
	List(ctx context.Context, opts ListOptions) (*ListResponse, error)

	// Delete removes a stored run
	Delete(ctx context.Context, runID string) error
}

// ListOptions filters and paginates List.
type ListOptions struct {
	SuiteName string        `json:"suiteName,omitempty"`
	Status    runner.Status `json:"status,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Offset    int           `json:"offset,omitempty"`
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID       string        `json:"runId" yaml:"runId"`
	SuiteName   string        `json:"suiteName" yaml:"suiteName"`
	TestType    string        `json:"testType" yaml:"testType"`
	Status      runner.Status `json:"status" yaml:"status"`
	Success     bool          `json:"success" yaml:"success"`
	TotalSteps  int           `json:"totalSteps" yaml:"totalSteps"`
	PassedSteps int           `json:"passedSteps" yaml:"passedSteps"`
	FailedSteps int           `json:"failedSteps" yaml:"failedSteps"`
	Duration    int64         `json:"duration" yaml:"duration"`
	StartedAt   time.Time     `json:"startedAt" yaml:"startedAt"`
}

// ListResponse is a page of run summaries.
type ListResponse struct {
	Runs    []RunSummary `json:"runs" yaml:"runs"`
	Total   int          `json:"total" yaml:"total"`
	Limit   int          `json:"limit" yaml:"limit"`
	Offset  int          `json:"offset" yaml:"offset"`
	HasMore bool         `json:"hasMore" yaml:"hasMore"`
}

// FileStore keeps one JSON file per run under <root>/runs and caches
// summaries for listing.
type FileStore struct {
	dir   *Dir
	mu    sync.RWMutex
	cache map[string]*RunSummary
}

// NewFileStore creates a store rooted at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("storage path cannot be empty")
	}
	return &FileStore{
		dir:   NewDir(path),
		cache: make(map[string]*RunSummary),
	}, nil
}

// Save persists result.
func (s *FileStore) Save(ctx context.Context, result *runner.RunResult) error {
	if result == nil || result.RunID == "" {
		return errors.New("run result must have a run ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", result.RunID, err)
	}
	if err := s.dir.Save(runsEntity, result.RunID, data); err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
	}

	s.cache[result.RunID] = summarize(result)
	logging.Debug("RunStore", "Stored run %s for suite %s", result.RunID, result.SuiteName)
	return nil
}

// Get loads a stored run.
func (s *FileStore) Get(ctx context.Context, runID string) (*runner.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.dir.Load(runsEntity, runID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var result runner.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return &result, nil
}

// List returns matching summaries sorted by start time, newest first.
func (s *FileStore) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	if err := s.refreshCache(); err != nil {
		return nil, fmt.Errorf("failed to refresh run cache: %w", err)
	}

	var filtered []*RunSummary
	for _, summary := range s.cache {
		if opts.SuiteName != "" && summary.SuiteName != opts.SuiteName {
			continue
		}
		if opts.Status != "" && summary.Status != opts.Status {
			continue
		}
		filtered = append(filtered, summary)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].StartedAt.Equal(filtered[j].StartedAt) {
			return filtered[i].RunID < filtered[j].RunID
		}
		return filtered[i].StartedAt.After(filtered[j].StartedAt)
	})

	total := len(filtered)
	page := []RunSummary{}
	if offset < total {
		end := min(offset+limit, total)
		for _, summary := range filtered[offset:end] {
			page = append(page, *summary)
		}
	}

	return &ListResponse{
		Runs:    page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(page) < total,
	}, nil
}

// Delete removes a stored run.
func (s *FileStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dir.Delete(runsEntity, runID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	delete(s.cache, runID)
	return nil
}

// refreshCache loads summaries for runs written by other processes and
// drops entries whose files are gone. Callers hold s.mu.
func (s *FileStore) refreshCache() error {
	ids, err := s.dir.List(runsEntity)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
		if _, ok := s.cache[id]; ok {
			continue
		}

		data, err := s.dir.Load(runsEntity, id)
		if err != nil {
			logging.Warn("RunStore", "Failed to load run %s for caching: %v", id, err)
			continue
		}
		var result runner.RunResult
		if err := json.Unmarshal(data, &result); err != nil {
			logging.Warn("RunStore", "Failed to unmarshal run %s for caching: %v", id, err)
			continue
		}
		s.cache[id] = summarize(&result)
	}

	for id := range s.cache {
		if !existing[id] {
			delete(s.cache, id)
		}
	}
	return nil
}

func summarize(r *runner.RunResult) *RunSummary {
	return &RunSummary{
		RunID:       r.RunID,
		SuiteName:   r.SuiteName,
		TestType:    r.TestType,
		Status:      r.Status,
		Success:     r.Success,
		TotalSteps:  r.TotalSteps,
		PassedSteps: r.PassedSteps,
		FailedSteps: r.FailedSteps,
		Duration:    r.Duration,
		StartedAt:   r.StartedAt,
	}
}
