package models

import (
	"errors"
	"sync"
	"time"
)

// DownloadResult is either Downloaded or Failed.
type DownloadResult interface {
	ObjectName() string
	isDownloadResult()
}

type Downloaded struct {
	Name      string `json:"name"`
	LocalPath string `json:"local_path"`
	Bytes     int64  `json:"bytes"`
}

func (d Downloaded) ObjectName() string { return d.Name }
func (Downloaded) isDownloadResult()    {}

type Failed struct {
	Name  string `json:"name"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

func (f Failed) ObjectName() string { return f.Name }
func (Failed) isDownloadResult()    {}

// NewFailed records err against the named object.
func NewFailed(name string, err error) Failed {
	return Failed{Name: name, Error: err.Error(), Err: err}
}

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeEmpty   Outcome = "EMPTY"
)

// RunSummary accumulates the results of one run. Record is safe for
// concurrent use; Finalize freezes the summary and later Records are dropped.
type RunSummary struct {
	RunID        string       `json:"run_id"`
	BucketName   string       `json:"bucket_name"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	TotalObjects int          `json:"total_objects"`
	Succeeded    []Downloaded `json:"succeeded"`
	Failed       []Failed     `json:"failed"`
	TotalBytes   int64        `json:"total_bytes"`
	Outcome      Outcome      `json:"outcome"`
	Error        string       `json:"error,omitempty"`

	Err    error `json:"-"`
	mu     sync.Mutex
	frozen bool
}

func NewRunSummary(runID, bucket string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:      runID,
		BucketName: bucket,
		StartedAt:  startedAt,
		Succeeded:  []Downloaded{},
		Failed:     []Failed{},
	}
}

// Record counts one listed object and stores its result.
func (s *RunSummary) Record(r DownloadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return
	}

	s.TotalObjects++
	switch v := r.(type) {
	case Downloaded:
		s.Succeeded = append(s.Succeeded, v)
		s.TotalBytes += v.Bytes
	case Failed:
		s.Failed = append(s.Failed, v)
	}
}

// Abort marks the run as stopped by a stage error. The first error wins.
func (s *RunSummary) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen || s.Err != nil || err == nil {
		return
	}
	s.Err = err
	s.Error = err.Error()
}

func (s *RunSummary) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err != nil
}

// Finalize computes the outcome and freezes the summary.
func (s *RunSummary) Finalize(finishedAt time.Time) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return s.Outcome
	}

	s.FinishedAt = finishedAt
	switch {
	case s.Err != nil:
		s.Outcome = OutcomeFailure
	case s.TotalObjects == 0:
		s.Outcome = OutcomeEmpty
	case len(s.Succeeded) == 0:
		s.Outcome = OutcomeFailure
		s.Err = errors.New("all objects failed to download")
		if len(s.Failed) > 0 {
			s.Err = errors.Join(s.Err, s.Failed[0].Err)
		}
		s.Error = s.Err.Error()
	default:
		s.Outcome = OutcomeSuccess
	}
	s.frozen = true
	return s.Outcome
}

func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
