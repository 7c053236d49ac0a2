package models

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSummary_Finalize(t *testing.T) {
	start := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	netErr := errors.New("connection reset by peer")

	tests := []struct {
		name        string
		results     []DownloadResult
		abort       error
		want        Outcome
		wantErrText string
	}{
		{
			name: "empty bucket",
			want: OutcomeEmpty,
		},
		{
			name: "all downloaded",
			results: []DownloadResult{
				Downloaded{Name: "a.txt", Bytes: 3},
				Downloaded{Name: "sub/b.txt", Bytes: 4},
			},
			want: OutcomeSuccess,
		},
		{
			name: "partial success is success",
			results: []DownloadResult{
				Downloaded{Name: "a.txt", Bytes: 3},
				NewFailed("b.txt", netErr),
			},
			want: OutcomeSuccess,
		},
		{
			name: "all failed",
			results: []DownloadResult{
				NewFailed("a.txt", netErr),
			},
			want:        OutcomeFailure,
			wantErrText: "connection reset by peer",
		},
		{
			name:        "aborted before listing",
			abort:       fmt.Errorf("%w: bad key", ErrAuth),
			want:        OutcomeFailure,
			wantErrText: "authorization failed: bad key",
		},
		{
			name: "aborted mid listing",
			results: []DownloadResult{
				Downloaded{Name: "a.txt", Bytes: 3},
			},
			abort:       fmt.Errorf("%w: page 2", ErrConnection),
			want:        OutcomeFailure,
			wantErrText: "listing failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRunSummary("run-1", "backups", start)
			for _, r := range tt.results {
				s.Record(r)
			}
			s.Abort(tt.abort)

			got := s.Finalize(end)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, s.Outcome)
			assert.Equal(t, len(tt.results), s.TotalObjects)
			assert.Equal(t, s.TotalObjects, len(s.Succeeded)+len(s.Failed))
			assert.Equal(t, time.Minute, s.Duration())
			if tt.wantErrText != "" {
				require.Error(t, s.Err)
				assert.Contains(t, s.Error, tt.wantErrText)
			} else {
				assert.NoError(t, s.Err)
			}
		})
	}
}

func TestRunSummary_FrozenAfterFinalize(t *testing.T) {
	s := NewRunSummary("run-1", "backups", time.Now())
	s.Record(Downloaded{Name: "a.txt", Bytes: 1})
	require.Equal(t, OutcomeSuccess, s.Finalize(time.Now()))

	s.Record(NewFailed("late.txt", errors.New("late")))
	s.Abort(errors.New("late abort"))

	assert.Equal(t, 1, s.TotalObjects)
	assert.Empty(t, s.Failed)
	assert.NoError(t, s.Err)
	assert.Equal(t, OutcomeSuccess, s.Finalize(time.Now()))
}

func TestRunSummary_AbortKeepsFirstError(t *testing.T) {
	s := NewRunSummary("run-1", "backups", time.Now())
	first := fmt.Errorf("%w: first", ErrConnection)
	s.Abort(first)
	s.Abort(errors.New("second"))

	assert.True(t, s.Aborted())
	assert.ErrorIs(t, s.Err, ErrConnection)
	assert.Equal(t, first.Error(), s.Error)
}

func TestRunSummary_ConcurrentRecord(t *testing.T) {
	s := NewRunSummary("run-1", "backups", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("obj-%d", i)
			if i%3 == 0 {
				s.Record(NewFailed(name, errors.New("boom")))
				return
			}
			s.Record(Downloaded{Name: name, Bytes: 1})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, s.TotalObjects)
	assert.Len(t, s.Failed, 34)
	assert.Len(t, s.Succeeded, 66)
	assert.Equal(t, int64(66), s.TotalBytes)
}

func TestRemoteObject_IsDirMarker(t *testing.T) {
	assert.True(t, RemoteObject{Name: "photos/"}.IsDirMarker())
	assert.False(t, RemoteObject{Name: "photos/a.jpg"}.IsDirMarker())
	assert.False(t, RemoteObject{}.IsDirMarker())
}
