package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingIndexer struct {
	calls  atomic.Int32
	folder atomic.Value
	err    error
}

func (c *countingIndexer) Index(_ context.Context, folder string) (int, error) {
	c.calls.Add(1)
	c.folder.Store(folder)
	return 0, c.err
}

func TestReindexSchedulerRunsFolder(t *testing.T) {
	idx := &countingIndexer{}
	s, err := NewReindexScheduler(idx, "data/pdfs", time.Hour)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return idx.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "data/pdfs", idx.folder.Load())
}

func TestReindexSchedulerSurvivesFailedRun(t *testing.T) {
	idx := &countingIndexer{err: errors.New("index unavailable")}
	s, err := NewReindexScheduler(idx, "data/pdfs", time.Hour)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return idx.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestReindexSchedulerRejectsNonPositiveInterval(t *testing.T) {
	_, err := NewReindexScheduler(&countingIndexer{}, "data/pdfs", 0)
	assert.Error(t, err)
}
