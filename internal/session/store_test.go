package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testDataset() *ingest.Dataset {
	return &ingest.Dataset{Detections: []ingest.Detection{
		{Timestamp: time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC), ScientificName: "A", Confidence: 0.9},
		{Timestamp: time.Date(2024, 5, 9, 18, 0, 0, 0, time.UTC), ScientificName: "B", Confidence: 0.4},
	}}
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := NewStore(opts)
	t.Cleanup(s.Close)
	return s
}

func TestCreateUsesDefaultFilter(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess, err := s.Create(testDataset())
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	f := sess.Filter()
	assert.Equal(t, pipeline.NewDate(2024, 5, 1), f.StartDate)
	assert.Equal(t, pipeline.NewDate(2024, 5, 9), f.EndDate)
	assert.Equal(t, pipeline.DedupNone, f.DedupMode)
	assert.Empty(t, f.SelectedSpecies)
	assert.Zero(t, f.ConfidenceThreshold)
	assert.False(t, f.CommonSpeciesOnly)
	assert.Equal(t, 1, s.Count())

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
}

func TestCreateRejectsEmptyDataset(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	_, err := s.Create(&ingest.Dataset{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestGetUnknownSession(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	_, err := s.Get("missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, errors.IsNotFound(err))

	assert.ErrorIs(t, s.Delete("missing"), ErrSessionNotFound)
}

func TestUpdateFilterReplacesValue(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess, err := s.Create(testDataset())
	require.NoError(t, err)
	before := sess.Filter()

	next, err := s.UpdateFilter(sess.ID, func(f pipeline.FilterConfig) (pipeline.FilterConfig, error) {
		f.ConfidenceThreshold = 0.5
		return f.WithSpecies("A"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, next.SelectedSpecies)
	assert.Equal(t, next, sess.Filter())

	// the earlier value is untouched
	assert.Zero(t, before.ConfidenceThreshold)
	assert.Empty(t, before.SelectedSpecies)

	_, err = s.UpdateFilter(sess.ID, func(f pipeline.FilterConfig) (pipeline.FilterConfig, error) {
		f.ConfidenceThreshold = 2
		return f, f.Validate()
	})
	require.Error(t, err)
	assert.InDelta(t, 0.5, sess.Filter().ConfidenceThreshold, 1e-9)
}

func TestConcurrentFilterUpdates(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, Options{})

	sess, err := s.Create(testDataset())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_, err := s.UpdateFilter(sess.ID, func(f pipeline.FilterConfig) (pipeline.FilterConfig, error) {
				f.ConfidenceThreshold += 0.01
				return f, nil
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.InDelta(t, 0.5, sess.Filter().ConfidenceThreshold, 1e-9)
}

func TestSessionsExpire(t *testing.T) {
	t.Parallel()

	var evicted atomic.Int32
	s := newTestStore(t, Options{
		TTL:             50 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
		OnEvicted:       func(string) { evicted.Add(1) },
	})

	sess, err := s.Create(testDataset())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return evicted.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, err = s.Get(sess.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, s.Count())
}

func TestDelete(t *testing.T) {
	t.Parallel()

	var evicted atomic.Int32
	s := newTestStore(t, Options{OnEvicted: func(string) { evicted.Add(1) }})

	sess, err := s.Create(testDataset())
	require.NoError(t, err)
	require.NoError(t, s.Delete(sess.ID))
	assert.Zero(t, s.Count())
	assert.Equal(t, int32(1), evicted.Load())
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewStore(Options{})
	s.Close()
	s.Close()
}
