// Package session keeps the per-user dashboard state: the immutable dataset
// snapshot of one upload plus the current filter configuration.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/birdnet-dashboard/internal/errors"
	"github.com/tphakala/birdnet-dashboard/internal/ingest"
	"github.com/tphakala/birdnet-dashboard/internal/logger"
	"github.com/tphakala/birdnet-dashboard/internal/pipeline"
)

// Defaults used when Options leaves a duration unset
const (
	DefaultTTL             = 2 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// ErrSessionNotFound is returned for unknown or expired session IDs
var ErrSessionNotFound = errors.NewStd("session not found")

// GetLogger returns the session module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("session")
}

// Session is one uploaded dataset and its filter state
type Session struct {
	ID        string
	Dataset   *ingest.Dataset
	CreatedAt time.Time

	// Range is the full detection date range, used to bound filters
	RangeStart pipeline.Date
	RangeEnd   pipeline.Date

	mu     sync.Mutex
	filter pipeline.FilterConfig
}

// Filter returns the current filter configuration
func (s *Session) Filter() pipeline.FilterConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Options configures a Store
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration

	// OnEvicted is called after a session expires or is deleted
	OnEvicted func(id string)
}

// Store holds sessions in a TTL cache. Close must be called to stop the
// expiry goroutine.
type Store struct {
	cache *cache.Cache
	opts  Options

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store and starts its expiry loop
func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}

	// cleanup interval 0 disables go-cache's own janitor, which cannot be
	// stopped; expiry runs in our loop instead
	c := cache.New(opts.TTL, 0)
	s := &Store{
		cache: c,
		opts:  opts,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	c.OnEvicted(func(id string, _ any) {
		GetLogger().Debug("session evicted", logger.String("session_id", id))
		if s.opts.OnEvicted != nil {
			s.opts.OnEvicted(id)
		}
	})

	go s.expireLoop()
	return s
}

func (s *Store) expireLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cache.DeleteExpired()
		case <-s.stop:
			return
		}
	}
}

// Close stops the expiry loop. It is safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

// Create stores a new session for ds with the default filter: the full
// detection range and every other option inactive.
func (s *Store) Create(ds *ingest.Dataset) (*Session, error) {
	start, end, ok := pipeline.DefaultRange(ds)
	if !ok {
		return nil, errors.Newf("detections file contains no records").
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	sess := &Session{
		ID:         uuid.New().String(),
		Dataset:    ds,
		CreatedAt:  time.Now(),
		RangeStart: start,
		RangeEnd:   end,
		filter:     pipeline.NewFilterConfig(start, end),
	}
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)

	GetLogger().Info("session created",
		logger.String("session_id", sess.ID),
		logger.Int("detections", len(ds.Detections)),
		logger.String("range_start", start.String()),
		logger.String("range_end", end.String()))

	return sess, nil
}

// Get returns the session and extends its lifetime
func (s *Store) Get(id string) (*Session, error) {
	v, found := s.cache.Get(id)
	if !found {
		return nil, notFound(id)
	}
	sess := v.(*Session)
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, nil
}

// UpdateFilter replaces the session filter with fn(current). If fn returns
// an error the filter is left unchanged.
func (s *Store) UpdateFilter(id string, fn func(pipeline.FilterConfig) (pipeline.FilterConfig, error)) (pipeline.FilterConfig, error) {
	sess, err := s.Get(id)
	if err != nil {
		return pipeline.FilterConfig{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	next, err := fn(sess.filter)
	if err != nil {
		return sess.filter, err
	}
	sess.filter = next
	return next, nil
}

// Delete removes a session
func (s *Store) Delete(id string) error {
	if _, found := s.cache.Get(id); !found {
		return notFound(id)
	}
	s.cache.Delete(id)
	return nil
}

// Count returns the number of sessions, including expired ones not yet
// cleaned up.
func (s *Store) Count() int {
	return s.cache.ItemCount()
}

func notFound(id string) error {
	return errors.New(ErrSessionNotFound).
		Component("session").
		Category(errors.CategoryNotFound).
		Context("session_id", id).
		Build()
}
