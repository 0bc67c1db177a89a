// internal/app/store/drafts/store.go
package drafts

import (
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/filestage"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	DefaultTTL             = 2 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// ErrNotFound is returned for unknown or expired drafts.
var ErrNotFound = errors.New("draft not found")

// Draft is one editor session plus the files staged for it and the
// orchestrator that submits it. All session access goes through Edit or View.
type Draft struct {
	ID        string
	CreatedAt time.Time
	Submitter *submission.Orchestrator

	mu      sync.Mutex
	session *project.Session
	staged  map[int]*filestage.File
}

// Edit runs fn with exclusive access to the session.
func (d *Draft) Edit(fn func(s *project.Session) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.session)
}

// View returns a snapshot of the session.
func (d *Draft) View() project.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session.Snapshot()
}

// Stage runs fn with exclusive access to the session and, only if it
// succeeds, records f as the staged file behind image idx (nil clears it).
// It returns the file f replaces.
func (d *Draft) Stage(idx int, f *filestage.File, fn func(s *project.Session) error) (*filestage.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := fn(d.session); err != nil {
		return nil, err
	}
	prev := d.staged[idx]
	if f == nil {
		delete(d.staged, idx)
	} else {
		d.staged[idx] = f
	}
	return prev, nil
}

// SubmitterFactory builds the orchestrator for a new draft.
type SubmitterFactory func(draftID string) *submission.Orchestrator

// Store keeps drafts in memory. A draft expires after TTL without access;
// OnExpire is then called with its id so staged files can be removed.
type Store struct {
	cache     *gocache.Cache
	ttl       time.Duration
	submitter SubmitterFactory
	log       *zap.Logger
	now       func() time.Time
}

// Config configures a Store.
type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	Submitter       SubmitterFactory
	OnExpire        func(draftID string)
}

// New returns an empty store.
func New(cfg Config, log *zap.Logger) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		cache:     gocache.New(cfg.TTL, cfg.CleanupInterval),
		ttl:       cfg.TTL,
		submitter: cfg.Submitter,
		log:       log,
		now:       time.Now,
	}
	if cfg.OnExpire != nil {
		onExpire := cfg.OnExpire
		s.cache.OnEvicted(func(id string, _ interface{}) {
			log.Debug("draft evicted", zap.String("draft_id", id))
			onExpire(id)
		})
	}
	return s
}

// Create starts an empty draft.
func (s *Store) Create() *Draft {
	d := &Draft{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		session:   project.NewSession(),
		staged:    make(map[int]*filestage.File),
	}
	if s.submitter != nil {
		d.Submitter = s.submitter(d.ID)
	}
	s.cache.Set(d.ID, d, s.ttl)
	s.log.Info("draft created", zap.String("draft_id", d.ID))
	return d
}

// Get returns the draft and extends its lifetime.
func (s *Store) Get(id string) (*Draft, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	d, ok := v.(*Draft)
	if !ok {
		s.log.Error("wrong type in draft cache", zap.String("draft_id", id))
		return nil, ErrNotFound
	}
	s.cache.Set(id, d, s.ttl)
	return d, nil
}

// Has reports whether id is a live draft. It does not extend its lifetime.
func (s *Store) Has(id string) bool {
	_, ok := s.cache.Get(id)
	return ok
}

// Delete removes the draft, triggering OnExpire.
func (s *Store) Delete(id string) error {
	if _, ok := s.cache.Get(id); !ok {
		return ErrNotFound
	}
	s.cache.Delete(id)
	s.log.Info("draft deleted", zap.String("draft_id", id))
	return nil
}

// Len returns the number of live drafts.
func (s *Store) Len() int { return s.cache.ItemCount() }

// Sweep evicts expired drafts now instead of waiting for the janitor.
func (s *Store) Sweep() { s.cache.DeleteExpired() }

// Flush evicts every draft.
func (s *Store) Flush() {
	for id := range s.cache.Items() {
		s.cache.Delete(id)
	}
}
