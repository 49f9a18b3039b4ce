// Package memory is an in-process implementation of the storage ports. It
// backs tests and local runs without a database.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"recruitpipe/internal/domain"
	"recruitpipe/internal/ports"
)

type Store struct {
	mu         sync.RWMutex
	candidates map[string]domain.Candidate
	order      []string
	jobs       []*job
	locks      sync.Map // lock key -> *sync.Mutex

	// Now is used for createdAt/updatedAt; tests may replace it.
	Now func() time.Time
}

type job struct {
	ports.CandidateJob
	status string
	reason string
}

func New() *Store {
	return &Store{candidates: map[string]domain.Candidate{}, Now: time.Now}
}

var (
	_ ports.CandidateRepository = (*Store)(nil)
	_ ports.JobRepository       = (*Store)(nil)
	_ ports.CandidateTx         = (*tx)(nil)
)

func (s *Store) FindCandidate(ctx context.Context, tenantID string, by domain.Lookup) (domain.Candidate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := find(s.order, s.lookup, tenantID, by)
	return c, ok, nil
}

func (s *Store) GetCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(tenantID, id)
}

func (s *Store) InsertCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	c, err := s.prepareInsert(c)
	if err != nil {
		return domain.Candidate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[c.ID] = clone(c)
	s.order = append(s.order, c.ID)
	return c, nil
}

// UpdateCandidate holds the candidate's row lock for the write, so it waits
// for an identity transaction that has locked the same candidate.
func (s *Store) UpdateCandidate(ctx context.Context, tenantID, id string, rec domain.Record) (domain.Candidate, error) {
	row := s.mutex(rowKey(tenantID, id))
	row.Lock()
	defer row.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(tenantID, id)
	if err != nil {
		return domain.Candidate{}, err
	}
	if err := s.apply(&c, tenantID, id, rec); err != nil {
		return domain.Candidate{}, err
	}
	s.candidates[id] = clone(c)
	return c, nil
}

// WithIdentityLock serializes callers sharing an email or linkedin url within
// a tenant. Writes made through tx are staged and applied only when fn
// succeeds; candidate locks taken through tx are held until then.
func (s *Store) WithIdentityLock(ctx context.Context, tenantID string, ids domain.Lookup, fn func(ctx context.Context, tx ports.CandidateTx) error) error {
	for _, key := range ids.LockKeys(tenantID) {
		mu := s.mutex(key)
		mu.Lock()
		defer mu.Unlock()
	}
	t := &tx{s: s, staged: map[string]domain.Candidate{}, held: map[string]*sync.Mutex{}}
	defer t.release()
	if err := fn(ctx, t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) mutex(key string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func rowKey(tenantID, id string) string { return tenantID + "|candidate|" + id }

// get must be called with s.mu held.
func (s *Store) get(tenantID, id string) (domain.Candidate, error) {
	c, ok := s.lookup(id)
	if !ok || c.TenantID != tenantID {
		return domain.Candidate{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) lookup(id string) (domain.Candidate, bool) {
	c, ok := s.candidates[id]
	if !ok {
		return domain.Candidate{}, false
	}
	return clone(c), true
}

func (s *Store) prepareInsert(c domain.Candidate) (domain.Candidate, error) {
	if c.TenantID == "" {
		return domain.Candidate{}, domain.ErrTenantRequired
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return c, nil
}

func (s *Store) apply(c *domain.Candidate, tenantID, id string, rec domain.Record) error {
	if err := c.Apply(rec); err != nil {
		return err
	}
	c.ID, c.TenantID = id, tenantID
	c.UpdatedAt = s.Now().UTC()
	return nil
}

func find(order []string, get func(id string) (domain.Candidate, bool), tenantID string, by domain.Lookup) (domain.Candidate, bool) {
	if by.Email == "" && by.LinkedinURL == "" {
		return domain.Candidate{}, false
	}
	for _, id := range order {
		c, ok := get(id)
		if !ok || c.TenantID != tenantID {
			continue
		}
		if by.Email != "" && c.Email != by.Email {
			continue
		}
		if by.LinkedinURL != "" && c.LinkedinURL != by.LinkedinURL {
			continue
		}
		return c, true
	}
	return domain.Candidate{}, false
}

// tx is the staged view handed to WithIdentityLock callers.
type tx struct {
	s        *Store
	staged   map[string]domain.Candidate
	inserted []string
	held     map[string]*sync.Mutex
}

func (t *tx) view(id string) (domain.Candidate, bool) {
	if c, ok := t.staged[id]; ok {
		return clone(c), true
	}
	return t.s.lookup(id)
}

func (t *tx) FindCandidate(ctx context.Context, tenantID string, by domain.Lookup) (domain.Candidate, bool, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	order := append(append([]string(nil), t.s.order...), t.inserted...)
	c, ok := find(order, t.view, tenantID, by)
	return c, ok, nil
}

func (t *tx) GetCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	c, ok := t.view(id)
	if !ok || c.TenantID != tenantID {
		return domain.Candidate{}, domain.ErrNotFound
	}
	return c, nil
}

func (t *tx) InsertCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	c, err := t.s.prepareInsert(c)
	if err != nil {
		return domain.Candidate{}, err
	}
	t.staged[c.ID] = clone(c)
	t.inserted = append(t.inserted, c.ID)
	return c, nil
}

func (t *tx) UpdateCandidate(ctx context.Context, tenantID, id string, rec domain.Record) (domain.Candidate, error) {
	c, err := t.LockCandidate(ctx, tenantID, id)
	if err != nil {
		return domain.Candidate{}, err
	}
	if err := t.s.apply(&c, tenantID, id, rec); err != nil {
		return domain.Candidate{}, err
	}
	t.staged[id] = clone(c)
	return c, nil
}

func (t *tx) LockCandidate(ctx context.Context, tenantID, id string) (domain.Candidate, error) {
	key := rowKey(tenantID, id)
	if _, ok := t.held[key]; !ok {
		mu := t.s.mutex(key)
		mu.Lock()
		t.held[key] = mu
	}
	return t.GetCandidate(ctx, tenantID, id)
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, c := range t.staged {
		t.s.candidates[id] = c
	}
	t.s.order = append(t.s.order, t.inserted...)
}

func (t *tx) release() {
	for _, mu := range t.held {
		mu.Unlock()
	}
}

// Candidates returns every stored candidate for tenantID in insertion order.
func (s *Store) Candidates(tenantID string) []domain.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Candidate
	for _, id := range s.order {
		if c := s.candidates[id]; c.TenantID == tenantID {
			out = append(out, clone(c))
		}
	}
	return out
}

func clone(c domain.Candidate) domain.Candidate {
	b, err := json.Marshal(c)
	if err != nil {
		return c
	}
	var out domain.Candidate
	if err := json.Unmarshal(b, &out); err != nil {
		return c
	}
	return out
}
