package manifest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists run history
// ⭐ SSOT: 실행 이력 저장은 이 인터페이스를 통해서만
type Store interface {
	// Save upserts by (run_date, product); the first ID of a day-product is kept
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, date time.Time, product string) (*Record, error)
	// List returns runs with from <= run_date <= to, ordered by date then product
	List(ctx context.Context, from, to time.Time) ([]*Record, error)
	Recent(ctx context.Context, limit int) ([]*Record, error)
}

type memKey struct {
	date    string
	product string
}

// MemoryStore keeps run history in process (no DATABASE_URL, tests)
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[memKey]*Record
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[memKey]*Record)}
}

func keyOf(date time.Time, product string) memKey {
	return memKey{date: date.Format("2006-01-02"), product: product}
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(r.RunDate, r.Product)
	if old, ok := s.runs[k]; ok {
		r.ID = old.ID
	}
	cp := *r
	s.runs[k] = &cp
	return nil
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, date time.Time, product string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[keyOf(date, product)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// List implements Store
func (s *MemoryStore) List(_ context.Context, from, to time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []*Record
	for k, r := range s.runs {
		if k.date < lo || k.date > hi {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RunDate.Equal(out[j].RunDate) {
			return out[i].RunDate.Before(out[j].RunDate)
		}
		return out[i].Product < out[j].Product
	})
	return out, nil
}

// Recent implements Store, newest start first
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	out := make([]*Record, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
