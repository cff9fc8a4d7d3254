package mirror

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps FundData in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*FundData
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*FundData), now: time.Now}
}

func (s *MemoryStore) ListPools(context.Context) ([]FundData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FundData, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BondingCurvePool < out[j].BondingCurvePool })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, pool string) (*FundData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[pool]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) Upsert(_ context.Context, data FundData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[data.BondingCurvePool]; ok {
		if data.BaseMint != "" {
			r.BaseMint = data.BaseMint
		}
		r.UpdatedAt = s.now()
		return nil
	}
	if data.State == "" {
		data.State = StateTrading
	}
	data.UpdatedAt = s.now()
	s.records[data.BondingCurvePool] = &data
	return nil
}

func (s *MemoryStore) SaveProgress(_ context.Context, pool string, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[pool]
	if !ok {
		return ErrNotFound
	}
	if r.Settled() {
		return nil
	}
	p.Apply(r)
	r.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetMigrated(_ context.Context, pool, dammV2Pool string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[pool]
	if !ok {
		return false, ErrNotFound
	}
	if r.Settled() {
		return false, nil
	}
	at = at.UTC()
	r.DammV2Pool = dammV2Pool
	r.MigratedAt = &at
	r.State = StateSettled
	r.LastError = ""
	r.NextAttemptAt = nil
	r.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }
