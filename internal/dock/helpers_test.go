package dock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore is an in-memory Store that applies patches like the real backends.
type memStore struct {
	mu      sync.Mutex
	deals   map[string]model.Deal
	fail    map[string]error
	updates int
	lists   int
}

func newMemStore(deals ...model.Deal) *memStore {
	s := &memStore{deals: make(map[string]model.Deal), fail: make(map[string]error)}
	for _, d := range deals {
		s.deals[d.ID] = d
	}
	return s
}

func (s *memStore) List(context.Context) ([]model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	out := make([]model.Deal, 0, len(s.deals))
	for _, d := range s.deals {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (s *memStore) Update(_ context.Context, id string, patch model.DealPatch) (*model.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[id]; err != nil {
		return nil, err
	}
	d, ok := s.deals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(&d)
	s.deals[id] = d
	s.updates++
	return &d, nil
}

func (s *memStore) put(d model.Deal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals[d.ID] = d
}

func (s *memStore) phase(id string) model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deals[id].DockPhase
}

func (s *memStore) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// mockStore is a testify mock of Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) List(ctx context.Context) ([]model.Deal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Deal), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (*model.Deal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, id string, patch model.DealPatch) (*model.Deal, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func readyDeal(id string, phase model.Phase) model.Deal {
	return model.Deal{
		ID:            id,
		Source:        "crm",
		Amount:        model.Ptr(1000.0),
		Client:        "Acme",
		ProjectNumber: "P-" + id,
		KVNumbers:     []string{"KV-" + id},
		Rows:          []model.Row{{Name: "Alice", CS: 100, Konzept: 100, Pitch: 100}},
		List:          []model.Share{{Name: "Alice", Pct: 100, Money: 1000}},
		DockPhase:     phase,
	}
}

func incompleteDeal(id string, phase model.Phase) model.Deal {
	d := readyDeal(id, phase)
	d.Client = ""
	return d
}

func phasePtr(p model.Phase) *model.Phase { return &p }
