package application

import (
	"context"
	"sync"
	"testing"

	"demoshop/internal/pkg/apperr"
	"demoshop/internal/service/inventory/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepository 在内存里复刻带版本检查的写回语义，
// 足以驱动并发竞争场景。
type memoryRepository struct {
	mu      sync.Mutex
	records map[string]*domain.Record // productID -> record

	updateCounterCalls int
	failFindWith       error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: make(map[string]*domain.Record)}
}

func (m *memoryRepository) seed(record *domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.records[record.ProductID] = &copied
}

func (m *memoryRepository) get(productID string) *domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.records[productID]
	return &copied
}

func (m *memoryRepository) List(context.Context) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Record
	for _, r := range m.records {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryRepository) FindByID(_ context.Context, id string) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryRepository) FindByProductID(_ context.Context, productID string) (*domain.Record, error) {
	if m.failFindWith != nil {
		return nil, m.failFindWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *memoryRepository) FindByProductIDs(_ context.Context, productIDs []string) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Record
	for _, id := range productIDs {
		if r, ok := m.records[id]; ok {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryRepository) Create(_ context.Context, record *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ProductID]; ok {
		return apperr.New(apperr.Conflict, "inventory record already exists")
	}
	copied := *record
	m.records[record.ProductID] = &copied
	return nil
}

func (m *memoryRepository) Update(_ context.Context, record *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[record.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Quantity = record.Quantity
	stored.ReservedQuantity = record.ReservedQuantity
	return nil
}

func (m *memoryRepository) UpdateCounters(_ context.Context, record *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCounterCalls++
	stored, ok := m.records[record.ProductID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != record.Version {
		return apperr.Newf(apperr.Conflict, "stale version %d", record.Version)
	}
	stored.Quantity = record.Quantity
	stored.ReservedQuantity = record.ReservedQuantity
	stored.Version++
	record.Version++
	return nil
}

func (m *memoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid, r := range m.records {
		if r.ID == id {
			delete(m.records, pid)
			return nil
		}
	}
	return domain.ErrNotFound
}

func TestGetQuantity(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(&domain.Record{ID: "inv-1", ProductID: "p1", Quantity: 10, ReservedQuantity: 4})
	svc := NewService(repo, 3)

	qty, err := svc.GetQuantity(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, qty.Quantity)
	assert.Equal(t, 6, qty.Available)

	_, err = svc.GetQuantity(context.Background(), "unknown")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestGetQuantities_OmitsMissingProducts(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(&domain.Record{ID: "inv-1", ProductID: "p1", Quantity: 10})
	repo.seed(&domain.Record{ID: "inv-2", ProductID: "p2", Quantity: 3, ReservedQuantity: 1})
	svc := NewService(repo, 3)

	result, err := svc.GetQuantities(context.Background(), []string{"p1", "missing", "p2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 10, "p2": 2}, result)
	_, present := result["missing"]
	assert.False(t, present)
}

func TestConsume_UpdatesCounters(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(&domain.Record{ID: "inv-1", ProductID: "p1", Quantity: 5})
	svc := NewService(repo, 3)

	require.NoError(t, svc.Consume(context.Background(), "p1", 3))
	assert.Equal(t, 2, repo.get("p1").Quantity)
}

func TestConsume_InsufficientStock(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(&domain.Record{ID: "inv-1", ProductID: "p1", Quantity: 2})
	svc := NewService(repo, 3)

	err := svc.Consume(context.Background(), "p1", 3)
	assert.True(t, apperr.Is(err, apperr.InsufficientStock))
	assert.Equal(t, 2, repo.get("p1").Quantity)
}

// 两个并发的 Consume(3) 抢 5 个库存，版本检查保证只有一个成功，
// 另一个重读后因库存不足被拒绝，绝不会扣成负数。
func TestConsume_ConcurrentNeverOversells(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(&domain.Record{ID: "inv-1", ProductID: "p1", Quantity: 5})
	svc := NewService(repo, 5)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Consume(context.Background(), "p1", 3)
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case apperr.Is(err, apperr.InsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 2, repo.get("p1").Quantity)
}

func TestMutate_RetriesOnConflictThenGivesUp(t *testing.T) {
	repo := newMemoryRepository()
	repo.seed(&domain.Record{ID: "inv-1", ProductID: "p1", Quantity: 10, Version: 7})
	// 每次写回前偷偷推进版本，制造持续冲突
	svc := NewService(&alwaysConflictRepo{memoryRepository: repo}, 3)

	err := svc.Consume(context.Background(), "p1", 1)
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

type alwaysConflictRepo struct {
	*memoryRepository
}

func (r *alwaysConflictRepo) UpdateCounters(_ context.Context, record *domain.Record) error {
	return apperr.Newf(apperr.Conflict, "stale version %d", record.Version)
}

func TestCreate_RejectsReservedAboveQuantity(t *testing.T) {
	svc := NewService(newMemoryRepository(), 3)

	_, err := svc.Create(context.Background(), "p1", 5, 6)
	assert.True(t, apperr.Is(err, apperr.InvalidState))

	_, err = svc.Create(context.Background(), "p1", -1, 0)
	assert.Error(t, err)
}

func TestCreate_AssignsID(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, 3)

	record, err := svc.Create(context.Background(), "p1", 5, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, 5, repo.get("p1").Quantity)
	assert.Equal(t, 2, repo.get("p1").ReservedQuantity)
}
