package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shoes-cart/internal/core/domain"
	"github.com/rl1809/shoes-cart/internal/port"
)

// Mock StockQuery
type mockStock struct {
	mu    sync.Mutex
	stock map[int64]int
	err   error
	calls int
}

func newMockStock(stock map[int64]int) *mockStock {
	return &mockStock{stock: stock}
}

func (m *mockStock) GetStock(_ context.Context, productID int64) (domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return domain.Stock{}, m.err
	}
	available, ok := m.stock[productID]
	if !ok {
		return domain.Stock{}, domain.ErrProductNotFound
	}
	return domain.Stock{ProductID: productID, Available: available}, nil
}

func (m *mockStock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Mock ProductCatalog
type mockCatalog struct {
	products map[int64]domain.Product
	err      error
}

func (m *mockCatalog) GetProduct(_ context.Context, productID int64) (domain.Product, error) {
	if m.err != nil {
		return domain.Product{}, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Mock CartStorage
type mockStorage struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
	writes int
}

func newMockStorage() *mockStorage {
	return &mockStorage{values: make(map[string]string)}
}

func (m *mockStorage) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", port.ErrNotFound
	}
	return v, nil
}

func (m *mockStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	m.writes++
	return nil
}

func (m *mockStorage) record() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[DefaultStorageKey]
}

// Mock Notifier
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Notify(_ context.Context, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
}

func (m *mockNotifier) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

var (
	sneaker = domain.Product{ID: 1, Title: "Tênis de Caminhada Leve Confortável", Price: 179.9, Image: "https://img/1.jpg"}
	boot    = domain.Product{ID: 2, Title: "Bota Couro", Price: 239.9, Image: "https://img/2.jpg"}
	sandal  = domain.Product{ID: 3, Title: "Sandália", Price: 99.9, Image: "https://img/3.jpg"}
)

type fixture struct {
	stock    *mockStock
	catalog  *mockCatalog
	storage  *mockStorage
	notifier *mockNotifier
}

func newFixture() *fixture {
	return &fixture{
		stock: newMockStock(map[int64]int{1: 3, 2: 5, 3: 1}),
		catalog: &mockCatalog{products: map[int64]domain.Product{
			1: sneaker, 2: boot, 3: sandal,
		}},
		storage:  newMockStorage(),
		notifier: &mockNotifier{},
	}
}

func (f *fixture) service() *CartService {
	return NewCartService(context.Background(), f.stock, f.catalog, f.storage, f.notifier)
}

func (f *fixture) seed(t *testing.T, cart domain.Cart) {
	t.Helper()
	record, err := domain.EncodeCart(cart)
	require.NoError(t, err)
	f.storage.values[DefaultStorageKey] = record
}

func requireRecordMatches(t *testing.T, storage *mockStorage, cart domain.Cart) {
	t.Helper()
	stored, err := domain.DecodeCart(storage.record())
	require.NoError(t, err)
	assert.Equal(t, cart, stored)
}

func TestNewCartService_EmptyStorage(t *testing.T) {
	f := newFixture()
	svc := f.service()

	assert.Empty(t, svc.Cart())
	assert.Empty(t, f.notifier.all())
	assert.Zero(t, f.storage.writes)
}

func TestNewCartService_RestoresRecord(t *testing.T) {
	f := newFixture()
	saved := domain.Cart{
		{Product: boot, Amount: 2},
		{Product: sneaker, Amount: 1},
	}
	f.seed(t, saved)

	svc := f.service()
	assert.Equal(t, saved, svc.Cart())
	assert.Equal(t, 2, svc.ItemCount())
}

func TestNewCartService_UnreadableRecord(t *testing.T) {
	cases := map[string]func(f *fixture){
		"malformed json":  func(f *fixture) { f.storage.values[DefaultStorageKey] = `[{"id":1,` },
		"empty value":     func(f *fixture) { f.storage.values[DefaultStorageKey] = "" },
		"duplicate ids":   func(f *fixture) { f.storage.values[DefaultStorageKey] = `[{"id":1,"amount":1},{"id":1,"amount":2}]` },
		"storage failure": func(f *fixture) { f.storage.getErr = errors.New("disk gone") },
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			setup(f)

			svc := f.service()
			assert.Empty(t, svc.Cart())
			assert.Empty(t, f.notifier.all(), "bootstrap must not notify")
		})
	}
}

func TestNewCartService_CustomKey(t *testing.T) {
	f := newFixture()
	f.storage.values["other:cart"] = `[{"id":2,"title":"Bota Couro","amount":4}]`

	svc := NewCartService(context.Background(), f.stock, f.catalog, f.storage, f.notifier,
		WithStorageKey("other:cart"))
	require.Len(t, svc.Cart(), 1)
	assert.Equal(t, 4, svc.Cart()[0].Amount)
}

func TestAddProduct_UpToStock(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx := context.Background()

	res := svc.AddProduct(ctx, 1)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)
	assert.Equal(t, domain.Cart{{Product: sneaker, Amount: 1}}, svc.Cart())

	for i := 0; i < 2; i++ {
		require.True(t, svc.AddProduct(ctx, 1).OK())
	}
	assert.Equal(t, 3, svc.Cart()[0].Amount)
	assert.Empty(t, f.notifier.all())

	res = svc.AddProduct(ctx, 1)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, domain.MsgStockExceeded, res.Message)
	assert.ErrorIs(t, res.Err, domain.ErrStockExceeded)
	assert.Equal(t, 3, svc.Cart()[0].Amount)
	assert.Equal(t, []string{domain.MsgStockExceeded}, f.notifier.all())
	assert.Equal(t, 3, f.storage.writes)
	requireRecordMatches(t, f.storage, svc.Cart())
}

func TestAddProduct_AppendsInOrder(t *testing.T) {
	f := newFixture()
	svc := f.service()
	ctx := context.Background()

	require.True(t, svc.AddProduct(ctx, 2).OK())
	require.True(t, svc.AddProduct(ctx, 1).OK())
	require.True(t, svc.AddProduct(ctx, 2).OK())

	want := domain.Cart{
		{Product: boot, Amount: 2},
		{Product: sneaker, Amount: 1},
	}
	assert.Equal(t, want, svc.Cart())
	requireRecordMatches(t, f.storage, want)
}

func TestAddProduct_ZeroStock(t *testing.T) {
	f := newFixture()
	f.stock.stock[9] = 0
	svc := f.service()

	res := svc.AddProduct(context.Background(), 9)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Empty(t, svc.Cart())
	assert.Equal(t, []string{domain.MsgStockExceeded}, f.notifier.all())
}

func TestAddProduct_UnknownProduct(t *testing.T) {
	f := newFixture()
	f.stock.stock[42] = 10 // stock known, catalog is not
	svc := f.service()

	res := svc.AddProduct(context.Background(), 42)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Equal(t, domain.MsgAddFailed, res.Message)
	assert.ErrorIs(t, res.Err, domain.ErrProductNotFound)
	assert.Empty(t, svc.Cart())
	assert.Equal(t, []string{domain.MsgAddFailed}, f.notifier.all())
	assert.Zero(t, f.storage.writes)
}

func TestAddProduct_StockNotFound(t *testing.T) {
	f := newFixture()
	svc := f.service()

	res := svc.AddProduct(context.Background(), 77)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrProductNotFound)
	assert.Equal(t, []string{domain.MsgAddFailed}, f.notifier.all())
}

func TestAddProduct_StockQueryError(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{{Product: sneaker, Amount: 1}})
	f.stock.err = errors.New("connection refused")
	svc := f.service()

	res := svc.AddProduct(context.Background(), 1)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, svc.Cart()[0].Amount)
	assert.Equal(t, []string{domain.MsgAddFailed}, f.notifier.all())
}

func TestAddProduct_StorageFailureLeavesState(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{{Product: sneaker, Amount: 1}})
	svc := f.service()
	f.storage.setErr = errors.New("quota exceeded")

	res := svc.AddProduct(context.Background(), 1)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Equal(t, domain.MsgAddFailed, res.Message)
	assert.Equal(t, 1, svc.Cart()[0].Amount, "existing item must not be mutated in place")

	res = svc.AddProduct(context.Background(), 2)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Len(t, svc.Cart(), 1)
}

func TestRemoveProduct_Present(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{
		{Product: sneaker, Amount: 1},
		{Product: boot, Amount: 2},
		{Product: sandal, Amount: 1},
	})
	svc := f.service()

	res := svc.RemoveProduct(context.Background(), 2)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	want := domain.Cart{
		{Product: sneaker, Amount: 1},
		{Product: sandal, Amount: 1},
	}
	assert.Equal(t, want, svc.Cart())
	requireRecordMatches(t, f.storage, want)
	assert.Zero(t, f.stock.callCount(), "remove must not query stock")
	assert.Empty(t, f.notifier.all())
}

func TestRemoveProduct_Missing(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{{Product: sneaker, Amount: 1}})
	svc := f.service()

	res := svc.RemoveProduct(context.Background(), 2)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrItemNotFound)
	assert.Len(t, svc.Cart(), 1)
	assert.Equal(t, []string{domain.MsgRemoveFailed}, f.notifier.all())
	assert.Zero(t, f.storage.writes)
}

func TestRemoveProduct_StorageFailure(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{{Product: sneaker, Amount: 1}})
	svc := f.service()
	f.storage.setErr = errors.New("read-only")

	res := svc.RemoveProduct(context.Background(), 1)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Len(t, svc.Cart(), 1)
	assert.Equal(t, []string{domain.MsgRemoveFailed}, f.notifier.all())
}

func TestUpdateProductAmount_NonPositive(t *testing.T) {
	for _, amount := range []int{0, -1, -100} {
		f := newFixture()
		f.seed(t, domain.Cart{{Product: sneaker, Amount: 2}})
		svc := f.service()

		res := svc.UpdateProductAmount(context.Background(), 1, amount)
		assert.Equal(t, domain.OutcomeIgnored, res.Outcome)
		assert.Empty(t, res.Message)
		assert.Equal(t, 2, svc.Cart()[0].Amount)
		assert.Empty(t, f.notifier.all())
		assert.Zero(t, f.stock.callCount())
		assert.Zero(t, f.storage.writes)
	}
}

func TestUpdateProductAmount_WithinStock(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{
		{Product: sneaker, Amount: 1},
		{Product: boot, Amount: 1},
	})
	svc := f.service()

	res := svc.UpdateProductAmount(context.Background(), 2, 5)
	require.Equal(t, domain.OutcomeApplied, res.Outcome)

	want := domain.Cart{
		{Product: sneaker, Amount: 1},
		{Product: boot, Amount: 5},
	}
	assert.Equal(t, want, svc.Cart())
	requireRecordMatches(t, f.storage, want)
}

func TestUpdateProductAmount_ExceedsStock(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{{Product: sneaker, Amount: 1}})
	svc := f.service()

	res := svc.UpdateProductAmount(context.Background(), 1, 4)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, 1, svc.Cart()[0].Amount)
	assert.Equal(t, []string{domain.MsgStockExceeded}, f.notifier.all())
	assert.Zero(t, f.storage.writes)
}

func TestUpdateProductAmount_StockCheckedBeforeExistence(t *testing.T) {
	f := newFixture()
	svc := f.service()

	res := svc.UpdateProductAmount(context.Background(), 2, 50)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)
	assert.Equal(t, []string{domain.MsgStockExceeded}, f.notifier.all())
}

func TestUpdateProductAmount_Missing(t *testing.T) {
	f := newFixture()
	svc := f.service()

	res := svc.UpdateProductAmount(context.Background(), 2, 1)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrItemNotFound)
	assert.Equal(t, []string{domain.MsgUpdateFailed}, f.notifier.all())
}

func TestUpdateProductAmount_StockQueryError(t *testing.T) {
	f := newFixture()
	f.seed(t, domain.Cart{{Product: sneaker, Amount: 1}})
	f.stock.err = errors.New("503")
	svc := f.service()

	res := svc.UpdateProductAmount(context.Background(), 1, 2)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.Equal(t, []string{domain.MsgUpdateFailed}, f.notifier.all())
}

func TestSubscribe_CommittedOnly(t *testing.T) {
	f := newFixture()
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	svc := NewCartService(context.Background(), f.stock, f.catalog, f.storage, f.notifier,
		WithClock(func() time.Time { return at }))
	ctx := context.Background()

	var events []domain.Event
	unsubscribe := svc.Subscribe(func(e domain.Event) { events = append(events, e) })

	svc.AddProduct(ctx, 3)
	svc.AddProduct(ctx, 3)    // rejected, stock 1
	svc.RemoveProduct(ctx, 1) // failed, not in cart
	svc.UpdateProductAmount(ctx, 3, 0)
	svc.RemoveProduct(ctx, 3)

	require.Len(t, events, 2)
	assert.Equal(t, domain.OpAdd, events[0].Op)
	assert.Equal(t, domain.Cart{{Product: sandal, Amount: 1}}, events[0].Cart)
	assert.Equal(t, domain.OpRemove, events[1].Op)
	assert.Empty(t, events[1].Cart)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	for _, e := range events {
		_, err := uuid.Parse(e.ID)
		assert.NoError(t, err, "event id %q", e.ID)
		assert.Equal(t, int64(3), e.ProductID)
		assert.Equal(t, at, e.At)
	}

	unsubscribe()
	svc.AddProduct(ctx, 3)
	assert.Len(t, events, 2)
}

func TestAddProduct_ConcurrentNeverExceedsStock(t *testing.T) {
	f := newFixture()
	svc := f.service()

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.AddProduct(context.Background(), 2).OK() {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), applied.Load())
	assert.Equal(t, 5, svc.Cart()[0].Amount)
	assert.Len(t, f.notifier.all(), 15)
}
