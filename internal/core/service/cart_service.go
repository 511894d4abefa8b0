package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/shoes-cart/internal/core/domain"
	"github.com/rl1809/shoes-cart/internal/port"
)

const DefaultStorageKey = "@shoes-cart:cart"

type Option func(*CartService)

func WithStorageKey(key string) Option {
	return func(s *CartService) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *CartService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *CartService) {
		if now != nil {
			s.now = now
		}
	}
}

type subscriber struct {
	id int
	fn func(domain.Event)
}

// CartService owns the cart. Every successful mutation writes the whole cart
// to storage before the in-memory state is replaced; failed operations leave
// both untouched and emit exactly one notification.
type CartService struct {
	stock    port.StockQuery
	catalog  port.ProductCatalog
	storage  port.CartStorage
	notifier port.Notifier
	key      string
	logger   *slog.Logger
	now      func() time.Time

	// opMu is held for a whole mutation, stock query included.
	opMu sync.Mutex

	mu        sync.RWMutex
	cart      domain.Cart
	subs      []subscriber
	nextSubID int
}

func NewCartService(
	ctx context.Context,
	stock port.StockQuery,
	catalog port.ProductCatalog,
	storage port.CartStorage,
	notifier port.Notifier,
	opts ...Option,
) *CartService {
	s := &CartService{
		stock:    stock,
		catalog:  catalog,
		storage:  storage,
		notifier: notifier,
		key:      DefaultStorageKey,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cart = s.load(ctx)
	return s
}

// load never fails: anything but a valid record degrades to an empty cart.
func (s *CartService) load(ctx context.Context) domain.Cart {
	record, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, port.ErrNotFound) || (err == nil && record == "") {
		return domain.Cart{}
	}
	if err != nil {
		s.logger.Warn("cart record unreadable, starting empty", "key", s.key, "error", err)
		return domain.Cart{}
	}

	cart, err := domain.DecodeCart(record)
	if err != nil {
		s.logger.Warn("cart record invalid, starting empty", "key", s.key, "error", err)
		return domain.Cart{}
	}

	s.logger.Debug("cart restored", "key", s.key, "items", len(cart))
	return cart
}

// Cart returns a copy of the current cart.
func (s *CartService) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// ItemCount returns the number of distinct products in the cart.
func (s *CartService) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cart)
}

// Subscribe registers fn to receive an Event after every committed mutation.
// fn runs synchronously on the mutating goroutine and must not call back into
// AddProduct, RemoveProduct or UpdateProductAmount.
func (s *CartService) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

func (s *CartService) AddProduct(ctx context.Context, productID int64) domain.Result {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cart := s.Cart()
	idx := cart.IndexOf(productID)

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return s.fail(ctx, domain.MsgAddFailed, productID, fmt.Errorf("get stock: %w", err))
	}

	current := 0
	if idx >= 0 {
		current = cart[idx].Amount
	}
	requested := current + 1

	if requested > stock.Available {
		return s.reject(ctx, productID, requested, stock.Available)
	}

	if idx >= 0 {
		cart[idx].Amount = requested
	} else {
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return s.fail(ctx, domain.MsgAddFailed, productID, fmt.Errorf("get product: %w", err))
		}
		product.ID = productID
		cart = append(cart, domain.CartItem{Product: product, Amount: 1})
	}

	if err := s.commit(ctx, domain.OpAdd, productID, cart); err != nil {
		return s.fail(ctx, domain.MsgAddFailed, productID, err)
	}
	return domain.Result{Outcome: domain.OutcomeApplied}
}

func (s *CartService) RemoveProduct(ctx context.Context, productID int64) domain.Result {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cart := s.Cart()
	idx := cart.IndexOf(productID)
	if idx < 0 {
		return s.fail(ctx, domain.MsgRemoveFailed, productID, domain.ErrItemNotFound)
	}

	if err := s.commit(ctx, domain.OpRemove, productID, cart.Without(idx)); err != nil {
		return s.fail(ctx, domain.MsgRemoveFailed, productID, err)
	}
	return domain.Result{Outcome: domain.OutcomeApplied}
}

// UpdateProductAmount sets the amount of an item already in the cart.
// Non-positive amounts are ignored without touching stock or storage.
func (s *CartService) UpdateProductAmount(ctx context.Context, productID int64, amount int) domain.Result {
	if amount <= 0 {
		return domain.Result{Outcome: domain.OutcomeIgnored}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return s.fail(ctx, domain.MsgUpdateFailed, productID, fmt.Errorf("get stock: %w", err))
	}

	// Stock is checked before existence: a missing item with an excessive
	// amount reports the stock rejection.
	if amount > stock.Available {
		return s.reject(ctx, productID, amount, stock.Available)
	}

	cart := s.Cart()
	idx := cart.IndexOf(productID)
	if idx < 0 {
		return s.fail(ctx, domain.MsgUpdateFailed, productID, domain.ErrItemNotFound)
	}
	cart[idx].Amount = amount

	if err := s.commit(ctx, domain.OpUpdate, productID, cart); err != nil {
		return s.fail(ctx, domain.MsgUpdateFailed, productID, err)
	}
	return domain.Result{Outcome: domain.OutcomeApplied}
}

func (s *CartService) commit(ctx context.Context, op domain.Op, productID int64, cart domain.Cart) error {
	record, err := domain.EncodeCart(cart)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.key, record); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	s.mu.Lock()
	s.cart = cart
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	s.logger.Debug("cart committed", "op", op, "product_id", productID, "items", len(cart))

	event := domain.Event{
		ID:        uuid.NewString(),
		Op:        op,
		ProductID: productID,
		At:        s.now(),
	}
	for _, sub := range subs {
		event.Cart = cart.Clone()
		sub.fn(event)
	}
	return nil
}

func (s *CartService) reject(ctx context.Context, productID int64, requested, available int) domain.Result {
	s.logger.Info("cart change rejected",
		"product_id", productID, "requested", requested, "available", available)
	s.notifier.Notify(ctx, domain.MsgStockExceeded)

	return domain.Result{
		Outcome: domain.OutcomeRejected,
		Message: domain.MsgStockExceeded,
		Err:     fmt.Errorf("%w: requested %d, available %d", domain.ErrStockExceeded, requested, available),
	}
}

func (s *CartService) fail(ctx context.Context, msg string, productID int64, err error) domain.Result {
	s.logger.Warn("cart change failed", "product_id", productID, "error", err)
	s.notifier.Notify(ctx, msg)

	return domain.Result{Outcome: domain.OutcomeFailed, Message: msg, Err: err}
}
