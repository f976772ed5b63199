// Package service holds the cart store: the single source of truth the
// rest of the application reads cart state from. All mutations go
// through the injected persistence backend; state is replaced wholesale
// by each completed operation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rynott/cartcore/internal/core/domain"
	"github.com/rynott/cartcore/internal/core/port"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// State is an observable snapshot of the store. LastError is set only
// while Status is StatusError.
type State struct {
	Cart      domain.Cart
	Status    Status
	LastError error
}

type CartService struct {
	mu      sync.Mutex
	state   State
	backend port.CartBackend
}

func New(backend port.CartBackend) *CartService {
	return &CartService{
		state:   State{Status: StatusIdle},
		backend: backend,
	}
}

// Snapshot returns a copy of the current state; the items slice is
// cloned so callers cannot reach the store's own copy.
func (s *CartService) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	st.Cart.Items = slices.Clone(st.Cart.Items)
	return st
}

// CartCount is an alias of the cart's total item quantity.
func (s *CartService) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Cart.TotalItems
}

func (s *CartService) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Cart.IsEmpty()
}

// Load replaces the state from the currently authoritative backend.
func (s *CartService) Load(ctx context.Context) error {
	return s.mutate(func() (domain.Cart, error) {
		return s.backend.Load(ctx)
	})
}

// AddToCart resolves the product reference first and never contacts a
// backend when resolution fails. Quantities below 1 default to 1.
func (s *CartService) AddToCart(
	ctx context.Context, productLike any, quantity int,
) error {
	const op = "CartService.AddToCart"

	productID := domain.ResolveProductID(productLike)
	if productID == "" {
		err := fmt.Errorf("%s: %w", op, domain.ErrInvalidReference)
		s.fail(err)
		return err
	}
	if quantity < 1 {
		quantity = 1
	}

	snapshot := domain.SnapshotTo(productID, productLike)
	return s.mutate(func() (domain.Cart, error) {
		return s.backend.Add(ctx, snapshot, quantity)
	})
}

func (s *CartService) RemoveFromCart(
	ctx context.Context, productRef any,
) error {
	const op = "CartService.RemoveFromCart"

	productID := domain.ResolveProductID(productRef)
	if productID == "" {
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidReference)
	}

	return s.mutate(func() (domain.Cart, error) {
		return s.backend.Remove(ctx, productID)
	})
}

func (s *CartService) UpdateQuantity(
	ctx context.Context, productRef any, quantity int,
) error {
	const op = "CartService.UpdateQuantity"

	productID := domain.ResolveProductID(productRef)
	if productID == "" {
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidReference)
	}

	return s.mutate(func() (domain.Cart, error) {
		return s.backend.UpdateQuantity(ctx, productID, quantity)
	})
}

func (s *CartService) ClearCart(ctx context.Context) error {
	return s.mutate(func() (domain.Cart, error) {
		return s.backend.Clear(ctx)
	})
}

// WatchAuth subscribes the store to auth transitions; each one forces a
// fresh load from the newly authoritative backend, with no attempt to
// merge items across backends.
func (s *CartService) WatchAuth(
	ctx context.Context, watcher port.AuthWatcher,
) (unsubscribe func()) {
	const op = "CartService.WatchAuth"
	log := slog.With("op", op)

	return watcher.Subscribe(func(creds port.Credentials) {
		log.Debug("auth transition, reloading cart",
			"authenticated", creds.Authenticated())
		if err := s.Load(ctx); err != nil {
			log.Warn("cart reload after auth transition failed", "err", err)
		}
	})
}

// mutate runs one backend operation outside the lock and applies its
// outcome under it. Concurrent mutations are not serialized: whichever
// completes last wins, and a failed one leaves the previous items
// untouched.
func (s *CartService) mutate(fn func() (domain.Cart, error)) error {
	s.mu.Lock()
	s.state.Status = StatusLoading
	s.state.LastError = nil
	s.mu.Unlock()

	cart, err := fn()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state.Status = StatusError
		s.state.LastError = err
		return err
	}
	s.state.Cart = cart
	s.state.Status = StatusReady
	return nil
}

func (s *CartService) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Status = StatusError
	s.state.LastError = err
}
