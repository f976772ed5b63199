package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rynott/cartcore/internal/adapter/cartmux"
	"github.com/rynott/cartcore/internal/adapter/guestcart"
	"github.com/rynott/cartcore/internal/core/domain"
	"github.com/rynott/cartcore/internal/core/port"
	"github.com/rynott/cartcore/internal/core/service"
)

type fakeBackend struct {
	loadFn   func(context.Context) (domain.Cart, error)
	addFn    func(context.Context, domain.ProductSnapshot, int) (domain.Cart, error)
	removeFn func(context.Context, string) (domain.Cart, error)
	updateFn func(context.Context, string, int) (domain.Cart, error)
	clearFn  func(context.Context) (domain.Cart, error)

	contacted atomic.Bool
}

func (b *fakeBackend) Load(ctx context.Context) (domain.Cart, error) {
	b.contacted.Store(true)
	if b.loadFn == nil {
		return domain.Cart{}, nil
	}
	return b.loadFn(ctx)
}

func (b *fakeBackend) Add(
	ctx context.Context, p domain.ProductSnapshot, qty int,
) (domain.Cart, error) {
	b.contacted.Store(true)
	if b.addFn == nil {
		return domain.Cart{}, nil
	}
	return b.addFn(ctx, p, qty)
}

func (b *fakeBackend) Remove(
	ctx context.Context, id string,
) (domain.Cart, error) {
	b.contacted.Store(true)
	if b.removeFn == nil {
		return domain.Cart{}, nil
	}
	return b.removeFn(ctx, id)
}

func (b *fakeBackend) UpdateQuantity(
	ctx context.Context, id string, qty int,
) (domain.Cart, error) {
	b.contacted.Store(true)
	if b.updateFn == nil {
		return domain.Cart{}, nil
	}
	return b.updateFn(ctx, id, qty)
}

func (b *fakeBackend) Clear(ctx context.Context) (domain.Cart, error) {
	b.contacted.Store(true)
	if b.clearFn == nil {
		return domain.Cart{}, nil
	}
	return b.clearFn(ctx)
}

type fakeAuth struct {
	mu    sync.Mutex
	token string
	subs  []func(port.Credentials)
}

func (a *fakeAuth) Credentials() port.Credentials {
	a.mu.Lock()
	defer a.mu.Unlock()
	return port.Credentials{Token: a.token}
}

func (a *fakeAuth) Subscribe(fn func(port.Credentials)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
	return func() {}
}

func (a *fakeAuth) setToken(token string) {
	a.mu.Lock()
	a.token = token
	subs := append([]func(port.Credentials){}, a.subs...)
	a.mu.Unlock()

	for _, fn := range subs {
		fn(port.Credentials{Token: token})
	}
}

func cartOf(id string, qty int, price float64) domain.Cart {
	return domain.NewCart([]domain.CartItem{{
		Product:  domain.ProductSnapshot{ID: id, Price: price},
		Quantity: qty,
	}})
}

func newGuestService(t *testing.T) *service.CartService {
	t.Helper()
	guest, err := guestcart.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(guest.Close)
	return service.New(guest)
}

func TestAddToCart(t *testing.T) {
	t.Run("InvalidReferenceNeverContactsBackend", func(t *testing.T) {
		backend := &fakeBackend{}
		svc := service.New(backend)

		err := svc.AddToCart(t.Context(), map[string]any{}, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidReference)
		assert.False(t, backend.contacted.Load())

		st := svc.Snapshot()
		assert.Equal(t, service.StatusError, st.Status)
		assert.ErrorIs(t, st.LastError, domain.ErrInvalidReference)
	})

	t.Run("DeduplicatesAcrossHeterogeneousShapes", func(t *testing.T) {
		svc := newGuestService(t)

		payload := map[string]any{"_id": "P1", "name": "Mug", "price": 10.0}
		require.NoError(t, svc.AddToCart(t.Context(), payload, 1))

		wrapped := map[string]any{"product": map[string]any{"_id": "P1"}}
		require.NoError(t, svc.AddToCart(t.Context(), wrapped, 2))

		require.NoError(t, svc.AddToCart(t.Context(), "P1", 1))

		st := svc.Snapshot()
		require.Len(t, st.Cart.Items, 1)
		assert.Equal(t, 4, st.Cart.Items[0].Quantity)
		assert.Equal(t, 4, svc.CartCount())
		assert.Equal(t, 40.0, st.Cart.TotalPrice)
	})

	t.Run("QuantityBelowOneDefaultsToOne", func(t *testing.T) {
		svc := newGuestService(t)

		require.NoError(t, svc.AddToCart(t.Context(), "P1", 0))
		assert.Equal(t, 1, svc.CartCount())
	})
}

func TestMutationStateMachine(t *testing.T) {
	t.Run("StartsIdle", func(t *testing.T) {
		svc := service.New(&fakeBackend{})
		assert.Equal(t, service.StatusIdle, svc.Snapshot().Status)
		assert.True(t, svc.IsEmpty())
	})

	t.Run("SuccessEndsReady", func(t *testing.T) {
		backend := &fakeBackend{
			loadFn: func(context.Context) (domain.Cart, error) {
				return cartOf("P1", 2, 10), nil
			},
		}
		svc := service.New(backend)

		require.NoError(t, svc.Load(t.Context()))
		st := svc.Snapshot()
		assert.Equal(t, service.StatusReady, st.Status)
		assert.NoError(t, st.LastError)
		assert.Equal(t, 2, st.Cart.TotalItems)
	})

	t.Run("FailurePreservesPriorItems", func(t *testing.T) {
		backendErr := errors.New("boom")
		backend := &fakeBackend{
			loadFn: func(context.Context) (domain.Cart, error) {
				return cartOf("P1", 2, 10), nil
			},
			addFn: func(context.Context, domain.ProductSnapshot, int) (domain.Cart, error) {
				return domain.Cart{}, backendErr
			},
		}
		svc := service.New(backend)
		require.NoError(t, svc.Load(t.Context()))

		err := svc.AddToCart(t.Context(), "P2", 1)
		require.Error(t, err)

		st := svc.Snapshot()
		assert.Equal(t, service.StatusError, st.Status)
		assert.ErrorIs(t, st.LastError, backendErr)
		require.Len(t, st.Cart.Items, 1)
		assert.Equal(t, "P1", st.Cart.Items[0].Product.ID)
	})

	t.Run("RemoveAndUpdateRejectInvalidReference", func(t *testing.T) {
		backend := &fakeBackend{}
		svc := service.New(backend)

		assert.ErrorIs(t,
			svc.RemoveFromCart(t.Context(), nil), domain.ErrInvalidReference)
		assert.ErrorIs(t,
			svc.UpdateQuantity(t.Context(), map[string]any{}, 2),
			domain.ErrInvalidReference)
		assert.False(t, backend.contacted.Load())
	})
}

func TestGuestPathScenario(t *testing.T) {
	svc := newGuestService(t)

	require.NoError(t, svc.AddToCart(t.Context(),
		map[string]any{"_id": "P1", "price": 10.0}, 1))
	require.NoError(t, svc.AddToCart(t.Context(),
		map[string]any{"_id": "P1", "price": 10.0}, 2))

	st := svc.Snapshot()
	require.Len(t, st.Cart.Items, 1)
	assert.Equal(t, 3, st.Cart.Items[0].Quantity)
	assert.Equal(t, 30.0, st.Cart.TotalPrice)

	require.NoError(t, svc.UpdateQuantity(t.Context(), "P1", 1))
	st = svc.Snapshot()
	assert.Equal(t, 1, st.Cart.Items[0].Quantity)
	assert.Equal(t, 10.0, st.Cart.TotalPrice)

	require.NoError(t, svc.RemoveFromCart(t.Context(), "P1"))
	assert.True(t, svc.IsEmpty())

	require.NoError(t, svc.ClearCart(t.Context()))
	require.NoError(t, svc.Load(t.Context()))
	st = svc.Snapshot()
	assert.Empty(t, st.Cart.Items)
	assert.Zero(t, st.Cart.TotalItems)
	assert.Zero(t, st.Cart.TotalPrice)
	assert.Equal(t, service.StatusReady, st.Status)
}

func TestUpdateQuantityNotFound(t *testing.T) {
	svc := newGuestService(t)
	require.NoError(t, svc.AddToCart(t.Context(), "P1", 1))

	err := svc.UpdateQuantity(t.Context(), "missing", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuthTransitionReloads(t *testing.T) {
	t.Run("LoginDiscardsGuestViewWithoutMerge", func(t *testing.T) {
		guest, err := guestcart.OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(guest.Close)

		remote := &fakeBackend{
			loadFn: func(context.Context) (domain.Cart, error) {
				return cartOf("S1", 2, 25), nil
			},
		}
		auth := &fakeAuth{}
		svc := service.New(cartmux.New(remote, guest, auth))
		unsubscribe := svc.WatchAuth(t.Context(), auth)
		defer unsubscribe()

		require.NoError(t, svc.AddToCart(t.Context(),
			map[string]any{"_id": "P1", "price": 10.0}, 1))
		require.Equal(t, 1, svc.CartCount())

		auth.setToken("tok")

		st := svc.Snapshot()
		require.Len(t, st.Cart.Items, 1)
		assert.Equal(t, "S1", st.Cart.Items[0].Product.ID)
		assert.Equal(t, 2, st.Cart.TotalItems)
		assert.Equal(t, 50.0, st.Cart.TotalPrice)

		// guest durable record outlives the session untouched
		guestCart, err := guest.Load(t.Context())
		require.NoError(t, err)
		require.Len(t, guestCart.Items, 1)
		assert.Equal(t, "P1", guestCart.Items[0].Product.ID)
	})

	t.Run("LogoutReturnsToGuestCart", func(t *testing.T) {
		guest, err := guestcart.OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(guest.Close)

		_, err = guest.Add(t.Context(),
			domain.ProductSnapshot{ID: "P1", Price: 10}, 1)
		require.NoError(t, err)

		remote := &fakeBackend{
			loadFn: func(context.Context) (domain.Cart, error) {
				return cartOf("S1", 1, 5), nil
			},
		}
		auth := &fakeAuth{token: "tok"}
		svc := service.New(cartmux.New(remote, guest, auth))
		unsubscribe := svc.WatchAuth(t.Context(), auth)
		defer unsubscribe()

		require.NoError(t, svc.Load(t.Context()))
		require.Equal(t, 1, svc.CartCount())

		auth.setToken("")

		st := svc.Snapshot()
		require.Len(t, st.Cart.Items, 1)
		assert.Equal(t, "P1", st.Cart.Items[0].Product.ID)
	})
}

func TestLastWriterWinsOnCompletionOrder(t *testing.T) {
	gates := map[string]chan struct{}{
		"A": make(chan struct{}),
		"B": make(chan struct{}),
	}
	backend := &fakeBackend{
		addFn: func(_ context.Context, p domain.ProductSnapshot, qty int) (domain.Cart, error) {
			<-gates[p.ID]
			return cartOf(p.ID, qty, 1), nil
		},
	}
	svc := service.New(backend)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = svc.AddToCart(context.Background(), "A", 1)
	}()
	go func() {
		defer wg.Done()
		_ = svc.AddToCart(context.Background(), "B", 1)
	}()

	// B completes first, then A; A's snapshot must win
	close(gates["B"])
	require.Eventually(t, func() bool {
		st := svc.Snapshot()
		return len(st.Cart.Items) == 1 && st.Cart.Items[0].Product.ID == "B"
	}, time.Second, 2*time.Millisecond)

	close(gates["A"])
	wg.Wait()

	st := svc.Snapshot()
	require.Len(t, st.Cart.Items, 1)
	assert.Equal(t, "A", st.Cart.Items[0].Product.ID)
}
