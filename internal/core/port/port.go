package port

import (
	"context"

	"github.com/rynott/cartcore/internal/core/domain"
)

// CartBackend executes cart mutations against one persistence backend
// and returns the resulting canonical cart.
type CartBackend interface {
	Load(context.Context) (domain.Cart, error)
	Add(ctx context.Context, product domain.ProductSnapshot, quantity int) (domain.Cart, error)
	Remove(ctx context.Context, productID string) (domain.Cart, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Cart, error)
	Clear(context.Context) (domain.Cart, error)
}

// Credentials is the auth collaborator's externally owned state.
type Credentials struct {
	Token string
}

func (c Credentials) Authenticated() bool {
	return c.Token != ""
}

// AuthProvider reports the current session credentials. Re-read on
// every backend dispatch, never cached.
type AuthProvider interface {
	Credentials() Credentials
}

// AuthWatcher notifies subscribers whenever the session credentials
// change; the cart store reloads from the newly authoritative backend
// on every notification.
type AuthWatcher interface {
	AuthProvider
	Subscribe(func(Credentials)) (unsubscribe func())
}
