// Package cartmux routes cart operations to whichever backend is
// authoritative for the current session: the remote cart service when
// a bearer token is present, the local guest store otherwise.
package cartmux

import (
	"context"

	"github.com/rynott/cartcore/internal/core/domain"
	"github.com/rynott/cartcore/internal/core/port"
)

var _ port.CartBackend = (*Mux)(nil)

type Mux struct {
	remote port.CartBackend
	guest  port.CartBackend
	auth   port.AuthProvider
}

func New(remote, guest port.CartBackend, auth port.AuthProvider) *Mux {
	return &Mux{remote: remote, guest: guest, auth: auth}
}

// backend re-reads the credentials per call so a login happening
// mid-session redirects every subsequent operation.
func (m *Mux) backend() port.CartBackend {
	if m.auth.Credentials().Authenticated() {
		return m.remote
	}
	return m.guest
}

func (m *Mux) Load(ctx context.Context) (domain.Cart, error) {
	return m.backend().Load(ctx)
}

func (m *Mux) Add(
	ctx context.Context, product domain.ProductSnapshot, quantity int,
) (domain.Cart, error) {
	return m.backend().Add(ctx, product, quantity)
}

func (m *Mux) Remove(
	ctx context.Context, productID string,
) (domain.Cart, error) {
	return m.backend().Remove(ctx, productID)
}

func (m *Mux) UpdateQuantity(
	ctx context.Context, productID string, quantity int,
) (domain.Cart, error) {
	return m.backend().UpdateQuantity(ctx, productID, quantity)
}

func (m *Mux) Clear(ctx context.Context) (domain.Cart, error) {
	return m.backend().Clear(ctx)
}
