package domain

import "errors"

var (
	// ErrInvalidReference rejects operations whose product reference
	// resolves to no identifier; raised before any backend contact.
	ErrInvalidReference = errors.New("invalid product reference")

	// ErrNotFound reports a mutation targeting a product id absent
	// from the current item list.
	ErrNotFound = errors.New("cart item not found")

	// ErrNetwork reports a remote call that completed with no HTTP
	// response at all.
	ErrNetwork = errors.New("network error")

	// ErrBackend reports a non-2xx response; the server message is
	// wrapped alongside it.
	ErrBackend = errors.New("cart backend error")
)
