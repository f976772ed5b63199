package restcart

import (
	"encoding/json"

	"github.com/rynott/cartcore/internal/core/domain"
)

// Wire shapes of the storefront cart API. Success envelopes are
// {data:{cart:{...}}}, except the add operation which may return the
// cart payload directly under data.
type (
	cartPayload struct {
		Items      []domain.CartItem `json:"items"`
		TotalItems int               `json:"totalItems"`
		TotalPrice float64           `json:"totalPrice"`
	}

	envelope struct {
		Data json.RawMessage `json:"data"`
	}

	errorPayload struct {
		Message string `json:"message"`
	}

	addRequest struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}

	updateRequest struct {
		Quantity int `json:"quantity"`
	}
)

// The server is authoritative for deduplication and totals; its
// payload is taken verbatim.
func (p cartPayload) toDomain() domain.Cart {
	items := p.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return domain.Cart{
		Items:      items,
		TotalItems: p.TotalItems,
		TotalPrice: p.TotalPrice,
	}
}

func decodeCart(body []byte) (cartPayload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return cartPayload{}, err
	}

	var wrapped struct {
		Cart *cartPayload `json:"cart"`
	}
	if err := json.Unmarshal(env.Data, &wrapped); err == nil && wrapped.Cart != nil {
		return *wrapped.Cart, nil
	}

	var flat cartPayload
	if err := json.Unmarshal(env.Data, &flat); err != nil {
		return cartPayload{}, err
	}
	return flat, nil
}
