package domain

import "encoding/json"

type (
	ProductSnapshot struct {
		ID     string         `json:"_id"`
		Name   string         `json:"name,omitempty"`
		Price  float64        `json:"price,omitempty"`
		Images []ProductImage `json:"images,omitempty"`
	}

	ProductImage struct {
		URL string `json:"url"`
	}

	CartItem struct {
		Product  ProductSnapshot `json:"product"`
		Quantity int             `json:"quantity"`
		Price    float64         `json:"price,omitempty"`
	}

	Cart struct {
		Items      []CartItem
		TotalItems int
		TotalPrice float64
	}
)

// UnmarshalJSON tolerates legacy records where the product field is a
// bare id string instead of an object, and records carrying "id"
// instead of "_id".
func (p *ProductSnapshot) UnmarshalJSON(b []byte) error {
	var bare string
	if err := json.Unmarshal(b, &bare); err == nil {
		*p = ProductSnapshot{ID: NormalizeID(bare)}
		return nil
	}

	var aux struct {
		ID     any            `json:"_id"`
		AltID  any            `json:"id"`
		Name   string         `json:"name"`
		Price  float64        `json:"price"`
		Images []ProductImage `json:"images"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	id := NormalizeID(aux.ID)
	if id == "" {
		id = NormalizeID(aux.AltID)
	}

	*p = ProductSnapshot{
		ID:     id,
		Name:   aux.Name,
		Price:  aux.Price,
		Images: aux.Images,
	}
	return nil
}

// UnitPrice prefers the nested product price over the item-level one.
func (item CartItem) UnitPrice() float64 {
	if item.Product.Price != 0 {
		return item.Product.Price
	}
	return item.Price
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// NewCart recomputes totals from the items, never trusting stored ones.
func NewCart(items []CartItem) Cart {
	totalItems, totalPrice := ComputeTotals(items)
	return Cart{Items: items, TotalItems: totalItems, TotalPrice: totalPrice}
}

func ComputeTotals(items []CartItem) (totalItems int, totalPrice float64) {
	for _, item := range items {
		totalItems += item.Quantity
		totalPrice += item.UnitPrice() * float64(item.Quantity)
	}
	return totalItems, totalPrice
}
