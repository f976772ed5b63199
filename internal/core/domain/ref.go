package domain

import (
	"fmt"
	"strconv"
)

// The storefront passes product references in several shapes: a bare id,
// a product object, a {product: {...}} wrapper, or a whole cart item.
// All comparisons and lookups go through the single normalized string
// form produced here.

// NormalizeID stringifies a scalar product identifier. Nil values,
// empty strings and non-scalar values yield "".
func NormalizeID(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return ""
}

// ResolveProductID walks an unknown-shaped payload looking for a product
// identifier: direct id field first, then a nested product, then a
// product nested inside that. Returns "" when nothing resolves.
func ResolveProductID(candidate any) string {
	v := candidate
	for range 3 {
		if v == nil {
			return ""
		}
		if id := directID(v); id != "" {
			return id
		}
		v = nestedProduct(v)
	}
	return ""
}

// ItemProductID returns the normalized id of the product a stored line
// item refers to.
func ItemProductID(item CartItem) string {
	return NormalizeID(item.Product.ID)
}

func directID(v any) string {
	switch t := v.(type) {
	case ProductSnapshot:
		return NormalizeID(t.ID)
	case *ProductSnapshot:
		if t == nil {
			return ""
		}
		return NormalizeID(t.ID)
	case CartItem, *CartItem:
		return ""
	case map[string]any:
		if id := NormalizeID(t["_id"]); id != "" {
			return id
		}
		return NormalizeID(t["id"])
	default:
		return NormalizeID(v)
	}
}

func nestedProduct(v any) any {
	switch t := v.(type) {
	case CartItem:
		return t.Product
	case *CartItem:
		if t == nil {
			return nil
		}
		return t.Product
	case map[string]any:
		return t["product"]
	}
	return nil
}

// SnapshotTo builds the denormalized display snapshot captured when a
// product first enters the guest cart. The payload shape mirrors what
// ResolveProductID accepts; fields missing on the outer value fall back
// to the nested product.
func SnapshotTo(id string, candidate any) ProductSnapshot {
	s := ProductSnapshot{ID: id}
	fillSnapshot(&s, candidate)
	if inner := nestedProduct(candidate); inner != nil {
		fillSnapshot(&s, inner)
	}
	return s
}

func fillSnapshot(s *ProductSnapshot, v any) {
	switch t := v.(type) {
	case ProductSnapshot:
		fillFromSnapshot(s, t)
	case *ProductSnapshot:
		if t != nil {
			fillFromSnapshot(s, *t)
		}
	case map[string]any:
		if s.Name == "" {
			if name, ok := t["name"].(string); ok {
				s.Name = name
			}
		}
		if s.Price == 0 {
			if price, ok := t["price"].(float64); ok {
				s.Price = price
			}
		}
		if len(s.Images) == 0 {
			s.Images = imagesOf(t)
		}
	}
}

func fillFromSnapshot(s *ProductSnapshot, from ProductSnapshot) {
	if s.Name == "" {
		s.Name = from.Name
	}
	if s.Price == 0 {
		s.Price = from.Price
	}
	if len(s.Images) == 0 {
		s.Images = from.Images
	}
}

func imagesOf(m map[string]any) []ProductImage {
	raw, ok := m["images"].([]any)
	if !ok {
		// single flat image url
		if url, ok := m["image"].(string); ok && url != "" {
			return []ProductImage{{URL: url}}
		}
		return nil
	}

	var images []ProductImage
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			images = append(images, ProductImage{URL: t})
		case map[string]any:
			if url, ok := t["url"].(string); ok {
				images = append(images, ProductImage{URL: url})
			}
		}
	}
	return images
}
