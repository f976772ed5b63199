// Package guestcart persists the anonymous user's cart in a local
// durable store. Corrupt or missing records always load as an empty
// cart; the bad record is overwritten by the next successful write.
package guestcart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/rynott/cartcore/internal/core/domain"
	"github.com/rynott/cartcore/internal/core/port"
)

// Record key is namespaced and schema-versioned so a future format
// change can migrate or discard old payloads safely.
const recordKey = "rynott/guest-cart/v1"

var _ port.CartBackend = (*Store)(nil)

type record struct {
	Items json.RawMessage `json:"items"`
}

type Store struct {
	db *leveldb.DB
}

func Open(path string) (*Store, error) {
	const op = "guestcart.Open"

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{db}, nil
}

// OpenInMemory backs the store with a transient in-memory database.
func OpenInMemory() (*Store, error) {
	const op = "guestcart.OpenInMemory"

	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{db}, nil
}

func (s *Store) Close() {
	const op = "Store.Close"
	log := slog.With("op", op)

	if err := s.db.Close(); err != nil {
		log.Error("failed to close guest cart store", "err", err)
		return
	}
	log.Debug("guest cart store is closed")
}

func (s *Store) Load(ctx context.Context) (domain.Cart, error) {
	const op = "Store.Load"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewCart(s.readItems()), nil
}

func (s *Store) Add(
	ctx context.Context, product domain.ProductSnapshot, quantity int,
) (domain.Cart, error) {
	const op = "Store.Add"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	items := s.readItems()
	idx := indexOf(items, product.ID)
	if idx >= 0 {
		// repeated adds are additive
		items[idx].Quantity += quantity
	} else {
		items = append(items, domain.CartItem{
			Product:  product,
			Quantity: quantity,
		})
	}

	if err := s.writeItems(items); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewCart(items), nil
}

func (s *Store) Remove(
	ctx context.Context, productID string,
) (domain.Cart, error) {
	const op = "Store.Remove"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	items := removeItem(s.readItems(), productID)
	if err := s.writeItems(items); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewCart(items), nil
}

func (s *Store) UpdateQuantity(
	ctx context.Context, productID string, quantity int,
) (domain.Cart, error) {
	const op = "Store.UpdateQuantity"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	items := s.readItems()
	idx := indexOf(items, productID)
	if idx < 0 {
		return domain.Cart{}, fmt.Errorf("%s: %q: %w",
			op, productID, domain.ErrNotFound)
	}

	// absolute set, not additive
	items[idx].Quantity = quantity
	if err := s.writeItems(items); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewCart(items), nil
}

func (s *Store) Clear(ctx context.Context) (domain.Cart, error) {
	const op = "Store.Clear"

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	err := s.db.Delete([]byte(recordKey), &opt.WriteOptions{Sync: true})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewCart(nil), nil
}

// readItems never fails: a missing key, unparseable JSON, or a payload
// whose items field is not an array all load as an empty cart.
func (s *Store) readItems() []domain.CartItem {
	const op = "Store.readItems"
	log := slog.With("op", op)

	raw, err := s.db.Get([]byte(recordKey), nil)
	if err != nil {
		if err != leveldb.ErrNotFound {
			log.Warn("unreadable guest cart record, starting empty", "err", err)
		}
		return nil
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn("corrupt guest cart record, starting empty", "err", err)
		return nil
	}

	var items []domain.CartItem
	if err := json.Unmarshal(rec.Items, &items); err != nil {
		log.Warn("corrupt guest cart items, starting empty", "err", err)
		return nil
	}
	return items
}

func (s *Store) writeItems(items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(map[string][]domain.CartItem{"items": items})
	if err != nil {
		return err
	}
	return s.db.Put([]byte(recordKey), raw, &opt.WriteOptions{Sync: true})
}

func indexOf(items []domain.CartItem, productID string) int {
	target := domain.NormalizeID(productID)
	for i, item := range items {
		if domain.ItemProductID(item) == target {
			return i
		}
	}
	return -1
}

func removeItem(items []domain.CartItem, productID string) []domain.CartItem {
	target := domain.NormalizeID(productID)
	var kept []domain.CartItem
	for _, item := range items {
		if domain.ItemProductID(item) != target {
			kept = append(kept, item)
		}
	}
	return kept
}
