package domain

import (
	"encoding/json"
	"fmt"
	"maps"
)

type CartItem struct {
	Product
	Amount int
}

// CartItem is persisted as the product object with "amount" added, so the
// Product marshalers promoted through embedding are overridden here.
func (i CartItem) MarshalJSON() ([]byte, error) {
	out := i.fields()
	out["amount"] = i.Amount
	return json.Marshal(out)
}

func (i *CartItem) UnmarshalJSON(data []byte) error {
	var item struct {
		Amount int `json:"amount"`
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	var p Product
	if err := p.UnmarshalJSON(data); err != nil {
		return err
	}
	p.Extra = withoutKeys(p.Extra, "amount")

	*i = CartItem{Product: p, Amount: item.Amount}
	return nil
}

// Cart is ordered by first-add. Order is preserved through EncodeCart/DecodeCart.
type Cart []CartItem

func (c Cart) IndexOf(productID int64) int {
	for i := range c {
		if c[i].ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	for i := range out {
		out[i].Extra = maps.Clone(out[i].Extra)
	}
	return out
}

func (c Cart) Without(i int) Cart {
	out := make(Cart, 0, len(c)-1)
	out = append(out, c[:i]...)
	return append(out, c[i+1:]...)
}

func EncodeCart(c Cart) (string, error) {
	if c == nil {
		c = Cart{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cart: %w", err)
	}
	return string(data), nil
}

// DecodeCart parses a persisted cart record and rejects records that break
// the cart invariants (duplicate ids, non-positive amounts).
func DecodeCart(record string) (Cart, error) {
	var c Cart
	if err := json.Unmarshal([]byte(record), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	seen := make(map[int64]struct{}, len(c))
	for _, item := range c {
		if item.Amount < 1 {
			return nil, fmt.Errorf("%w: product %d has amount %d", ErrInvalidRecord, item.ID, item.Amount)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %d", ErrInvalidRecord, item.ID)
		}
		seen[item.ID] = struct{}{}
	}

	if c == nil {
		c = Cart{}
	}
	return c, nil
}
