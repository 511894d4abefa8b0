package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Product is what the catalog reports for a product. Fields the catalog sends
// beyond the four below are kept in Extra and written back out unchanged.
type Product struct {
	ID    int64
	Title string
	Price float64
	Image string

	Extra map[string]json.RawMessage
}

type productFields struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

var productKeys = []string{"id", "title", "price", "image"}

func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.fields())
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var known productFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}

	*p = Product{
		ID:    known.ID,
		Title: known.Title,
		Price: known.Price,
		Image: known.Image,
		Extra: withoutKeys(extra, productKeys...),
	}
	return nil
}

// fields flattens p into one JSON object; named fields win over Extra.
func (p Product) fields() map[string]any {
	out := make(map[string]any, len(p.Extra)+len(productKeys))
	for k, v := range p.Extra {
		out[k] = v
	}
	out["id"] = p.ID
	out["title"] = p.Title
	out["price"] = p.Price
	out["image"] = p.Image
	return out
}

// withoutKeys drops keys case-insensitively, matching how encoding/json binds
// object keys to struct fields. Returns nil when nothing is left.
func withoutKeys(m map[string]json.RawMessage, keys ...string) map[string]json.RawMessage {
	for k := range m {
		for _, drop := range keys {
			if strings.EqualFold(k, drop) {
				delete(m, k)
				break
			}
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// Stock is a point-in-time snapshot of what the stock service reports as
// available for a product. It is fetched per operation and never cached.
type Stock struct {
	ProductID int64 `json:"id"`
	Available int   `json:"amount"`
}

// Validate reports a stock source answer that cannot be used for a quantity
// check.
func (s Stock) Validate() error {
	if s.Available < 0 {
		return fmt.Errorf("%w: product %d has amount %d", ErrInvalidStock, s.ProductID, s.Available)
	}
	return nil
}
