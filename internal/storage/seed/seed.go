// Package seed decodes the embedded seed catalog.
package seed

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/freshcart/db"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/wire"
)

// Products returns the embedded seed catalog.
func Products() ([]product.Product, error) {
	return Decode(db.Products)
}

// Decode parses a JSON array of products. Duplicate ids are rejected.
func Decode(data []byte) ([]product.Product, error) {
	var (
		out  []product.Product
		seen = make(map[int64]struct{})
	)
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := wire.DecodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(out))
		}
		if _, dup := seen[p.ID]; dup {
			return errors.Errorf("duplicate product id %d", p.ID)
		}
		if p.Price.IsNegative() {
			return errors.Errorf("product %d: negative price", p.ID)
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode seed catalog")
	}
	return out, nil
}
