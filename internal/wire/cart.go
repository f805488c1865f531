package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/freshcart/internal/domain/cart"
)

// CartMutation is the body of POST /cart. Quantity is a relative delta.
type CartMutation struct {
	ProductID int64
	Quantity  int
}

// DecodeCart reads a cart object.
func DecodeCart(d *jx.Decoder) (*cart.Cart, error) {
	c := &cart.Cart{Items: []cart.Line{}}
	f := newFields("cart")
	err := d.Obj(func(d *jx.Decoder, key string) error {
		f.mark(key)
		var err error
		switch key {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, l)
				return nil
			})
		case "totalPrice":
			c.TotalPrice, err = decodeDecimal(d)
		case "totalItems":
			c.TotalItems, err = d.Int()
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
	if err != nil {
		return nil, err
	}
	if err := f.require("items", "totalPrice", "totalItems"); err != nil {
		return nil, err
	}
	if err := nonNegativeDecimal("cart", "totalPrice", c.TotalPrice); err != nil {
		return nil, err
	}
	if err := nonNegative("cart", "totalItems", c.TotalItems); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	f := newFields("item")
	err := d.Obj(func(d *jx.Decoder, key string) error {
		f.mark(key)
		var err error
		switch key {
		case "product":
			l.Product, err = DecodeProduct(d)
		case "quantity":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
	if err != nil {
		return cart.Line{}, err
	}
	if err := f.require("product", "quantity"); err != nil {
		return cart.Line{}, err
	}
	if err := nonNegative("item", "quantity", l.Quantity); err != nil {
		return cart.Line{}, err
	}
	return l, nil
}

// EncodeCart writes a cart object.
func EncodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range c.Items {
		e.ObjStart()
		e.FieldStart("product")
		EncodeProduct(e, l.Product)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("totalPrice")
	encodeDecimal(e, c.TotalPrice)
	e.FieldStart("totalItems")
	e.Int(c.TotalItems)
	e.ObjEnd()
}

// DecodeCartMutation reads a POST /cart body.
func DecodeCartMutation(d *jx.Decoder) (CartMutation, error) {
	var m CartMutation
	f := newFields("mutation")
	err := d.Obj(func(d *jx.Decoder, key string) error {
		f.mark(key)
		var err error
		switch key {
		case "productId":
			m.ProductID, err = d.Int64()
		case "quantity":
			m.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
	if err != nil {
		return CartMutation{}, err
	}
	if err := f.require("productId", "quantity"); err != nil {
		return CartMutation{}, err
	}
	return m, nil
}

// EncodeCartMutation writes a POST /cart body.
func EncodeCartMutation(e *jx.Encoder, m CartMutation) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Int64(m.ProductID)
	e.FieldStart("quantity")
	e.Int(m.Quantity)
	e.ObjEnd()
}
