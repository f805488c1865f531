package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/freshcart/internal/domain/product"
)

// DecodeProduct reads one product object.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	f := newFields("product")
	err := d.Obj(func(d *jx.Decoder, key string) error {
		f.mark(key)
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = d.Str()
		case "imageUrl":
			p.ImageURL, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "category":
			p.Category, err = d.Str()
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
	if err != nil {
		return product.Product{}, err
	}
	if err := f.require("id", "name", "price"); err != nil {
		return product.Product{}, err
	}
	if err := nonNegativeDecimal("product", "price", p.Price); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// EncodeProduct writes p as a JSON object.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("imageUrl")
	e.Str(p.ImageURL)
	e.FieldStart("price")
	encodeDecimal(e, p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.ObjEnd()
}

// DecodePage reads a product page object.
func DecodePage(d *jx.Decoder) (*product.Page, error) {
	page := &product.Page{Products: []product.Product{}}
	f := newFields("page")
	err := d.Obj(func(d *jx.Decoder, key string) error {
		f.mark(key)
		var err error
		switch key {
		case "products":
			err = d.Arr(func(d *jx.Decoder) error {
				p, err := DecodeProduct(d)
				if err != nil {
					return err
				}
				page.Products = append(page.Products, p)
				return nil
			})
		case "hasMore":
			page.HasMore, err = d.Bool()
		case "total":
			page.Total, err = d.Int()
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
	if err != nil {
		return nil, err
	}
	if err := f.require("products", "hasMore", "total"); err != nil {
		return nil, err
	}
	if err := nonNegative("page", "total", page.Total); err != nil {
		return nil, err
	}
	return page, nil
}

// EncodePage writes a product page object.
func EncodePage(e *jx.Encoder, page *product.Page) {
	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range page.Products {
		EncodeProduct(e, p)
	}
	e.ArrEnd()
	e.FieldStart("hasMore")
	e.Bool(page.HasMore)
	e.FieldStart("total")
	e.Int(page.Total)
	e.ObjEnd()
}
