// Package wire implements the JSON representation of the storefront API
// with go-faster/jx.
//
// Decoding is strict about shape: required fields must be present with the
// right JSON type. Unknown fields are skipped.
package wire

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// MissingFieldError is returned when a required field is absent.
type MissingFieldError struct {
	Object string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return "missing field " + e.Object + "." + e.Field
}

// NegativeValueError is returned when a count or amount is below zero.
type NegativeValueError struct {
	Object string
	Field  string
	Value  string
}

func (e *NegativeValueError) Error() string {
	return "negative " + e.Object + "." + e.Field + ": " + e.Value
}

func nonNegative(object, field string, v int) error {
	if v < 0 {
		return &NegativeValueError{Object: object, Field: field, Value: strconv.Itoa(v)}
	}
	return nil
}

func nonNegativeDecimal(object, field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return &NegativeValueError{Object: object, Field: field, Value: v.String()}
	}
	return nil
}

// fieldError annotates a failed object member with its key.
func fieldError(key string, err error) error {
	if err != nil {
		return errors.Wrapf(err, "field %q", key)
	}
	return nil
}

// fields tracks required object keys seen while decoding.
type fields struct {
	object string
	seen   map[string]bool
}

func newFields(object string) *fields {
	return &fields{object: object, seen: make(map[string]bool)}
}

func (f *fields) mark(key string) { f.seen[key] = true }

func (f *fields) require(keys ...string) error {
	for _, k := range keys {
		if !f.seen[k] {
			return &MissingFieldError{Object: f.object, Field: k}
		}
	}
	return nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() != jx.Number {
		return decimal.Decimal{}, errors.Errorf("expected number, got %s", d.Next())
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse decimal")
	}
	return v, nil
}

// encodeDecimal writes v as a JSON number without losing precision.
func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.String()))
}
