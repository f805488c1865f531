package wire

import "github.com/go-faster/jx"

// ErrorBody is the {code, message} error envelope returned by the backend.
type ErrorBody struct {
	Code    int
	Message string
}

// DecodeError reads an error envelope. Both fields are optional.
func DecodeError(d *jx.Decoder) (ErrorBody, error) {
	var b ErrorBody
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			b.Code, err = d.Int()
		case "message":
			b.Message, err = d.Str()
		default:
			err = d.Skip()
		}
		return fieldError(key, err)
	})
	return b, err
}

// EncodeError writes an error envelope.
func EncodeError(e *jx.Encoder, b ErrorBody) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(b.Code)
	e.FieldStart("message")
	e.Str(b.Message)
	e.ObjEnd()
}
