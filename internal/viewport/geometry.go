package viewport

// Rect is an axis-aligned rectangle in viewport pixels.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Margin grows (or, when negative, shrinks) a viewport on each side before
// intersection tests, so elements are detected before they become visible.
type Margin struct {
	Vertical   float64
	Horizontal float64
}

// DefaultMargin is a 50px lookahead above and below the viewport.
var DefaultMargin = Margin{Vertical: 50}

// Expand returns r grown by m on every side.
func (r Rect) Expand(m Margin) Rect {
	return Rect{
		X:      r.X - m.Horizontal,
		Y:      r.Y - m.Vertical,
		Width:  r.Width + 2*m.Horizontal,
		Height: r.Height + 2*m.Vertical,
	}
}

// Intersects reports whether r and o overlap or touch. Zero-sized elements
// count as visible once they lie within the area.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.X+o.Width &&
		o.X <= r.X+r.Width &&
		r.Y <= o.Y+o.Height &&
		o.Y <= r.Y+r.Height
}
