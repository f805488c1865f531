package product

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Offset(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{name: "first page", query: Query{Page: 0, Limit: 10}, want: 0},
		{name: "third page", query: Query{Page: 2, Limit: 10}, want: 20},
		{name: "negative page", query: Query{Page: -1, Limit: 10}, want: 0},
		{name: "negative limit", query: Query{Page: 3, Limit: -5}, want: 0},
		{name: "overflow saturates", query: Query{Page: 92233720368547759, Limit: 100}, want: math.MaxInt},
		{name: "largest exact", query: Query{Page: math.MaxInt / 100, Limit: 100}, want: math.MaxInt / 100 * 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Offset())
		})
	}
}
