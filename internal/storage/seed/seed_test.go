package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducts(t *testing.T) {
	products, err := Products()
	require.NoError(t, err)
	require.NotEmpty(t, products)

	categories := make(map[string]int)
	for _, p := range products {
		assert.NotZero(t, p.ID)
		assert.NotEmpty(t, p.Name)
		assert.False(t, p.Price.IsNegative())
		categories[p.Category]++
	}
	for _, c := range []string{"Fruit", "Vegetables", "Dairy", "Bakery", "Meat", "Seafood", "Snacks", "Beverages"} {
		assert.Positive(t, categories[c], c)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "duplicate id", data: `[{"id":1,"name":"A","price":1},{"id":1,"name":"B","price":2}]`},
		{name: "negative price", data: `[{"id":1,"name":"A","price":-1}]`},
		{name: "not an array", data: `{"id":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
		})
	}
}
