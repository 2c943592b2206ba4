package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(v int64) *int64 { return &v }

func item(id, color, size string, qty int, p int64) Item {
	return Item{
		Product:   ProductSnapshot{ID: id, Name: "Product " + id, Price: price(p)},
		Quantity:  qty,
		Selection: Selection{Color: color, Size: size},
	}
}

func TestAdd_MergesSameIdentity(t *testing.T) {
	c := New("u1")

	require.NoError(t, c.Add(item("p1", "Red", "M", 1, 1000)))
	require.NoError(t, c.Add(item("p1", "red", "m", 2, 1000)))
	require.NoError(t, c.Add(item("p1", "Red", "L", 1, 1000)))

	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.False(t, c.UpdatedAt.IsZero())
}

func TestAdd_RejectsNonPositiveQuantity(t *testing.T) {
	c := New("u1")
	assert.ErrorIs(t, c.Add(item("p1", "Red", "M", 0, 1000)), ErrInvalidQuantity)
	assert.True(t, c.IsEmpty())
}

func TestSetQuantity(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.Add(item("p1", "Red", "M", 1, 1000)))

	require.NoError(t, c.SetQuantity("p1", "Red", "M", 5))
	assert.Equal(t, 5, c.Items[0].Quantity)

	assert.ErrorIs(t, c.SetQuantity("p1", "Red", "M", 0), ErrInvalidQuantity)
	assert.ErrorIs(t, c.SetQuantity("p1", "Blue", "M", 2), ErrItemNotFound)
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name      string
		color     string
		size      string
		removed   int
		remaining int
	}{
		{"exact triple", "Red", "M", 1, 2},
		{"exact triple case-insensitive", "RED", "m", 1, 2},
		{"product only", "", "", 2, 1},
		{"color without size removes all lines", "Red", "", 2, 1},
		{"no match", "Green", "S", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("u1")
			require.NoError(t, c.Add(item("p1", "Red", "M", 1, 1000)))
			require.NoError(t, c.Add(item("p1", "Blue", "L", 1, 1000)))
			require.NoError(t, c.Add(item("p2", "Red", "M", 1, 500)))

			assert.Equal(t, tt.removed, c.Remove("p1", tt.color, tt.size))
			assert.Len(t, c.Items, tt.remaining)
		})
	}
}

func TestTotalAndCount(t *testing.T) {
	c := New("u1")
	require.NoError(t, c.Add(item("p1", "Red", "M", 2, 1000)))
	require.NoError(t, c.Add(item("p2", "", "", 3, 250)))
	noPrice := item("p3", "", "", 1, 0)
	noPrice.Product.Price = nil
	require.NoError(t, c.Add(noPrice))

	assert.Equal(t, int64(2750), c.Total())
	assert.Equal(t, 6, c.Count())

	c.Clear()
	assert.Equal(t, int64(0), c.Total())
	assert.Equal(t, 0, c.Count())
	assert.True(t, c.IsEmpty())
}
