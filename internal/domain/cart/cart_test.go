package cart

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

func newTestProduct(id, price string) product.Product {
	return product.Product{
		ID:      id,
		Name:    "Product " + id,
		Price:   decimal.RequireFromString(price),
		Reviews: []product.Review{{ID: "r1", Rating: 5, Comment: "good"}},
	}
}

func TestCart_TotalMatchesRecomputation(t *testing.T) {
	c := New()
	items := []struct {
		p   product.Product
		qty int
	}{
		{newTestProduct("a", "15.99"), 2},
		{newTestProduct("b", "2.99"), 5},
		{newTestProduct("c", "24.99"), 1},
		{newTestProduct("d", "0.01"), 99},
	}

	want := decimal.Zero
	for _, it := range items {
		require.NoError(t, c.Add(it.p, it.qty))
		want = want.Add(it.p.Price.Mul(decimal.NewFromInt(int64(it.qty))))
		assert.True(t, want.Equal(c.Total()), "total %s want %s", c.Total(), want)
	}
	assert.True(t, decimal.RequireFromString("72.91").Equal(c.Total()))
	assert.Len(t, c.Lines(), 4)
	assert.Equal(t, 107, c.ItemCount())
}

func TestCart_AddSameProductMerges(t *testing.T) {
	c := New()
	p := newTestProduct("a", "10")

	require.NoError(t, c.Add(p, 3))
	require.NoError(t, c.Add(p, 4))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)
}

func TestCart_AddOverLimitLeavesLineUnchanged(t *testing.T) {
	c := New()
	p := newTestProduct("a", "10")

	require.NoError(t, c.Add(p, 60))
	err := c.Add(p, 50)

	var qlErr *QuantityLimitError
	require.ErrorAs(t, err, &qlErr)
	assert.ErrorIs(t, err, ErrQuantityLimit)
	assert.Equal(t, 60, qlErr.Current)
	assert.Equal(t, 50, qlErr.Requested)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 60, lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(600).Equal(c.Total()))
}

func TestCart_AddExactlyToLimit(t *testing.T) {
	c := New()
	p := newTestProduct("a", "1")

	require.NoError(t, c.Add(p, 98))
	require.NoError(t, c.Add(p, 1))
	assert.Equal(t, MaxQuantity, c.Lines()[0].Quantity)

	assert.ErrorIs(t, c.Add(p, 1), ErrQuantityLimit)
}

func TestCart_AddInvalidQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  int
		want error
	}{
		{name: "zero", qty: 0, want: ErrInvalidQuantity},
		{name: "negative", qty: -3, want: ErrInvalidQuantity},
		{name: "new line above limit", qty: 100, want: ErrQuantityLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			err := c.Add(newTestProduct("a", "1"), tt.qty)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, c.Lines())
		})
	}
}

func TestCart_SnapshotOnAdd(t *testing.T) {
	c := New()
	p := newTestProduct("a", "10.00")

	require.NoError(t, c.Add(p, 2))

	// catalog changes after the add must not reach the cart
	p.Price = decimal.RequireFromString("99.00")
	p.Name = "renamed"
	p.Reviews[0].Comment = "edited"

	lines := c.Lines()
	assert.True(t, decimal.RequireFromString("20.00").Equal(c.Total()))
	assert.Equal(t, "Product a", lines[0].Product.Name)
	assert.Equal(t, "good", lines[0].Product.Reviews[0].Comment)

	// nor must changes to returned lines
	lines[0].Quantity = 50
	lines[0].Product.Reviews[0].Comment = "mutated"
	again := c.Lines()
	assert.Equal(t, 2, again[0].Quantity)
	assert.Equal(t, "good", again[0].Product.Reviews[0].Comment)
}

func TestCart_Remove(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(newTestProduct("a", "1"), 1))
	require.NoError(t, c.Add(newTestProduct("b", "2"), 1))
	require.NoError(t, c.Add(newTestProduct("c", "3"), 1))

	c.Remove("b")
	c.Remove("missing")

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[0].Product.ID)
	assert.Equal(t, "c", lines[1].Product.ID)
	assert.True(t, decimal.NewFromInt(4).Equal(c.Total()))
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(newTestProduct("a", "2.50"), 10))

	require.NoError(t, c.UpdateQuantity("a", 3))
	assert.Equal(t, 3, c.Lines()[0].Quantity)
	assert.True(t, decimal.RequireFromString("7.50").Equal(c.Total()))
}

func TestCart_UpdateQuantity_Errors(t *testing.T) {
	tests := []struct {
		name string
		id   string
		qty  int
		want error
	}{
		{name: "unknown product", id: "unknown", qty: 5, want: ErrLineNotFound},
		{name: "zero", id: "a", qty: 0, want: ErrInvalidQuantity},
		{name: "above limit", id: "a", qty: 100, want: ErrInvalidQuantity},
		{name: "out of range beats missing line", id: "unknown", qty: 0, want: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			require.NoError(t, c.Add(newTestProduct("a", "1"), 4))

			err := c.UpdateQuantity(tt.id, tt.qty)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 4, c.Lines()[0].Quantity)
		})
	}
}

func TestCart_UpdateQuantity_NotFoundType(t *testing.T) {
	err := New().UpdateQuantity("x", 5)

	var nf *LineNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "x", nf.ProductID)
}

func TestCart_Clear(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(newTestProduct("a", "5"), 3))
	require.NoError(t, c.Add(newTestProduct("b", "7"), 1))

	c.Clear()

	assert.Empty(t, c.Lines())
	assert.True(t, decimal.Zero.Equal(c.Total()))
	assert.Equal(t, 0, c.ItemCount())
}

func TestCart_Deduct(t *testing.T) {
	line := func(id string, qty int) Line {
		return Line{Product: newTestProduct(id, "1"), Quantity: qty}
	}
	tests := []struct {
		name   string
		start  map[string]int
		deduct []Line
		want   []string
		qty    []int
	}{
		{
			name:   "whole cart",
			start:  map[string]int{"a": 2, "b": 1},
			deduct: []Line{line("a", 2), line("b", 1)},
		},
		{
			name:   "grown line keeps the remainder",
			start:  map[string]int{"a": 5, "b": 1},
			deduct: []Line{line("a", 2), line("b", 1)},
			want:   []string{"a"},
			qty:    []int{3},
		},
		{
			name:   "unordered line stays",
			start:  map[string]int{"a": 1, "b": 4},
			deduct: []Line{line("a", 1)},
			want:   []string{"b"},
			qty:    []int{4},
		},
		{
			name:   "shrunk line is removed",
			start:  map[string]int{"a": 1},
			deduct: []Line{line("a", 3)},
		},
		{
			name:   "removed line is skipped",
			start:  map[string]int{"b": 2},
			deduct: []Line{line("a", 1)},
			want:   []string{"b"},
			qty:    []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			for _, id := range []string{"a", "b"} {
				if qty, ok := tt.start[id]; ok {
					require.NoError(t, c.Add(newTestProduct(id, "1"), qty))
				}
			}

			c.Deduct(tt.deduct)

			lines := c.Lines()
			require.Len(t, lines, len(tt.want))
			for i, l := range lines {
				assert.Equal(t, tt.want[i], l.Product.ID)
				assert.Equal(t, tt.qty[i], l.Quantity)
			}
		})
	}
}

func TestCart_ConcurrentAddsNeverExceedLimit(t *testing.T) {
	c := New()
	p := newTestProduct("a", "1")

	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Add(p, 1)
		}()
	}
	wg.Wait()

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, MaxQuantity, lines[0].Quantity)
}
