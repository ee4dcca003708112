package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSKU(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    SKU
		wantErr bool
	}{
		{name: "bare", raw: "shirt", want: SKU{Base: "shirt"}},
		{name: "variant", raw: "shirt|red-xl", want: SKU{Base: "shirt", Variant: "red-xl"}},
		{name: "splits on first separator", raw: "shirt|red|xl", want: SKU{Base: "shirt", Variant: "red|xl"}},
		{name: "trims", raw: "  shirt | red ", want: SKU{Base: "shirt", Variant: "red"}},
		{name: "empty variant is bare", raw: "shirt|", want: SKU{Base: "shirt"}},
		{name: "none variant is bare", raw: "shirt|None", want: SKU{Base: "shirt"}},
		{name: "empty", raw: "", wantErr: true},
		{name: "blank", raw: "   ", wantErr: true},
		{name: "none", raw: "none", wantErr: true},
		{name: "NONE", raw: "NONE", wantErr: true},
		{name: "empty base", raw: "|red", wantErr: true},
		{name: "none base", raw: "none|red", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSKU(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSKU))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSKUString(t *testing.T) {
	assert.Equal(t, "shirt", SKU{Base: "shirt"}.String())
	assert.Equal(t, "shirt|red", SKU{Base: "shirt", Variant: "red"}.String())
}

func TestCartPlaceholder(t *testing.T) {
	assert.True(t, IsCartPlaceholder("cart"))
	assert.True(t, IsCartPlaceholder("CART:o-1"))
	assert.True(t, IsCartPlaceholder(CartPlaceholderSKU("o-1")))
	assert.False(t, IsCartPlaceholder("cartridge"))

	assert.True(t, IsReleasablePlaceholder(""))
	assert.True(t, IsReleasablePlaceholder("None"))
	assert.True(t, IsReleasablePlaceholder("cart:o-9"))
	assert.False(t, IsReleasablePlaceholder("shirt"))
}

func TestParseItems(t *testing.T) {
	lines, err := ParseItems([]Item{{SKU: " A ", Qty: 0}, {SKU: "B|x", Qty: 3}})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, Item{SKU: "A", Qty: 1}, lines[0].Item)
	assert.Equal(t, SKU{Base: "B", Variant: "x"}, lines[1].SKU)
	assert.Equal(t, []Item{{SKU: "A", Qty: 1}, {SKU: "B|x", Qty: 3}}, ItemsOf(lines))

	_, err = ParseItems(nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	for _, bad := range []string{"", "none", "Cart"} {
		_, err = ParseItems([]Item{{SKU: "A", Qty: 1}, {SKU: bad, Qty: 1}})
		assert.ErrorIs(t, err, ErrInvalidSKU, bad)
	}
}

func TestResultErr(t *testing.T) {
	assert.NoError(t, Succeed("ok").Err())

	res := Reject(KindOutOfStock, "only 2 left").WithAvailable(2).WithSKU("shirt")
	err := res.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Contains(t, err.Error(), "sku=shirt")
	require.NotNil(t, res.Available)
	assert.Equal(t, 2, *res.Available)

	got := RejectWith(&Error{Kind: KindNotFound, SKU: "x", Reason: "gone"})
	assert.Equal(t, KindNotFound, got.Kind)
	assert.Equal(t, "x", got.SKU)
}
