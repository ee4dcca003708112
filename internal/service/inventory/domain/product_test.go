package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		"seller-b": {
			{BaseSKU: "mug", Stock: 5},
		},
		"seller-a": {
			{BaseSKU: "shirt", Stock: 10, Reserved: 2, Variations: []Variant{
				{VariantID: "red", Stock: 4, Reserved: 1, PriceDelta: decimal.RequireFromString("1.50")},
			}},
		},
	}
}

func TestDatasetResolve(t *testing.T) {
	ds := sampleDataset()

	c, lookup := ds.Resolve(SKU{Base: "shirt"})
	require.Equal(t, LookupFound, lookup)
	assert.Equal(t, 8, c.Available())

	c, lookup = ds.Resolve(SKU{Base: "shirt", Variant: "red"})
	require.Equal(t, LookupFound, lookup)
	assert.Equal(t, 3, c.Available())

	_, lookup = ds.Resolve(SKU{Base: "shirt", Variant: "blue"})
	assert.Equal(t, LookupVariantMissing, lookup)

	_, lookup = ds.Resolve(SKU{Base: "hat"})
	assert.Equal(t, LookupProductMissing, lookup)
}

func TestCountersMutateDataset(t *testing.T) {
	ds := sampleDataset()
	c, _ := ds.Resolve(SKU{Base: "shirt", Variant: "red"})

	c.Reserve(2)
	assert.Equal(t, 3, ds.FindProduct("shirt").Variations[0].Reserved)

	c.Deduct(2)
	v := ds.FindProduct("shirt").Variations[0]
	assert.Equal(t, 2, v.Stock)
	assert.Equal(t, 1, v.Reserved)

	c.Unreserve(5)
	assert.Equal(t, 0, ds.FindProduct("shirt").Variations[0].Reserved)

	c.Restock(2)
	assert.Equal(t, 4, ds.FindProduct("shirt").Variations[0].Stock)
	// 规格计数器独立于父商品
	assert.Equal(t, 10, ds.FindProduct("shirt").Stock)
}

func TestDatasetWalkIsOrdered(t *testing.T) {
	var seen []string
	sampleDataset().Walk(func(owner string, sku SKU, _ Counters) {
		seen = append(seen, owner+"/"+sku.String())
	})
	assert.Equal(t, []string{"seller-a/shirt", "seller-a/shirt|red", "seller-b/mug"}, seen)
}

func TestCloneIsDeep(t *testing.T) {
	ds := sampleDataset()
	cp := ds.Clone()
	c, _ := cp.Resolve(SKU{Base: "shirt", Variant: "red"})
	c.Reserve(3)
	assert.Equal(t, 1, ds.FindProduct("shirt").Variations[0].Reserved)
}

func TestNormalizeDataset(t *testing.T) {
	assert.NotNil(t, NormalizeDataset(nil))

	ds := NormalizeDataset(Dataset{"o": {{BaseSKU: " hat ", Stock: -1, Reserved: -3, Variations: []Variant{{VariantID: " s ", Stock: -2}}}}})
	p := ds.FindProduct("hat")
	require.NotNil(t, p)
	assert.Zero(t, p.Stock)
	assert.Zero(t, p.Reserved)
	assert.Equal(t, "s", p.Variations[0].VariantID)
	assert.Zero(t, p.Variations[0].Stock)
}
