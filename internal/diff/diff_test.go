package diff

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abc-inventory-alerts/internal/inventory"
	"abc-inventory-alerts/internal/storage"
)

const threshold = 10

func observation(price float64, quantities map[string]int) inventory.Observation {
	obs := inventory.Observation{
		Key:       "plu:00063",
		Name:      "Eagle Rare 10yr",
		Size:      "750ml",
		FetchedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for store, qty := range quantities {
		obs.Stores = append(obs.Stores, inventory.StoreStock{
			StoreID:  store,
			Price:    decimal.NewFromFloat(price),
			Quantity: qty,
		})
		obs.TotalQuantity += qty
	}
	return obs
}

func baseline(total int, price float64, stores ...string) *storage.NotificationState {
	return &storage.NotificationState{
		SubscriberID:  42,
		ProductKey:    "plu:00063",
		ProductName:   "Eagle Rare 10yr",
		TotalQuantity: total,
		LowestPrice:   decimal.NewFromFloat(price),
		Stores:        stores,
		NotifiedAt:    time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC),
		Version:       3,
	}
}

func TestEvaluateFirstSightingInStock(t *testing.T) {
	t.Parallel()

	event := Evaluate(nil, observation(41.95, map[string]int{"Raleigh #5": 5}), threshold)
	require.NotNil(t, event)
	assert.Equal(t, KindBecameAvailable, event.Kind)
	assert.Equal(t, 5, event.NewTotal)
	assert.Zero(t, event.OldTotal)
}

func TestEvaluateFirstSightingOutOfStock(t *testing.T) {
	t.Parallel()

	// Never announce availability for something still unavailable.
	event := Evaluate(nil, observation(41.95, nil), threshold)
	assert.Nil(t, event)
}

func TestEvaluateRestockFromZero(t *testing.T) {
	t.Parallel()

	prev := baseline(0, 41.95)
	event := Evaluate(prev, observation(41.95, map[string]int{"Raleigh #5": 5}), threshold)
	require.NotNil(t, event)
	assert.Equal(t, KindBecameAvailable, event.Kind)
}

func TestEvaluateNewStore(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(41.95, map[string]int{"Raleigh #5": 12, "Cary #2": 4})

	event := Evaluate(prev, cur, threshold)
	require.NotNil(t, event)
	assert.Equal(t, KindNewStore, event.Kind)
	assert.Equal(t, []string{"Cary #2"}, event.AddedStores)
}

func TestEvaluateStoreSwapIsNotNewStore(t *testing.T) {
	t.Parallel()

	// One store replaced another: not a strict superset, no event from rule 2.
	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(41.95, map[string]int{"Cary #2": 12})

	event := Evaluate(prev, cur, threshold)
	assert.Nil(t, event)
}

func TestEvaluatePriceDrop(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(39.95, map[string]int{"Raleigh #5": 12})

	event := Evaluate(prev, cur, threshold)
	require.NotNil(t, event)
	assert.Equal(t, KindPriceDrop, event.Kind)
	assert.Equal(t, "price dropped from $41.95 to $39.95", event.Detail())
}

func TestEvaluatePriceRiseIsSilent(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(45.00, map[string]int{"Raleigh #5": 12})

	assert.Nil(t, Evaluate(prev, cur, threshold))
}

func TestEvaluateUnparseablePriceIsNotADrop(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(0, map[string]int{"Raleigh #5": 12})

	assert.Nil(t, Evaluate(prev, cur, threshold))
}

func TestEvaluateNewStorePreemptsPriceDrop(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(39.95, map[string]int{"Raleigh #5": 12, "Cary #2": 4})

	event := Evaluate(prev, cur, threshold)
	require.NotNil(t, event)
	assert.Equal(t, KindNewStore, event.Kind)

	// The refreshed baseline must still absorb the price change so the next
	// cycle does not re-fire a stale drop.
	next := NextState(42, prev, cur, time.Now().UTC())
	assert.True(t, next.LowestPrice.Equal(decimal.NewFromFloat(39.95)))
	assert.ElementsMatch(t, []string{"Raleigh #5", "Cary #2"}, next.Stores)
}

func TestEvaluateLowStockCrossing(t *testing.T) {
	t.Parallel()

	prev := baseline(15, 41.95, "Raleigh #5")
	cur := observation(41.95, map[string]int{"Raleigh #5": 3})

	event := Evaluate(prev, cur, threshold)
	require.NotNil(t, event)
	assert.Equal(t, KindLowStock, event.Kind)
	assert.NotEqual(t, KindOutOfStock, event.Kind)
}

func TestEvaluateLowStockIsEdgeTriggered(t *testing.T) {
	t.Parallel()

	// Already below the threshold last cycle: rule 4 fired then, not now.
	prev := baseline(3, 41.95, "Raleigh #5")
	cur := observation(41.95, map[string]int{"Raleigh #5": 1})

	assert.Nil(t, Evaluate(prev, cur, threshold))
	assert.True(t, Changed(*prev, cur), "state should still refresh silently")
}

func TestEvaluateOutOfStock(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(41.95, nil)

	event := Evaluate(prev, cur, threshold)
	require.NotNil(t, event)
	assert.Equal(t, KindOutOfStock, event.Kind)
}

func TestEvaluateOutOfStockTwiceIsSilent(t *testing.T) {
	t.Parallel()

	prev := baseline(0, 41.95)
	cur := observation(41.95, nil)

	assert.Nil(t, Evaluate(prev, cur, threshold))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(39.95, map[string]int{"Raleigh #5": 12})

	first := Evaluate(prev, cur, threshold)
	second := Evaluate(prev, cur, threshold)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
}

func TestNextStateKeepsPriceWhenUnparseable(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")
	cur := observation(0, map[string]int{"Raleigh #5": 8})

	next := NextState(42, prev, cur, time.Now().UTC())
	assert.True(t, next.LowestPrice.Equal(decimal.NewFromFloat(41.95)))
	assert.Equal(t, 8, next.TotalQuantity)
}

func TestChanged(t *testing.T) {
	t.Parallel()

	prev := baseline(12, 41.95, "Raleigh #5")

	assert.False(t, Changed(*prev, observation(41.95, map[string]int{"Raleigh #5": 12})))
	assert.True(t, Changed(*prev, observation(41.95, map[string]int{"Raleigh #5": 11})))
	assert.True(t, Changed(*prev, observation(43.00, map[string]int{"Raleigh #5": 12})))
	assert.True(t, Changed(*prev, observation(41.95, map[string]int{"Cary #2": 12})))
}
