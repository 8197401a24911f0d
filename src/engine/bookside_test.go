package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOrder(t *testing.T, traderID, symbol string, side OrderSide, quantity, price int64) *Order {
	t.Helper()
	order, err := NewOrder(traderID, symbol, side, quantity, price)
	require.NoError(t, err)
	return order
}

func TestBookSideBidOrdering(t *testing.T) {
	side := NewBookSide(SideBuy)

	side.Add(mustOrder(t, "T1", "AAPL", SideBuy, 100, 14900))
	side.Add(mustOrder(t, "T2", "AAPL", SideBuy, 100, 15100))
	side.Add(mustOrder(t, "T3", "AAPL", SideBuy, 100, 15000))

	best, ok := side.BestPrice()
	require.True(t, ok)
	assert.Equal(t, int64(15100), best)

	levels := side.TopLevels(3)
	require.Len(t, levels, 3)
	assert.Equal(t, int64(15100), levels[0].Price)
	assert.Equal(t, int64(15000), levels[1].Price)
	assert.Equal(t, int64(14900), levels[2].Price)
}

func TestBookSideAskOrdering(t *testing.T) {
	side := NewBookSide(SideSell)

	side.Add(mustOrder(t, "T1", "AAPL", SideSell, 100, 15100))
	side.Add(mustOrder(t, "T2", "AAPL", SideSell, 100, 14900))
	side.Add(mustOrder(t, "T3", "AAPL", SideSell, 100, 15000))

	best, ok := side.BestPrice()
	require.True(t, ok)
	assert.Equal(t, int64(14900), best)

	levels := side.TopLevels(3)
	require.Len(t, levels, 3)
	assert.Equal(t, int64(14900), levels[0].Price)
	assert.Equal(t, int64(15000), levels[1].Price)
	assert.Equal(t, int64(15100), levels[2].Price)
}

func TestBookSideFIFOWithinLevel(t *testing.T) {
	side := NewBookSide(SideBuy)

	first := mustOrder(t, "T1", "AAPL", SideBuy, 100, 15000)
	second := mustOrder(t, "T2", "AAPL", SideBuy, 100, 15000)
	third := mustOrder(t, "T3", "AAPL", SideBuy, 100, 15000)
	side.Add(first)
	side.Add(second)
	side.Add(third)

	assert.Equal(t, first.ID, side.BestOrder().ID)

	orders := side.OrdersAt(15000)
	require.Len(t, orders, 3)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)
	assert.Equal(t, third.ID, orders[2].ID)

	// removing the head promotes the next arrival
	require.True(t, side.Remove(first.ID))
	assert.Equal(t, second.ID, side.BestOrder().ID)
}

func TestBookSideRemoveDropsEmptyLevel(t *testing.T) {
	side := NewBookSide(SideSell)
	order := mustOrder(t, "T1", "AAPL", SideSell, 100, 15000)
	side.Add(order)
	assert.Equal(t, 1, side.LevelCount())

	require.True(t, side.Remove(order.ID))
	assert.Equal(t, 0, side.LevelCount())
	assert.Equal(t, 0, side.Len())
	_, ok := side.BestPrice()
	assert.False(t, ok)
}

func TestBookSideRemoveUnknownOrder(t *testing.T) {
	side := NewBookSide(SideBuy)
	assert.False(t, side.Remove("missing"))
}

func TestBookSideLevelAggregates(t *testing.T) {
	side := NewBookSide(SideBuy)
	a := mustOrder(t, "T1", "AAPL", SideBuy, 100, 15000)
	b := mustOrder(t, "T2", "AAPL", SideBuy, 50, 15000)
	side.Add(a)
	side.Add(b)

	levels := side.TopLevels(1)
	require.Len(t, levels, 1)
	assert.Equal(t, int64(150), levels[0].TotalQuantity)
	assert.Equal(t, 2, levels[0].OrderCount)
	assert.Equal(t, int64(150), side.TotalVolume())

	// a partial fill of the head reduces the cached aggregate
	require.NoError(t, a.Fill(40, 15000))
	side.applyFill(a, 40)

	levels = side.TopLevels(1)
	assert.Equal(t, int64(110), levels[0].TotalQuantity)
	assert.Equal(t, int64(110), side.TotalVolume())
}

func TestBookSideContains(t *testing.T) {
	side := NewBookSide(SideBuy)
	order := mustOrder(t, "T1", "AAPL", SideBuy, 100, 15000)
	side.Add(order)

	assert.True(t, side.Contains(order.ID))
	assert.False(t, side.Contains("missing"))
}
