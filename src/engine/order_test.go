package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderValidation(t *testing.T) {
	tests := []struct {
		name     string
		traderID string
		symbol   string
		side     OrderSide
		quantity int64
		price    int64
		wantErr  bool
	}{
		{"valid buy", "TRADER_001", "AAPL", SideBuy, 100, 15025, false},
		{"valid sell", "TRADER_002", "GOOGL", SideSell, 50, 280075, false},
		{"empty trader id", "", "AAPL", SideBuy, 100, 15025, true},
		{"empty symbol", "TRADER_001", "", SideBuy, 100, 15025, true},
		{"invalid side", "TRADER_001", "AAPL", OrderSide("HOLD"), 100, 15025, true},
		{"zero quantity", "TRADER_001", "AAPL", SideBuy, 0, 15025, true},
		{"negative quantity", "TRADER_001", "AAPL", SideBuy, -5, 15025, true},
		{"zero price", "TRADER_001", "AAPL", SideBuy, 100, 0, true},
		{"negative price", "TRADER_001", "AAPL", SideBuy, 100, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := NewOrder(tt.traderID, tt.symbol, tt.side, tt.quantity, tt.price)
			if tt.wantErr {
				require.Error(t, err)
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
				assert.Nil(t, order)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, order.ID)
			assert.Equal(t, StatusPending, order.Status())
			assert.Equal(t, tt.quantity, order.RemainingQuantity())
			assert.False(t, order.SubmitTime.IsZero())
		})
	}
}

func TestNewOrderUppercasesSymbol(t *testing.T) {
	order, err := NewOrder("TRADER_001", "aapl", SideBuy, 100, 15025)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", order.Symbol)
}

func TestOrderLifecycle(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 15000)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status())
	assert.True(t, order.IsActive())

	require.NoError(t, order.Fill(40, 14990))
	assert.Equal(t, StatusPartiallyFilled, order.Status())
	assert.Equal(t, int64(60), order.RemainingQuantity())
	assert.Equal(t, int64(40), order.FilledQuantity())
	assert.True(t, order.IsActive())

	require.NoError(t, order.Fill(60, 15000))
	assert.Equal(t, StatusFilled, order.Status())
	assert.Equal(t, int64(0), order.RemainingQuantity())
	assert.Equal(t, int64(100), order.FilledQuantity())
	assert.False(t, order.IsActive())
}

func TestOrderOverfillIsContractError(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 15000)
	require.NoError(t, err)

	err = order.Fill(101, 15000)
	require.Error(t, err)
	var cErr *ContractError
	assert.ErrorAs(t, err, &cErr)

	// the failed fill left the order unchanged
	assert.Equal(t, StatusPending, order.Status())
	assert.Equal(t, int64(100), order.RemainingQuantity())
	assert.Empty(t, order.Fills())
}

func TestOrderFillRejectsNonPositiveQuantity(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 15000)
	require.NoError(t, err)

	var cErr *ContractError
	assert.ErrorAs(t, order.Fill(0, 15000), &cErr)
	assert.ErrorAs(t, order.Fill(-10, 15000), &cErr)
	assert.Equal(t, int64(100), order.RemainingQuantity())
}

func TestOrderCancel(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 15000)
	require.NoError(t, err)

	assert.True(t, order.Cancel())
	assert.Equal(t, StatusCancelled, order.Status())
	assert.False(t, order.IsActive())

	// cancelling again is a no-op
	assert.False(t, order.Cancel())
	assert.Equal(t, StatusCancelled, order.Status())
}

func TestOrderCancelAfterPartialFillKeepsFills(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 15000)
	require.NoError(t, err)

	require.NoError(t, order.Fill(30, 15000))
	assert.True(t, order.Cancel())
	assert.Equal(t, StatusCancelled, order.Status())
	assert.Equal(t, int64(30), order.FilledQuantity())
	assert.Equal(t, int64(70), order.RemainingQuantity())
}

func TestOrderCancelFilledIsNoOp(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 15000)
	require.NoError(t, err)

	require.NoError(t, order.Fill(100, 15000))
	assert.False(t, order.Cancel())
	assert.Equal(t, StatusFilled, order.Status())
}

func TestOrderAverageFillPrice(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 16000)
	require.NoError(t, err)

	assert.Equal(t, 0.0, order.AverageFillPrice())

	require.NoError(t, order.Fill(50, 15000))
	require.NoError(t, order.Fill(50, 16000))

	// (50*15000 + 50*16000) / 100
	assert.InDelta(t, 15500.0, order.AverageFillPrice(), 1e-9)
}

func TestOrderFillsSnapshotIsIndependent(t *testing.T) {
	order, err := NewOrder("TRADER_001", "AAPL", SideBuy, 100, 15000)
	require.NoError(t, err)
	require.NoError(t, order.Fill(10, 15000))

	fills := order.Fills()
	require.Len(t, fills, 1)
	fills[0].Quantity = 999

	assert.Equal(t, int64(10), order.Fills()[0].Quantity)
}
