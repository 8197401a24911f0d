package engine

import (
	"fmt"
	"sync"
	"time"
)

// DefaultBookTradeCapacity bounds the per-book trade ring.
const DefaultBookTradeCapacity = 1000

// DepthLevel is one price level in a market-depth view, with the volume
// accumulated down the book from the best level to this one.
type DepthLevel struct {
	Price            int64
	Quantity         int64
	OrderCount       int
	CumulativeVolume int64
}

// BookSnapshot is a consistent copied-out view of one book.
type BookSnapshot struct {
	Symbol       string
	Timestamp    time.Time
	Bids         []LevelSummary
	Asks         []LevelSummary
	BestBid      int64
	HasBestBid   bool
	BestAsk      int64
	HasBestAsk   bool
	Spread       int64
	MidPrice     float64
	HasMidPrice  bool
}

// BookStatistics summarizes one book for observers.
type BookStatistics struct {
	Symbol          string
	TotalBidVolume  int64
	TotalAskVolume  int64
	BidLevels       int
	AskLevels       int
	TotalOrders     int
	Spread          int64
	MidPrice        float64
	HasMidPrice     bool
	IsCrossed       bool
}

// OrderBook is the two-sided book for one symbol plus a bounded trade tail.
// A single RWMutex guards both sides and the ring; queries copy out so
// observers never see a half-mutated book.
type OrderBook struct {
	Symbol string

	mu     sync.RWMutex
	bids   *BookSide
	asks   *BookSide
	trades *tradeRing
}

func NewOrderBook(symbol string) *OrderBook {
	return NewOrderBookWithCapacity(symbol, DefaultBookTradeCapacity)
}

func NewOrderBookWithCapacity(symbol string, tradeCapacity int) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   NewBookSide(SideBuy),
		asks:   NewBookSide(SideSell),
		trades: newTradeRing(tradeCapacity),
	}
}

// AddOrder rests the order on its side of the book.
// A wrong-symbol order is a contract error.
func (ob *OrderBook) AddOrder(order *Order) error {
	if order.Symbol != ob.Symbol {
		return &ContractError{Message: fmt.Sprintf(
			"order symbol %s does not match book symbol %s", order.Symbol, ob.Symbol)}
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if order.Side == SideBuy {
		ob.bids.Add(order)
	} else {
		ob.asks.Add(order)
	}
	return nil
}

// RemoveOrder takes the order off the given side.
func (ob *OrderBook) RemoveOrder(orderID string, side OrderSide) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if side == SideBuy {
		return ob.bids.Remove(orderID)
	}
	return ob.asks.Remove(orderID)
}

// applyFill keeps the resting side's level aggregates in sync after the
// matcher fills a resting order.
func (ob *OrderBook) applyFill(order *Order, quantity int64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	if order.Side == SideBuy {
		ob.bids.applyFill(order, quantity)
	} else {
		ob.asks.applyFill(order, quantity)
	}
}

// BestBid returns the first order at the highest bid, nil when empty.
func (ob *OrderBook) BestBid() *Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.BestOrder()
}

// BestAsk returns the first order at the lowest ask, nil when empty.
func (ob *OrderBook) BestAsk() *Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.BestOrder()
}

func (ob *OrderBook) BestBidPrice() (int64, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.BestPrice()
}

func (ob *OrderBook) BestAskPrice() (int64, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.asks.BestPrice()
}

// Spread is best ask minus best bid; 0 when either side is empty.
func (ob *OrderBook) Spread() (int64, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bid, hasBid := ob.bids.BestPrice()
	ask, hasAsk := ob.asks.BestPrice()
	if !hasBid || !hasAsk {
		return 0, false
	}
	return ask - bid, true
}

// MidPrice is the mean of best bid and best ask in cents; 0 when either
// side is empty.
func (ob *OrderBook) MidPrice() (float64, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bid, hasBid := ob.bids.BestPrice()
	ask, hasAsk := ob.asks.BestPrice()
	if !hasBid || !hasAsk {
		return 0, false
	}
	return float64(bid+ask) / 2, true
}

// TopLevels returns up to n best levels for both sides.
func (ob *OrderBook) TopLevels(n int) (bids, asks []LevelSummary) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.TopLevels(n), ob.asks.TopLevels(n)
}

// OrdersAt returns a snapshot of resting orders at price on one side.
func (ob *OrderBook) OrdersAt(price int64, side OrderSide) []*Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	if side == SideBuy {
		return ob.bids.OrdersAt(price)
	}
	return ob.asks.OrdersAt(price)
}

// VolumeAt is the total remaining quantity resting at price on one side.
func (ob *OrderBook) VolumeAt(price int64, side OrderSide) int64 {
	orders := ob.OrdersAt(price, side)
	var total int64
	for _, o := range orders {
		total += o.RemainingQuantity()
	}
	return total
}

// AppendTrade records a trade in the book's bounded tail.
func (ob *OrderBook) AppendTrade(t Trade) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.trades.Append(t)
}

// RecentTrades returns the most recent k trades for this symbol.
func (ob *OrderBook) RecentTrades(k int) []Trade {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.trades.Last(k)
}

// IsCrossed reports best_bid >= best_ask with both sides present.
// Outside the matcher's critical section a quiescent book is never crossed.
func (ob *OrderBook) IsCrossed() bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bid, hasBid := ob.bids.BestPrice()
	ask, hasAsk := ob.asks.BestPrice()
	return hasBid && hasAsk && bid >= ask
}

// MarketDepth returns up to maxLevels levels per side with cumulative
// volume accumulated from the best level down.
func (ob *OrderBook) MarketDepth(maxLevels int) (bids, asks []DepthLevel) {
	bidLevels, askLevels := ob.TopLevels(maxLevels)

	var cum int64
	for _, l := range bidLevels {
		cum += l.TotalQuantity
		bids = append(bids, DepthLevel{
			Price:            l.Price,
			Quantity:         l.TotalQuantity,
			OrderCount:       l.OrderCount,
			CumulativeVolume: cum,
		})
	}

	cum = 0
	for _, l := range askLevels {
		cum += l.TotalQuantity
		asks = append(asks, DepthLevel{
			Price:            l.Price,
			Quantity:         l.TotalQuantity,
			OrderCount:       l.OrderCount,
			CumulativeVolume: cum,
		})
	}
	return bids, asks
}

// Snapshot copies out the book's top levels and derived prices.
func (ob *OrderBook) Snapshot(depth int) BookSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	snap := BookSnapshot{
		Symbol:    ob.Symbol,
		Timestamp: time.Now(),
		Bids:      ob.bids.TopLevels(depth),
		Asks:      ob.asks.TopLevels(depth),
	}
	if bid, ok := ob.bids.BestPrice(); ok {
		snap.BestBid = bid
		snap.HasBestBid = true
	}
	if ask, ok := ob.asks.BestPrice(); ok {
		snap.BestAsk = ask
		snap.HasBestAsk = true
	}
	if snap.HasBestBid && snap.HasBestAsk {
		snap.Spread = snap.BestAsk - snap.BestBid
		snap.MidPrice = float64(snap.BestBid+snap.BestAsk) / 2
		snap.HasMidPrice = true
	}
	return snap
}

// Statistics summarizes both sides of the book.
func (ob *OrderBook) Statistics() BookStatistics {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	stats := BookStatistics{
		Symbol:         ob.Symbol,
		TotalBidVolume: ob.bids.TotalVolume(),
		TotalAskVolume: ob.asks.TotalVolume(),
		BidLevels:      ob.bids.LevelCount(),
		AskLevels:      ob.asks.LevelCount(),
		TotalOrders:    ob.bids.Len() + ob.asks.Len(),
	}

	bid, hasBid := ob.bids.BestPrice()
	ask, hasAsk := ob.asks.BestPrice()
	if hasBid && hasAsk {
		stats.Spread = ask - bid
		stats.MidPrice = float64(bid+ask) / 2
		stats.HasMidPrice = true
		stats.IsCrossed = bid >= ask
	}
	return stats
}

// OrderCount is the number of resting orders on both sides.
func (ob *OrderBook) OrderCount() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.Len() + ob.asks.Len()
}

// Clear discards all resting orders and the trade tail.
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids.clear()
	ob.asks.clear()
	ob.trades.Clear()
}
