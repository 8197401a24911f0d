package engine

import (
	"github.com/google/btree"
)

// PriceLevel aggregates the resting orders at a single price on one side.
// Orders keeps strict FIFO arrival order; TotalQuantity and OrderCount are
// cached and kept in sync with the contained orders' remaining quantities.
type PriceLevel struct {
	Price         int64
	Orders        []*Order // fifo ordering for time priority
	TotalQuantity int64
	OrderCount    int
}

// LevelSummary is a copied-out view of a price level for observers.
type LevelSummary struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// BookSide holds the price levels for one side of a book. Bids order their
// tree so that Min() is the highest price; asks so that Min() is the lowest.
// BookSide is not internally locked: the owning OrderBook guards access.
type BookSide struct {
	side   OrderSide
	levels *btree.BTreeG[*PriceLevel]
	orders map[string]*Order // order_id -> order
}

func NewBookSide(side OrderSide) *BookSide {
	less := func(a, b *PriceLevel) bool { return a.Price < b.Price }
	if side == SideBuy {
		less = func(a, b *PriceLevel) bool { return a.Price > b.Price }
	}
	return &BookSide{
		side:   side,
		levels: btree.NewG(32, less),
		orders: make(map[string]*Order),
	}
}

func (s *BookSide) Side() OrderSide {
	return s.side
}

// Add appends the order to the FIFO of its price level, creating the level
// if needed, and indexes the order by id.
func (s *BookSide) Add(order *Order) {
	level, ok := s.levels.Get(&PriceLevel{Price: order.Price})
	if !ok {
		level = &PriceLevel{Price: order.Price}
		s.levels.ReplaceOrInsert(level)
	}

	level.Orders = append(level.Orders, order)
	level.TotalQuantity += order.RemainingQuantity()
	level.OrderCount++
	s.orders[order.ID] = order
}

// Remove deletes the order from its level, dropping the level when it
// becomes empty. Returns false when the order is not on this side.
func (s *BookSide) Remove(orderID string) bool {
	order, exists := s.orders[orderID]
	if !exists {
		return false
	}

	if level, ok := s.levels.Get(&PriceLevel{Price: order.Price}); ok {
		for i, o := range level.Orders {
			if o.ID == orderID {
				level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
				level.TotalQuantity -= order.RemainingQuantity()
				level.OrderCount--
				break
			}
		}
		// edge case: remove empty price level
		if len(level.Orders) == 0 {
			s.levels.Delete(level)
		}
	}

	delete(s.orders, orderID)
	return true
}

// applyFill reduces the cached level quantity after the matcher fills a
// resting order on this side. Must be called after Order.Fill.
func (s *BookSide) applyFill(order *Order, quantity int64) {
	if level, ok := s.levels.Get(&PriceLevel{Price: order.Price}); ok {
		level.TotalQuantity -= quantity
	}
}

// BestPrice returns the highest bid or the lowest ask.
func (s *BookSide) BestPrice() (int64, bool) {
	level, ok := s.levels.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestOrder returns the head of the FIFO at the best price, nil when empty.
func (s *BookSide) BestOrder() *Order {
	level, ok := s.levels.Min()
	if !ok || len(level.Orders) == 0 {
		return nil
	}
	return level.Orders[0]
}

// OrdersAt returns a snapshot of the orders resting at price.
func (s *BookSide) OrdersAt(price int64) []*Order {
	level, ok := s.levels.Get(&PriceLevel{Price: price})
	if !ok {
		return nil
	}
	out := make([]*Order, len(level.Orders))
	copy(out, level.Orders)
	return out
}

// TopLevels returns up to n best price levels as copied summaries.
func (s *BookSide) TopLevels(n int) []LevelSummary {
	out := make([]LevelSummary, 0, n)
	s.levels.Ascend(func(level *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, LevelSummary{
			Price:         level.Price,
			TotalQuantity: level.TotalQuantity,
			OrderCount:    level.OrderCount,
		})
		return true
	})
	return out
}

// TotalVolume is the sum of remaining quantities across all resting orders.
func (s *BookSide) TotalVolume() int64 {
	var total int64
	s.levels.Ascend(func(level *PriceLevel) bool {
		total += level.TotalQuantity
		return true
	})
	return total
}

// Contains reports whether the order id rests on this side.
func (s *BookSide) Contains(orderID string) bool {
	_, ok := s.orders[orderID]
	return ok
}

// Len is the number of resting orders on this side.
func (s *BookSide) Len() int {
	return len(s.orders)
}

// LevelCount is the number of non-empty price levels.
func (s *BookSide) LevelCount() int {
	return s.levels.Len()
}

func (s *BookSide) clear() {
	s.levels.Clear(false)
	s.orders = make(map[string]*Order)
}
