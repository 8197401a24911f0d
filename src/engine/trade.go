package engine

import "time"

// AggressiveSideLabel is the value exported in the trade "Side" column.
// The upstream format hard-codes the aggressive side as BUY regardless of
// which side initiated the match; kept for export compatibility.
const AggressiveSideLabel = "BUY"

// Trade is an immutable execution record between two orders.
type Trade struct {
	ID          string // zero-padded monotonic, width 6
	Timestamp   time.Time
	Symbol      string
	Quantity    int64
	Price       int64 // price in cents
	BuyerID     string
	SellerID    string
	BuyOrderID  string
	SellOrderID string
	Side        string // always AggressiveSideLabel
}

// Value is quantity times price, in cents.
func (t Trade) Value() int64 {
	return t.Quantity * t.Price
}

// tradeRing is a fixed-capacity ring of trades with oldest-wins eviction.
// Not internally locked: the owner guards access.
type tradeRing struct {
	buf   []Trade
	start int
	size  int
}

func newTradeRing(capacity int) *tradeRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &tradeRing{buf: make([]Trade, capacity)}
}

func (r *tradeRing) Append(t Trade) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = t
		r.size++
		return
	}
	// full: overwrite the oldest
	r.buf[r.start] = t
	r.start = (r.start + 1) % len(r.buf)
}

func (r *tradeRing) Len() int {
	return r.size
}

// Last returns the most recent k trades in chronological order.
// k <= 0 returns everything.
func (r *tradeRing) Last(k int) []Trade {
	if k <= 0 || k > r.size {
		k = r.size
	}
	out := make([]Trade, 0, k)
	for i := r.size - k; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// All returns every retained trade in chronological order.
func (r *tradeRing) All() []Trade {
	return r.Last(0)
}

// LastForSymbol returns the most recent k retained trades for symbol.
func (r *tradeRing) LastForSymbol(symbol string, k int) []Trade {
	matched := make([]Trade, 0, k)
	for i := 0; i < r.size; i++ {
		t := r.buf[(r.start+i)%len(r.buf)]
		if t.Symbol == symbol {
			matched = append(matched, t)
		}
	}
	if k > 0 && len(matched) > k {
		matched = matched[len(matched)-k:]
	}
	return matched
}

func (r *tradeRing) Clear() {
	r.start = 0
	r.size = 0
}
