// Package trader implements the synthetic agents that generate order flow
// against the matching engine and track their own cash and positions from
// fill notifications.
package trader

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hft-sim/src/engine"
)

// OrderSubmitter is the non-owning handle a trader keeps on the engine.
type OrderSubmitter interface {
	Submit(order *engine.Order) error
}

// Config tunes a trader's order generation.
type Config struct {
	MinOrderSize int64
	MaxOrderSize int64
	Volatility   float64 // limit price variation around the reference
	MinInterval  time.Duration
	MaxInterval  time.Duration
	InitialPrice int64 // starting reference price in cents
	MinPrice     int64 // reference price floor in cents
	Seed         int64 // 0 seeds from the clock
}

func DefaultConfig() Config {
	return Config{
		MinOrderSize: 10,
		MaxOrderSize: 100,
		Volatility:   0.02,
		MinInterval:  50 * time.Millisecond,
		MaxInterval:  500 * time.Millisecond,
		InitialPrice: 10000, // $100.00
		MinPrice:     100,   // $1.00
	}
}

// HFTConfig is the high-frequency profile: smaller clips, faster cadence.
func HFTConfig() Config {
	cfg := DefaultConfig()
	cfg.MinOrderSize = 5
	cfg.MaxOrderSize = 50
	cfg.MinInterval = 20 * time.Millisecond
	cfg.MaxInterval = 100 * time.Millisecond
	return cfg
}

// Stats is a copied-out snapshot of a trader's performance.
type Stats struct {
	TraderID       string
	InitialCash    int64 // cents
	Cash           int64 // cents
	PortfolioValue float64
	TotalPnL       float64
	PnLPercent     float64
	OrdersSent     int64
	OrdersFilled   int64
	FillRate       float64 // percent
	TotalVolume    int64
	AvgOrderSize   float64
	Positions      map[string]int64
}

// Trader is an autonomous agent. Its tick loop draws a symbol, side,
// quantity and limit price, then submits through the engine. Fill
// notifications arrive on the matcher goroutine via OnFill and mutate cash,
// positions and average cost basis under the trader's own lock.
type Trader struct {
	id      string
	symbols []string
	eng     OrderSubmitter
	cfg     Config

	mu           sync.Mutex
	cash         int64 // cents
	initialCash  int64
	positions    map[string]int64
	averageCosts map[string]float64 // cents
	refPrices    map[string]float64 // cents, private random walk
	ordersSent   int64
	ordersFilled int64
	totalVolume  int64
	rng          *rand.Rand

	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a trader with initialCash in cents trading the given symbols.
func New(id string, initialCash int64, symbols []string, eng OrderSubmitter, cfg Config) *Trader {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	t := &Trader{
		id:           id,
		symbols:      symbols,
		eng:          eng,
		cfg:          cfg,
		cash:         initialCash,
		initialCash:  initialCash,
		positions:    make(map[string]int64, len(symbols)),
		averageCosts: make(map[string]float64, len(symbols)),
		refPrices:    make(map[string]float64, len(symbols)),
		rng:          rand.New(rand.NewSource(seed)),
	}
	for _, s := range symbols {
		t.positions[s] = 0
		t.refPrices[s] = float64(cfg.InitialPrice)
	}
	return t
}

// TraderID implements engine.FillHandler.
func (t *Trader) TraderID() string {
	return t.id
}

// Start launches the tick loop. Idempotent while running.
func (t *Trader) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.wg.Add(1)
	go t.loop()
}

// Stop halts the tick loop. Resting orders are not retracted.
func (t *Trader) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Trader) loop() {
	defer t.wg.Done()

	for {
		t.mu.Lock()
		delay := t.cfg.MinInterval +
			time.Duration(t.rng.Int63n(int64(t.cfg.MaxInterval-t.cfg.MinInterval)+1))
		t.mu.Unlock()

		select {
		case <-t.done:
			return
		case <-time.After(delay):
			t.PlaceOrder()
		}
	}
}

// PlaceOrder runs one tick of order generation. A tick that fails the
// affordability or availability guard is skipped entirely.
func (t *Trader) PlaceOrder() {
	t.mu.Lock()

	if len(t.symbols) == 0 {
		t.mu.Unlock()
		return
	}
	symbol := t.symbols[t.rng.Intn(len(t.symbols))]
	ref := t.walkReferencePrice(symbol)
	side := t.chooseSide(symbol)

	quantity := t.cfg.MinOrderSize +
		t.rng.Int63n(t.cfg.MaxOrderSize-t.cfg.MinOrderSize+1)

	u := (t.rng.Float64()*2 - 1) * t.cfg.Volatility
	var price int64
	if side == engine.SideBuy {
		price = int64(math.Round(ref * (1 - math.Abs(u))))
	} else {
		price = int64(math.Round(ref * (1 + math.Abs(u))))
	}
	if price < 1 {
		price = 1
	}

	// edge case: clamp to what the trader can pay for or deliver
	if side == engine.SideBuy && quantity*price > t.cash {
		quantity = t.cash / price
	}
	if side == engine.SideSell && quantity > t.positions[symbol] {
		quantity = t.positions[symbol]
	}
	if quantity < t.cfg.MinOrderSize {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	order, err := engine.NewOrder(t.id, symbol, side, quantity, price)
	if err != nil {
		log.Warn().Err(err).Str("trader_id", t.id).Msg("Order construction rejected")
		return
	}
	if err := t.eng.Submit(order); err != nil {
		log.Warn().Err(err).Str("trader_id", t.id).Msg("Order submission rejected")
		return
	}

	t.mu.Lock()
	t.ordersSent++
	t.mu.Unlock()
}

// walkReferencePrice advances the symbol's private random-walk price
// estimate. The walk deliberately ignores the real book. Caller holds t.mu.
func (t *Trader) walkReferencePrice(symbol string) float64 {
	ref, ok := t.refPrices[symbol]
	if !ok {
		ref = float64(t.cfg.InitialPrice)
	}
	ref *= 1 + t.rng.NormFloat64()*0.01
	if ref < float64(t.cfg.MinPrice) {
		ref = float64(t.cfg.MinPrice)
	}
	t.refPrices[symbol] = ref
	return ref
}

// chooseSide biases toward selling a large position and buying into a flat
// one. Caller holds t.mu.
func (t *Trader) chooseSide(symbol string) engine.OrderSide {
	position := t.positions[symbol]
	switch {
	case position > 500:
		if t.rng.Float64() < 0.7 {
			return engine.SideSell
		}
		return engine.SideBuy
	case position == 0:
		if t.rng.Float64() < 0.7 {
			return engine.SideBuy
		}
		return engine.SideSell
	default:
		if t.rng.Float64() < 0.5 {
			return engine.SideBuy
		}
		return engine.SideSell
	}
}

// OnFill implements engine.FillHandler. Runs on the matcher goroutine; it
// only updates trader accounting and returns.
func (t *Trader) OnFill(order *engine.Order, quantity, price int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	symbol := order.Symbol
	if order.Side == engine.SideBuy {
		cost := quantity * price
		t.cash -= cost

		oldPosition := t.positions[symbol]
		newPosition := oldPosition + quantity
		t.positions[symbol] = newPosition
		if newPosition > 0 {
			oldBasis := t.averageCosts[symbol] * float64(oldPosition)
			t.averageCosts[symbol] = (oldBasis + float64(cost)) / float64(newPosition)
		}
	} else {
		t.cash += quantity * price
		t.positions[symbol] -= quantity
		if t.positions[symbol] == 0 {
			t.averageCosts[symbol] = 0
		}
	}

	t.ordersFilled++
	t.totalVolume += quantity
}

// Cash returns the trader's cash in cents.
func (t *Trader) Cash() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cash
}

// Position returns the share count for symbol.
func (t *Trader) Position(symbol string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[symbol]
}

// AverageCost returns the average cost basis for symbol, in cents.
func (t *Trader) AverageCost(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.averageCosts[symbol]
}

// PortfolioValue is cash plus positions marked at the reference prices,
// in cents.
func (t *Trader) PortfolioValue() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.portfolioValueLocked()
}

func (t *Trader) portfolioValueLocked() float64 {
	value := float64(t.cash)
	for symbol, position := range t.positions {
		if position != 0 {
			value += float64(position) * t.refPrices[symbol]
		}
	}
	return value
}

// TotalPnL is portfolio value minus initial cash, in cents.
func (t *Trader) TotalPnL() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.portfolioValueLocked() - float64(t.initialCash)
}

// PositionPnL is the unrealized gain on the symbol's position, in cents.
func (t *Trader) PositionPnL(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	position := t.positions[symbol]
	if position == 0 {
		return 0
	}
	return float64(position)*t.refPrices[symbol] -
		float64(position)*t.averageCosts[symbol]
}

// TradingStats snapshots the trader's performance counters.
func (t *Trader) TradingStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	value := t.portfolioValueLocked()
	pnl := value - float64(t.initialCash)

	stats := Stats{
		TraderID:       t.id,
		InitialCash:    t.initialCash,
		Cash:           t.cash,
		PortfolioValue: value,
		TotalPnL:       pnl,
		OrdersSent:     t.ordersSent,
		OrdersFilled:   t.ordersFilled,
		TotalVolume:    t.totalVolume,
		Positions:      make(map[string]int64, len(t.positions)),
	}
	for s, p := range t.positions {
		stats.Positions[s] = p
	}
	if t.initialCash > 0 {
		stats.PnLPercent = pnl / float64(t.initialCash) * 100
	}
	if t.ordersSent > 0 {
		stats.FillRate = float64(t.ordersFilled) / float64(t.ordersSent) * 100
	}
	if t.ordersFilled > 0 {
		stats.AvgOrderSize = float64(t.totalVolume) / float64(t.ordersFilled)
	}
	return stats
}
