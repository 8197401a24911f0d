package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"hft-sim/src/telemetry"
)

// FillHandler receives fill notifications for a registered trader.
// OnFill runs on the matcher goroutine: it must not block and must not
// submit inline; post follow-up orders from the trader's own loop.
type FillHandler interface {
	TraderID() string
	OnFill(order *Order, quantity, price int64)
}

// Engine lifecycle states.
const (
	StateIdle    = "IDLE"
	StateRunning = "RUNNING"
	StateStopped = "STOPPED"
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Config sizes the engine's bounded buffers.
type Config struct {
	TradeHistoryCapacity int // global trade ring
	BookTradeCapacity    int // per-book trade ring
	LatencyWindowSize    int // rolling latency samples
	QueueCapacity        int
	BatchSize            int // orders drained per wakeup
	Metrics              *telemetry.Metrics
}

func DefaultConfig() Config {
	return Config{
		TradeHistoryCapacity: 10000,
		BookTradeCapacity:    DefaultBookTradeCapacity,
		LatencyWindowSize:    1000,
		QueueCapacity:        65536,
		BatchSize:            100,
	}
}

// Engine owns the global submission queue and serializes all matching on a
// single consumer goroutine. Producers (traders, CSV ingest) only enqueue;
// the matcher is the sole mutator of every book.
type Engine struct {
	cfg   Config
	queue chan *Order

	booksMu sync.RWMutex
	books   map[string]*OrderBook

	// ordersMu serializes matching against cancellation, making the
	// matcher authoritative for cancel/match races.
	ordersMu     sync.Mutex
	activeOrders map[string]*Order

	tradersMu sync.RWMutex
	traders   map[string]FillHandler

	statsMu            sync.Mutex
	history            *tradeRing
	tradeSeq           int64
	totalTrades        int64
	totalVolume        int64
	latencies          *latencyWindow
	startTime          time.Time
	ordersPerSecond    float64
	processedSinceTick int64
	lastTick           time.Time

	subscribersMu sync.Mutex
	subscribers   []func(PerformanceStats)

	state atomic.Int32
	done  chan struct{}
	wg    sync.WaitGroup
}

func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultConfig())
}

func NewEngineWithConfig(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.TradeHistoryCapacity <= 0 {
		cfg.TradeHistoryCapacity = def.TradeHistoryCapacity
	}
	if cfg.BookTradeCapacity <= 0 {
		cfg.BookTradeCapacity = def.BookTradeCapacity
	}
	if cfg.LatencyWindowSize <= 0 {
		cfg.LatencyWindowSize = def.LatencyWindowSize
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	return &Engine{
		cfg:          cfg,
		queue:        make(chan *Order, cfg.QueueCapacity),
		books:        make(map[string]*OrderBook),
		activeOrders: make(map[string]*Order),
		traders:      make(map[string]FillHandler),
		history:      newTradeRing(cfg.TradeHistoryCapacity),
		latencies:    newLatencyWindow(cfg.LatencyWindowSize),
		startTime:    time.Now(),
		lastTick:     time.Now(),
	}
}

// State reports the engine lifecycle state.
func (e *Engine) State() string {
	switch e.state.Load() {
	case stateRunning:
		return StateRunning
	case stateStopped:
		return StateStopped
	default:
		return StateIdle
	}
}

// Start launches the matcher goroutine. The engine is restartable: orders
// left in the queue by a previous Stop resume processing.
func (e *Engine) Start() {
	if !e.state.CompareAndSwap(stateIdle, stateRunning) &&
		!e.state.CompareAndSwap(stateStopped, stateRunning) {
		return
	}

	e.done = make(chan struct{})
	e.wg.Add(1)
	go e.run(e.done)
	log.Info().Int("queued", len(e.queue)).Msg("Matching engine started")
}

// Stop halts dequeueing. Idempotent. Enqueued-but-unprocessed orders stay
// in the queue until the next Start (or Clear).
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(stateRunning, stateStopped) {
		return
	}
	close(e.done)
	e.wg.Wait()
	log.Info().Int("queued", len(e.queue)).Msg("Matching engine stopped")
}

// RegisterTrader binds a trader id to its fill callback.
func (e *Engine) RegisterTrader(h FillHandler) {
	e.tradersMu.Lock()
	defer e.tradersMu.Unlock()
	e.traders[h.TraderID()] = h
}

// Submit validates the order and enqueues it for matching. It returns
// promptly and never waits for matching to complete. Permitted in any
// engine state; only a RUNNING engine drains the queue.
func (e *Engine) Submit(order *Order) error {
	if err := e.validate(order); err != nil {
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.OrdersRejected.Inc()
		}
		return err
	}
	e.queue <- order
	return nil
}

func (e *Engine) validate(order *Order) error {
	switch {
	case order == nil:
		return &ValidationError{Message: "invalid order: nil"}
	case order.TraderID == "":
		return &ValidationError{Message: "invalid order: trader id is required"}
	case order.Symbol == "":
		return &ValidationError{Message: "invalid order: symbol is required"}
	case order.Side != SideBuy && order.Side != SideSell:
		return &ValidationError{Message: "invalid order: side must be BUY or SELL"}
	case order.OriginalQuantity <= 0:
		return &ValidationError{Message: "invalid order: quantity must be positive"}
	case order.Price <= 0:
		return &ValidationError{Message: "invalid order: price must be positive"}
	}
	return nil
}

// Cancel removes the order from its book if resting and marks it CANCELLED.
// Returns whether an active order was found. If the order already began
// filling, only the remainder is cancelled; a fully filled order is a no-op.
func (e *Engine) Cancel(orderID string) bool {
	e.ordersMu.Lock()
	defer e.ordersMu.Unlock()

	order, exists := e.activeOrders[orderID]
	if !exists {
		return false
	}
	if !order.Cancel() {
		// edge case: terminal order still indexed; drop the stale entry
		delete(e.activeOrders, orderID)
		return false
	}

	book := e.GetOrderBook(order.Symbol)
	book.RemoveOrder(orderID, order.Side)
	delete(e.activeOrders, orderID)

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.OrdersCancelled.Inc()
	}
	log.Debug().Str("order_id", orderID).Str("symbol", order.Symbol).Msg("Order cancelled")
	return true
}

// GetOrderBook returns the book for symbol, lazily created on first use.
func (e *Engine) GetOrderBook(symbol string) *OrderBook {
	e.booksMu.RLock()
	if book, exists := e.books[symbol]; exists {
		e.booksMu.RUnlock()
		return book
	}
	e.booksMu.RUnlock()

	e.booksMu.Lock()
	defer e.booksMu.Unlock()

	// edge case: double-check after acquiring write lock
	if book, exists := e.books[symbol]; exists {
		return book
	}
	book := NewOrderBookWithCapacity(symbol, e.cfg.BookTradeCapacity)
	e.books[symbol] = book

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.ActiveSymbols.Set(float64(len(e.books)))
	}
	return book
}

func (e *Engine) run(done chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case order := <-e.queue:
			e.processOrder(order)
			e.drainBatch()
		case <-ticker.C:
			e.tick()
		}
	}
}

// drainBatch processes up to BatchSize-1 further queued orders without
// blocking, so a burst is absorbed in one wakeup.
func (e *Engine) drainBatch() {
	for i := 1; i < e.cfg.BatchSize; i++ {
		select {
		case order := <-e.queue:
			e.processOrder(order)
		default:
			return
		}
	}
}

func (e *Engine) processOrder(order *Order) {
	start := time.Now()

	e.ordersMu.Lock()
	e.activeOrders[order.ID] = order
	book := e.GetOrderBook(order.Symbol)

	if order.IsActive() {
		e.matchOrder(order, book)
	}

	if order.IsActive() && order.RemainingQuantity() > 0 {
		if err := book.AddOrder(order); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("Failed to rest order")
			delete(e.activeOrders, order.ID)
		}
	} else {
		delete(e.activeOrders, order.ID)
	}

	// edge case: matching must leave the book uncrossed
	if book.IsCrossed() {
		log.Error().Str("symbol", order.Symbol).Msg("Book crossed after matching")
	}
	e.ordersMu.Unlock()

	elapsed := time.Since(start)
	e.statsMu.Lock()
	e.latencies.Add(float64(elapsed.Nanoseconds()) / 1e6)
	e.processedSinceTick++
	e.statsMu.Unlock()

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.OrdersProcessed.Inc()
		e.cfg.Metrics.MatchLatency.Observe(elapsed.Seconds())
	}
}

// matchOrder runs the aggressive matching loop: repeatedly trade against
// the best opposite resting order while prices cross, at the resting
// (maker) price, FIFO within a level.
func (e *Engine) matchOrder(order *Order, book *OrderBook) {
	for order.IsActive() && order.RemainingQuantity() > 0 {
		var resting *Order
		if order.Side == SideBuy {
			resting = book.BestAsk()
			if resting == nil || resting.Price > order.Price {
				break
			}
		} else {
			resting = book.BestBid()
			if resting == nil || resting.Price < order.Price {
				break
			}
		}

		quantity := order.RemainingQuantity()
		if r := resting.RemainingQuantity(); r < quantity {
			quantity = r
		}
		price := resting.Price // maker price

		if err := order.Fill(quantity, price); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("Fill contract violation")
			break
		}
		if err := resting.Fill(quantity, price); err != nil {
			log.Error().Err(err).Str("order_id", resting.ID).Msg("Fill contract violation")
			break
		}
		book.applyFill(resting, quantity)

		var buyOrder, sellOrder *Order
		if order.Side == SideBuy {
			buyOrder, sellOrder = order, resting
		} else {
			buyOrder, sellOrder = resting, order
		}

		trade := e.recordTrade(buyOrder, sellOrder, quantity, price, book)

		// Fill callbacks fire buyer first, then seller, before the next trade.
		e.notifyFill(buyOrder, quantity, price)
		e.notifyFill(sellOrder, quantity, price)

		log.Debug().
			Str("trade_id", trade.ID).
			Str("symbol", trade.Symbol).
			Int64("quantity", quantity).
			Int64("price", price).
			Msg("Trade executed")

		if resting.RemainingQuantity() == 0 {
			book.RemoveOrder(resting.ID, resting.Side)
			delete(e.activeOrders, resting.ID)
		}
	}
}

func (e *Engine) recordTrade(buyOrder, sellOrder *Order, quantity, price int64, book *OrderBook) Trade {
	e.statsMu.Lock()
	e.tradeSeq++
	trade := Trade{
		ID:          fmt.Sprintf("%06d", e.tradeSeq),
		Timestamp:   time.Now(),
		Symbol:      buyOrder.Symbol,
		Quantity:    quantity,
		Price:       price,
		BuyerID:     buyOrder.TraderID,
		SellerID:    sellOrder.TraderID,
		BuyOrderID:  buyOrder.ID,
		SellOrderID: sellOrder.ID,
		Side:        AggressiveSideLabel,
	}
	e.history.Append(trade)
	e.totalTrades++
	e.totalVolume += quantity
	e.statsMu.Unlock()

	book.AppendTrade(trade)

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.TradesExecuted.WithLabelValues(trade.Symbol).Inc()
		e.cfg.Metrics.VolumeTraded.WithLabelValues(trade.Symbol).Add(float64(quantity))
	}
	return trade
}

func (e *Engine) notifyFill(order *Order, quantity, price int64) {
	e.tradersMu.RLock()
	handler, exists := e.traders[order.TraderID]
	e.tradersMu.RUnlock()
	if !exists {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("trader_id", order.TraderID).
				Interface("panic", r).
				Msg("Fill callback panicked")
		}
	}()
	handler.OnFill(order, quantity, price)
}

// tick refreshes the 1 Hz rolling stats and publishes them to subscribers.
func (e *Engine) tick() {
	e.statsMu.Lock()
	now := time.Now()
	elapsed := now.Sub(e.lastTick).Seconds()
	if elapsed > 0 {
		e.ordersPerSecond = float64(e.processedSinceTick) / elapsed
	}
	e.processedSinceTick = 0
	e.lastTick = now
	e.statsMu.Unlock()

	stats := e.PerformanceStats()

	if e.cfg.Metrics != nil {
		e.cfg.Metrics.ActiveOrders.Set(float64(stats.ActiveOrders))
	}

	e.subscribersMu.Lock()
	subs := make([]func(PerformanceStats), len(e.subscribers))
	copy(subs, e.subscribers)
	e.subscribersMu.Unlock()

	for _, fn := range subs {
		fn(stats)
	}
}

// Subscribe registers an observer for the 1 Hz stats publication.
func (e *Engine) Subscribe(fn func(PerformanceStats)) {
	e.subscribersMu.Lock()
	defer e.subscribersMu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// RecentTrades returns the most recent k trades across all symbols.
func (e *Engine) RecentTrades(k int) []Trade {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.history.Last(k)
}

// RecentTradesForSymbol returns the most recent k retained trades for symbol.
func (e *Engine) RecentTradesForSymbol(symbol string, k int) []Trade {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.history.LastForSymbol(symbol, k)
}

// AllTrades returns every trade retained in the global history.
func (e *Engine) AllTrades() []Trade {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.history.All()
}

// TraderOrders returns the trader's active orders.
func (e *Engine) TraderOrders(traderID string) []*Order {
	e.ordersMu.Lock()
	defer e.ordersMu.Unlock()

	var out []*Order
	for _, o := range e.activeOrders {
		if o.TraderID == traderID {
			out = append(out, o)
		}
	}
	return out
}

// ActiveOrderCount is the number of orders in the active index.
func (e *Engine) ActiveOrderCount() int {
	e.ordersMu.Lock()
	defer e.ordersMu.Unlock()
	return len(e.activeOrders)
}

// Books returns a snapshot of the symbol -> book map.
func (e *Engine) Books() map[string]*OrderBook {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()

	out := make(map[string]*OrderBook, len(e.books))
	for symbol, book := range e.books {
		out[symbol] = book
	}
	return out
}

// PerformanceStats snapshots the engine counters. Reads never observe torn
// counters: everything mutable is copied under its guard.
func (e *Engine) PerformanceStats() PerformanceStats {
	active := e.ActiveOrderCount()

	e.booksMu.RLock()
	symbols := len(e.books)
	e.booksMu.RUnlock()

	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	runtime := time.Since(e.startTime).Seconds()
	tradesPerSecond := float64(e.totalTrades) / max(runtime, 1)
	p50, p99 := e.latencies.Percentiles()

	return PerformanceStats{
		TotalTrades:     e.totalTrades,
		TotalVolume:     e.totalVolume,
		TradesPerSecond: tradesPerSecond,
		OrdersPerSecond: e.ordersPerSecond,
		AvgLatencyMs:    e.latencies.Mean(),
		LatencyP50Ms:    p50,
		LatencyP99Ms:    p99,
		ActiveOrders:    active,
		SymbolsActive:   symbols,
		RuntimeSeconds:  runtime,
	}
}

// SymbolSummary is the per-symbol row of MarketSummary.
type SymbolSummary struct {
	Symbol        string
	BestBid       int64
	HasBestBid    bool
	BestAsk       int64
	HasBestAsk    bool
	Spread        int64
	MidPrice      float64
	HasMidPrice   bool
	VWAP          float64
	RestingVolume int64
	TradeCount    int
}

// MarketSummary summarizes every instantiated book, with VWAP computed
// over each symbol's 5 most recent trades.
func (e *Engine) MarketSummary() map[string]SymbolSummary {
	summary := make(map[string]SymbolSummary)

	for symbol, book := range e.Books() {
		stats := book.Statistics()
		recent := book.RecentTrades(5)

		row := SymbolSummary{
			Symbol:        symbol,
			Spread:        stats.Spread,
			MidPrice:      stats.MidPrice,
			HasMidPrice:   stats.HasMidPrice,
			RestingVolume: stats.TotalBidVolume + stats.TotalAskVolume,
			TradeCount:    len(recent),
		}
		if bid, ok := book.BestBidPrice(); ok {
			row.BestBid = bid
			row.HasBestBid = true
		}
		if ask, ok := book.BestAskPrice(); ok {
			row.BestAsk = ask
			row.HasBestAsk = true
		}
		row.VWAP = vwap(recent)
		summary[symbol] = row
	}
	return summary
}

// SymbolStatistics aggregates price statistics over the symbol's most
// recent 100 retained trades plus the current book statistics.
type SymbolStatistics struct {
	Symbol      string
	LastPrice   int64
	HighPrice   int64
	LowPrice    int64
	VWAP        float64
	TotalVolume int64
	TradeCount  int
	Book        BookStatistics
}

// SymbolStats returns detailed statistics for symbol; ok is false when the
// symbol has no book.
func (e *Engine) SymbolStats(symbol string) (SymbolStatistics, bool) {
	e.booksMu.RLock()
	book, exists := e.books[symbol]
	e.booksMu.RUnlock()
	if !exists {
		return SymbolStatistics{}, false
	}

	recent := e.RecentTradesForSymbol(symbol, 100)

	stats := SymbolStatistics{
		Symbol:     symbol,
		TradeCount: len(recent),
		Book:       book.Statistics(),
	}
	for _, t := range recent {
		if stats.HighPrice == 0 || t.Price > stats.HighPrice {
			stats.HighPrice = t.Price
		}
		if stats.LowPrice == 0 || t.Price < stats.LowPrice {
			stats.LowPrice = t.Price
		}
		stats.TotalVolume += t.Quantity
	}
	if len(recent) > 0 {
		stats.LastPrice = recent[len(recent)-1].Price
	}
	stats.VWAP = vwap(recent)
	return stats, true
}

func vwap(trades []Trade) float64 {
	var value, volume int64
	for _, t := range trades {
		value += t.Price * t.Quantity
		volume += t.Quantity
	}
	if volume == 0 {
		return 0
	}
	return float64(value) / float64(volume)
}

// Clear empties the queue, every book, the trade history and all counters.
// Registered traders stay registered.
func (e *Engine) Clear() {
	// discard queued-but-unprocessed orders
	for {
		select {
		case <-e.queue:
		default:
			goto drained
		}
	}
drained:

	e.ordersMu.Lock()
	e.activeOrders = make(map[string]*Order)
	for _, book := range e.Books() {
		book.Clear()
	}
	e.ordersMu.Unlock()

	e.statsMu.Lock()
	e.history.Clear()
	e.tradeSeq = 0
	e.totalTrades = 0
	e.totalVolume = 0
	e.latencies.Clear()
	e.startTime = time.Now()
	e.lastTick = time.Now()
	e.processedSinceTick = 0
	e.ordersPerSecond = 0
	e.statsMu.Unlock()

	log.Info().Msg("Engine state cleared")
}
