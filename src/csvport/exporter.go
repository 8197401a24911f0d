package csvport

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"hft-sim/src/engine"
	"hft-sim/src/trader"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// priceString renders cents with 4 decimal places.
func priceString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(4)
}

// valueString renders cents with 2 decimal places.
func valueString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// centsFloat2 renders fractional cents (accounting values) in dollars with
// 2 decimal places.
func centsFloat2(cents float64) string {
	return fmt.Sprintf("%.2f", cents/100)
}

// ExportTrades writes one row per trade. The Side column carries the
// upstream aggressive-side convention: always BUY.
func ExportTrades(w io.Writer, trades []engine.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Trade ID", "Timestamp", "Symbol", "Side", "Quantity",
		"Price", "Value", "Buyer ID", "Seller ID",
		"Buy Order ID", "Sell Order ID",
	}); err != nil {
		return err
	}

	for _, t := range trades {
		if err := cw.Write([]string{
			t.ID,
			t.Timestamp.Format(timestampLayout),
			t.Symbol,
			t.Side,
			strconv.FormatInt(t.Quantity, 10),
			priceString(t.Price),
			valueString(t.Value()),
			t.BuyerID,
			t.SellerID,
			t.BuyOrderID,
			t.SellOrderID,
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportOrderBooks writes a depth snapshot per book: one row per level per
// side, level 1 best, with volume accumulated down the book.
func ExportOrderBooks(w io.Writer, books []*engine.OrderBook, depth int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Symbol", "Timestamp", "Side", "Price Level", "Price",
		"Quantity", "Order Count", "Cumulative Volume",
	}); err != nil {
		return err
	}

	for _, book := range books {
		timestamp := time.Now().Format(timestampLayout)
		bids, asks := book.MarketDepth(depth)

		writeSide := func(side string, levels []engine.DepthLevel) error {
			for i, level := range levels {
				if err := cw.Write([]string{
					book.Symbol,
					timestamp,
					side,
					strconv.Itoa(i + 1),
					priceString(level.Price),
					strconv.FormatInt(level.Quantity, 10),
					strconv.Itoa(level.OrderCount),
					strconv.FormatInt(level.CumulativeVolume, 10),
				}); err != nil {
					return err
				}
			}
			return nil
		}

		if err := writeSide("BID", bids); err != nil {
			return err
		}
		if err := writeSide("ASK", asks); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportTraderPerformance writes one row per trader.
func ExportTraderPerformance(w io.Writer, stats []trader.Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Trader ID", "Initial Cash", "Current Cash", "Portfolio Value",
		"Total P&L", "P&L %", "Orders Sent", "Orders Filled", "Fill Rate %",
		"Total Volume", "Avg Order Size",
	}); err != nil {
		return err
	}

	for _, s := range stats {
		if err := cw.Write([]string{
			s.TraderID,
			valueString(s.InitialCash),
			valueString(s.Cash),
			centsFloat2(s.PortfolioValue),
			centsFloat2(s.TotalPnL),
			fmt.Sprintf("%.2f", s.PnLPercent),
			strconv.FormatInt(s.OrdersSent, 10),
			strconv.FormatInt(s.OrdersFilled, 10),
			fmt.Sprintf("%.2f", s.FillRate),
			strconv.FormatInt(s.TotalVolume, 10),
			fmt.Sprintf("%.2f", s.AvgOrderSize),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportEngineMetrics writes one row per metric with its unit.
func ExportEngineMetrics(w io.Writer, stats engine.PerformanceStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Metric", "Value", "Unit"}); err != nil {
		return err
	}

	rows := [][]string{
		{"Total Trades", strconv.FormatInt(stats.TotalTrades, 10), "count"},
		{"Total Volume", strconv.FormatInt(stats.TotalVolume, 10), "shares"},
		{"Trades Per Second", fmt.Sprintf("%.2f", stats.TradesPerSecond), "trades/sec"},
		{"Orders Per Second", fmt.Sprintf("%.2f", stats.OrdersPerSecond), "orders/sec"},
		{"Average Latency", fmt.Sprintf("%.2f", stats.AvgLatencyMs), "milliseconds"},
		{"Active Orders", strconv.Itoa(stats.ActiveOrders), "count"},
		{"Runtime", fmt.Sprintf("%.2f", stats.RuntimeSeconds), "seconds"},
		{"Active Symbols", strconv.Itoa(stats.SymbolsActive), "count"},
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportMarketSummary writes one row per symbol with book-derived prices
// and recent-trade VWAP.
func ExportMarketSummary(w io.Writer, summary map[string]engine.SymbolSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Symbol", "Best Bid", "Best Ask", "Spread", "Spread %",
		"Mid Price", "VWAP", "Volume", "Trade Count",
	}); err != nil {
		return err
	}

	symbols := make([]string, 0, len(summary))
	for s := range summary {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		row := summary[symbol]

		bestBid, bestAsk, spread, midPrice := "", "", "", ""
		spreadPct := 0.0
		if row.HasBestBid {
			bestBid = priceString(row.BestBid)
		}
		if row.HasBestAsk {
			bestAsk = priceString(row.BestAsk)
		}
		if row.HasMidPrice {
			spread = priceString(row.Spread)
			midPrice = fmt.Sprintf("%.4f", row.MidPrice/100)
			if row.MidPrice > 0 {
				spreadPct = float64(row.Spread) / row.MidPrice * 100
			}
		}

		if err := cw.Write([]string{
			symbol,
			bestBid,
			bestAsk,
			spread,
			fmt.Sprintf("%.4f", spreadPct),
			midPrice,
			fmt.Sprintf("%.4f", row.VWAP/100),
			strconv.FormatInt(row.RestingVolume, 10),
			strconv.Itoa(row.TradeCount),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
