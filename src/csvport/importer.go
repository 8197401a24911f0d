// Package csvport is the flat tabular boundary of the simulator: it parses
// externally supplied order batches and submits them through the same engine
// entry point the traders use, and serializes trades, books and trader
// statistics back out.
package csvport

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"hft-sim/src/engine"
)

// Submitter is the engine surface the importer needs.
type Submitter interface {
	Submit(order *engine.Order) error
}

var requiredColumns = []string{"trader_id", "symbol", "side", "quantity", "price"}

// ImportResult reports the outcome of one order batch import.
// Errors is keyed by 1-based data row number (the header row not counted).
type ImportResult struct {
	Success         bool
	Error           string
	OrdersSubmitted int
	OrdersFailed    int
	TotalRows       int
	Errors          map[int]string
	SymbolsImported []string
	TradersImported []string
}

// ImportOrders parses a header-bearing CSV of orders and submits each valid
// row through the engine. Failing rows are skipped and reported by row
// number; they cause no state change.
func ImportOrders(r io.Reader, eng Submitter) ImportResult {
	result := ImportResult{Errors: make(map[int]string)}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		result.Error = fmt.Sprintf("error reading CSV header: %v", err)
		return result
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Error = "missing required columns: " + strings.Join(missing, ", ")
		return result
	}

	symbols := make(map[string]struct{})
	traders := make(map[string]struct{})

	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		result.TotalRows++
		if err != nil {
			result.Errors[row] = fmt.Sprintf("malformed row: %v", err)
			result.OrdersFailed++
			continue
		}

		order, err := parseOrderRow(record, columns)
		if err != nil {
			result.Errors[row] = err.Error()
			result.OrdersFailed++
			continue
		}

		if err := eng.Submit(order); err != nil {
			result.Errors[row] = err.Error()
			result.OrdersFailed++
			continue
		}

		result.OrdersSubmitted++
		symbols[order.Symbol] = struct{}{}
		traders[order.TraderID] = struct{}{}
	}

	result.Success = true
	result.SymbolsImported = sortedKeys(symbols)
	result.TradersImported = sortedKeys(traders)

	log.Info().
		Int("submitted", result.OrdersSubmitted).
		Int("failed", result.OrdersFailed).
		Int("total_rows", result.TotalRows).
		Strs("symbols", result.SymbolsImported).
		Msg("Order CSV imported")
	return result
}

func parseOrderRow(record []string, columns map[string]int) (*engine.Order, error) {
	field := func(name string) string {
		idx := columns[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	traderID := field("trader_id")
	if traderID == "" {
		return nil, fmt.Errorf("trader_id is empty")
	}
	symbol := field("symbol")
	if symbol == "" {
		return nil, fmt.Errorf("symbol is empty")
	}

	sideStr := strings.ToUpper(field("side"))
	var side engine.OrderSide
	switch sideStr {
	case "BUY":
		side = engine.SideBuy
	case "SELL":
		side = engine.SideSell
	default:
		return nil, fmt.Errorf("invalid side %q", field("side"))
	}

	quantity, err := strconv.ParseInt(field("quantity"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q", field("quantity"))
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	price, err := parsePriceCents(field("price"))
	if err != nil {
		return nil, err
	}

	// timestamp column is informational only; the engine stamps its own
	// submit time at construction.
	return engine.NewOrder(traderID, symbol, side, quantity, price)
}

// parsePriceCents converts a decimal price string to cents exactly,
// rounding half-up below cent precision.
func parsePriceCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("price must be positive, got %s", s)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// ExtractSymbols returns the unique upper-cased symbols in an order CSV.
func ExtractSymbols(r io.Reader) []string {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil
	}
	symbolIdx := -1
	for i, name := range header {
		if strings.ToLower(strings.TrimSpace(name)) == "symbol" {
			symbolIdx = i
			break
		}
	}
	if symbolIdx < 0 {
		return nil
	}

	seen := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if symbolIdx < len(record) {
			if s := strings.ToUpper(strings.TrimSpace(record[symbolIdx])); s != "" {
				seen[s] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// TraderSetup describes a trader inferred from an order CSV.
type TraderSetup struct {
	TraderID    string
	InitialCash int64 // cents
	Symbols     []string
	OrderCount  int
}

// TraderSetups groups an order CSV by trader so the simulation can build an
// agent per submitter before replaying the file.
func TraderSetups(r io.Reader, initialCash int64) map[string]TraderSetup {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil
	}
	traderIdx, symbolIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "trader_id":
			traderIdx = i
		case "symbol":
			symbolIdx = i
		}
	}
	if traderIdx < 0 {
		return nil
	}

	type group struct {
		symbols map[string]struct{}
		count   int
	}
	groups := make(map[string]*group)

	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if traderIdx >= len(record) {
			continue
		}
		id := strings.TrimSpace(record[traderIdx])
		if id == "" {
			continue
		}
		g, ok := groups[id]
		if !ok {
			g = &group{symbols: make(map[string]struct{})}
			groups[id] = g
		}
		g.count++
		if symbolIdx >= 0 && symbolIdx < len(record) {
			if s := strings.ToUpper(strings.TrimSpace(record[symbolIdx])); s != "" {
				g.symbols[s] = struct{}{}
			}
		}
	}

	setups := make(map[string]TraderSetup, len(groups))
	for id, g := range groups {
		setups[id] = TraderSetup{
			TraderID:    id,
			InitialCash: initialCash,
			Symbols:     sortedKeys(g.symbols),
			OrderCount:  g.count,
		}
	}
	return setups
}

// SampleCSV returns a reference order file showing the expected columns.
func SampleCSV() string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{"trader_id", "symbol", "side", "quantity", "price", "timestamp"})
	_ = w.Write([]string{"TRADER_001", "AAPL", "BUY", "100", "150.25", "2025-07-06 10:00:00"})
	_ = w.Write([]string{"TRADER_002", "AAPL", "SELL", "75", "150.50", "2025-07-06 10:00:15"})
	_ = w.Write([]string{"TRADER_001", "GOOGL", "BUY", "50", "2800.75", "2025-07-06 10:00:30"})
	w.Flush()
	return b.String()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
