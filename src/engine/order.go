package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	StatusPending         OrderStatus = "PENDING"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// Fill is a single execution against an order.
type Fill struct {
	Quantity  int64
	Price     int64 // price in cents
	Timestamp time.Time
}

// Order is the unit of trading intent. Fields set at construction are
// immutable; remaining quantity, status and the fill history are mutated
// only by the matcher (or by an explicit cancel routed through the engine).
//
// edge case: price stored as int64 in cents to avoid floating-point precision errors
type Order struct {
	ID               string
	TraderID         string
	Symbol           string
	Side             OrderSide
	OriginalQuantity int64
	Price            int64 // price in cents
	SubmitTime       time.Time

	mu        sync.Mutex
	remaining int64
	status    OrderStatus
	fills     []Fill
}

// NewOrder validates the order parameters, assigns a globally unique ID and
// stamps the submit time. The symbol is normalized to upper case.
func NewOrder(traderID, symbol string, side OrderSide, quantity, price int64) (*Order, error) {
	if traderID == "" {
		return nil, &ValidationError{Message: "invalid order: trader id is required"}
	}
	if symbol == "" {
		return nil, &ValidationError{Message: "invalid order: symbol is required"}
	}
	if side != SideBuy && side != SideSell {
		return nil, &ValidationError{Message: "invalid order: side must be BUY or SELL"}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Message: "invalid order: quantity must be positive"}
	}
	if price <= 0 {
		return nil, &ValidationError{Message: "invalid order: price must be positive"}
	}

	return &Order{
		ID:               uuid.New().String(),
		TraderID:         traderID,
		Symbol:           strings.ToUpper(symbol),
		Side:             side,
		OriginalQuantity: quantity,
		Price:            price,
		SubmitTime:       time.Now(),
		remaining:        quantity,
		status:           StatusPending,
	}, nil
}

// Fill applies an execution of quantity shares at price.
// Overfilling an order is a contract error and leaves the order unchanged.
func (o *Order) Fill(quantity, price int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if quantity <= 0 {
		return &ContractError{Message: "fill quantity must be positive"}
	}
	if quantity > o.remaining {
		return &ContractError{Message: fmt.Sprintf(
			"fill quantity %d exceeds remaining order quantity %d", quantity, o.remaining)}
	}

	o.fills = append(o.fills, Fill{Quantity: quantity, Price: price, Timestamp: time.Now()})
	o.remaining -= quantity

	if o.remaining == 0 {
		o.status = StatusFilled
	} else {
		o.status = StatusPartiallyFilled
	}
	return nil
}

// Cancel transitions an active order to CANCELLED. It reports whether the
// transition happened; cancelling a terminal order is a no-op.
func (o *Order) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != StatusPending && o.status != StatusPartiallyFilled {
		return false
	}
	o.status = StatusCancelled
	return true
}

func (o *Order) Status() OrderStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Order) RemainingQuantity() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remaining
}

// FilledQuantity is the sum of all fill quantities.
func (o *Order) FilledQuantity() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var total int64
	for _, f := range o.fills {
		total += f.Quantity
	}
	return total
}

// AverageFillPrice is the volume-weighted mean fill price in cents,
// 0 when the order has no fills.
func (o *Order) AverageFillPrice() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	var totalValue, totalQty int64
	for _, f := range o.fills {
		totalValue += f.Quantity * f.Price
		totalQty += f.Quantity
	}
	if totalQty == 0 {
		return 0
	}
	return float64(totalValue) / float64(totalQty)
}

// Fills returns a snapshot of the order's fill history.
func (o *Order) Fills() []Fill {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Fill, len(o.fills))
	copy(out, o.fills)
	return out
}

// IsActive reports whether the order can still be filled.
func (o *Order) IsActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status == StatusPending || o.status == StatusPartiallyFilled
}

func (o *Order) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("Order(%s, %s, %s, %s, %d@%d.%02d)",
		id, o.TraderID, o.Symbol, o.Side, o.remaining, o.Price/100, o.Price%100)
}
