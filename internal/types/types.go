// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the exchange core — orders,
// book entries, trades, principals, and subscription sessions. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the supported order kinds.
type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopLimit  OrderType = "STOP_LIMIT"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

// TimeInForce controls how long an order rests on the book.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good-Til-Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TIFFOK TimeInForce = "FOK" // Fill-Or-Kill
	TIFGTD TimeInForce = "GTD" // Good-Til-Date
)

// OrderStatus is the order lifecycle state machine.
type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusOpen     OrderStatus = "OPEN"
	StatusPartial  OrderStatus = "PARTIALLY_FILLED"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
)

// Order is the full order record tracked by the matching engine.
type Order struct {
	ID              string
	ClientOrderID   string // idempotency key, unique per principal
	PrincipalID     string
	Symbol          string
	Side            Side
	Type            OrderType
	TimeInForce     TimeInForce
	Price           decimal.Decimal // limit price; zero for market orders
	StopPrice       decimal.Decimal // trigger price for stop orders
	Quantity        decimal.Decimal // original requested quantity
	RemainingQty    decimal.Decimal // quantity not yet filled or cancelled
	FilledQty       decimal.Decimal
	AvgFillPrice    decimal.Decimal // quantity-weighted mean price of FilledQty
	Status          OrderStatus
	RejectReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time // only meaningful for TIFGTD
	Sequence        uint64    // not set by the matching engine (stays zero); a resting order's book sequence is on BookEntry.Sequence
}

// IsTerminal reports whether the order can no longer be matched or cancelled.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// BookEntry is the resting representation of an order inside a price level.
type BookEntry struct {
	OrderID      string
	PrincipalID  string
	Side         Side
	Price        decimal.Decimal
	RemainingQty decimal.Decimal
	Sequence     uint64 // monotonic per-symbol insertion counter, breaks price ties
}

// Trade is a single execution between a resting (maker) and an incoming
// (taker) order.
type Trade struct {
	TradeID         uint64
	Symbol          string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	MakerOrderID    string
	TakerOrderID    string
	MakerPrincipal  string
	TakerPrincipal  string
	AggressorSide   Side // side of the taker order
	Commission      decimal.Decimal
	CommissionAsset string
	ExecutedAt      time.Time
	SymbolSequence  uint64 // per-symbol trade sequence, used for gap detection
}

// Principal is an authenticated actor placing orders.
type Principal struct {
	ID            string
	DailyTradeCap int
	TradesToday   int
	VerifiedState string // e.g. "verified", "pending", "unverified"
	BoundWallets  []string
}

// Subscription is a single channel a session has subscribed to.
type Subscription struct {
	Channel string // e.g. "trades:BTC-USD", "orders:<principal>", "book:BTC-USD"
}

// DepthLevel is a single aggregated price level for depth snapshots.
type DepthLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

// DepthSnapshot is a point-in-time view of a symbol's book.
type DepthSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}
