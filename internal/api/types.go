package api

import (
	"time"

	"github.com/shopspring/decimal"

	"spotmatch/internal/types"
)

// placeOrderRequest is the wire shape for POST /api/orders.
type placeOrderRequest struct {
	ClientOrderID string     `json:"client_order_id"`
	Symbol        string     `json:"symbol"`
	Side          string     `json:"side"`
	Type          string     `json:"type"`
	TimeInForce   string     `json:"time_in_force"`
	Price         string     `json:"price"`
	StopPrice     string     `json:"stop_price"`
	Quantity      string     `json:"quantity"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (r placeOrderRequest) toOrder(principalID string) (*types.Order, error) {
	price, err := parseOptionalDecimal(r.Price)
	if err != nil {
		return nil, err
	}
	stopPrice, err := parseOptionalDecimal(r.StopPrice)
	if err != nil {
		return nil, err
	}
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return nil, err
	}

	o := &types.Order{
		ClientOrderID: r.ClientOrderID,
		PrincipalID:   principalID,
		Symbol:        r.Symbol,
		Side:          types.Side(r.Side),
		Type:          types.OrderType(r.Type),
		TimeInForce:   types.TimeInForce(r.TimeInForce),
		Price:         price,
		StopPrice:     stopPrice,
		Quantity:      qty,
	}
	if r.ExpiresAt != nil {
		o.ExpiresAt = *r.ExpiresAt
	}
	return o, nil
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// orderResponse mirrors types.Order with string-encoded decimals, the
// wire-safe form for JSON over HTTP/WS.
type orderResponse struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	PrincipalID   string    `json:"principal_id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	TimeInForce   string    `json:"time_in_force"`
	Price         string    `json:"price"`
	StopPrice     string    `json:"stop_price,omitempty"`
	Quantity      string    `json:"quantity"`
	RemainingQty  string    `json:"remaining_qty"`
	FilledQty     string    `json:"filled_qty"`
	Status        string    `json:"status"`
	RejectReason  string    `json:"reject_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newOrderResponse(o types.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		PrincipalID:   o.PrincipalID,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Type:          string(o.Type),
		TimeInForce:   string(o.TimeInForce),
		Price:         o.Price.String(),
		StopPrice:     o.StopPrice.String(),
		Quantity:      o.Quantity.String(),
		RemainingQty:  o.RemainingQty.String(),
		FilledQty:     o.FilledQty.String(),
		Status:        string(o.Status),
		RejectReason:  o.RejectReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type tradeResponse struct {
	TradeID        uint64    `json:"trade_id"`
	Symbol         string    `json:"symbol"`
	Price          string    `json:"price"`
	Quantity       string    `json:"quantity"`
	AggressorSide  string    `json:"aggressor_side"`
	TakerPrincipal string    `json:"taker_principal"`
	MakerPrincipal string    `json:"maker_principal"`
	ExecutedAt     time.Time `json:"executed_at"`
}

func newTradeResponse(t types.Trade) tradeResponse {
	return tradeResponse{
		TradeID:        t.TradeID,
		Symbol:         t.Symbol,
		Price:          t.Price.String(),
		Quantity:       t.Quantity.String(),
		AggressorSide:  string(t.AggressorSide),
		TakerPrincipal: t.TakerPrincipal,
		MakerPrincipal: t.MakerPrincipal,
		ExecutedAt:     t.ExecutedAt,
	}
}

func newTradeResponses(trades []types.Trade) []tradeResponse {
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, newTradeResponse(t))
	}
	return out
}

type placeOrderResponse struct {
	Order  orderResponse   `json:"order"`
	Trades []tradeResponse `json:"trades"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type balanceResponse struct {
	PrincipalID string `json:"principal_id"`
	Asset       string `json:"asset"`
	Total       string `json:"total"`
	Locked      string `json:"locked"`
	Available   string `json:"available"`
}

// marketSnapshotResponse is the combined depth + recent-trades view served by GET /api/markets/{symbol}, following the teacher's
// dashboard pattern of aggregating several components into one response
// instead of forcing the client to round-trip per concern.
type marketSnapshotResponse struct {
	Symbol       string              `json:"symbol"`
	Timestamp    time.Time           `json:"timestamp"`
	Depth        types.DepthSnapshot `json:"depth"`
	RecentTrades []tradeResponse     `json:"recent_trades"`
}
