package api

import "time"

// wsEvent is the typed envelope published onto analytics/alert channels,
// generalized from the teacher's DashboardEvent wrapper (type + timestamp +
// scope + payload) to the exchange's symbol-scoped channels instead of a
// single global dashboard feed.
type wsEvent struct {
	Type      string      `json:"type"` // "alert" or "sentiment"
	Timestamp time.Time   `json:"timestamp"`
	Symbol    string      `json:"symbol,omitempty"`
	Data      interface{} `json:"data"`
}

func newAlertEvent(symbol string, data interface{}) wsEvent {
	return wsEvent{Type: "alert", Timestamp: time.Now(), Symbol: symbol, Data: data}
}

func newSentimentEvent(symbol string, data interface{}) wsEvent {
	return wsEvent{Type: "sentiment", Timestamp: time.Now(), Symbol: symbol, Data: data}
}
