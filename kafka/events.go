package kafka

import "time"

// StockChangedEvent is published after every committed ledger entry
type StockChangedEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	EntryID     string    `json:"entry_id"`
	ProductID   string    `json:"product_id"`
	Operation   string    `json:"operation"`
	Quantity    int       `json:"quantity"`
	Delta       int       `json:"delta"`
	StockBefore int       `json:"stock_before"`
	StockAfter  int       `json:"stock_after"`
	OrderID     string    `json:"order_id,omitempty"`
	PerformedBy string    `json:"performed_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LowStockEvent is published when a committed change leaves a product at or
// below its alerting threshold
type LowStockEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	ProductID string    `json:"product_id"`
	OwnerID   string    `json:"owner_id"`
	Quantity  int       `json:"quantity"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLineItem is one product position inside an order lifecycle event
type OrderLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderLifecycleEvent is consumed from the order workflow: a completed
// order drives one sale per line item, a returned order one return.
type OrderLifecycleEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Items     []OrderLineItem `json:"items"`
	Timestamp time.Time       `json:"timestamp"`
}

// Event types
const (
	EventTypeStockChanged   = "stock.changed"
	EventTypeStockLow       = "stock.low"
	EventTypeOrderCompleted = "order.completed"
	EventTypeOrderReturned  = "order.returned"
)

// Kafka topics
const (
	TopicStockChanged   = "stock-changed"
	TopicStockAlerts    = "stock-alerts"
	TopicOrderCompleted = "order-completed"
	TopicOrderReturned  = "order-returned"
)
