package enum

// ── Event types (published after commit) ──

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// ── Stock levels (inventory reporting only) ──

const (
	StockLevelOut = "OUT_OF_STOCK"
	StockLevelLow = "LOW_STOCK"
	StockLevelOK  = "IN_STOCK"
)

// LowStockThreshold is the stock count at or below which a menu is reported
// as running low.
const LowStockThreshold = 5

// StockLevel classifies a stock count for the inventory screen.
func StockLevel(stock int32) string {
	switch {
	case stock <= 0:
		return StockLevelOut
	case stock <= LowStockThreshold:
		return StockLevelLow
	}
	return StockLevelOK
}

// ── Event brokers ──

const (
	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)
