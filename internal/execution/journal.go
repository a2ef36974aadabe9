package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-gatewayv1/internal/model"
)

// Journal persists placed orders to SQLite for audit. Session state is never
// journaled; only accepted orders and their last known status.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) the SQLite order journal.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id        TEXT NOT NULL,
		symbol          TEXT NOT NULL,
		exchange        TEXT NOT NULL,
		side            TEXT NOT NULL,
		order_type      TEXT NOT NULL,
		product_type    TEXT NOT NULL,
		qty             INTEGER NOT NULL,
		price           REAL,
		status          TEXT,
		placed_at       DATETIME NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol, exchange);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened order journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// Record persists one placed order with its reconciled status (possibly
// unknown).
func (j *Journal) Record(req model.OrderRequest, resp model.FinalOrderResponse) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var price any
	if req.Price != nil {
		price = *req.Price
	}
	var status any
	if resp.OrderStatus != nil {
		status = *resp.OrderStatus
	}

	_, err := j.db.Exec(
		`INSERT INTO orders (order_id, symbol, exchange, side, order_type, product_type, qty, price, status, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resp.OrderID,
		req.TradingSymbol,
		string(req.Exchange),
		string(req.TransactionType),
		string(req.OrderType),
		string(req.ProductType),
		req.Quantity,
		price,
		status,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// OrderRecord represents a row from the orders table.
type OrderRecord struct {
	ID          int64    `json:"id"`
	OrderID     string   `json:"order_id"`
	Symbol      string   `json:"symbol"`
	Exchange    string   `json:"exchange"`
	Side        string   `json:"side"`
	OrderType   string   `json:"order_type"`
	ProductType string   `json:"product_type"`
	Qty         int64    `json:"qty"`
	Price       *float64 `json:"price,omitempty"`
	Status      *string  `json:"status,omitempty"`
	PlacedAt    string   `json:"placed_at"`
}

// GetOrders returns the last N journaled orders, newest first.
func (j *Journal) GetOrders(limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, symbol, exchange, side, order_type, product_type, qty, price, status, placed_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ID, &o.OrderID, &o.Symbol, &o.Exchange, &o.Side,
			&o.OrderType, &o.ProductType, &o.Qty, &o.Price, &o.Status, &o.PlacedAt); err != nil {
			continue
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
