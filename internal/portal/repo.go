package portal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weitingzhao/bifrost-trader/internal/domain"
)

var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotCancellable 订单不在待成交状态，不可撤
	ErrNotCancellable = errors.New("order is not cancellable")
)

// ordersRepo 订单存储（SQLite）
type ordersRepo struct {
	db *sql.DB
}

func openOrdersRepo(path string) (*ordersRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite 驱动对并发写入敏感，限制单连接
	db.SetMaxOpenConns(1)

	r := &ordersRepo{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *ordersRepo) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  order_type TEXT NOT NULL,
  price REAL,
  stop_price REAL,
  status TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);`,
	}
	for _, q := range stmts {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}
	return nil
}

func (r *ordersRepo) insertOrder(ctx context.Context, o domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (id,symbol,side,quantity,order_type,price,stop_price,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
`, o.OrderID, o.Symbol, string(o.Side), o.Quantity, string(o.OrderType), o.Price, o.StopPrice,
		string(o.Status), o.Timestamp.Format(time.RFC3339Nano), o.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func scanOrder(scan func(dest ...any) error) (domain.Order, error) {
	var o domain.Order
	var price, stopPrice sql.NullFloat64
	var createdAt, updatedAt string
	if err := scan(&o.OrderID, &o.Symbol, &o.Side, &o.Quantity, &o.OrderType,
		&price, &stopPrice, &o.Status, &createdAt, &updatedAt); err != nil {
		return o, err
	}
	if price.Valid {
		v := price.Float64
		o.Price = &v
	}
	if stopPrice.Valid {
		v := stopPrice.Float64
		o.StopPrice = &v
	}
	o.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
	return o, nil
}

const orderColumns = `id,symbol,side,quantity,order_type,price,stop_price,status,created_at,updated_at`

func (r *ordersRepo) getOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=?`, orderID)
	o, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// listRecentOrders 最近的订单（含终态），新单在前
func (r *ordersRepo) listRecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ordersRepo) listPendingOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status=? ORDER BY created_at ASC`,
		string(domain.OrderStatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// fillOrder 把待成交订单标记为已成交并记录成交价
func (r *ordersRepo) fillOrder(ctx context.Context, orderID string, fillPrice float64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status=?, price=?, updated_at=? WHERE id=? AND status=?
`, string(domain.OrderStatusFilled), fillPrice, time.Now().Format(time.RFC3339Nano),
		orderID, string(domain.OrderStatusPending))
	if err != nil {
		return fmt.Errorf("fill order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// cancelOrder 撤销订单。只有 PENDING 可撤：
// 订单不存在返回 ErrOrderNotFound，状态不对返回 ErrNotCancellable。
func (r *ordersRepo) cancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id=?`, orderID)
	var status string
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if status != string(domain.OrderStatusPending) {
		return nil, ErrNotCancellable
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status=?, updated_at=? WHERE id=?`,
		string(domain.OrderStatusCancelled), time.Now().Format(time.RFC3339Nano), orderID); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r.getOrder(ctx, orderID)
}

func (r *ordersRepo) close() error {
	return r.db.Close()
}
