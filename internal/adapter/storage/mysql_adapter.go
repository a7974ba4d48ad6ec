package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/port"
)

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrNoReferenced   = 1452
)

var (
	_ port.EntityStore = (*MySQLAdapter)(nil)
	_ port.TxManager   = (*MySQLAdapter)(nil)
)

type MySQLAdapter struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sqlx.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

type sqlTxKey struct{}

func txFrom(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(sqlTxKey{}).(*sqlx.Tx)
	return tx, ok
}

func (m *MySQLAdapter) conn(ctx context.Context) sqlx.ExtContext {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return m.db
}

// shareLock makes reads inside a transaction hold shared row locks until
// commit, so referenced rows cannot be deleted underneath a write.
func shareLock(ctx context.Context) string {
	if _, ok := txFrom(ctx); ok {
		return " LOCK IN SHARE MODE"
	}
	return ""
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) stamp() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func (m *MySQLAdapter) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	row := *c
	row.CreatedAt = m.stamp()
	row.UpdatedAt = row.CreatedAt

	result, err := sqlx.NamedExecContext(ctx, m.conn(ctx), `
		INSERT INTO customers (name, email, phone, created_at, updated_at)
		VALUES (:name, :email, :phone, :created_at, :updated_at)`, row)
	if err != nil {
		if mysqlErrNumber(err) == mysqlErrDuplicateEntry {
			return &domain.ConstraintError{Entity: "customer", Field: "email", Err: err}
		}
		return fmt.Errorf("insert customer: %w", err)
	}

	if row.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	*c = row
	return nil
}

func (m *MySQLAdapter) InsertProduct(ctx context.Context, p *domain.Product) error {
	row := *p
	row.CreatedAt = m.stamp()
	row.UpdatedAt = row.CreatedAt

	result, err := sqlx.NamedExecContext(ctx, m.conn(ctx), `
		INSERT INTO products (name, price, stock, created_at, updated_at)
		VALUES (:name, :price, :stock, :created_at, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	if row.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	*p = row
	return nil
}

// InsertOrder writes the order and its associations in one transaction,
// joining the caller's if there is one.
func (m *MySQLAdapter) InsertOrder(ctx context.Context, o *domain.Order) error {
	return m.WithinTx(ctx, func(ctx context.Context) error {
		q := m.conn(ctx)
		row := *o
		row.CreatedAt = m.stamp()
		row.UpdatedAt = row.CreatedAt
		if row.OrderDate.IsZero() {
			row.OrderDate = row.CreatedAt
		}
		row.OrderDate = row.OrderDate.UTC().Truncate(time.Microsecond)

		result, err := sqlx.NamedExecContext(ctx, q, `
			INSERT INTO orders (customer_id, total_amount, order_date, created_at, updated_at)
			VALUES (:customer_id, :total_amount, :order_date, :created_at, :updated_at)`, row)
		if err != nil {
			if mysqlErrNumber(err) == mysqlErrNoReferenced {
				return &domain.ConstraintError{Entity: "order", Field: "customer_id", Err: err}
			}
			return fmt.Errorf("insert order: %w", err)
		}
		if row.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, productID := range row.ProductIDs {
			_, err := q.ExecContext(ctx, `
				INSERT INTO order_products (order_id, product_id) VALUES (?, ?)`,
				row.ID, productID,
			)
			if err != nil {
				if mysqlErrNumber(err) == mysqlErrNoReferenced {
					return &domain.ConstraintError{Entity: "order_product", Field: "product_id", Err: err}
				}
				return fmt.Errorf("insert order product: %w", err)
			}
		}

		*o = row
		return nil
	})
}

func (m *MySQLAdapter) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := sqlx.GetContext(ctx, m.conn(ctx), &c, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM customers WHERE id = ?`+shareLock(ctx), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, m.conn(ctx), &p, `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products WHERE id = ?`+shareLock(ctx), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	q := m.conn(ctx)

	var o domain.Order
	err := sqlx.GetContext(ctx, q, &o, `
		SELECT id, customer_id, total_amount, order_date, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	links, err := orderProducts(ctx, q, `WHERE order_id = ?`, id)
	if err != nil {
		return nil, err
	}
	o.ProductIDs = links[o.ID]
	return &o, nil
}

func (m *MySQLAdapter) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0)
	err := sqlx.SelectContext(ctx, m.conn(ctx), &out, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM customers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0)
	err := sqlx.SelectContext(ctx, m.conn(ctx), &out, `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	q := m.conn(ctx)

	out := make([]domain.Order, 0)
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT id, customer_id, total_amount, order_date, created_at, updated_at
		FROM orders ORDER BY order_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	links, err := orderProducts(ctx, q, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ProductIDs = links[out[i].ID]
	}
	return out, nil
}

type orderProduct struct {
	OrderID   int64 `db:"order_id"`
	ProductID int64 `db:"product_id"`
}

func orderProducts(ctx context.Context, q sqlx.QueryerContext, where string, args ...any) (map[int64][]int64, error) {
	var rows []orderProduct
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT order_id, product_id FROM order_products `+where+`
		ORDER BY order_id, product_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query order products: %w", err)
	}

	links := make(map[int64][]int64)
	for _, r := range rows {
		links[r.OrderID] = append(links[r.OrderID], r.ProductID)
	}
	return links, nil
}

func (m *MySQLAdapter) CustomerEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, m.conn(ctx), &exists, `
		SELECT EXISTS(SELECT 1 FROM customers WHERE email = ?)`, email)
	if err != nil {
		return false, fmt.Errorf("query customer email: %w", err)
	}
	return exists, nil
}

func (m *MySQLAdapter) UpdateProductStock(ctx context.Context, id int64, from, to int) error {
	result, err := m.conn(ctx).ExecContext(ctx, `
		UPDATE products
		SET stock = ?, updated_at = ?
		WHERE id = ? AND stock = ?`,
		to, m.stamp(), id, from,
	)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
