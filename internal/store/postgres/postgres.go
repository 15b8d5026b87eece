package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"omset/backend/internal/domain"
	"omset/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price
		FROM products
		WHERE deleted_at IS NULL
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&p.ID, &p.Name, &p.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, price, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING id
	`, product.Name, product.Price).Scan(&product.ID)
	if err != nil {
		if isCheckViolation(err) {
			return nil, store.NewValidationError("product", "name and positive price are required")
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, product.ID, product.Name, product.Price)
	if err != nil {
		if isCheckViolation(err) {
			return nil, store.NewValidationError("product", "name and positive price are required")
		}
		return nil, fmt.Errorf("update product %d: %w", product.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct soft-deletes so that historical transactions keep their product row.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return expectOneRow(res)
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.TransactionView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.transaction_date, t.product_id, p.name, t.quantity, t.price, t.total
		FROM transactions t
		JOIN products p ON p.id = t.product_id
		ORDER BY t.transaction_date DESC, t.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	views := make([]domain.TransactionView, 0, 128)
	for rows.Next() {
		var (
			v   domain.TransactionView
			day time.Time
		)
		if err := rows.Scan(&v.ID, &day, &v.ProductID, &v.ProductName, &v.Quantity, &v.Price, &v.Total); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		v.TransactionDate = domain.DateOf(day)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return views, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.TransactionView, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO transactions (transaction_date, product_id, quantity, price, total, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			RETURNING id, product_id
		)
		SELECT inserted.id, p.name
		FROM inserted
		JOIN products p ON p.id = inserted.product_id
	`, tx.TransactionDate.Time(), tx.ProductID, tx.Quantity, tx.Price, tx.Total).Scan(&tx.ID, &name)
	if err != nil {
		if verr := constraintError(err); verr != nil {
			return nil, verr
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return &domain.TransactionView{Transaction: tx, ProductName: name}, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.TransactionView, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE transactions
			SET transaction_date = $2, product_id = $3, quantity = $4, price = $5, total = $6, updated_at = now()
			WHERE id = $1
			RETURNING product_id
		)
		SELECT p.name
		FROM updated
		JOIN products p ON p.id = updated.product_id
	`, tx.ID, tx.TransactionDate.Time(), tx.ProductID, tx.Quantity, tx.Price, tx.Total).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if verr := constraintError(err); verr != nil {
			return nil, verr
		}
		return nil, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return &domain.TransactionView{Transaction: tx, ProductName: name}, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// constraintError maps schema constraint violations to validation errors.
func constraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23503":
		return store.NewValidationError("product_id", "references an unknown product")
	case "23514":
		field := strings.TrimSuffix(strings.TrimPrefix(pgErr.ConstraintName, "transactions_"), "_check")
		if field == "total" {
			return store.NewValidationError("total", "must equal quantity * price")
		}
		return store.NewValidationError(field, "violates ledger constraint")
	}
	return nil
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}
