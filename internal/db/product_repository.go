package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ecomstack/minishop/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock means the decrement would take stock below zero.
	// Stock is never clamped; the adjustment is rejected whole.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrAlreadyProcessed means this order's decrement was applied by an
	// earlier delivery of the same event.
	ErrAlreadyProcessed = errors.New("order already processed")
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(database *PostgresDB) *ProductRepository {
	return &ProductRepository{db: database.Conn}
}

// GetAll returns all products
func (r *ProductRepository) GetAll() ([]models.Product, error) {
	query := "SELECT id, name, price, stock, created_at FROM products ORDER BY id"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, nil
}

// GetByID returns a single product
func (r *ProductRepository) GetByID(id int) (*models.Product, error) {
	query := "SELECT id, name, price, stock, created_at FROM products WHERE id = $1"

	var p models.Product
	err := r.db.QueryRow(query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// Create inserts a new product
func (r *ProductRepository) Create(req models.CreateProductRequest) (*models.Product, error) {
	query := `
		INSERT INTO products (name, price, stock)
		VALUES ($1, $2, $3)
		RETURNING id, name, price, stock, created_at
	`

	var p models.Product
	err := r.db.QueryRow(query, req.Name, req.Price, req.Stock).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return &p, nil
}

// Update overwrites the provided fields; nil fields keep their current value.
func (r *ProductRepository) Update(id int, req models.UpdateProductRequest) (*models.Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($1, name),
		    price = COALESCE($2, price),
		    stock = COALESCE($3, stock)
		WHERE id = $4
		RETURNING id, name, price, stock, created_at
	`

	var p models.Product
	err := r.db.QueryRow(query, req.Name, req.Price, req.Stock, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return &p, nil
}

// Delete removes a product
func (r *ProductRepository) Delete(id int) error {
	query := "DELETE FROM products WHERE id = $1"

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// ApplyStockDecrement applies one order's stock decrement exactly once. The
// idempotency marker and the conditional decrement commit in the same
// transaction, so a crash before commit leaves no trace and the redelivered
// event retries cleanly.
//
// Returns ErrAlreadyProcessed, ErrProductNotFound or ErrInsufficientStock for
// the terminal business conditions; any other error is transient and the
// caller should requeue.
func (r *ProductRepository) ApplyStockDecrement(ctx context.Context, orderID, productID, quantity int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Idempotency marker: a duplicate delivery conflicts here and applies
	// nothing.
	result, err := tx.ExecContext(ctx,
		`INSERT INTO processed_orders (order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark order processed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAlreadyProcessed
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return ErrProductNotFound
	}

	// Conditional update: the stock >= quantity guard and the decrement are
	// one atomic statement, so concurrent consumers cannot double-count or
	// drive stock negative.
	result, err = tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInsufficientStock
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
