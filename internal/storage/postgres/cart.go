package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/product"
)

const (
	listCartSQL = `SELECT p.id, p.name, p.image_url, p.price, p.category, c.quantity
		FROM cart_items c JOIN products p ON p.id = c.product_id
		ORDER BY c.position`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	addCartItemSQL = `INSERT INTO cart_items (product_id, quantity) VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET
			quantity = cart_items.quantity + EXCLUDED.quantity,
			updated_at = now()`

	dropCartItemSQL = `DELETE FROM cart_items WHERE product_id = $1 AND quantity + $2 <= 0`

	reduceCartItemSQL = `UPDATE cart_items SET quantity = quantity + $2, updated_at = now()
		WHERE product_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. It holds a
// single cart.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the cart with totals computed from current product prices.
func (r *CartRepository) Get(ctx context.Context) (*cart.Cart, error) {
	return getCart(ctx, r.pool)
}

// Adjust applies delta to the product's line inside one transaction and
// returns the resulting cart.
func (r *CartRepository) Adjust(ctx context.Context, productID int64, delta int) (*cart.Cart, error) {
	if delta == 0 {
		return nil, cart.ErrZeroQuantity
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning cart transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, productExistsSQL, productID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking product %d: %w", productID, err)
	}
	if !exists {
		return nil, product.ErrNotFound
	}

	if delta > 0 {
		_, err = tx.Exec(ctx, addCartItemSQL, productID, delta)
	} else {
		// Drop the line first so the quantity never violates its check.
		if _, err = tx.Exec(ctx, dropCartItemSQL, productID, delta); err == nil {
			_, err = tx.Exec(ctx, reduceCartItemSQL, productID, delta)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("adjusting cart item %d: %w", productID, err)
	}

	c, err := getCart(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing cart transaction: %w", err)
	}
	return c, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getCart(ctx context.Context, q querier) (*cart.Cart, error) {
	rows, err := q.Query(ctx, listCartSQL)
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.Product.ID, &l.Product.Name, &l.Product.ImageURL, &l.Product.Price, &l.Product.Category, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	return cart.Totals(lines), nil
}
