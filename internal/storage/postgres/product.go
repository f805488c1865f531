package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/freshcart/internal/domain/product"
)

const (
	filterProductsSQL = `FROM products
		WHERE ($1 = '' OR lower(name) LIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)`

	countProductsSQL = `SELECT count(*) ` + filterProductsSQL

	searchProductsSQL = `SELECT id, name, image_url, price, category ` + filterProductsSQL + `
		ORDER BY id LIMIT $3 OFFSET $4`

	getProductByIDSQL = `SELECT id, name, image_url, price, category
		FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, image_url, price, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			image_url = EXCLUDED.image_url,
			price = EXCLUDED.price,
			category = EXCLUDED.category`
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Search returns one page of products ordered by id. The count and the page
// are fetched in a single round trip.
func (r *ProductRepository) Search(ctx context.Context, q product.Query) (*product.Page, error) {
	needle := likeEscaper.Replace(strings.ToLower(q.Filters.Query))
	category := q.Filters.Category
	offset := q.Offset()

	batch := &pgx.Batch{}
	batch.Queue(countProductsSQL, needle, category)
	batch.Queue(searchProductsSQL, needle, category, q.Limit, offset)

	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	var total int
	if err := br.QueryRow().Scan(&total); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}

	rows, err := br.Query()
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	if products == nil {
		products = []product.Product{}
	}

	return &product.Page{
		Products: products,
		HasMore:  offset+len(products) < total,
		Total:    total,
	}, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// Upsert inserts or updates the given products in one batch.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(upsertProductSQL, p.ID, p.Name, p.ImageURL, p.Price, p.Category)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting products: %w", err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.ImageURL, &p.Price, &p.Category)
	return p, err
}
