package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/oprema/internal/model"
)

const productColumns = `id, name, description, category, upc, created_at, deleted_at`

func scanProduct(row interface{ Scan(...any) error }, p *model.Product) error {
	var description, category, upc sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &description, &category, &upc, &p.CreatedAt, &p.DeletedAt); err != nil {
		return err
	}
	p.Description = description.String
	p.Category = category.String
	p.UPC = upc.String
	return nil
}

// CreateProduct creates a catalogue product.
func CreateProduct(ctx context.Context, q DBTX, name, description, category, upc string) (*model.Product, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO products (name, description, category, upc) VALUES (?, ?, ?, ?)`,
		name, nullString(description), nullString(category), nullString(upc),
	)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting product id: %w", err)
	}

	return GetProduct(ctx, q, id)
}

// GetProduct returns a product by ID.
func GetProduct(ctx context.Context, q DBTX, id int64) (*model.Product, error) {
	p := &model.Product{}
	err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id,
	), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// GetProductByUPC returns the active product with the given manufacturer UPC.
func GetProductByUPC(ctx context.Context, q DBTX, upc string) (*model.Product, error) {
	p := &model.Product{}
	err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE upc = ? AND deleted_at IS NULL`, upc,
	), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product by upc: %w", err)
	}
	return p, nil
}

// ListProducts returns all non-deleted products.
func ListProducts(ctx context.Context, q DBTX) ([]model.Product, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct updates a product's metadata.
func UpdateProduct(ctx context.Context, q DBTX, id int64, name, description, category, upc string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, category = ?, upc = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		name, nullString(description), nullString(category), nullString(upc), id,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}
	return nil
}

// DeleteProduct soft-deletes a product. Fails while live items reference it.
func DeleteProduct(ctx context.Context, q DBTX, id int64) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE product_id = ? AND status != 'removed'`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking product items: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete product: %d items still in inventory", count)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE products SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	return nil
}
