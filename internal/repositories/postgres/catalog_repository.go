package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/meridian-goods/api/internal/domain"
	"github.com/meridian-goods/api/internal/repositories"
)

// CatalogRepository implements repositories.CatalogRepository on the products table.
type CatalogRepository struct {
	provider *Provider
}

// NewCatalogRepository constructs the repository over the shared provider.
func NewCatalogRepository(provider *Provider) *CatalogRepository {
	return &CatalogRepository{provider: provider}
}

const productColumns = `id, sku, name, price_cents, stock, sales_count, is_active, updated_at`

// FindProduct reads a product row, joining the ambient transaction when present.
func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	const op = "catalog.find_product"
	row := r.provider.querier(ctx).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID)

	var product domain.Product
	var price int64
	err := row.Scan(&product.ID, &product.SKU, &product.Name, &price,
		&product.Stock, &product.SalesCount, &product.IsActive, &product.UpdatedAt)
	if err != nil {
		return domain.Product{}, wrapError(op, err)
	}
	product.Price = domain.Cents(price)
	return product, nil
}

// ReserveStock decrements stock with a single conditional statement. Zero rows
// affected means the product is missing, inactive, or short on stock; the
// follow-up read picks the precise cause for the caller.
func (r *CatalogRepository) ReserveStock(ctx context.Context, productID string, quantity int) error {
	const op = "catalog.reserve_stock"
	if quantity <= 0 {
		return repositories.NewCatalogError(repositories.CatalogErrorUnknown, productID,
			fmt.Sprintf("quantity must be positive, got %d", quantity), nil)
	}

	q := r.provider.querier(ctx)
	tag, err := q.Exec(ctx,
		`UPDATE products
		    SET stock = stock - $2,
		        sales_count = sales_count + $2,
		        updated_at = now()
		  WHERE id = $1 AND is_active AND stock >= $2`,
		productID, quantity)
	if err != nil {
		return wrapError(op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var stock int
	var active bool
	err = q.QueryRow(ctx, `SELECT stock, is_active FROM products WHERE id = $1`, productID).
		Scan(&stock, &active)
	if err != nil {
		wrapped := wrapError(op, err)
		var repoErr repositories.RepositoryError
		if errors.As(wrapped, &repoErr) && repoErr.IsNotFound() {
			return repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, productID, "product not found", wrapped)
		}
		return wrapped
	}
	if !active {
		return repositories.NewCatalogError(repositories.CatalogErrorProductInactive, productID, "product is not active", nil)
	}
	return repositories.NewCatalogError(repositories.CatalogErrorInsufficientStock, productID,
		fmt.Sprintf("requested %d, available %d", quantity, stock), nil)
}

// RestoreStock returns quantity to stock; sales_count never goes below zero.
func (r *CatalogRepository) RestoreStock(ctx context.Context, productID string, quantity int) error {
	const op = "catalog.restore_stock"
	if quantity <= 0 {
		return repositories.NewCatalogError(repositories.CatalogErrorUnknown, productID,
			fmt.Sprintf("quantity must be positive, got %d", quantity), nil)
	}

	tag, err := r.provider.querier(ctx).Exec(ctx,
		`UPDATE products
		    SET stock = stock + $2,
		        sales_count = GREATEST(sales_count - $2, 0),
		        updated_at = now()
		  WHERE id = $1`,
		productID, quantity)
	if err != nil {
		return wrapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return repositories.NewCatalogError(repositories.CatalogErrorProductNotFound, productID, "product not found", nil)
	}
	return nil
}
