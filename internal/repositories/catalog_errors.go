package repositories

import "fmt"

// CatalogErrorCode enumerates repository error causes for catalog operations.
type CatalogErrorCode string

const (
	// CatalogErrorUnknown represents an unspecified failure.
	CatalogErrorUnknown CatalogErrorCode = "catalog_unknown"
	// CatalogErrorProductNotFound indicates the product row does not exist.
	CatalogErrorProductNotFound CatalogErrorCode = "catalog_product_not_found"
	// CatalogErrorProductInactive indicates the product is not purchasable.
	CatalogErrorProductInactive CatalogErrorCode = "catalog_product_inactive"
	// CatalogErrorInsufficientStock indicates requested quantity exceeds availability.
	CatalogErrorInsufficientStock CatalogErrorCode = "catalog_insufficient_stock"
)

// CatalogError wraps catalog-specific failures with machine readable codes.
type CatalogError struct {
	Op        string
	Code      CatalogErrorCode
	ProductID string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CatalogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCatalogError constructs a typed catalog error.
func NewCatalogError(code CatalogErrorCode, productID, message string, err error) *CatalogError {
	if message == "" {
		message = string(code)
	}
	return &CatalogError{
		Code:      code,
		ProductID: productID,
		Message:   message,
		Err:       err,
	}
}
