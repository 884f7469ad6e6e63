package request

import "github.com/shopspring/decimal"

// CreateProductRequest represents a product creation request
type CreateProductRequest struct {
	Name  string          `json:"name" binding:"required,min=1,max=255"`
	Code  string          `json:"code" binding:"omitempty,max=100"`
	Stock int             `json:"stock" binding:"min=0"`
	Price decimal.Decimal `json:"price"`
	Notes *string         `json:"notes"`
}

// UpdateProductRequest represents a product update request
type UpdateProductRequest struct {
	Name  *string          `json:"name" binding:"omitempty,min=1,max=255"`
	Code  *string          `json:"code" binding:"omitempty,min=1,max=100"`
	Stock *int             `json:"stock" binding:"omitempty,min=0"`
	Price *decimal.Decimal `json:"price"`
	Notes *string          `json:"notes"`
}

// ListRequest represents the common list query parameters
type ListRequest struct {
	Search  string `form:"search"`
	Page    int    `form:"page"`
	PerPage int    `form:"per_page"`
}
