package request

import (
	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// SaleItemRequest represents one line of a sale
type SaleItemRequest struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	ProductName string          `json:"product_name" binding:"max=255"`
	Quantity    int             `json:"quantity" binding:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateSaleRequest represents a sale creation request. Date defaults to
// today.
type CreateSaleRequest struct {
	CustomerID           uuid.UUID         `json:"customer_id" binding:"required"`
	Date                 string            `json:"date"`
	Items                []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	Discount             decimal.Decimal   `json:"discount"`
	Tax                  decimal.Decimal   `json:"tax"`
	PaymentType          enum.PaymentType  `json:"payment_type" binding:"required"`
	NumberOfInstallments int               `json:"number_of_installments" binding:"min=0,max=600"`
	Notes                *string           `json:"notes"`
}

// UpdateSaleRequest represents the editable header fields of a sale
type UpdateSaleRequest struct {
	Date          *string                 `json:"date"`
	PaymentStatus *enum.SalePaymentStatus `json:"payment_status"`
	Notes         *string                 `json:"notes"`
}

// SaleFilterRequest represents sale list query parameters
type SaleFilterRequest struct {
	Search        string `form:"search"`
	CustomerID    string `form:"customer_id"`
	PaymentType   string `form:"payment_type"`
	PaymentStatus string `form:"payment_status"`
	DateFrom      string `form:"date_from"`
	DateTo        string `form:"date_to"`
	Page          int    `form:"page"`
	PerPage       int    `form:"per_page"`
}
