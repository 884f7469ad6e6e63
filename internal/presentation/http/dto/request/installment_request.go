package request

import (
	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/shopspring/decimal"
)

// CreateInstallmentRequest appends an installment to a sale
type CreateInstallmentRequest struct {
	SaleID  uuid.UUID       `json:"sale_id" binding:"required"`
	DueDate string          `json:"due_date" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Notes   *string         `json:"notes"`
}

// UpdateInstallmentRequest represents a manual installment edit. An empty
// paid_date clears it.
type UpdateInstallmentRequest struct {
	DueDate    *string                 `json:"due_date"`
	Status     *enum.InstallmentStatus `json:"status"`
	Amount     *decimal.Decimal        `json:"amount"`
	PaidAmount *decimal.Decimal        `json:"paid_amount"`
	Balance    *decimal.Decimal        `json:"balance"`
	Notes      *string                 `json:"notes"`
	PaidDate   *string                 `json:"paid_date"`
}

// RecordPaymentRequest represents a payment against an installment
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"payment_method" binding:"omitempty,max=50"`
	Reference   *string         `json:"payment_reference" binding:"omitempty,max=255"`
	PaymentDate string          `json:"payment_date"`
}

// MarkPaidRequest carries the optional payment date of a mark-as-paid
type MarkPaidRequest struct {
	PaymentDate string `json:"payment_date"`
}

// LateFeeRequest carries the fee to add; the configured default is used
// when it is omitted
type LateFeeRequest struct {
	Fee *decimal.Decimal `json:"fee"`
}

// InstallmentFilterRequest represents installment list query parameters
type InstallmentFilterRequest struct {
	SaleID  string `form:"sale_id"`
	Status  string `form:"status"`
	DueFrom string `form:"due_from"`
	DueTo   string `form:"due_to"`
	Page    int    `form:"page"`
	PerPage int    `form:"per_page"`
}
