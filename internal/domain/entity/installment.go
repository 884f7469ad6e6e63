package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Installment is one scheduled portion of a sale.
//
// InstallmentNumber is assigned once (1..N per sale) and is the only
// ordering key; DueDate moves when the schedule is re-anchored and
// OriginalDueDate keeps the baseline restored on revert. DueDate,
// OriginalDueDate and PaidDate hold zero-padded ISO-8601 values
// (YYYY-MM-DD, or an RFC 3339 timestamp for PaidDate).
type Installment struct {
	ID                        uuid.UUID              `gorm:"type:uuid;primary_key" json:"id"`
	SaleID                    uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_installment_sale_number" json:"sale_id"`
	InstallmentNumber         int                    `gorm:"not null;uniqueIndex:idx_installment_sale_number" json:"installment_number"`
	OriginalInstallmentNumber int                    `gorm:"not null" json:"original_installment_number"`
	DueDate                   string                 `gorm:"size:10;not null;index" json:"due_date"`
	OriginalDueDate           string                 `gorm:"size:10;not null" json:"original_due_date"`
	Amount                    decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaidAmount                decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"paid_amount"`
	Balance                   decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"balance"`
	Status                    enum.InstallmentStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PaidDate                  *string                `gorm:"size:40" json:"paid_date"`
	DaysOverdue               int                    `gorm:"not null;default:0" json:"days_overdue"`
	LateFee                   decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"late_fee"`
	LateFeeApplied            bool                   `gorm:"not null;default:false" json:"late_fee_applied"`
	Notes                     *string                `gorm:"type:text" json:"notes"`
	CreatedAt                 time.Time              `json:"created_at"`
	UpdatedAt                 time.Time              `json:"updated_at"`

	// Relationships
	Sale *Sale `gorm:"foreignKey:SaleID" json:"sale,omitempty"`
}

// BeforeCreate generates a UUID before creating a new installment
func (i *Installment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Installment model
func (Installment) TableName() string {
	return "installments"
}

// Remaining is what can still be paid against the installment
func (i *Installment) Remaining() decimal.Decimal {
	return decimal.Max(decimal.Zero, i.Amount.Sub(i.PaidAmount))
}

// Reconcile recomputes the balance from amount and paid amount and
// derives the status from it.
func (i *Installment) Reconcile() {
	i.Balance = i.Remaining()
	if i.Balance.IsZero() {
		i.Status = enum.InstallmentStatusPaid
	} else {
		i.Status = enum.InstallmentStatusPending
	}
}

func (i *Installment) IsPaid() bool {
	return i.Status == enum.InstallmentStatusPaid
}

// PaymentTransaction is an append-only audit entry. Reverting a payment
// marks the entry cancelled; rows are only removed by an administrative purge.
type PaymentTransaction struct {
	ID               uuid.UUID              `gorm:"type:uuid;primary_key" json:"id"`
	SaleID           uuid.UUID              `gorm:"type:uuid;not null;index" json:"sale_id"`
	InstallmentID    uuid.UUID              `gorm:"type:uuid;not null;index" json:"installment_id"`
	Amount           decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentMethod    string                 `gorm:"size:50;not null" json:"payment_method"`
	PaymentReference *string                `gorm:"size:255" json:"payment_reference,omitempty"`
	TransactionDate  string                 `gorm:"size:40;not null" json:"transaction_date"`
	Status           enum.TransactionStatus `gorm:"size:20;not null;default:'completed'" json:"status"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new payment transaction
func (p *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PaymentTransaction model
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
