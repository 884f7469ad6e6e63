package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sale is the header of a credit or cash sale. SaleNumber and ReferenceCode
// live in independent namespaces and never change after creation.
type Sale struct {
	ID                   uuid.UUID              `gorm:"type:uuid;primary_key" json:"id"`
	CustomerID           uuid.UUID              `gorm:"type:uuid;not null;index" json:"customer_id"`
	SaleNumber           string                 `gorm:"size:64;uniqueIndex;not null" json:"sale_number"`
	ReferenceCode        string                 `gorm:"size:32;uniqueIndex;not null" json:"reference_code"`
	Date                 string                 `gorm:"size:40;not null;index" json:"date"`
	Subtotal             decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	Discount             decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Tax                  decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`
	TotalAmount          decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	PaymentType          enum.PaymentType       `gorm:"size:20;not null" json:"payment_type"`
	PaymentStatus        enum.SalePaymentStatus `gorm:"size:20;not null;default:'pending'" json:"payment_status"`
	NumberOfInstallments int                    `gorm:"not null;default:0" json:"number_of_installments"`
	InstallmentAmount    decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"installment_amount"`
	Notes                *string                `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`

	// Relationships
	Customer     *Customer     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Items        []SaleItem    `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Installments []Installment `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
}

// BeforeCreate generates a UUID before creating a new sale
func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Sale model
func (Sale) TableName() string {
	return "sales"
}

// IsInstallmentSale reports whether the sale is paid over a schedule
func (s *Sale) IsInstallmentSale() bool {
	return s.PaymentType == enum.PaymentTypeInstallments
}

// SaleItem is a line of a sale. ProductName is a snapshot taken at sale
// time so the line survives product deletion.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"product_id,omitempty"`
	ProductName string          `gorm:"size:255;not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new sale item
func (i *SaleItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the SaleItem model
func (SaleItem) TableName() string {
	return "sale_items"
}
