package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/pkg/pagination"
)

// SaleRepository defines the interface for sale data operations
type SaleRepository interface {
	// Create stores the sale header only; items and installments have their own repositories
	Create(ctx context.Context, sale *entity.Sale) error
	CreateItems(ctx context.Context, items []entity.SaleItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Sale, error)
	// GetByIDWithDetails preloads customer, items and installments ordered by number
	GetByIDWithDetails(ctx context.Context, id uuid.UUID) (*entity.Sale, error)
	Update(ctx context.Context, sale *entity.Sale) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enum.SalePaymentStatus) error
	// Delete removes the sale with its items, installments and payment transactions
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params *SaleFilterParams) ([]entity.Sale, int64, error)
	ExistsBySaleNumber(ctx context.Context, saleNumber string) (bool, error)
	ExistsByReferenceCode(ctx context.Context, referenceCode string) (bool, error)
	// CountBySaleNumberSuffix counts sale numbers ending with suffix
	CountBySaleNumberSuffix(ctx context.Context, suffix string) (int64, error)
}

// SaleFilterParams contains filtering parameters for sale queries
type SaleFilterParams struct {
	Pagination    *pagination.PaginationParams
	Search        string
	CustomerID    *uuid.UUID
	PaymentType   enum.PaymentType
	PaymentStatus enum.SalePaymentStatus
	DateFrom      string
	DateTo        string
}
