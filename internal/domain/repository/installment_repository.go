package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/pkg/pagination"
)

// InstallmentRepository defines the interface for installment data operations
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, installments []entity.Installment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Installment, error)
	// ListBySale returns the installments of a sale ordered by installment number
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]entity.Installment, error)
	Update(ctx context.Context, installment *entity.Installment) error
	UpdateDueDate(ctx context.Context, id uuid.UUID, dueDate string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params *InstallmentFilterParams) ([]entity.Installment, int64, error)
	// ListOverdue returns pending installments with a balance due before today
	ListOverdue(ctx context.Context, today string) ([]entity.Installment, error)
	// ListDueBetween returns pending installments with a balance due in [from, to]
	ListDueBetween(ctx context.Context, from, to string, limit int) ([]entity.Installment, error)
}

// InstallmentFilterParams contains filtering parameters for installment queries
type InstallmentFilterParams struct {
	Pagination *pagination.PaginationParams
	SaleID     *uuid.UUID
	Status     enum.InstallmentStatus
	DueFrom    string
	DueTo      string
}

// PaymentTransactionRepository defines the interface for the payment audit log
type PaymentTransactionRepository interface {
	Create(ctx context.Context, transaction *entity.PaymentTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentTransaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enum.TransactionStatus) error
	ListByInstallment(ctx context.Context, installmentID uuid.UUID) ([]entity.PaymentTransaction, error)
	ListBySale(ctx context.Context, saleID uuid.UUID) ([]entity.PaymentTransaction, error)
	// CountCompletedAfter counts completed transactions of an installment recorded after the given one
	CountCompletedAfter(ctx context.Context, transaction *entity.PaymentTransaction) (int64, error)
	// Purge hard-deletes every transaction, returning the number removed
	Purge(ctx context.Context) (int64, error)
}

// TransactionManager runs fn inside one database transaction. Repositories
// called with the context handed to fn take part in that transaction; a
// nested call opens a savepoint.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
