package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/internal/domain/schedule"
	"github.com/sangkips/installments-api/internal/infrastructure/logger"
	"github.com/sangkips/installments-api/pkg/apperror"
	"github.com/sangkips/installments-api/pkg/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultUpcomingDays = 3

// InstallmentService handles installment queries, manual edits, payments
// and reversals
type InstallmentService struct {
	txManager       repository.TransactionManager
	installmentRepo repository.InstallmentRepository
	saleRepo        repository.SaleRepository
	transactionRepo repository.PaymentTransactionRepository
	upcomingDays    int
	log             *zap.Logger
	now             func() time.Time
}

// NewInstallmentService creates a new installment service
func NewInstallmentService(
	txManager repository.TransactionManager,
	installmentRepo repository.InstallmentRepository,
	saleRepo repository.SaleRepository,
	transactionRepo repository.PaymentTransactionRepository,
	upcomingDays int,
	log *zap.Logger,
) *InstallmentService {
	if upcomingDays < 1 {
		upcomingDays = defaultUpcomingDays
	}
	return &InstallmentService{
		txManager:       txManager,
		installmentRepo: installmentRepo,
		saleRepo:        saleRepo,
		transactionRepo: transactionRepo,
		upcomingDays:    upcomingDays,
		log:             log,
		now:             time.Now,
	}
}

func (s *InstallmentService) today() string {
	return schedule.Today(s.now())
}

// GetInstallment retrieves an installment by ID
func (s *InstallmentService) GetInstallment(ctx context.Context, id uuid.UUID) (*entity.Installment, error) {
	inst, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	fillDaysOverdue(inst, s.today())
	return inst, nil
}

// GetBySale lists the installments of a sale ordered by installment number
func (s *InstallmentService) GetBySale(ctx context.Context, saleID uuid.UUID) ([]entity.Installment, error) {
	sale, err := s.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, apperror.WrapIO("load sale", err)
	}
	if sale == nil {
		return nil, apperror.NewNotFoundError("Sale")
	}

	installments, err := s.installmentRepo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, apperror.WrapIO("list installments", err)
	}
	s.fillOverdue(installments)
	return installments, nil
}

// GetAll lists installments with filters
func (s *InstallmentService) GetAll(ctx context.Context, params *repository.InstallmentFilterParams) (*pagination.PaginatedResult[entity.Installment], error) {
	if params.Pagination == nil {
		params.Pagination = &pagination.PaginationParams{}
	}
	params.Pagination.Validate()
	if params.Status != "" && !params.Status.IsValid() {
		return nil, apperror.NewFieldError("status", "status must be pending or paid")
	}

	installments, total, err := s.installmentRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.WrapIO("list installments", err)
	}
	s.fillOverdue(installments)

	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(installments, pag), nil
}

// GetOverdue returns pending installments with a balance whose due date
// has passed
func (s *InstallmentService) GetOverdue(ctx context.Context) ([]entity.Installment, error) {
	installments, err := s.installmentRepo.ListOverdue(ctx, s.today())
	if err != nil {
		return nil, apperror.WrapIO("list overdue installments", err)
	}
	s.fillOverdue(installments)
	return installments, nil
}

// GetUpcoming returns pending installments with a balance due between
// today and the end of the upcoming window
func (s *InstallmentService) GetUpcoming(ctx context.Context, limit int) ([]entity.Installment, error) {
	today := s.today()
	until, err := schedule.AddDays(today, s.upcomingDays)
	if err != nil {
		return nil, err
	}

	installments, err := s.installmentRepo.ListDueBetween(ctx, today, until, limit)
	if err != nil {
		return nil, apperror.WrapIO("list upcoming installments", err)
	}
	return installments, nil
}

// CreateInstallmentInput represents the create installment input
type CreateInstallmentInput struct {
	SaleID  uuid.UUID
	DueDate string
	Amount  decimal.Decimal
	Notes   *string
}

// CreateInstallment appends an installment to the end of a sale's schedule
func (s *InstallmentService) CreateInstallment(ctx context.Context, input *CreateInstallmentInput) (*entity.Installment, error) {
	if _, err := schedule.ParseDate(input.DueDate); err != nil {
		return nil, apperror.NewFieldError("due_date", "due_date must be an ISO-8601 date")
	}
	if !input.Amount.IsPositive() {
		return nil, apperror.NewFieldError("amount", "amount must be greater than zero")
	}

	var created *entity.Installment
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.saleRepo.GetByID(ctx, input.SaleID)
		if err != nil {
			return apperror.WrapIO("load sale", err)
		}
		if sale == nil {
			return apperror.NewNotFoundError("Sale")
		}

		existing, err := s.installmentRepo.ListBySale(ctx, sale.ID)
		if err != nil {
			return apperror.WrapIO("list installments", err)
		}
		number := 1
		if len(existing) > 0 {
			number = existing[len(existing)-1].InstallmentNumber + 1
		}

		due := input.DueDate[:len(schedule.DateLayout)]
		batch := []entity.Installment{{
			SaleID:                    sale.ID,
			InstallmentNumber:         number,
			OriginalInstallmentNumber: number,
			DueDate:                   due,
			OriginalDueDate:           due,
			Amount:                    input.Amount,
			PaidAmount:                decimal.Zero,
			Notes:                     input.Notes,
		}}
		batch[0].Reconcile()
		if err := s.installmentRepo.CreateBatch(ctx, batch); err != nil {
			return apperror.WrapIO("create installment", err)
		}
		created = &batch[0]

		sale.NumberOfInstallments = number
		if err := s.saleRepo.Update(ctx, sale); err != nil {
			return apperror.WrapIO("update sale", err)
		}
		return s.syncSaleStatus(ctx, sale.ID)
	})
	if err != nil {
		return nil, apperror.WrapIO("create installment", err)
	}
	logger.FromContext(ctx, s.log).Info("installment appended",
		zap.String("sale_id", input.SaleID.String()),
		zap.Int("installment_number", created.InstallmentNumber),
	)
	return created, nil
}

// DeleteInstallment removes the last installment of a sale. Installments
// with completed payments, or followed by others, cannot be deleted since
// numbering must stay 1..N.
func (s *InstallmentService) DeleteInstallment(ctx context.Context, id uuid.UUID) error {
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.load(ctx, id)
		if err != nil {
			return err
		}

		siblings, err := s.installmentRepo.ListBySale(ctx, inst.SaleID)
		if err != nil {
			return apperror.WrapIO("list installments", err)
		}
		if siblings[len(siblings)-1].ID != inst.ID {
			return apperror.NewIntegrityError("only the last installment of a sale can be deleted")
		}

		transactions, err := s.transactionRepo.ListByInstallment(ctx, inst.ID)
		if err != nil {
			return apperror.WrapIO("list payment transactions", err)
		}
		for _, tx := range transactions {
			if tx.Status == enum.TransactionStatusCompleted {
				return apperror.NewIntegrityError("installment has completed payments; revert them first")
			}
		}

		if err := s.installmentRepo.Delete(ctx, inst.ID); err != nil {
			return apperror.WrapIO("delete installment", err)
		}

		sale, err := s.saleRepo.GetByID(ctx, inst.SaleID)
		if err != nil {
			return apperror.WrapIO("load sale", err)
		}
		if sale != nil {
			sale.NumberOfInstallments = len(siblings) - 1
			if err := s.saleRepo.Update(ctx, sale); err != nil {
				return apperror.WrapIO("update sale", err)
			}
		}
		return s.syncSaleStatus(ctx, inst.SaleID)
	})
	return apperror.WrapIO("delete installment", err)
}

// UpdateInstallmentInput represents a manual edit. Nil fields are left
// untouched.
type UpdateInstallmentInput struct {
	DueDate    *string
	Status     *enum.InstallmentStatus
	Amount     *decimal.Decimal
	PaidAmount *decimal.Decimal
	Balance    *decimal.Decimal
	Notes      *string
	PaidDate   *string
}

// UpdateResult carries the edited installment and the due date shifts the
// edit caused across its sale
type UpdateResult struct {
	Installment *entity.Installment
	Rescheduled []schedule.Update
}

// UpdateInstallment applies a manual edit. Balance is always derived; a
// supplied balance must match it. Setting status to paid settles the
// remaining amount when paid_amount is not supplied. When the due date,
// status or paid date change, the pending installments of the sale are
// rescheduled.
func (s *InstallmentService) UpdateInstallment(ctx context.Context, id uuid.UUID, input *UpdateInstallmentInput) (*UpdateResult, error) {
	if err := validateInstallmentUpdate(input); err != nil {
		return nil, err
	}

	result := &UpdateResult{}
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		before := *inst

		if input.DueDate != nil {
			inst.DueDate = (*input.DueDate)[:len(schedule.DateLayout)]
		}
		if input.Amount != nil {
			inst.Amount = *input.Amount
		}
		if input.PaidAmount != nil {
			inst.PaidAmount = *input.PaidAmount
		}
		if input.Notes != nil {
			inst.Notes = input.Notes
		}
		if input.PaidDate != nil {
			inst.PaidDate = input.PaidDate
			if *input.PaidDate == "" {
				inst.PaidDate = nil
			}
		}
		if input.Status != nil && *input.Status == enum.InstallmentStatusPaid && input.PaidAmount == nil {
			inst.PaidAmount = decimal.Max(inst.PaidAmount, inst.Amount)
		}

		inst.Reconcile()
		if input.Balance != nil && !input.Balance.Equal(inst.Balance) {
			return apperror.NewFieldError("balance", "balance must equal amount minus paid_amount ("+inst.Balance.StringFixed(2)+")")
		}
		if input.Status != nil && *input.Status != inst.Status {
			return apperror.NewFieldError("status", "status "+string(*input.Status)+" contradicts the balance of "+inst.Balance.StringFixed(2))
		}

		switch {
		case inst.IsPaid() && inst.PaidDate == nil:
			paid := s.today()
			inst.PaidDate = &paid
		case !inst.IsPaid():
			inst.PaidDate = nil
		}

		if err := s.installmentRepo.Update(ctx, inst); err != nil {
			return apperror.WrapIO("update installment", err)
		}

		if inst.DueDate != before.DueDate || inst.Status != before.Status || !sameDate(inst.PaidDate, before.PaidDate) {
			result.Rescheduled = s.reschedule(ctx, inst.SaleID)
		}
		if err := s.syncSaleStatus(ctx, inst.SaleID); err != nil {
			return err
		}

		result.Installment, err = s.load(ctx, inst.ID)
		return err
	})
	if err != nil {
		return nil, apperror.WrapIO("update installment", err)
	}
	fillDaysOverdue(result.Installment, s.today())
	return result, nil
}

func validateInstallmentUpdate(input *UpdateInstallmentInput) error {
	var fieldErrors []apperror.FieldError
	if input.DueDate != nil {
		if _, err := schedule.ParseDate(*input.DueDate); err != nil {
			fieldErrors = append(fieldErrors, apperror.FieldError{Field: "due_date", Message: "due_date must be an ISO-8601 date"})
		}
	}
	if input.PaidDate != nil && *input.PaidDate != "" {
		if _, err := schedule.ParseTimestamp(*input.PaidDate); err != nil {
			fieldErrors = append(fieldErrors, apperror.FieldError{Field: "paid_date", Message: "paid_date must be an ISO-8601 date or timestamp"})
		}
	}
	if input.Status != nil && !input.Status.IsValid() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "status", Message: "status must be pending or paid"})
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "amount", Message: "amount must be greater than zero"})
	}
	if input.PaidAmount != nil && input.PaidAmount.IsNegative() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "paid_amount", Message: "paid_amount cannot be negative"})
	}
	if len(fieldErrors) > 0 {
		return apperror.NewValidationError(fieldErrors)
	}
	return nil
}

// ListTransactions returns the payment audit log of an installment
func (s *InstallmentService) ListTransactions(ctx context.Context, installmentID uuid.UUID) ([]entity.PaymentTransaction, error) {
	if _, err := s.load(ctx, installmentID); err != nil {
		return nil, err
	}
	transactions, err := s.transactionRepo.ListByInstallment(ctx, installmentID)
	if err != nil {
		return nil, apperror.WrapIO("list payment transactions", err)
	}
	return transactions, nil
}

// PurgeTransactions hard-deletes the whole payment audit log
func (s *InstallmentService) PurgeTransactions(ctx context.Context) (int64, error) {
	removed, err := s.transactionRepo.Purge(ctx)
	if err != nil {
		return 0, apperror.WrapIO("purge payment transactions", err)
	}
	logger.FromContext(ctx, s.log).Warn("payment transactions purged", zap.Int64("removed", removed))
	return removed, nil
}

func (s *InstallmentService) load(ctx context.Context, id uuid.UUID) (*entity.Installment, error) {
	inst, err := s.installmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.WrapIO("load installment", err)
	}
	if inst == nil {
		return nil, apperror.NewNotFoundError("Installment")
	}
	return inst, nil
}

// reschedule re-anchors the pending installments of a sale inside a
// savepoint. A failure rolls the savepoint back and is only logged.
func (s *InstallmentService) reschedule(ctx context.Context, saleID uuid.UUID) []schedule.Update {
	var updates []schedule.Update
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		installments, err := s.installmentRepo.ListBySale(ctx, saleID)
		if err != nil {
			return err
		}
		updates, err = schedule.MonthlyPending(installments)
		if err != nil {
			return err
		}
		for _, u := range updates {
			if err := s.installmentRepo.UpdateDueDate(ctx, u.ID, u.DueDate); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.FromContext(ctx, s.log).Error("reschedule failed",
			zap.String("sale_id", saleID.String()),
			zap.Error(err),
		)
		return nil
	}
	if len(updates) > 0 {
		logger.FromContext(ctx, s.log).Info("installments rescheduled",
			zap.String("sale_id", saleID.String()),
			zap.Int("updated", len(updates)),
		)
	}
	return updates
}

// syncSaleStatus marks an installment sale paid once every installment is
// paid, and pending otherwise
func (s *InstallmentService) syncSaleStatus(ctx context.Context, saleID uuid.UUID) error {
	sale, err := s.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return apperror.WrapIO("load sale", err)
	}
	if sale == nil || !sale.IsInstallmentSale() {
		return nil
	}

	installments, err := s.installmentRepo.ListBySale(ctx, saleID)
	if err != nil {
		return apperror.WrapIO("list installments", err)
	}
	status := paymentStatusOf(installments)
	if status == sale.PaymentStatus {
		return nil
	}
	if err := s.saleRepo.UpdatePaymentStatus(ctx, saleID, status); err != nil {
		return apperror.WrapIO("update sale payment status", err)
	}
	return nil
}

func (s *InstallmentService) fillOverdue(installments []entity.Installment) {
	today := s.today()
	for i := range installments {
		fillDaysOverdue(&installments[i], today)
	}
}

func sameDate(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
