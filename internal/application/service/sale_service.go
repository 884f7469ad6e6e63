package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/config"
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

// defaultMaxInstallments caps the schedule length of a single sale
const defaultMaxInstallments = 120

// SaleService handles sale creation, import and the sale header lifecycle
type SaleService struct {
	txManager       repository.TransactionManager
	saleRepo        repository.SaleRepository
	installmentRepo repository.InstallmentRepository
	transactionRepo repository.PaymentTransactionRepository
	customerRepo    repository.CustomerRepository
	productRepo     repository.ProductRepository
	identifiers     *IdentifierService
	ledger          config.LedgerConfig
	log             *zap.Logger
	now             func() time.Time
}

// NewSaleService creates a new sale service
func NewSaleService(
	txManager repository.TransactionManager,
	saleRepo repository.SaleRepository,
	installmentRepo repository.InstallmentRepository,
	transactionRepo repository.PaymentTransactionRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	identifiers *IdentifierService,
	ledger config.LedgerConfig,
	log *zap.Logger,
) *SaleService {
	if ledger.PlaceholderProductName == "" {
		ledger.PlaceholderProductName = "Producto no disponible"
	}
	if ledger.PlaceholderCustomerName == "" {
		ledger.PlaceholderCustomerName = "Cliente importado"
	}
	if ledger.MaxInstallments <= 0 {
		ledger.MaxInstallments = defaultMaxInstallments
	}
	return &SaleService{
		txManager:       txManager,
		saleRepo:        saleRepo,
		installmentRepo: installmentRepo,
		transactionRepo: transactionRepo,
		customerRepo:    customerRepo,
		productRepo:     productRepo,
		identifiers:     identifiers,
		ledger:          ledger,
		log:             log,
		now:             time.Now,
	}
}

// SaleItemInput represents a line of a sale
type SaleItemInput struct {
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateSaleInput represents the create sale input
type CreateSaleInput struct {
	CustomerID           uuid.UUID
	Date                 string
	Items                []SaleItemInput
	Discount             decimal.Decimal
	Tax                  decimal.Decimal
	PaymentType          enum.PaymentType
	NumberOfInstallments int
	Notes                *string
}

// CreateSale stores the sale, its items and its initial installment
// schedule in one transaction.
func (s *SaleService) CreateSale(ctx context.Context, input *CreateSaleInput) (*entity.Sale, error) {
	date := input.Date
	if date == "" {
		date = schedule.Today(s.now())
	}
	if err := validateSale(date, input.Items, true, input.Discount, input.Tax, input.PaymentType, input.NumberOfInstallments, s.ledger.MaxInstallments); err != nil {
		return nil, err
	}

	var saleID uuid.UUID
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customerRepo.GetByID(ctx, input.CustomerID)
		if err != nil {
			return apperror.WrapIO("load customer", err)
		}
		if customer == nil {
			return apperror.NewNotFoundError("Customer")
		}

		items, stock := s.buildItems(ctx, input.Items, false)
		subtotal := sumItems(items)
		total := subtotal.Sub(input.Discount).Add(input.Tax)
		if total.IsNegative() {
			return apperror.NewFieldError("discount", "discount cannot exceed the sale subtotal plus tax")
		}

		saleNumber, err := s.identifiers.GenerateUniqueSaleNumber(ctx)
		if err != nil {
			return err
		}
		referenceCode, err := s.identifiers.GenerateUniqueReferenceCode(ctx)
		if err != nil {
			return err
		}

		sale := &entity.Sale{
			CustomerID:    customer.ID,
			SaleNumber:    saleNumber,
			ReferenceCode: referenceCode,
			Date:          date,
			Subtotal:      subtotal,
			Discount:      input.Discount,
			Tax:           input.Tax,
			TotalAmount:   total,
			PaymentType:   input.PaymentType,
			PaymentStatus: enum.SalePaymentStatusPaid,
			Notes:         input.Notes,
		}
		var installments []entity.Installment
		if sale.IsInstallmentSale() {
			sale.NumberOfInstallments = input.NumberOfInstallments
			sale.InstallmentAmount = installmentAmount(total, input.NumberOfInstallments)
			if installments, err = initialSchedule(sale); err != nil {
				return err
			}
			sale.PaymentStatus = paymentStatusOf(installments)
		}

		if err := s.saleRepo.Create(ctx, sale); err != nil {
			return apperror.WrapIO("create sale", err)
		}
		for i := range items {
			items[i].SaleID = sale.ID
		}
		if err := s.saleRepo.CreateItems(ctx, items); err != nil {
			return apperror.WrapIO("create sale items", err)
		}
		if err := s.productRepo.DecrementStockFloor(ctx, stock); err != nil {
			return apperror.WrapIO("decrement stock", err)
		}
		for i := range installments {
			installments[i].SaleID = sale.ID
		}
		if err := s.installmentRepo.CreateBatch(ctx, installments); err != nil {
			return apperror.WrapIO("create installments", err)
		}

		saleID = sale.ID
		logger.FromContext(ctx, s.log).Info("sale created",
			zap.String("sale_id", sale.ID.String()),
			zap.String("sale_number", sale.SaleNumber),
			zap.String("payment_type", string(sale.PaymentType)),
			zap.String("total", total.StringFixed(2)),
		)
		return nil
	})
	if err != nil {
		return nil, apperror.WrapIO("create sale", err)
	}

	return s.GetSale(ctx, saleID)
}

// ImportInstallmentInput is an installment restored from a backup
type ImportInstallmentInput struct {
	DueDate         string
	OriginalDueDate string
	Amount          decimal.Decimal
	PaidAmount      decimal.Decimal
	PaidDate        *string
	LateFee         decimal.Decimal
	LateFeeApplied  bool
	Notes           *string
}

// ImportSaleInput is a canonical sale produced by the backup normalizer
type ImportSaleInput struct {
	CustomerID           *uuid.UUID
	CustomerName         string
	SaleNumber           string
	ReferenceCode        string
	Date                 string
	Items                []SaleItemInput
	Subtotal             decimal.Decimal
	Discount             decimal.Decimal
	Tax                  decimal.Decimal
	TotalAmount          decimal.Decimal
	PaymentType          enum.PaymentType
	NumberOfInstallments int
	InstallmentAmount    decimal.Decimal
	Notes                *string
	Installments         []ImportInstallmentInput
}

// ImportFromBackup restores a sale. Supplied identifiers and the sale date
// survive when still unique, a missing customer is replaced by a
// placeholder, and stock is left alone.
func (s *SaleService) ImportFromBackup(ctx context.Context, input *ImportSaleInput) (*entity.Sale, error) {
	date := input.Date
	if date == "" {
		date = schedule.Today(s.now())
	}
	n := input.NumberOfInstallments
	if len(input.Installments) > 0 {
		n = len(input.Installments)
	}
	if err := validateSale(date, input.Items, false, input.Discount, input.Tax, input.PaymentType, n, s.ledger.MaxInstallments); err != nil {
		return nil, err
	}

	var saleID uuid.UUID
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		customerID, err := s.resolveImportCustomer(ctx, input)
		if err != nil {
			return err
		}

		saleNumber, err := s.identifiers.EnsureUniqueSaleNumber(ctx, input.SaleNumber)
		if err != nil {
			return err
		}
		referenceCode, err := s.identifiers.EnsureUniqueReferenceCode(ctx, input.ReferenceCode)
		if err != nil {
			return err
		}

		items, _ := s.buildItems(ctx, input.Items, true)
		subtotal := sumItems(items)
		if len(items) == 0 {
			subtotal = input.Subtotal
			if subtotal.IsZero() && input.TotalAmount.IsPositive() {
				subtotal = input.TotalAmount.Add(input.Discount).Sub(input.Tax)
			}
		}
		total := subtotal.Sub(input.Discount).Add(input.Tax)

		sale := &entity.Sale{
			CustomerID:    customerID,
			SaleNumber:    saleNumber,
			ReferenceCode: referenceCode,
			Date:          date,
			Subtotal:      subtotal,
			Discount:      input.Discount,
			Tax:           input.Tax,
			TotalAmount:   total,
			PaymentType:   input.PaymentType,
			PaymentStatus: enum.SalePaymentStatusPaid,
			Notes:         input.Notes,
		}

		var installments []entity.Installment
		if sale.IsInstallmentSale() {
			sale.NumberOfInstallments = n
			sale.InstallmentAmount = input.InstallmentAmount
			if !sale.InstallmentAmount.IsPositive() {
				sale.InstallmentAmount = installmentAmount(total, n)
			}
			if len(input.Installments) > 0 {
				installments, err = restoredSchedule(sale, input.Installments)
			} else {
				installments, err = initialSchedule(sale)
			}
			if err != nil {
				return err
			}
			sale.PaymentStatus = paymentStatusOf(installments)
		}

		if err := s.saleRepo.Create(ctx, sale); err != nil {
			return apperror.WrapIO("create sale", err)
		}
		for i := range items {
			items[i].SaleID = sale.ID
		}
		if err := s.saleRepo.CreateItems(ctx, items); err != nil {
			return apperror.WrapIO("create sale items", err)
		}
		for i := range installments {
			installments[i].SaleID = sale.ID
		}
		if err := s.installmentRepo.CreateBatch(ctx, installments); err != nil {
			return apperror.WrapIO("create installments", err)
		}

		saleID = sale.ID
		logger.FromContext(ctx, s.log).Info("sale imported",
			zap.String("sale_id", sale.ID.String()),
			zap.String("sale_number", sale.SaleNumber),
			zap.Bool("number_preserved", saleNumber == strings.TrimSpace(input.SaleNumber)),
			zap.Int("installments", len(installments)),
		)
		return nil
	})
	if err != nil {
		return nil, apperror.WrapIO("import sale", err)
	}

	return s.GetSale(ctx, saleID)
}

func (s *SaleService) resolveImportCustomer(ctx context.Context, input *ImportSaleInput) (uuid.UUID, error) {
	if input.CustomerID != nil {
		customer, err := s.customerRepo.GetByID(ctx, *input.CustomerID)
		if err != nil {
			return uuid.Nil, apperror.WrapIO("load customer", err)
		}
		if customer != nil {
			return customer.ID, nil
		}
	}

	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		name = s.ledger.PlaceholderCustomerName
	}
	placeholder := &entity.Customer{Name: name}
	// keep the referenced id so later sales of the same backup attach to it
	if input.CustomerID != nil {
		placeholder.ID = *input.CustomerID
	}
	if err := s.customerRepo.Create(ctx, placeholder); err != nil {
		return uuid.Nil, apperror.WrapIO("create placeholder customer", err)
	}
	logger.FromContext(ctx, s.log).Warn("created placeholder customer for imported sale",
		zap.String("customer_id", placeholder.ID.String()),
		zap.String("sale_number", input.SaleNumber),
	)
	return placeholder.ID, nil
}

// buildItems snapshots product names and collects stock decrements. A
// product that cannot be resolved never fails the sale.
func (s *SaleService) buildItems(ctx context.Context, inputs []SaleItemInput, preferSnapshot bool) ([]entity.SaleItem, map[uuid.UUID]int) {
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, item := range inputs {
		if item.ProductID != nil {
			ids = append(ids, *item.ProductID)
		}
	}

	products := make(map[uuid.UUID]*entity.Product, len(ids))
	found, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("product lookup failed, using placeholder names", zap.Error(err))
	}
	for i := range found {
		products[found[i].ID] = &found[i]
	}

	items := make([]entity.SaleItem, 0, len(inputs))
	stock := make(map[uuid.UUID]int)
	for _, in := range inputs {
		var product *entity.Product
		if in.ProductID != nil {
			product = products[*in.ProductID]
		}

		name := strings.TrimSpace(in.ProductName)
		switch {
		case product != nil && (!preferSnapshot || name == ""):
			name = product.Name
		case name == "":
			name = s.ledger.PlaceholderProductName
		}
		if product != nil {
			stock[product.ID] += in.Quantity
		}

		items = append(items, entity.SaleItem{
			ProductID:   in.ProductID,
			ProductName: name,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Subtotal:    in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		})
	}
	return items, stock
}

// GetSale retrieves a sale with its customer, items and installments
func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*entity.Sale, error) {
	sale, err := s.saleRepo.GetByIDWithDetails(ctx, id)
	if err != nil {
		return nil, apperror.WrapIO("load sale", err)
	}
	if sale == nil {
		return nil, apperror.NewNotFoundError("Sale")
	}
	today := schedule.Today(s.now())
	for i := range sale.Installments {
		fillDaysOverdue(&sale.Installments[i], today)
	}
	return sale, nil
}

// ListSales lists sales with filters
func (s *SaleService) ListSales(ctx context.Context, params *repository.SaleFilterParams) (*pagination.PaginatedResult[entity.Sale], error) {
	if params.Pagination == nil {
		params.Pagination = &pagination.PaginationParams{}
	}
	params.Pagination.Validate()

	sales, total, err := s.saleRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.WrapIO("list sales", err)
	}

	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(sales, pag), nil
}

// UpdateSaleInput represents the update sale input. Numbers, amounts and
// the schedule are not editable through it.
type UpdateSaleInput struct {
	ID            uuid.UUID
	Date          *string
	PaymentStatus *enum.SalePaymentStatus
	Notes         *string
}

// UpdateSale updates the mutable header fields of a sale
func (s *SaleService) UpdateSale(ctx context.Context, input *UpdateSaleInput) (*entity.Sale, error) {
	if input.Date != nil {
		if _, err := schedule.ParseDate(*input.Date); err != nil {
			return nil, apperror.NewFieldError("date", "date must be an ISO-8601 date")
		}
	}
	if input.PaymentStatus != nil && !input.PaymentStatus.IsValid() {
		return nil, apperror.NewFieldError("payment_status", "payment_status must be pending or paid")
	}

	sale, err := s.saleRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, apperror.WrapIO("load sale", err)
	}
	if sale == nil {
		return nil, apperror.NewNotFoundError("Sale")
	}

	if input.Date != nil {
		sale.Date = *input.Date
	}
	if input.PaymentStatus != nil {
		sale.PaymentStatus = *input.PaymentStatus
	}
	if input.Notes != nil {
		sale.Notes = input.Notes
	}

	if err := s.saleRepo.Update(ctx, sale); err != nil {
		return nil, apperror.WrapIO("update sale", err)
	}
	return s.GetSale(ctx, sale.ID)
}

// DeleteSale removes a sale with its items, installments and payment
// transactions
func (s *SaleService) DeleteSale(ctx context.Context, id uuid.UUID) error {
	err := s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.saleRepo.GetByID(ctx, id)
		if err != nil {
			return apperror.WrapIO("load sale", err)
		}
		if sale == nil {
			return apperror.NewNotFoundError("Sale")
		}
		if err := s.saleRepo.Delete(ctx, id); err != nil {
			return apperror.WrapIO("delete sale", err)
		}
		logger.FromContext(ctx, s.log).Info("sale deleted",
			zap.String("sale_id", id.String()),
			zap.String("sale_number", sale.SaleNumber),
		)
		return nil
	})
	return apperror.WrapIO("delete sale", err)
}

// ListTransactions returns the payment audit log of a sale
func (s *SaleService) ListTransactions(ctx context.Context, saleID uuid.UUID) ([]entity.PaymentTransaction, error) {
	sale, err := s.saleRepo.GetByID(ctx, saleID)
	if err != nil {
		return nil, apperror.WrapIO("load sale", err)
	}
	if sale == nil {
		return nil, apperror.NewNotFoundError("Sale")
	}
	transactions, err := s.transactionRepo.ListBySale(ctx, saleID)
	if err != nil {
		return nil, apperror.WrapIO("list payment transactions", err)
	}
	return transactions, nil
}

func validateSale(date string, items []SaleItemInput, requireItems bool, discount, tax decimal.Decimal, paymentType enum.PaymentType, installments, maxInstallments int) error {
	var fieldErrors []apperror.FieldError
	if _, err := schedule.ParseDate(date); err != nil {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "date", Message: "date must be an ISO-8601 date"})
	}
	if requireItems && len(items) == 0 {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "items", Message: "a sale needs at least one item"})
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			fieldErrors = append(fieldErrors, apperror.FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "quantity must be greater than zero"})
		}
		if item.UnitPrice.IsNegative() {
			fieldErrors = append(fieldErrors, apperror.FieldError{Field: fmt.Sprintf("items[%d].unit_price", i), Message: "unit_price cannot be negative"})
		}
	}
	if discount.IsNegative() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "discount", Message: "discount cannot be negative"})
	}
	if tax.IsNegative() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "tax", Message: "tax cannot be negative"})
	}
	if !paymentType.IsValid() {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "payment_type", Message: "payment_type must be cash or installments"})
	} else if paymentType == enum.PaymentTypeInstallments && installments < 1 {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "number_of_installments", Message: "an installment sale needs at least one installment"})
	} else if installments > maxInstallments {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "number_of_installments", Message: fmt.Sprintf("number_of_installments cannot exceed %d", maxInstallments)})
	}

	if len(fieldErrors) > 0 {
		return apperror.NewValidationError(fieldErrors)
	}
	return nil
}

func sumItems(items []entity.SaleItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	return subtotal
}

// installmentAmount is total / n rounded to a whole unit
func installmentAmount(total decimal.Decimal, n int) decimal.Decimal {
	if n < 1 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n))).Round(0)
}

func initialSchedule(sale *entity.Sale) ([]entity.Installment, error) {
	dueDates, err := schedule.InitialDueDates(sale.Date, sale.NumberOfInstallments)
	if err != nil {
		return nil, apperror.NewFieldError("date", "date must be an ISO-8601 date")
	}

	installments := make([]entity.Installment, len(dueDates))
	for i, due := range dueDates {
		installments[i] = entity.Installment{
			InstallmentNumber:         i + 1,
			OriginalInstallmentNumber: i + 1,
			DueDate:                   due,
			OriginalDueDate:           due,
			Amount:                    sale.InstallmentAmount,
			PaidAmount:                decimal.Zero,
		}
		installments[i].Reconcile()
	}
	return installments, nil
}

// restoredSchedule renumbers supplied installments 1..N in the order given
// and recomputes their balances. Missing due dates come from the initial
// scheduling rule.
func restoredSchedule(sale *entity.Sale, inputs []ImportInstallmentInput) ([]entity.Installment, error) {
	fallback, err := schedule.InitialDueDates(sale.Date, len(inputs))
	if err != nil {
		return nil, apperror.NewFieldError("date", "date must be an ISO-8601 date")
	}

	installments := make([]entity.Installment, len(inputs))
	for i, in := range inputs {
		due := in.DueDate
		if due == "" {
			due = fallback[i]
		}
		if _, err := schedule.ParseDate(due); err != nil {
			return nil, apperror.NewFieldError(fmt.Sprintf("installments[%d].due_date", i), "due_date must be an ISO-8601 date")
		}
		due = due[:len(schedule.DateLayout)]
		original := due
		if _, err := schedule.ParseDate(in.OriginalDueDate); err == nil {
			original = in.OriginalDueDate[:len(schedule.DateLayout)]
		}
		amount := in.Amount
		if !amount.IsPositive() {
			amount = sale.InstallmentAmount
		}

		inst := entity.Installment{
			InstallmentNumber:         i + 1,
			OriginalInstallmentNumber: i + 1,
			DueDate:                   due,
			OriginalDueDate:           original,
			Amount:                    amount,
			PaidAmount:                decimal.Max(decimal.Zero, in.PaidAmount),
			LateFee:                   in.LateFee,
			LateFeeApplied:            in.LateFeeApplied,
			Notes:                     in.Notes,
		}
		inst.Reconcile()
		if inst.IsPaid() {
			inst.PaidDate = in.PaidDate
		}
		installments[i] = inst
	}
	return installments, nil
}

func paymentStatusOf(installments []entity.Installment) enum.SalePaymentStatus {
	if len(installments) == 0 {
		return enum.SalePaymentStatusPending
	}
	for _, inst := range installments {
		if !inst.IsPaid() {
			return enum.SalePaymentStatusPending
		}
	}
	return enum.SalePaymentStatusPaid
}

// fillDaysOverdue derives the overdue day count; it is never persisted
func fillDaysOverdue(inst *entity.Installment, today string) {
	inst.DaysOverdue = 0
	if inst.IsPaid() || !inst.Balance.IsPositive() || inst.DueDate >= today {
		return
	}
	if days, err := schedule.DaysBetween(inst.DueDate, today); err == nil {
		inst.DaysOverdue = days
	}
}
