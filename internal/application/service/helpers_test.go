package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/config"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/internal/infrastructure/database"
	infraRepo "github.com/sangkips/installments-api/internal/infrastructure/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEnv struct {
	db              *database.Database
	txManager       repository.TransactionManager
	saleRepo        repository.SaleRepository
	installmentRepo repository.InstallmentRepository
	transactionRepo repository.PaymentTransactionRepository
	customerRepo    repository.CustomerRepository
	productRepo     repository.ProductRepository

	identifiers  *IdentifierService
	sales        *SaleService
	installments *InstallmentService
	customers    *CustomerService
	products     *ProductService

	log  *zap.Logger
	logs *observer.ObservedLogs
}

// newTestEnv wires every service over an in-memory store with the clock
// frozen at now
func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	db, err := database.Open(
		&config.DatabaseConfig{Driver: database.DriverSQLite, Path: ":memory:"},
		&config.LogConfig{GormLevel: "silent"},
		log,
	)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		db:              db,
		txManager:       infraRepo.NewTransactionManager(db.DB),
		saleRepo:        infraRepo.NewSaleRepository(db.DB),
		installmentRepo: infraRepo.NewInstallmentRepository(db.DB),
		transactionRepo: infraRepo.NewPaymentTransactionRepository(db.DB),
		customerRepo:    infraRepo.NewCustomerRepository(db.DB),
		productRepo:     infraRepo.NewProductRepository(db.DB),
		log:             log,
		logs:            logs,
	}
	clock := func() time.Time { return now }

	env.identifiers = NewIdentifierService(env.saleRepo, "VTA")
	env.identifiers.now = clock
	env.sales = NewSaleService(env.txManager, env.saleRepo, env.installmentRepo, env.transactionRepo,
		env.customerRepo, env.productRepo, env.identifiers, config.LedgerConfig{}, log)
	env.sales.now = clock
	env.installments = NewInstallmentService(env.txManager, env.installmentRepo, env.saleRepo, env.transactionRepo, 3, log)
	env.installments.now = clock
	env.customers = NewCustomerService(env.customerRepo)
	env.products = NewProductService(env.productRepo)
	return env
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.Add(10 * time.Hour)
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertMoney(t *testing.T, expected int64, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, money(expected).Equal(actual), append([]any{"expected %d, got %s", expected, actual.String()}, msgAndArgs...)...)
}

func (e *testEnv) customer(t *testing.T) *entity.Customer {
	t.Helper()
	c := &entity.Customer{Name: "Ana Pérez"}
	require.NoError(t, e.customerRepo.Create(context.Background(), c))
	return c
}

// installmentSale creates a sale of a single item priced at total, split
// into n installments
func (e *testEnv) installmentSale(t *testing.T, date string, total int64, n int) *entity.Sale {
	t.Helper()
	sale, err := e.sales.CreateSale(context.Background(), &CreateSaleInput{
		CustomerID: e.customer(t).ID,
		Date:       date,
		Items: []SaleItemInput{
			{ProductName: "Heladera", Quantity: 1, UnitPrice: money(total)},
		},
		PaymentType:          enum.PaymentTypeInstallments,
		NumberOfInstallments: n,
	})
	require.NoError(t, err)
	require.Len(t, sale.Installments, n)
	return sale
}

// assertLedger checks that numbering is 1..N and every balance equals
// amount minus paid amount
func (e *testEnv) assertLedger(t *testing.T, saleID uuid.UUID) []entity.Installment {
	t.Helper()
	installments, err := e.installmentRepo.ListBySale(context.Background(), saleID)
	require.NoError(t, err)
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.InstallmentNumber)
		assert.True(t, inst.Balance.Equal(decimal.Max(decimal.Zero, inst.Amount.Sub(inst.PaidAmount))),
			"installment %d balance %s", inst.InstallmentNumber, inst.Balance)
		assert.Equal(t, inst.Balance.IsZero(), inst.Status == enum.InstallmentStatusPaid)
	}
	return installments
}
