package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/sangkips/installments-api/internal/domain/repository"
	"github.com/sangkips/installments-api/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSaleBuildsMonthlySchedule(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	customer := env.customer(t)

	sale, err := env.sales.CreateSale(ctx, &CreateSaleInput{
		CustomerID: customer.ID,
		Date:       "2023-05-15",
		Items: []SaleItemInput{
			{ProductName: "Silla", Quantity: 3, UnitPrice: money(50)},
		},
		PaymentType:          enum.PaymentTypeInstallments,
		NumberOfInstallments: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "VTA-0001-20240110", sale.SaleNumber)
	assert.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{7}$`), sale.ReferenceCode)
	assert.Equal(t, "2023-05-15", sale.Date)
	assertMoney(t, 150, sale.TotalAmount)
	assertMoney(t, 50, sale.InstallmentAmount)
	assert.Equal(t, enum.SalePaymentStatusPending, sale.PaymentStatus)
	require.NotNil(t, sale.Customer)
	assert.Equal(t, customer.Name, sale.Customer.Name)
	require.Len(t, sale.Items, 1)
	assertMoney(t, 150, sale.Items[0].Subtotal)

	require.Len(t, sale.Installments, 3)
	expected := []string{"2023-06-15", "2023-07-15", "2023-08-15"}
	for i, inst := range sale.Installments {
		assert.Equal(t, i+1, inst.InstallmentNumber)
		assert.Equal(t, expected[i], inst.DueDate)
		assert.Equal(t, expected[i], inst.OriginalDueDate)
		assertMoney(t, 50, inst.Amount)
		assertMoney(t, 50, inst.Balance)
		assertMoney(t, 0, inst.PaidAmount)
		assert.Equal(t, enum.InstallmentStatusPending, inst.Status)
		assert.Nil(t, inst.PaidDate)
	}
	// 2024-01-10 is past every due date
	assert.Equal(t, 209, sale.Installments[0].DaysOverdue)
}

func TestCreateSaleClampsToMonthEnd(t *testing.T) {
	env := newTestEnv(t, day("2024-01-31"))
	sale := env.installmentSale(t, "2024-01-31", 300, 3)

	var dueDates []string
	for _, inst := range sale.Installments {
		dueDates = append(dueDates, inst.DueDate)
	}
	assert.Equal(t, []string{"2024-02-29", "2024-03-31", "2024-04-30"}, dueDates)
}

func TestCreateSaleRoundsInstallmentAmount(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	sale := env.installmentSale(t, "2024-01-10", 100, 3)

	assertMoney(t, 33, sale.InstallmentAmount)
	for _, inst := range sale.Installments {
		assertMoney(t, 33, inst.Amount)
	}
}

func TestSameDaySaleNumbersAreSequential(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))

	first := env.installmentSale(t, "2024-01-10", 100, 1)
	second := env.installmentSale(t, "2024-01-10", 100, 1)

	assert.Equal(t, "VTA-0001-20240110", first.SaleNumber)
	assert.Equal(t, "VTA-0002-20240110", second.SaleNumber)
	assert.NotEqual(t, first.ReferenceCode, second.ReferenceCode)
}

func TestCreateCashSaleIsPaid(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))

	sale, err := env.sales.CreateSale(context.Background(), &CreateSaleInput{
		CustomerID:  env.customer(t).ID,
		Items:       []SaleItemInput{{ProductName: "Mesa", Quantity: 1, UnitPrice: money(80)}},
		Discount:    money(10),
		Tax:         money(5),
		PaymentType: enum.PaymentTypeCash,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-10", sale.Date)
	assert.Equal(t, enum.SalePaymentStatusPaid, sale.PaymentStatus)
	assertMoney(t, 80, sale.Subtotal)
	assertMoney(t, 75, sale.TotalAmount)
	assert.Empty(t, sale.Installments)
	assert.Zero(t, sale.NumberOfInstallments)
}

func TestCreateSaleStockAndProductNames(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()

	product := &entity.Product{Name: "Ventilador", Code: "PROD-VENT0001", Stock: 1, Price: money(40)}
	require.NoError(t, env.productRepo.Create(ctx, product))
	missing := uuid.New()

	sale, err := env.sales.CreateSale(ctx, &CreateSaleInput{
		CustomerID: env.customer(t).ID,
		Date:       "2024-01-10",
		Items: []SaleItemInput{
			{ProductID: &product.ID, ProductName: "typed by hand", Quantity: 3, UnitPrice: money(40)},
			{ProductID: &missing, Quantity: 1, UnitPrice: money(10)},
		},
		PaymentType:          enum.PaymentTypeInstallments,
		NumberOfInstallments: 2,
	})
	require.NoError(t, err)

	require.Len(t, sale.Items, 2)
	names := map[string]bool{}
	for _, item := range sale.Items {
		names[item.ProductName] = true
	}
	assert.True(t, names["Ventilador"])
	assert.True(t, names["Producto no disponible"])
	assertMoney(t, 130, sale.TotalAmount)

	reloaded, err := env.productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Stock)
}

func TestCreateSaleValidation(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	customer := env.customer(t)

	tests := []struct {
		name  string
		input *CreateSaleInput
		kind  apperror.Kind
	}{
		{
			name:  "no items",
			input: &CreateSaleInput{CustomerID: customer.ID, PaymentType: enum.PaymentTypeCash},
			kind:  apperror.KindValidation,
		},
		{
			name: "zero quantity",
			input: &CreateSaleInput{
				CustomerID:  customer.ID,
				Items:       []SaleItemInput{{ProductName: "x", Quantity: 0, UnitPrice: money(1)}},
				PaymentType: enum.PaymentTypeCash,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "installments without a count",
			input: &CreateSaleInput{
				CustomerID:  customer.ID,
				Items:       []SaleItemInput{{ProductName: "x", Quantity: 1, UnitPrice: money(1)}},
				PaymentType: enum.PaymentTypeInstallments,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "too many installments",
			input: &CreateSaleInput{
				CustomerID:           customer.ID,
				Items:                []SaleItemInput{{ProductName: "x", Quantity: 1, UnitPrice: money(5000)}},
				PaymentType:          enum.PaymentTypeInstallments,
				NumberOfInstallments: 5000,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "bad date",
			input: &CreateSaleInput{
				CustomerID:  customer.ID,
				Date:        "15/05/2023",
				Items:       []SaleItemInput{{ProductName: "x", Quantity: 1, UnitPrice: money(1)}},
				PaymentType: enum.PaymentTypeCash,
			},
			kind: apperror.KindValidation,
		},
		{
			name: "unknown customer",
			input: &CreateSaleInput{
				CustomerID:  uuid.New(),
				Items:       []SaleItemInput{{ProductName: "x", Quantity: 1, UnitPrice: money(1)}},
				PaymentType: enum.PaymentTypeCash,
			},
			kind: apperror.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.sales.CreateSale(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, apperror.IsKind(err, tt.kind), "got %v", err)
		})
	}

	result, err := env.sales.ListSales(ctx, &repository.SaleFilterParams{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}

func TestImportCashSaleKeepsDateAndCreatesPlaceholderCustomer(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	ghost := uuid.New()

	sale, err := env.sales.ImportFromBackup(ctx, &ImportSaleInput{
		CustomerID:    &ghost,
		SaleNumber:    "VTA-0042-20230515",
		ReferenceCode: "12345678",
		Date:          "2023-05-15T00:00:00.000Z",
		Items:         []SaleItemInput{{ProductName: "Lámpara", Quantity: 2, UnitPrice: money(25)}},
		PaymentType:   enum.PaymentTypeCash,
	})
	require.NoError(t, err)

	assert.Equal(t, "2023-05-15T00:00:00.000Z", sale.Date)
	assert.Equal(t, "VTA-0042-20230515", sale.SaleNumber)
	assert.Equal(t, "12345678", sale.ReferenceCode)
	assert.Equal(t, enum.SalePaymentStatusPaid, sale.PaymentStatus)
	assertMoney(t, 50, sale.TotalAmount)

	assert.Equal(t, ghost, sale.CustomerID)
	require.NotNil(t, sale.Customer)
	assert.Equal(t, "Cliente importado", sale.Customer.Name)
	assert.Equal(t, 1, env.logs.FilterMessage("created placeholder customer for imported sale").Len())
}

func TestImportRegeneratesTakenIdentifiers(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	existing := env.installmentSale(t, "2024-01-10", 100, 1)
	customerID := existing.CustomerID

	sale, err := env.sales.ImportFromBackup(ctx, &ImportSaleInput{
		CustomerID:    &customerID,
		SaleNumber:    existing.SaleNumber,
		ReferenceCode: existing.ReferenceCode,
		Date:          "2023-05-15",
		TotalAmount:   money(90),
		PaymentType:   enum.PaymentTypeCash,
	})
	require.NoError(t, err)

	assert.NotEqual(t, existing.SaleNumber, sale.SaleNumber)
	assert.NotEqual(t, existing.ReferenceCode, sale.ReferenceCode)
	assert.Equal(t, customerID, sale.CustomerID)
	assertMoney(t, 90, sale.TotalAmount)
}

func TestImportRestoresInstallments(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()

	product := &entity.Product{Name: "Colchón", Code: "PROD-COLCH001", Stock: 5, Price: money(100)}
	require.NoError(t, env.productRepo.Create(ctx, product))
	customerID := env.customer(t).ID
	paidDate := "2023-06-10"
	staleDate := "2023-07-01"

	sale, err := env.sales.ImportFromBackup(ctx, &ImportSaleInput{
		CustomerID: &customerID,
		Date:       "2023-05-15",
		Items: []SaleItemInput{
			{ProductID: &product.ID, ProductName: "Colchón 2 plazas", Quantity: 2, UnitPrice: money(100)},
		},
		PaymentType:       enum.PaymentTypeInstallments,
		InstallmentAmount: money(100),
		Installments: []ImportInstallmentInput{
			{DueDate: "2023-06-15", Amount: money(100), PaidAmount: money(100), PaidDate: &paidDate},
			{DueDate: "2023-07-15T03:00:00.000Z", OriginalDueDate: "2023-07-10", Amount: money(100), PaidAmount: money(30), PaidDate: &staleDate},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Colchón 2 plazas", sale.Items[0].ProductName)
	assert.Equal(t, 2, sale.NumberOfInstallments)
	assert.Equal(t, enum.SalePaymentStatusPending, sale.PaymentStatus)

	installments := env.assertLedger(t, sale.ID)
	require.Len(t, installments, 2)

	assert.Equal(t, enum.InstallmentStatusPaid, installments[0].Status)
	require.NotNil(t, installments[0].PaidDate)
	assert.Equal(t, paidDate, *installments[0].PaidDate)
	assert.Equal(t, "2023-06-15", installments[0].OriginalDueDate)

	assert.Equal(t, "2023-07-15", installments[1].DueDate)
	assert.Equal(t, "2023-07-10", installments[1].OriginalDueDate)
	assertMoney(t, 70, installments[1].Balance)
	assert.Nil(t, installments[1].PaidDate)

	// imports never touch stock
	reloaded, err := env.productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Stock)
}

func TestImportWithoutInstallmentsUsesInitialSchedule(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	customerID := env.customer(t).ID

	sale, err := env.sales.ImportFromBackup(context.Background(), &ImportSaleInput{
		CustomerID:           &customerID,
		Date:                 "2023-05-15",
		TotalAmount:          money(150),
		PaymentType:          enum.PaymentTypeInstallments,
		NumberOfInstallments: 3,
	})
	require.NoError(t, err)

	require.Len(t, sale.Installments, 3)
	assert.Equal(t, "2023-06-15", sale.Installments[0].DueDate)
	assert.Equal(t, "2023-08-15", sale.Installments[2].DueDate)
	assertMoney(t, 50, sale.Installments[1].Amount)
}

func TestUpdateSaleHeader(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	sale := env.installmentSale(t, "2024-01-10", 100, 2)

	date := "2024-01-05"
	notes := "entregar el lunes"
	updated, err := env.sales.UpdateSale(ctx, &UpdateSaleInput{ID: sale.ID, Date: &date, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, date, updated.Date)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	assert.Equal(t, sale.SaleNumber, updated.SaleNumber)

	bad := enum.SalePaymentStatus("partial")
	_, err = env.sales.UpdateSale(ctx, &UpdateSaleInput{ID: sale.ID, PaymentStatus: &bad})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = env.sales.UpdateSale(ctx, &UpdateSaleInput{ID: uuid.New(), Notes: &notes})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestDeleteSaleRemovesDependents(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	sale := env.installmentSale(t, "2023-05-15", 150, 3)

	_, err := env.installments.RecordPayment(ctx, &RecordPaymentInput{
		InstallmentID: sale.Installments[0].ID,
		Amount:        money(20),
	})
	require.NoError(t, err)

	require.NoError(t, env.sales.DeleteSale(ctx, sale.ID))

	_, err = env.sales.GetSale(ctx, sale.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	installments, err := env.installmentRepo.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, installments)
	transactions, err := env.transactionRepo.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Empty(t, transactions)

	err = env.sales.DeleteSale(ctx, sale.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestListSalesFiltersByStatus(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	pending := env.installmentSale(t, "2024-01-10", 100, 2)
	_, err := env.sales.CreateSale(ctx, &CreateSaleInput{
		CustomerID:  pending.CustomerID,
		Items:       []SaleItemInput{{ProductName: "Mesa", Quantity: 1, UnitPrice: money(80)}},
		PaymentType: enum.PaymentTypeCash,
	})
	require.NoError(t, err)

	result, err := env.sales.ListSales(ctx, &repository.SaleFilterParams{PaymentStatus: enum.SalePaymentStatusPending})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, pending.ID, result.Items[0].ID)
	assert.Equal(t, int64(1), result.Pagination.Total)
}

func TestStorageFailureIsReportedAsIO(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	sale := env.installmentSale(t, "2023-05-15", 150, 3)
	require.NoError(t, env.db.Close())

	_, err := env.installments.RecordPayment(ctx, &RecordPaymentInput{
		InstallmentID: sale.Installments[0].ID,
		Amount:        money(10),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindIO), "got %v", err)

	_, err = env.sales.GetSale(ctx, sale.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindIO), "got %v", err)
}

func TestImportRejectsOversizedSchedule(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	customerID := env.customer(t).ID

	_, err := env.sales.ImportFromBackup(context.Background(), &ImportSaleInput{
		CustomerID:           &customerID,
		Date:                 "2023-05-15",
		TotalAmount:          money(1000),
		PaymentType:          enum.PaymentTypeInstallments,
		NumberOfInstallments: 1000,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation), "got %v", err)

	result, err := env.sales.ListSales(context.Background(), &repository.SaleFilterParams{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}
