package service

import (
	"context"
	"testing"

	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) storeSale(t *testing.T, number, reference string) {
	t.Helper()
	sale := &entity.Sale{
		CustomerID:    e.customer(t).ID,
		SaleNumber:    number,
		ReferenceCode: reference,
		Date:          "2024-01-10",
		PaymentType:   enum.PaymentTypeCash,
		PaymentStatus: enum.SalePaymentStatusPaid,
	}
	require.NoError(t, e.saleRepo.Create(context.Background(), sale))
}

func TestGenerateSaleNumberAddsSuffixOnCollision(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	// one sale today, but it already took the next counter value
	env.storeSale(t, "VTA-0002-20240110", "11111111")

	number, err := env.identifiers.GenerateUniqueSaleNumber(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^VTA-0002-20240110-[A-Z0-9]{4}$`, number)
}

func TestGenerateSaleNumberCountsOnlyToday(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	env.storeSale(t, "VTA-0001-20240109", "11111111")
	env.storeSale(t, "VTA-0002-20240109", "22222222")

	number, err := env.identifiers.GenerateUniqueSaleNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "VTA-0001-20240110", number)
}

func TestEnsureUniqueIdentifiers(t *testing.T) {
	env := newTestEnv(t, day("2024-01-10"))
	ctx := context.Background()
	env.storeSale(t, "VTA-0001-20230515", "12345678")

	number, err := env.identifiers.EnsureUniqueSaleNumber(ctx, " VTA-0009-20230515 ")
	require.NoError(t, err)
	assert.Equal(t, "VTA-0009-20230515", number)

	number, err = env.identifiers.EnsureUniqueSaleNumber(ctx, "VTA-0001-20230515")
	require.NoError(t, err)
	assert.Equal(t, "VTA-0001-20240110", number)

	number, err = env.identifiers.EnsureUniqueSaleNumber(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "VTA-0001-20240110", number)

	code, err := env.identifiers.EnsureUniqueReferenceCode(ctx, "87654321")
	require.NoError(t, err)
	assert.Equal(t, "87654321", code)

	code, err = env.identifiers.EnsureUniqueReferenceCode(ctx, "12345678")
	require.NoError(t, err)
	assert.NotEqual(t, "12345678", code)
	assert.Regexp(t, `^[1-9][0-9]{7}$`, code)
}

func TestReferenceCodeLengthGrowsWithAttempts(t *testing.T) {
	assert.Equal(t, 8, referenceCodeLength(1))
	assert.Equal(t, 8, referenceCodeLength(4))
	assert.Equal(t, 9, referenceCodeLength(5))
	assert.Equal(t, 9, referenceCodeLength(7))
	assert.Equal(t, 12, referenceCodeLength(8))
	assert.Equal(t, 12, referenceCodeLength(10))

	for range 50 {
		code := randomDigits(9)
		assert.Len(t, code, 9)
		assert.NotEqual(t, byte('0'), code[0])
	}
	assert.Regexp(t, `^[A-Z0-9]{4}$`, randomSuffix(4))
}
