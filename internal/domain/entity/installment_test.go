package entity

import (
	"testing"

	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInstallmentReconcile(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		paid        string
		wantBalance string
		wantStatus  enum.InstallmentStatus
	}{
		{"untouched", "50", "0", "50", enum.InstallmentStatusPending},
		{"partial", "50", "20", "30", enum.InstallmentStatusPending},
		{"settled", "50", "50", "0", enum.InstallmentStatusPaid},
		{"overpaid after manual edit", "50", "70", "0", enum.InstallmentStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := &Installment{
				Amount:     decimal.RequireFromString(tt.amount),
				PaidAmount: decimal.RequireFromString(tt.paid),
			}
			inst.Reconcile()

			assert.True(t, decimal.RequireFromString(tt.wantBalance).Equal(inst.Balance), "balance %s", inst.Balance)
			assert.Equal(t, tt.wantStatus, inst.Status)
			assert.True(t, inst.Balance.Equal(inst.Remaining()))
		})
	}
}
