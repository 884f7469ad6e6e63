package enum

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PaymentType is how a sale is settled
type PaymentType string

const (
	PaymentTypeCash         PaymentType = "cash"
	PaymentTypeInstallments PaymentType = "installments"
)

func (t PaymentType) IsValid() bool {
	return t == PaymentTypeCash || t == PaymentTypeInstallments
}

// ParsePaymentType accepts the canonical values case-insensitively
func ParsePaymentType(s string) (PaymentType, error) {
	t := PaymentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown payment type %q", s)
	}
	return t, nil
}

func (t *PaymentType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParsePaymentType(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SalePaymentStatus tracks whether a sale has been settled in full
type SalePaymentStatus string

const (
	SalePaymentStatusPending SalePaymentStatus = "pending"
	SalePaymentStatusPaid    SalePaymentStatus = "paid"
)

func (s SalePaymentStatus) IsValid() bool {
	return s == SalePaymentStatusPending || s == SalePaymentStatusPaid
}
