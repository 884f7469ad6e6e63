package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/domain/entity"
)

// Update is a due date change the caller must persist
type Update struct {
	ID      uuid.UUID `json:"id"`
	DueDate string    `json:"new_due_date"`
}

// InitialDueDates returns the due dates of n monthly installments for a sale
// made on saleDate: installment i falls i months after the sale month, on the
// sale's day of month clamped to the end of shorter months.
func InitialDueDates(saleDate string, n int) ([]string, error) {
	anchor, err := ParseDate(saleDate)
	if err != nil {
		return nil, err
	}

	dates := make([]string, n)
	for i := range n {
		dates[i] = FormatDate(AddMonthsClamped(anchor.Year(), anchor.Month(), i+1, anchor.Day()))
	}
	return dates, nil
}

// MonthlyPending re-anchors the pending installments of one sale so they
// fall on consecutive months after the month of the latest payment.
//
// The billing day is taken from the lowest-numbered pending installment,
// which keeps whatever day was last in effect after a manual edit. Pending
// installments are ordered by InstallmentNumber only. Only installments
// whose due date actually changes are returned, so calling it again with
// the persisted result yields nothing.
func MonthlyPending(installments []entity.Installment) ([]Update, error) {
	anchor, ok := latestPayment(installments)
	if !ok {
		return nil, nil
	}

	pending := make([]entity.Installment, 0, len(installments))
	for _, inst := range installments {
		if !inst.IsPaid() {
			pending = append(pending, inst)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].InstallmentNumber < pending[j].InstallmentNumber
	})

	firstDue, err := ParseDate(pending[0].DueDate)
	if err != nil {
		return nil, err
	}
	anchorDay := firstDue.Day()

	var updates []Update
	for i, inst := range pending {
		due := FormatDate(AddMonthsClamped(anchor.Year(), anchor.Month(), i+1, anchorDay))
		if due != inst.DueDate {
			updates = append(updates, Update{ID: inst.ID, DueDate: due})
		}
	}
	return updates, nil
}

// latestPayment finds the calendar date of the most recent paid_date among
// paid installments. Dates are compared as instants, not as strings.
func latestPayment(installments []entity.Installment) (time.Time, bool) {
	var (
		latest    time.Time
		latestRaw string
		found     bool
	)
	for _, inst := range installments {
		if !inst.IsPaid() || inst.PaidDate == nil || *inst.PaidDate == "" {
			continue
		}
		paidAt, err := ParseTimestamp(*inst.PaidDate)
		if err != nil {
			continue
		}
		if !found || paidAt.After(latest) {
			latest, latestRaw, found = paidAt, *inst.PaidDate, true
		}
	}
	if !found {
		return time.Time{}, false
	}

	day, err := ParseDate(latestRaw)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
