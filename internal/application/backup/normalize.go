// Package backup maps loosely-typed backup records onto the canonical
// import input of the sale service. It performs no I/O.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sangkips/installments-api/internal/application/service"
	"github.com/sangkips/installments-api/internal/domain/enum"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

var (
	customerIDKeys    = []string{"customer_id", "customerId", "cliente_id", "clienteId", "client_id"}
	customerNameKeys  = []string{"customer_name", "customerName", "cliente", "cliente_nombre", "client_name"}
	saleNumberKeys    = []string{"sale_number", "saleNumber", "numero_venta", "numeroVenta", "number"}
	referenceKeys     = []string{"reference_code", "referenceCode", "codigo_referencia", "reference"}
	dateKeys          = []string{"date", "sale_date", "saleDate", "fecha", "fecha_venta", "created_at"}
	paymentTypeKeys   = []string{"payment_type", "paymentType", "tipo_pago", "tipoPago"}
	installCountKeys  = []string{"number_of_installments", "numberOfInstallments", "numero_cuotas", "installments_count"}
	installAmountKeys = []string{"installment_amount", "installmentAmount", "monto_cuota"}
	subtotalKeys      = []string{"subtotal", "sub_total", "subTotal"}
	discountKeys      = []string{"discount", "descuento"}
	taxKeys           = []string{"tax", "impuesto", "iva"}
	totalKeys         = []string{"total_amount", "totalAmount", "total", "monto_total"}
	notesKeys         = []string{"notes", "notas", "observaciones"}
	itemsKeys         = []string{"items", "sale_items", "saleItems", "products", "productos"}
	installmentsKeys  = []string{"installments", "installment_list", "cuotas"}

	productIDKeys   = []string{"product_id", "productId", "producto_id"}
	productNameKeys = []string{"product_name", "productName", "name", "nombre"}
	quantityKeys    = []string{"quantity", "qty", "cantidad"}
	unitPriceKeys   = []string{"unit_price", "unitPrice", "price", "precio", "precio_unitario"}

	numberKeys          = []string{"installment_number", "installmentNumber", "numero_cuota", "number"}
	dueDateKeys         = []string{"due_date", "dueDate", "fecha_vencimiento"}
	originalDueDateKeys = []string{"original_due_date", "originalDueDate"}
	amountKeys          = []string{"amount", "monto"}
	paidAmountKeys      = []string{"paid_amount", "paidAmount", "monto_pagado"}
	paidDateKeys        = []string{"paid_date", "paidDate", "fecha_pago"}
	lateFeeKeys         = []string{"late_fee", "lateFee", "recargo"}
	lateFeeAppliedKeys  = []string{"late_fee_applied", "lateFeeApplied", "recargo_aplicado"}
)

var (
	cashAliases        = []string{"cash", "contado", "efectivo"}
	installmentAliases = []string{"installments", "installment", "cuotas", "credito", "crédito", "credit"}
)

// ErrUnsupportedShape is returned when a backup is neither a list of sales
// nor an object holding one
var ErrUnsupportedShape = errors.New("backup must be a list of sales or an object with a sales list")

// Decode reads a backup document: a JSON array of sales, an object with a
// "sales"/"ventas" array, or a single sale object.
func Decode(data []byte) ([]map[string]any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid backup document: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		for _, key := range []string{"sales", "ventas"} {
			if list, ok := v[key].([]any); ok {
				return toRecords(list)
			}
		}
		return []map[string]any{v}, nil
	default:
		return nil, ErrUnsupportedShape
	}
}

func toRecords(list []any) ([]map[string]any, error) {
	records := make([]map[string]any, 0, len(list))
	for i, item := range list {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sale %d: %w", i, ErrUnsupportedShape)
		}
		records = append(records, record)
	}
	return records, nil
}

// NormalizeSale maps one backup record onto an import input. Unknown
// fields are ignored and missing ones are left for the sale service to
// default.
func NormalizeSale(record map[string]any) (*service.ImportSaleInput, error) {
	input := &service.ImportSaleInput{
		CustomerName:  str(record, customerNameKeys),
		SaleNumber:    str(record, saleNumberKeys),
		ReferenceCode: str(record, referenceKeys),
		Date:          date(record, dateKeys),
		Notes:         optionalStr(record, notesKeys),
	}

	if raw := str(record, customerIDKeys); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			input.CustomerID = &id
		}
	}

	var err error
	if input.Subtotal, err = money(record, subtotalKeys); err != nil {
		return nil, err
	}
	if input.Discount, err = money(record, discountKeys); err != nil {
		return nil, err
	}
	if input.Tax, err = money(record, taxKeys); err != nil {
		return nil, err
	}
	if input.TotalAmount, err = money(record, totalKeys); err != nil {
		return nil, err
	}
	if input.InstallmentAmount, err = money(record, installAmountKeys); err != nil {
		return nil, err
	}

	if input.Items, err = items(record); err != nil {
		return nil, err
	}

	installments, count, err := installmentList(record)
	if err != nil {
		return nil, err
	}
	input.Installments = installments
	input.NumberOfInstallments = count
	if n, ok := lookup(record, installCountKeys); ok {
		if input.NumberOfInstallments, err = cast.ToIntE(n); err != nil {
			return nil, fmt.Errorf("number_of_installments: %w", err)
		}
	}

	input.PaymentType = paymentType(str(record, paymentTypeKeys), input.NumberOfInstallments, len(installments))
	return input, nil
}

// paymentType resolves aliases; an unknown or missing type is inferred
// from the presence of installments
func paymentType(raw string, count, listed int) enum.PaymentType {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case slices.Contains(cashAliases, value):
		return enum.PaymentTypeCash
	case slices.Contains(installmentAliases, value):
		return enum.PaymentTypeInstallments
	case count > 0 || listed > 0:
		return enum.PaymentTypeInstallments
	default:
		return enum.PaymentTypeCash
	}
}

func items(record map[string]any) ([]service.SaleItemInput, error) {
	raw, ok := lookup(record, itemsKeys)
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("items: expected a list, got %T", raw)
	}

	out := make([]service.SaleItemInput, 0, len(list))
	for i, entry := range list {
		item, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("items[%d]: expected an object, got %T", i, entry)
		}

		in := service.SaleItemInput{ProductName: str(item, productNameKeys)}
		if raw := str(item, productIDKeys); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				in.ProductID = &id
			}
		}
		quantity, _ := lookup(item, quantityKeys)
		q, err := cast.ToIntE(quantity)
		if err != nil {
			return nil, fmt.Errorf("items[%d].quantity: %w", i, err)
		}
		in.Quantity = q
		if in.UnitPrice, err = money(item, unitPriceKeys); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

type numberedInstallment struct {
	number int
	input  service.ImportInstallmentInput
}

// installmentList returns the supplied installments ordered by their
// original number, or the count when the field holds a number
func installmentList(record map[string]any) ([]service.ImportInstallmentInput, int, error) {
	raw, ok := lookup(record, installmentsKeys)
	if !ok {
		return nil, 0, nil
	}
	list, ok := raw.([]any)
	if !ok {
		count, err := cast.ToIntE(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("installments: expected a list or a count, got %T", raw)
		}
		return nil, count, nil
	}

	numbered := make([]numberedInstallment, 0, len(list))
	for i, entry := range list {
		inst, ok := entry.(map[string]any)
		if !ok {
			return nil, 0, fmt.Errorf("installments[%d]: expected an object, got %T", i, entry)
		}

		number := i + 1
		if n, ok := lookup(inst, numberKeys); ok {
			if parsed, err := cast.ToIntE(n); err == nil && parsed > 0 {
				number = parsed
			}
		}

		in := service.ImportInstallmentInput{
			DueDate:         date(inst, dueDateKeys),
			OriginalDueDate: date(inst, originalDueDateKeys),
			PaidDate:        optionalDate(inst, paidDateKeys),
			Notes:           optionalStr(inst, notesKeys),
		}
		var err error
		if in.Amount, err = money(inst, amountKeys); err != nil {
			return nil, 0, fmt.Errorf("installments[%d]: %w", i, err)
		}
		if in.PaidAmount, err = money(inst, paidAmountKeys); err != nil {
			return nil, 0, fmt.Errorf("installments[%d]: %w", i, err)
		}
		if in.LateFee, err = money(inst, lateFeeKeys); err != nil {
			return nil, 0, fmt.Errorf("installments[%d]: %w", i, err)
		}
		if applied, ok := lookup(inst, lateFeeAppliedKeys); ok {
			in.LateFeeApplied = cast.ToBool(applied)
		}
		numbered = append(numbered, numberedInstallment{number: number, input: in})
	}

	sort.SliceStable(numbered, func(i, j int) bool { return numbered[i].number < numbered[j].number })
	out := make([]service.ImportInstallmentInput, len(numbered))
	for i, n := range numbered {
		out[i] = n.input
	}
	return out, len(out), nil
}

func lookup(record map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := record[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(record map[string]any, keys []string) string {
	v, ok := lookup(record, keys)
	if !ok {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func optionalStr(record map[string]any, keys []string) *string {
	s := str(record, keys)
	if s == "" {
		return nil
	}
	return &s
}

// date keeps ISO strings as written; epoch milliseconds become RFC 3339
func date(record map[string]any, keys []string) string {
	v, ok := lookup(record, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64, int, int64, json.Number:
		ms, err := cast.ToInt64E(t)
		if err != nil {
			return ""
		}
		return time.UnixMilli(ms).UTC().Format(time.RFC3339)
	default:
		return strings.TrimSpace(cast.ToString(v))
	}
}

func optionalDate(record map[string]any, keys []string) *string {
	d := date(record, keys)
	if d == "" {
		return nil
	}
	return &d
}

// money accepts numbers and numeric strings, with either a dot or a single
// comma as decimal separator
func money(record map[string]any, keys []string) (decimal.Decimal, error) {
	v, ok := lookup(record, keys)
	if !ok {
		return decimal.Zero, nil
	}

	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, nil
		}
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: invalid amount %q", keys[0], n)
		}
		return d, nil
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: invalid amount %v", keys[0], v)
		}
		return decimal.NewFromFloat(f), nil
	}
}
