// Package reconcile maps parsed POS sections onto the daily sales report
// schema and checks that payments balance against sales.
package reconcile

import (
	"github.com/shopspring/decimal"
)

// Report is a daily sales reconciliation. Optional fields are nil when the
// receipt did not carry them; nil is never the same as zero.
type Report struct {
	// Section A
	NetSales      *decimal.Decimal `json:"net_sales"`
	FryLoads      *decimal.Decimal `json:"fry_loads"`
	GSTHST        *decimal.Decimal `json:"gst_hst"`
	ProvincialTax *decimal.Decimal `json:"provincial_tax"`
	TotalA        decimal.Decimal  `json:"total_a"`

	// Section B
	CashFloatDelta *decimal.Decimal `json:"cash_float_delta"`
	Aggregators    *decimal.Decimal `json:"aggregators"`
	Payouts        *decimal.Decimal `json:"payouts"`
	GSTOnPayouts   *decimal.Decimal `json:"gst_on_payouts"`
	Visa           *decimal.Decimal `json:"visa"`
	Mastercard     *decimal.Decimal `json:"mastercard"`
	Amex           *decimal.Decimal `json:"amex"`
	Debit          *decimal.Decimal `json:"debit"`
	BankDeposit    *decimal.Decimal `json:"bank_deposit"`
	FryPayments    *decimal.Decimal `json:"fry_payments"`
	NonCash        *decimal.Decimal `json:"non_cash"`
	Givex          *decimal.Decimal `json:"givex"`
	TotalB         decimal.Decimal  `json:"total_b"`

	// CashDifference is TotalB - TotalA.
	CashDifference decimal.Decimal `json:"cash_difference"`
}

// Balanced reports whether the cash difference is strictly within tolerance
// of zero.
func (r *Report) Balanced(tolerance decimal.Decimal) bool {
	return r.CashDifference.Abs().LessThan(tolerance)
}

func (r *Report) sectionA() []*decimal.Decimal {
	return []*decimal.Decimal{r.NetSales, r.FryLoads, r.GSTHST, r.ProvincialTax}
}

func (r *Report) sectionB() []*decimal.Decimal {
	return []*decimal.Decimal{
		r.CashFloatDelta, r.Aggregators, r.Payouts, r.GSTOnPayouts,
		r.Visa, r.Mastercard, r.Amex, r.Debit, r.BankDeposit,
		r.FryPayments, r.NonCash, r.Givex,
	}
}

type addable[T any] interface {
	Add(T) T
}

// SumOptional adds two optional values: both absent stays absent, one absent
// counts as zero.
func SumOptional[T addable[T]](a, b *T) *T {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	}
	v := (*a).Add(*b)
	return &v
}

// total sums the present values.
func total(values []*decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		if v != nil {
			sum = sum.Add(*v)
		}
	}
	return sum
}
