package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	labelWidth = 30
	moneyWidth = 8
)

// Lines renders the report as fixed-width text for an 80mm receipt printer.
// Every amount row is labelWidth+moneyWidth wide; an amount too long for its
// cell takes room from the label padding so the right edge stays aligned.
func (r *Report) Lines(printedAt time.Time) []string {
	return []string{
		"----------- DAILY SALES REPORT -----------",
		"",
		row("NET SALES", r.NetSales),
		row("FRY SOCIETY LOADS", r.FryLoads),
		row("GST & HST", r.GSTHST),
		row("MANITOBA PST", r.ProvincialTax),
		row("TOTAL A", &r.TotalA),
		"",
		row("CASH FLOAT INCREASE (DECREASE)", r.CashFloatDelta),
		row("AGGREGATORS", r.Aggregators),
		row("PAYOUTS, GST/HST NOT INCLUDED", r.Payouts),
		row("GST/HST ON PAYOUTS", r.GSTOnPayouts),
		row("VISA", r.Visa),
		row("MASTERCARD", r.Mastercard),
		row("AMERICAN EXPRESS", r.Amex),
		row("DEBIT CARD", r.Debit),
		row("BANK DEPOSIT", r.BankDeposit),
		row("FRY SOCIETY PAYMENTS", r.FryPayments),
		row("NON-CASH COUPONS/REWARDS", r.NonCash),
		row("GIVEX $ +/-", r.Givex),
		row("TOTAL B", &r.TotalB),
		"",
		row("CASH DIFFERENCE", &r.CashDifference),
		"------------------------------------------",
		"",
		"Printed: " + printedAt.Format("Jan 2, 2006"),
	}
}

func row(label string, v *decimal.Decimal) string {
	cell := money(v)
	width := max(labelWidth+moneyWidth-len(cell), 0)
	if len(label) > width {
		label = label[:width]
	}
	return fmt.Sprintf("%-*s%s", width, label, cell)
}

// money renders "$" and a right-aligned amount, or blanks when absent.
func money(v *decimal.Decimal) string {
	if v == nil {
		return strings.Repeat(" ", moneyWidth)
	}
	s := v.StringFixed(2)
	return "$" + fmt.Sprintf("%*s", moneyWidth-1, s)
}
