package reconcile

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientData is returned when the receipt lacks net sales or total
// taxes. No partial report is built.
var ErrInsufficientData = errors.New("insufficient data: net sales and total taxes are required")

// Field locates one amount in the parsed sections.
type Field struct {
	Section string `json:"section"`
	Label   string `json:"label"`
}

// Sources says where each report field is read from. Paired fields name a
// label that is summed across the eat in and take out sections.
type Sources struct {
	NetSales   Field
	TotalTaxes Field

	FryLoads       Field
	ProvincialTax  Field
	CashFloatDelta Field
	Aggregators    Field
	Payouts        Field
	GSTOnPayouts   Field
	NonCash        Field

	PairedSections [2]string
	Visa           string
	Mastercard     string
	Amex           string
	Debit          string
	BankDeposit    string
	FryPayments    string
	Givex          string
}

// DefaultSources matches the Clearview "Sales By Order Type" report.
var DefaultSources = Sources{
	NetSales:   Field{"end", "net"},
	TotalTaxes: Field{"end", "total taxes"},

	FryLoads:       Field{"end", "fry society loads"},
	ProvincialTax:  Field{"end", "manitoba pst"},
	CashFloatDelta: Field{"cash", "float delta"},
	Aggregators:    Field{"delivery", "sales"},
	Payouts:        Field{"cash", "payouts"},
	GSTOnPayouts:   Field{"cash", "gst on payouts"},
	NonCash:        Field{"cash", "non cash coupons"},

	PairedSections: [2]string{"eat in", "take out"},
	Visa:           "visa",
	Mastercard:     "mastercard",
	Amex:           "amex",
	Debit:          "debit",
	BankDeposit:    "cash",
	FryPayments:    "fry society payments",
	Givex:          "givex",
}

// Engine builds reports from parsed section values.
type Engine struct {
	Sources Sources
}

// NewEngine returns an Engine reading from DefaultSources.
func NewEngine() *Engine {
	return &Engine{Sources: DefaultSources}
}

// Build reconciles values keyed by section then label.
func Build(values map[string]map[string]decimal.Decimal) (*Report, error) {
	return NewEngine().Build(values)
}

// Build reconciles values keyed by section then label. It returns
// ErrInsufficientData when a mandatory field is missing.
func (e *Engine) Build(values map[string]map[string]decimal.Decimal) (*Report, error) {
	src := e.Sources

	get := func(f Field) *decimal.Decimal {
		v, ok := values[f.Section][f.Label]
		if !ok {
			return nil
		}
		return &v
	}
	paired := func(label string) *decimal.Decimal {
		return SumOptional(
			get(Field{src.PairedSections[0], label}),
			get(Field{src.PairedSections[1], label}),
		)
	}

	net, taxes := get(src.NetSales), get(src.TotalTaxes)
	if net == nil || taxes == nil {
		return nil, ErrInsufficientData
	}

	r := &Report{
		NetSales:      net,
		FryLoads:      get(src.FryLoads),
		GSTHST:        taxes,
		ProvincialTax: get(src.ProvincialTax),

		CashFloatDelta: get(src.CashFloatDelta),
		Aggregators:    get(src.Aggregators),
		Payouts:        get(src.Payouts),
		GSTOnPayouts:   get(src.GSTOnPayouts),
		Visa:           paired(src.Visa),
		Mastercard:     paired(src.Mastercard),
		Amex:           paired(src.Amex),
		Debit:          paired(src.Debit),
		BankDeposit:    paired(src.BankDeposit),
		FryPayments:    paired(src.FryPayments),
		NonCash:        get(src.NonCash),
		Givex:          paired(src.Givex),
	}
	r.TotalA = total(r.sectionA())
	r.TotalB = total(r.sectionB())
	r.CashDifference = r.TotalB.Sub(r.TotalA)
	return r, nil
}
