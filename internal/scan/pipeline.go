package scan

import (
	"github.com/shopspring/decimal"

	"github.com/zombor/dsr-tracker/internal/geometry"
	"github.com/zombor/dsr-tracker/internal/layout"
	"github.com/zombor/dsr-tracker/internal/posparse"
	"github.com/zombor/dsr-tracker/internal/recognition"
	"github.com/zombor/dsr-tracker/internal/reconcile"
)

// fallbackSize is used for images whose pixel size is unknown. Only the
// relative placement of boxes matters to line grouping.
const fallbackSize = 1000

// Analyze runs recognized words through layout, parsing and reconciliation.
// The returned outcome is Ready or Rejected; Generation is left unset.
func Analyze(observations []recognition.Observation, width, height int, engine *reconcile.Engine, tolerance decimal.Decimal) Outcome {
	if width <= 0 || height <= 0 {
		width, height = fallbackSize, fallbackSize
	}

	words := make([]layout.Word, 0, len(observations))
	for _, o := range observations {
		text := o.Best()
		if text == "" {
			continue
		}
		words = append(words, layout.Word{
			Text: text,
			Rect: geometry.ToPixel(o.Box, float64(width), float64(height)),
		})
	}

	raw := layout.Text(layout.Sequence(words))
	parsed := posparse.Parse(raw)
	out := Outcome{
		RawText:  raw,
		Sections: parsed.Sections(),
	}

	report, err := engine.Build(parsed.Values)
	if err != nil {
		out.State = Rejected
		out.Reason = ReasonInsufficientData
		out.Err = err
		return out
	}

	out.Report = report
	if !report.Balanced(tolerance) {
		out.State = Rejected
		out.Reason = ReasonUnbalanced
		out.Err = &UnbalancedError{Difference: report.CashDifference, Tolerance: tolerance}
		return out
	}

	out.State = Ready
	return out
}
