// Package posparse turns the reading-ordered text of a POS "Sales By Order
// Type" report into per-section label/amount pairs.
//
// The recognizer tends to emit a print block as all of its labels followed by
// all of its amounts, so the text is split into blocks of one label run and
// one amount run before labels are paired with amounts. Noise is dropped, never
// reported.
package posparse

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Section names.
const (
	EatIn    = "eat in"
	TakeOut  = "take out"
	Delivery = "delivery"
	End      = "end"
)

// anchor marks the start of the order-type breakdown; everything before it is
// report header.
const anchor = EatIn

// roundedLabel is printed once per rounding direction, so a repeat within a
// section is kept under a numbered name instead of overwriting the first.
const roundedLabel = "rounded"

var (
	orderTypeHeaders = []string{EatIn, Delivery, TakeOut}
	taxSentinels     = []string{"hst 5%", "total taxes"}

	// precedence is the display order of sections.
	precedence = []string{EatIn, TakeOut, Delivery, End}

	amountPattern = regexp.MustCompile(`^(\()?\$\s?(\d[\d,]*(?:\.\d+)?)\)?$`)
)

// Result holds parsed amounts per section and the order labels were seen in.
type Result struct {
	Values map[string]map[string]decimal.Decimal `json:"values"`
	Order  map[string][]string                   `json:"order"`
}

// Value returns the amount for label in section.
func (r Result) Value(section, label string) (decimal.Decimal, bool) {
	v, ok := r.Values[section][label]
	return v, ok
}

type token struct {
	label   string
	amount  decimal.Decimal
	numeric bool
}

type block struct {
	labels  []string
	amounts []decimal.Decimal
}

// cursor is the state threaded through the labels of one block. The offset
// counts headers, which take a label slot but no amount.
type cursor struct {
	section string
	offset  int
}

// Parse reads raw newline-separated text. Without an "eat in" anchor the
// result is empty.
func Parse(raw string) Result {
	result := Result{
		Values: map[string]map[string]decimal.Decimal{},
		Order:  map[string][]string{},
	}

	lower := strings.ToLower(raw)
	start := strings.Index(lower, anchor)
	if start < 0 {
		return result
	}

	var section string
	for _, b := range partition(tokenize(lower[start:])) {
		var (
			values map[string]map[string]decimal.Decimal
			order  map[string][]string
		)
		values, order, section = interpret(b, section, result)
		for name, entries := range values {
			if len(entries) == 0 {
				continue
			}
			if result.Values[name] == nil {
				result.Values[name] = map[string]decimal.Decimal{}
			}
			for label, amount := range entries {
				result.Values[name][label] = amount
			}
			result.Order[name] = append(result.Order[name], order[name]...)
		}
	}
	return result
}

func tokenize(text string) []token {
	var tokens []token
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if amount, ok := parseAmount(line); ok {
			tokens = append(tokens, token{amount: amount, numeric: true})
			continue
		}
		tokens = append(tokens, token{label: line})
	}
	return tokens
}

// parseAmount accepts "$1,234.56" and the parenthesized negative "($0.35)".
func parseAmount(line string) (decimal.Decimal, bool) {
	m := amountPattern.FindStringSubmatch(line)
	if m == nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	if m[1] != "" {
		amount = amount.Neg()
	}
	return amount, true
}

// partition splits tokens into label-run/amount-run blocks. Amounts with no
// preceding labels form a block with no labels and are ignored later.
func partition(tokens []token) []block {
	var (
		blocks  []block
		current block
	)
	for _, t := range tokens {
		if !t.numeric && len(current.amounts) > 0 {
			blocks = append(blocks, current)
			current = block{}
		}
		if t.numeric {
			current.amounts = append(current.amounts, t.amount)
		} else {
			current.labels = append(current.labels, t.label)
		}
	}
	if len(current.labels) > 0 || len(current.amounts) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

// interpret pairs the labels of one block with its amounts, starting in the
// section the previous block ended in. prior holds the sections merged from
// earlier blocks and is only read.
func interpret(b block, section string, prior Result) (map[string]map[string]decimal.Decimal, map[string][]string, string) {
	values := map[string]map[string]decimal.Decimal{}
	order := map[string][]string{}

	c := cursor{section: section}
	for i, label := range b.labels {
		next, opened, idx, take := step(c, i, label, len(b.amounts), values[End] != nil)
		c = next
		if opened != "" {
			values[opened] = map[string]decimal.Decimal{}
			order[opened] = nil
		}
		if !take {
			continue
		}
		if values[c.section] == nil {
			values[c.section] = map[string]decimal.Decimal{}
		}
		if label == roundedLabel && (has(values[c.section], label) || has(prior.Values[c.section], label)) {
			label = nextRoundedLabel(values[c.section], prior.Values[c.section])
		}
		values[c.section][label] = b.amounts[idx]
		order[c.section] = append(order[c.section], label)
	}
	return values, order, c.section
}

// step advances the cursor over one label. It reports the section the label
// opens, if any, and the index of the amount the label takes.
func step(c cursor, i int, label string, amounts int, endOpen bool) (next cursor, opened string, idx int, take bool) {
	if slices.Contains(orderTypeHeaders, label) {
		return cursor{section: label, offset: c.offset - 1}, label, 0, false
	}
	if slices.Contains(taxSentinels, label) && !endOpen {
		c.section = End
		opened = End
	}
	idx = i + c.offset
	if c.section == "" || idx < 0 || idx >= amounts {
		return c, opened, 0, false
	}
	return c, opened, idx, true
}

func nextRoundedLabel(sets ...map[string]decimal.Decimal) string {
	for n := 2; ; n++ {
		candidate := roundedLabel + strconv.Itoa(n)
		taken := false
		for _, set := range sets {
			taken = taken || has(set, candidate)
		}
		if !taken {
			return candidate
		}
	}
}

func has(set map[string]decimal.Decimal, label string) bool {
	_, ok := set[label]
	return ok
}
