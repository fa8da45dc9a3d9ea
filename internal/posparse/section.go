package posparse

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Pair is one label/amount entry of a section.
type Pair struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Section is a parsed section with its entries in the order they were first
// seen and an index by label.
type Section struct {
	Name    string                     `json:"name"`
	Entries []Pair                     `json:"entries"`
	Index   map[string]decimal.Decimal `json:"-"`
}

// Title returns the display name of the section, e.g. "Eat In".
func (s Section) Title() string {
	words := strings.Fields(s.Name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Sections lists the parsed sections in display order: eat in, take out,
// delivery, end, then anything else by name.
func (r Result) Sections() []Section {
	names := make([]string, 0, len(r.Values))
	for name := range r.Values {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		pi, pj := rank(names[i]), rank(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})

	sections := make([]Section, 0, len(names))
	for _, name := range names {
		index := r.Values[name]
		s := Section{Name: name, Index: maps.Clone(index)}
		seen := make(map[string]bool, len(index))
		for _, label := range r.Order[name] {
			amount, ok := index[label]
			if !ok || seen[label] {
				continue
			}
			seen[label] = true
			s.Entries = append(s.Entries, Pair{Label: label, Amount: amount})
		}
		sections = append(sections, s)
	}
	return sections
}

func rank(name string) int {
	if i := slices.Index(precedence, name); i >= 0 {
		return i
	}
	return len(precedence)
}
