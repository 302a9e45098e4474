package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/pasarlokal/backend-pasar/internal/catalog"
)

// ErrInvalidQuantity is returned when a line carries an explicit quantity
// below one. The engine never clamps silently.
var ErrInvalidQuantity = errors.New("pricing: quantity must be at least 1")

// Selection captures the buyer's choices for one cart line.
type Selection struct {
	// Quantity, when set, must be >= 1. Nil falls back to the product
	// default quantity, then 1.
	Quantity *int `json:"quantity,omitempty"`
	// Variety names a product variant by exact name. Empty selects none.
	Variety string `json:"variety,omitempty"`
	// Required maps a required group name to the selected choice value
	// (choice id for priced groups, label for plain ones).
	Required map[string]string `json:"required,omitempty"`
	// Quantities maps group name -> choice value -> quantity. Required
	// groups default the chosen choice to quantity 1; non-required groups
	// contribute only choices with a positive quantity.
	Quantities map[string]map[string]int `json:"quantities,omitempty"`
}

// LineQuote is the priced result for one cart line. Missing lists required
// groups without a selection; such groups contribute nothing to Amount and
// the line must not be submitted until Missing is empty.
type LineQuote struct {
	Amount  decimal.Decimal
	Missing []string
}

// Incomplete reports whether the line lacks a required selection.
func (q LineQuote) Incomplete() bool {
	return len(q.Missing) > 0
}

// CartLine pairs a resolved product with its selection.
type CartLine struct {
	Product   *catalog.Product
	Selection Selection
}

// CartQuote aggregates line quotes. Total is the exact (unrounded) sum of
// all line amounts; incomplete lines contribute their partial amount and
// are flagged through Lines[i].Missing.
type CartQuote struct {
	Total decimal.Decimal
	Lines []LineQuote
}

// Line prices a single cart line:
//
//	amount = (unit + varietyDelta) * quantity + optionsExtra
//
// where unit is priceFinal falling back to price, varietyDelta comes from
// the exact-name variety match, and optionsExtra accumulates per-group
// add-on costs. The same decomposition runs at render and submission time
// so the two can never disagree.
func Line(p *catalog.Product, sel Selection) (LineQuote, error) {
	qty, err := quantity(p, sel)
	if err != nil {
		return LineQuote{}, err
	}
	unit := p.UnitPrice().Add(p.VarietyDelta(sel.Variety))
	amount := unit.Mul(decimal.NewFromInt(int64(qty)))

	var missing []string
	for _, g := range p.OptionGroups {
		if g.Required {
			value, ok := sel.Required[g.Name]
			if !ok || value == "" {
				missing = append(missing, g.Name)
				continue
			}
			cost := decimal.Zero
			if choice, found := g.Find(value); found {
				cost = p.ChoiceCost(g, choice)
			}
			amount = amount.Add(cost.Mul(decimal.NewFromInt(int64(choiceQuantity(sel, g.Name, value)))))
			continue
		}
		for _, choice := range g.Choices {
			n := sel.Quantities[g.Name][choice.Value()]
			if n <= 0 {
				continue
			}
			cost := p.ChoiceCost(g, choice)
			amount = amount.Add(cost.Mul(decimal.NewFromInt(int64(n))))
		}
	}
	return LineQuote{Amount: amount, Missing: missing}, nil
}

// Cart prices every line and sums the results. The caller is responsible
// for excluding entries whose product failed to resolve; they are dropped
// from the cart view, never treated as zero-cost lines.
func Cart(lines []CartLine) (CartQuote, error) {
	quote := CartQuote{Total: decimal.Zero, Lines: make([]LineQuote, 0, len(lines))}
	for _, line := range lines {
		lq, err := Line(line.Product, line.Selection)
		if err != nil {
			return CartQuote{}, err
		}
		quote.Lines = append(quote.Lines, lq)
		quote.Total = quote.Total.Add(lq.Amount)
	}
	return quote, nil
}

// Round2 applies the submission rounding policy: half-up to two decimal
// places. Intermediate sums stay exact; rounding happens only at the
// display and wire boundaries.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Display renders a monetary value with exactly two decimal places.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func quantity(p *catalog.Product, sel Selection) (int, error) {
	if sel.Quantity != nil {
		if *sel.Quantity < 1 {
			return 0, ErrInvalidQuantity
		}
		return *sel.Quantity, nil
	}
	if p.Quantity > 0 {
		return p.Quantity, nil
	}
	return 1, nil
}

// choiceQuantity is the multiplier for a required group's selected choice:
// the explicit quantity when one is recorded, 1 otherwise.
func choiceQuantity(sel Selection, group, value string) int {
	if n := sel.Quantities[group][value]; n > 0 {
		return n
	}
	return 1
}
