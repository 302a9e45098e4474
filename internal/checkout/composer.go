package checkout

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/pasarlokal/backend-pasar/internal/cart"
	"github.com/pasarlokal/backend-pasar/internal/catalog"
	"github.com/pasarlokal/backend-pasar/internal/common"
	"github.com/pasarlokal/backend-pasar/internal/pricing"
	"github.com/pasarlokal/backend-pasar/internal/upstream"
)

// Composition is the fully priced order ready for submission: one order
// request plus one item request per cart line. The order total equals the
// exact sum of the already rounded item amounts.
type Composition struct {
	Order upstream.OrderRequest
	Items []upstream.OrderItemRequest
}

// Compose validates and prices every cart line, then assembles the upstream
// payloads. Validation failures are aggregated across all lines before the
// call fails, so the client sees every missing required group at once.
func Compose(lines []cart.Resolved, userID string, loc catalog.Location, preference string) (Composition, error) {
	if len(lines) == 0 {
		return Composition{}, common.NewAppError("EMPTY_CART", "cart is empty", http.StatusUnprocessableEntity, nil)
	}

	point := upstream.PointAt(loc.Latitude, loc.Longitude)
	comp := Composition{
		Order: upstream.OrderRequest{
			User:     userID,
			Status:   upstream.StatusPending,
			Location: point,
			Address:  loc.Address,
		},
		Items: make([]upstream.OrderItemRequest, 0, len(lines)),
	}

	var violations []map[string]any
	total := decimal.Zero

	for _, rl := range lines {
		sel := pricing.Selection{
			Quantity:   intPtr(rl.Line.Quantity),
			Variety:    rl.Line.Variety,
			Required:   rl.Line.Required,
			Quantities: rl.Line.Quantities,
		}
		quote, err := pricing.Line(rl.Product, sel)
		if err != nil {
			return Composition{}, err
		}
		if quote.Incomplete() {
			violations = append(violations, map[string]any{
				"productId": rl.Product.ID,
				"name":      rl.Product.Name,
				"missing":   quote.Missing,
			})
			continue
		}

		amount := pricing.Round2(quote.Amount)
		total = total.Add(amount)

		comp.Order.Products = append(comp.Order.Products, rl.Product.ID)
		comp.Items = append(comp.Items, upstream.OrderItemRequest{
			Product:      rl.Product.ID,
			Store:        rl.Product.Store,
			User:         userID,
			Quantity:     rl.Line.Quantity,
			Amount:       json.Number(amount.StringFixed(2)),
			Preference:   preference,
			Variety:      rl.Line.Variety,
			Status:       upstream.StatusPending,
			OrderOptions: orderOptions(rl),
			Location:     point,
			Address:      loc.Address,
		})
	}

	if len(violations) > 0 {
		return Composition{}, &common.AppError{
			Code:       "VALIDATION",
			Message:    "required options missing",
			HTTPStatus: http.StatusUnprocessableEntity,
			Details:    map[string]any{"lines": violations},
		}
	}

	comp.Order.TotalAmount = json.Number(total.StringFixed(2))
	return comp, nil
}

// orderOptions flattens a line's selections into the upstream shape. Priced
// groups are labelled by the chosen option's display name; plain groups
// carry the raw selected value.
func orderOptions(rl cart.Resolved) []upstream.OrderOption {
	var out []upstream.OrderOption

	for _, g := range rl.Product.OptionGroups {
		if !g.Required {
			continue
		}
		value, ok := rl.Line.Required[g.Name]
		if !ok {
			continue
		}
		label := value
		if !g.Plain {
			if c, ok := g.Find(value); ok {
				label = c.Name
			}
		}
		qty := 1
		if n := rl.Line.Quantities[g.Name][value]; n > 0 {
			qty = n
		}
		out = append(out, upstream.OrderOption{
			Name:    g.Name,
			Options: []upstream.OptionQuantity{{OptionName: label, Quantity: qty}},
		})
	}

	for _, g := range rl.Product.OptionGroups {
		if g.Required {
			continue
		}
		counts, ok := rl.Line.Quantities[g.Name]
		if !ok {
			continue
		}
		opt := upstream.OrderOption{Name: g.Name}
		for _, c := range g.Choices {
			n := counts[c.Value()]
			if n <= 0 {
				continue
			}
			opt.Options = append(opt.Options, upstream.OptionQuantity{OptionName: c.Name, Quantity: n})
		}
		if len(opt.Options) > 0 {
			out = append(out, opt)
		}
	}

	return out
}

func intPtr(v int) *int { return &v }
