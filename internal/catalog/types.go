package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pasarlokal/backend-pasar/internal/geo"
)

// Variety is a named product variant carrying a price delta relative to the
// base price.
type Variety struct {
	Name            string          `json:"name"`
	PriceDifference decimal.Decimal `json:"priceDifference"`
}

// Choice is one selectable add-on inside an option group. Plain string
// choices from the wire are normalised into this shape with an empty ID and
// a zero cost.
type Choice struct {
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name"`
	AdditionalCost decimal.Decimal `json:"additionalCost"`
}

// Value returns the key clients use when selecting this choice: the id for
// priced choices, the name for plain ones.
func (c Choice) Value() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Name
}

// OptionGroup is a named set of add-on choices. Required groups are
// single-select; non-required groups accept a quantity per choice. The wire
// representation of choices is heterogeneous (plain strings or objects) and
// is resolved once here, at decode time.
type OptionGroup struct {
	Name     string   `json:"name"`
	Required bool     `json:"required"`
	Plain    bool     `json:"plain,omitempty"`
	Choices  []Choice `json:"options"`
}

// Find resolves a selected value against the group's choices, matching the
// id first and the name second.
func (g OptionGroup) Find(value string) (Choice, bool) {
	for _, c := range g.Choices {
		if c.ID != "" && c.ID == value {
			return c, true
		}
	}
	for _, c := range g.Choices {
		if c.Name == value {
			return c, true
		}
	}
	return Choice{}, false
}

// GeoPoint is the GeoJSON point shape used by the upstream API. Coordinates
// are ordered longitude first.
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// LatLng converts the GeoJSON coordinate pair into a geo.Point. It reports
// false when the point is absent or malformed.
func (p *GeoPoint) LatLng() (geo.Point, bool) {
	if p == nil || len(p.Coordinates) < 2 {
		return geo.Point{}, false
	}
	return geo.Point{Lat: p.Coordinates[1], Lng: p.Coordinates[0]}, true
}

// Location is a resolved delivery location: coordinates plus the
// human-readable address geocoding produced.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Product is the catalog document served by the upstream marketplace API.
type Product struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	Store        string                     `json:"store,omitempty"`
	Price        decimal.Decimal            `json:"price"`
	PriceFinal   *decimal.Decimal           `json:"priceFinal,omitempty"`
	Quantity     int                        `json:"quantity,omitempty"`
	Varieties    []Variety                  `json:"varieties,omitempty"`
	OptionGroups []OptionGroup              `json:"productoptions,omitempty"`
	ExtraPrices  map[string]decimal.Decimal `json:"extraPrices,omitempty"`
	Location     *GeoPoint                  `json:"location,omitempty"`
}

// UnitPrice is the per-unit price before variety and option add-ons: the
// discounted price when present, the base price otherwise.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.PriceFinal != nil {
		return *p.PriceFinal
	}
	return p.Price
}

// VarietyDelta returns the price difference of the variety with the given
// name. Unknown or empty names contribute nothing.
func (p *Product) VarietyDelta(name string) decimal.Decimal {
	if name == "" {
		return decimal.Zero
	}
	for _, v := range p.Varieties {
		if v.Name == name {
			return v.PriceDifference
		}
	}
	return decimal.Zero
}

// Group looks up an option group by name.
func (p *Product) Group(name string) (OptionGroup, bool) {
	for _, g := range p.OptionGroups {
		if g.Name == name {
			return g, true
		}
	}
	return OptionGroup{}, false
}

// ChoiceCost returns the add-on cost of a choice within a group. Plain
// groups price through the product-level extraPrices map; priced groups
// carry the cost on the choice itself.
func (p *Product) ChoiceCost(g OptionGroup, c Choice) decimal.Decimal {
	if g.Plain {
		if cost, ok := p.ExtraPrices[c.Name]; ok {
			return cost
		}
		return decimal.Zero
	}
	return c.AdditionalCost
}

// UnmarshalJSON decodes the upstream product document, accepting `_id` as
// an alias for `id` and tolerating missing or non-numeric monetary fields.
func (p *Product) UnmarshalJSON(data []byte) error {
	var aux struct {
		UID          string                     `json:"_id"`
		ID           string                     `json:"id"`
		Name         string                     `json:"name"`
		Store        string                     `json:"store"`
		Price        json.RawMessage            `json:"price"`
		PriceFinal   json.RawMessage            `json:"priceFinal"`
		Quantity     int                        `json:"quantity"`
		Varieties    []rawVariety               `json:"varieties"`
		OptionGroups []OptionGroup              `json:"productoptions"`
		ExtraPrices  map[string]json.RawMessage `json:"extraPrices"`
		Location     *GeoPoint                  `json:"location"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ID = aux.ID
	if p.ID == "" {
		p.ID = aux.UID
	}
	p.Name = aux.Name
	p.Store = aux.Store
	p.Price = lenientDecimal(aux.Price)
	p.PriceFinal = nil
	if present(aux.PriceFinal) {
		final := lenientDecimal(aux.PriceFinal)
		p.PriceFinal = &final
	}
	p.Quantity = aux.Quantity
	p.Varieties = nil
	for _, v := range aux.Varieties {
		p.Varieties = append(p.Varieties, Variety{Name: v.Name, PriceDifference: lenientDecimal(v.PriceDifference)})
	}
	p.OptionGroups = aux.OptionGroups
	p.ExtraPrices = nil
	if len(aux.ExtraPrices) > 0 {
		p.ExtraPrices = make(map[string]decimal.Decimal, len(aux.ExtraPrices))
		for k, v := range aux.ExtraPrices {
			p.ExtraPrices[k] = lenientDecimal(v)
		}
	}
	p.Location = aux.Location
	return nil
}

type rawVariety struct {
	Name            string          `json:"name"`
	PriceDifference json.RawMessage `json:"priceDifference"`
}

// UnmarshalJSON normalises the heterogeneous choice list: a group whose
// first element is an object carries priced choices, anything else is a
// list of plain string labels.
func (g *OptionGroup) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name     string            `json:"name"`
		Required bool              `json:"required"`
		Options  []json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.Name = aux.Name
	g.Required = aux.Required
	g.Plain = true
	g.Choices = nil
	if len(aux.Options) == 0 {
		return nil
	}
	if bytes.HasPrefix(bytes.TrimSpace(aux.Options[0]), []byte("{")) {
		g.Plain = false
		for _, raw := range aux.Options {
			var obj struct {
				UID            string          `json:"_id"`
				ID             string          `json:"id"`
				Name           string          `json:"name"`
				AdditionalCost json.RawMessage `json:"additionalCost"`
			}
			if err := json.Unmarshal(raw, &obj); err != nil {
				return err
			}
			id := obj.ID
			if id == "" {
				id = obj.UID
			}
			g.Choices = append(g.Choices, Choice{
				ID:             id,
				Name:           obj.Name,
				AdditionalCost: lenientDecimal(obj.AdditionalCost),
			})
		}
		return nil
	}
	for _, raw := range aux.Options {
		var label string
		if err := json.Unmarshal(raw, &label); err != nil {
			// non-string, non-object entry: keep its literal text as label
			label = strings.Trim(string(bytes.TrimSpace(raw)), `"`)
		}
		g.Choices = append(g.Choices, Choice{Name: label})
	}
	return nil
}

// lenientDecimal coerces a raw JSON value into a decimal, treating missing,
// null, and non-numeric values as zero. Pricing must never fall back to
// string concatenation semantics.
func lenientDecimal(raw json.RawMessage) decimal.Decimal {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero
	}
	s := string(trimmed)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
