package cart

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pasarlokal/backend-pasar/internal/catalog"
	"github.com/pasarlokal/backend-pasar/internal/common"
	"github.com/pasarlokal/backend-pasar/internal/pricing"
)

// ErrLineNotFound indicates the addressed cart line does not exist.
var ErrLineNotFound = errors.New("cart line not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ProductSource resolves product documents for cart lines.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// Service encapsulates cart domain operations on top of the redis store.
type Service struct {
	Store    *Store
	Products ProductSource
	Logger   zerolog.Logger
}

// AddInput is the payload for adding an item to the cart.
type AddInput struct {
	ProductID  string                    `json:"productId" validate:"required"`
	Quantity   *int                      `json:"quantity,omitempty"`
	Variety    string                    `json:"variety,omitempty"`
	Required   map[string]string         `json:"required,omitempty"`
	Quantities map[string]map[string]int `json:"quantities,omitempty"`
}

// UpdateInput is the payload for patching an existing line. Nil fields keep
// the current value; changing a selection moves the line to a new identity
// and merges with any existing line already at that identity.
type UpdateInput struct {
	Quantity   *int                      `json:"quantity,omitempty"`
	Variety    *string                   `json:"variety,omitempty"`
	Required   map[string]string         `json:"required,omitempty"`
	Quantities map[string]map[string]int `json:"quantities,omitempty"`
}

// ViewLine is a priced cart line as returned to clients.
type ViewLine struct {
	ID         string                    `json:"id"`
	ProductID  string                    `json:"productId"`
	Name       string                    `json:"name"`
	Store      string                    `json:"store"`
	Quantity   int                       `json:"quantity"`
	Variety    string                    `json:"variety,omitempty"`
	Required   map[string]string         `json:"required,omitempty"`
	Quantities map[string]map[string]int `json:"quantities,omitempty"`
	Amount     string                    `json:"amount"`
	Missing    []string                  `json:"missing,omitempty"`
}

// View is the priced snapshot of a user's cart. Lines whose product can no
// longer be resolved upstream are dropped rather than blocking the view.
type View struct {
	Lines []ViewLine `json:"lines"`
	Total string     `json:"total"`
}

// Add inserts a new line or bumps the quantity of the identical one.
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (View, error) {
	product, err := s.Products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return View{}, err
	}
	qty, err := effectiveQuantity(in.Quantity, product)
	if err != nil {
		return View{}, err
	}
	if in.Variety != "" && !hasVariety(product, in.Variety) {
		return View{}, ErrInvalidInput
	}

	c, err := s.Store.Load(ctx, userID)
	if err != nil {
		return View{}, err
	}

	id := Identity(in.ProductID, in.Variety, in.Required, in.Quantities)
	merged := false
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			c.Lines[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		c.Lines = append(c.Lines, Line{
			ID:         id,
			ProductID:  in.ProductID,
			Quantity:   qty,
			Variety:    in.Variety,
			Required:   in.Required,
			Quantities: in.Quantities,
			AddedAt:    time.Now().UTC(),
		})
	}

	if err := s.Store.Save(ctx, c); err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

// Update patches a line in place. When the patch changes the selection the
// line's identity changes with it, which may merge it into another line.
func (s *Service) Update(ctx context.Context, userID, lineID string, in UpdateInput) (View, error) {
	c, err := s.Store.Load(ctx, userID)
	if err != nil {
		return View{}, err
	}

	idx := -1
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return View{}, ErrLineNotFound
	}
	line := c.Lines[idx]

	if in.Quantity != nil {
		if *in.Quantity < 1 {
			return View{}, pricing.ErrInvalidQuantity
		}
		line.Quantity = *in.Quantity
	}
	if in.Variety != nil {
		product, err := s.Products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return View{}, err
		}
		if *in.Variety != "" && !hasVariety(product, *in.Variety) {
			return View{}, ErrInvalidInput
		}
		line.Variety = *in.Variety
	}
	if in.Required != nil {
		line.Required = in.Required
	}
	if in.Quantities != nil {
		line.Quantities = in.Quantities
	}

	line.ID = Identity(line.ProductID, line.Variety, line.Required, line.Quantities)

	// Rebuild the line slice, merging into an existing line when the new
	// identity collides with one.
	rest := append(c.Lines[:idx:idx], c.Lines[idx+1:]...)
	merged := false
	for i := range rest {
		if rest[i].ID == line.ID {
			rest[i].Quantity += line.Quantity
			merged = true
			break
		}
	}
	if !merged {
		rest = append(rest, line)
	}
	c.Lines = rest

	if err := s.Store.Save(ctx, c); err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

// Remove deletes a single line.
func (s *Service) Remove(ctx context.Context, userID, lineID string) (View, error) {
	c, err := s.Store.Load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	kept := c.Lines[:0]
	found := false
	for _, l := range c.Lines {
		if l.ID == lineID {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return View{}, ErrLineNotFound
	}
	c.Lines = kept
	if err := s.Store.Save(ctx, c); err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

// Clear drops the whole cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.Store.Delete(ctx, userID)
}

// Get returns the current priced cart.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	c, err := s.Store.Load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

// Resolved is a cart line paired with its live product document, as needed
// by checkout.
type Resolved struct {
	Line    Line
	Product *catalog.Product
}

// Resolve loads the cart and fetches every line's product. Unlike view,
// checkout must not silently drop lines, so a missing product is an error.
func (s *Service) Resolve(ctx context.Context, userID string) ([]Resolved, error) {
	c, err := s.Store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Resolved, 0, len(c.Lines))
	for _, l := range c.Lines {
		p, err := s.Products.GetProduct(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		out = append(out, Resolved{Line: l, Product: p})
	}
	return out, nil
}

func (s *Service) view(ctx context.Context, c Cart) (View, error) {
	v := View{Lines: make([]ViewLine, 0, len(c.Lines))}
	total := decimal.Zero
	for _, l := range c.Lines {
		p, err := s.Products.GetProduct(ctx, l.ProductID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				s.Logger.Warn().Str("product_id", l.ProductID).Msg("dropping unresolvable cart line from view")
				continue
			}
			return View{}, err
		}
		q, err := pricing.Line(p, selection(l))
		if err != nil {
			return View{}, err
		}
		// round per line exactly as checkout does, so the rendered total
		// always equals the total an order submission would carry
		amount := pricing.Round2(q.Amount)
		total = total.Add(amount)
		v.Lines = append(v.Lines, ViewLine{
			ID:         l.ID,
			ProductID:  l.ProductID,
			Name:       p.Name,
			Store:      p.Store,
			Quantity:   l.Quantity,
			Variety:    l.Variety,
			Required:   l.Required,
			Quantities: l.Quantities,
			Amount:     pricing.Display(amount),
			Missing:    q.Missing,
		})
	}
	v.Total = pricing.Display(total)
	return v, nil
}

func selection(l Line) pricing.Selection {
	qty := l.Quantity
	return pricing.Selection{
		Quantity:   &qty,
		Variety:    l.Variety,
		Required:   l.Required,
		Quantities: l.Quantities,
	}
}

func effectiveQuantity(q *int, p *catalog.Product) (int, error) {
	if q == nil {
		if p.Quantity > 0 {
			return p.Quantity, nil
		}
		return 1, nil
	}
	if *q < 1 {
		return 0, pricing.ErrInvalidQuantity
	}
	return *q, nil
}

func hasVariety(p *catalog.Product, name string) bool {
	for _, v := range p.Varieties {
		if v.Name == name {
			return true
		}
	}
	return false
}
