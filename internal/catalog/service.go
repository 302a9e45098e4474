package catalog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pasarlokal/backend-pasar/internal/geo"
)

// Source is the slice of the upstream client the catalog depends on.
type Source interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListServices(ctx context.Context) ([]Product, error)
	Geocode(ctx context.Context, query string) (Location, error)
}

// Nearby is a product decorated with its distance from the caller.
type Nearby struct {
	Product
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// Service serves catalog reads. Lists and single products are cached in
// Redis for a short TTL; proximity sorting always happens on the freshly
// loaded or cached list, never on a cached sort order.
type Service struct {
	source Source
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig configures the Service dependencies.
type ServiceConfig struct {
	Source Source
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{source: cfg.Source, cache: cfg.Cache, logger: cfg.Logger}
}

// Get returns a single product by id.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	key := "catalog:product:" + id
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}
	p, err := s.source.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, p); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return p, nil
}

// GetProduct satisfies the cart's ProductSource using the cached read path.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.Get(ctx, id)
}

// List returns the product listing, optionally filtered by a search term
// matched against name and store.
func (s *Service) List(ctx context.Context, search string) ([]Product, error) {
	items, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	if search == "" {
		return items, nil
	}
	needle := strings.ToLower(search)
	filtered := make([]Product, 0, len(items))
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.Store), needle) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// ProductsNearby returns the listing ordered by distance from the origin.
// Products without a stored location sort last with no distance attached.
func (s *Service) ProductsNearby(ctx context.Context, origin geo.Point) ([]Nearby, error) {
	items, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	return byDistance(items, origin), nil
}

// ServicesNearby returns the service listing ordered by distance.
func (s *Service) ServicesNearby(ctx context.Context, origin geo.Point) ([]Nearby, error) {
	key := "catalog:services"
	var items []Product
	if ok, err := s.cache.GetJSON(ctx, key, &items); err != nil || !ok {
		items, err = s.source.ListServices(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetJSON(ctx, key, items); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return byDistance(items, origin), nil
}

// Geocode resolves a free-form address to coordinates via the upstream API.
func (s *Service) Geocode(ctx context.Context, query string) (Location, error) {
	return s.source.Geocode(ctx, query)
}

func (s *Service) listAll(ctx context.Context) ([]Product, error) {
	key := "catalog:products"
	var items []Product
	if ok, err := s.cache.GetJSON(ctx, key, &items); err == nil && ok {
		return items, nil
	}
	items, err := s.source.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return items, nil
}

func byDistance(items []Product, origin geo.Point) []Nearby {
	out := make([]Nearby, 0, len(items))
	for _, p := range items {
		n := Nearby{Product: p}
		if pt, ok := p.Location.LatLng(); ok {
			d := geo.Distance(origin, pt)
			n.DistanceKm = &d
		}
		out = append(out, n)
	}
	geo.SortByDistance(out, origin, func(n Nearby) (geo.Point, bool) {
		return n.Product.Location.LatLng()
	})
	return out
}
