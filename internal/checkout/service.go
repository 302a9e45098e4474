package checkout

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pasarlokal/backend-pasar/internal/cart"
	"github.com/pasarlokal/backend-pasar/internal/catalog"
	"github.com/pasarlokal/backend-pasar/internal/lock"
	"github.com/pasarlokal/backend-pasar/internal/obs"
	"github.com/pasarlokal/backend-pasar/internal/upstream"
)

// Input is the checkout payload.
type Input struct {
	Latitude   float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude  float64 `json:"longitude" validate:"min=-180,max=180"`
	Address    string  `json:"address" validate:"required"`
	Preference string  `json:"preference,omitempty"`
}

// ItemResult is the submission outcome of a single cart line.
type ItemResult struct {
	ProductID string `json:"productId"`
	Amount    string `json:"amount"`
	Submitted bool   `json:"submitted"`
	Error     string `json:"error,omitempty"`
}

// Output reports the created order plus per-line outcomes. An order with
// zero submitted items is scheduled for cancellation, which the response
// surfaces via Compensating.
type Output struct {
	OrderID      string       `json:"orderId"`
	TotalAmount  string       `json:"totalAmount"`
	Items        []ItemResult `json:"items"`
	Compensating bool         `json:"compensating,omitempty"`
}

// Submitter is the slice of the upstream client checkout depends on.
type Submitter interface {
	CreateOrder(ctx context.Context, req upstream.OrderRequest) (string, error)
	CreateOrderItem(ctx context.Context, req upstream.OrderItemRequest) error
}

// Service orchestrates the two-phase submission: order first, then the
// items one by one. Item failures do not abort the batch and there is no
// rollback of submitted items.
type Service struct {
	Cart     *cart.Service
	Upstream Submitter
	Tasks    *Enqueuer
	Locker   *lock.Locker
	LockTTL  time.Duration
	Logger   zerolog.Logger
}

// Checkout prices the user's cart, submits it upstream, and clears the cart
// once the order exists. Per-line failures are reported, not retried.
// Concurrent checkouts for the same user are serialised so the cart cannot
// be spent twice.
func (s *Service) Checkout(ctx context.Context, userID string, in Input) (Output, error) {
	if s.Locker == nil {
		return s.checkout(ctx, userID, in)
	}
	var out Output
	err := s.Locker.WithLock(ctx, "checkout:"+userID, s.LockTTL, func(ctx context.Context) error {
		var err error
		out, err = s.checkout(ctx, userID, in)
		return err
	})
	return out, err
}

func (s *Service) checkout(ctx context.Context, userID string, in Input) (Output, error) {
	start := time.Now()

	lines, err := s.Cart.Resolve(ctx, userID)
	if err != nil {
		obs.CheckoutTotal.WithLabelValues("resolve_failed").Inc()
		return Output{}, err
	}

	loc := catalog.Location{Latitude: in.Latitude, Longitude: in.Longitude, Address: in.Address}
	comp, err := Compose(lines, userID, loc, in.Preference)
	if err != nil {
		obs.CheckoutTotal.WithLabelValues("invalid").Inc()
		return Output{}, err
	}

	orderID, err := s.Upstream.CreateOrder(ctx, comp.Order)
	if err != nil {
		obs.CheckoutTotal.WithLabelValues("order_failed").Inc()
		return Output{}, err
	}

	out := Output{
		OrderID:     orderID,
		TotalAmount: comp.Order.TotalAmount.String(),
		Items:       make([]ItemResult, 0, len(comp.Items)),
	}

	submitted := 0
	for _, item := range comp.Items {
		item.Order = orderID
		res := ItemResult{ProductID: item.Product, Amount: item.Amount.String()}
		if err := s.Upstream.CreateOrderItem(ctx, item); err != nil {
			res.Error = err.Error()
			obs.OrderItemSubmitTotal.WithLabelValues("failed").Inc()
			s.Logger.Warn().Err(err).
				Str("order_id", orderID).
				Str("product_id", item.Product).
				Msg("order item submission failed")
		} else {
			res.Submitted = true
			submitted++
			obs.OrderItemSubmitTotal.WithLabelValues("ok").Inc()
		}
		out.Items = append(out.Items, res)
	}

	// The order was created, so the cart is spent regardless of item
	// outcomes. The client retries failed lines from the order view, not
	// by resubmitting the cart.
	if err := s.Cart.Clear(ctx, userID); err != nil {
		s.Logger.Error().Err(err).Str("user_id", userID).Msg("clear cart after checkout failed")
	}

	if submitted == 0 && len(comp.Items) > 0 {
		out.Compensating = true
		if err := s.Tasks.EnqueueOrderCleanup(ctx, orderID, userID); err != nil {
			s.Logger.Error().Err(err).Str("order_id", orderID).Msg("enqueue order cleanup failed")
		}
		obs.CheckoutTotal.WithLabelValues("all_items_failed").Inc()
	} else if submitted < len(comp.Items) {
		obs.CheckoutTotal.WithLabelValues("partial").Inc()
	} else {
		obs.CheckoutTotal.WithLabelValues("ok").Inc()
	}

	obs.CheckoutDuration.Observe(time.Since(start).Seconds())
	return out, nil
}
