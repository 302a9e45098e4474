package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pasarlokal/backend-pasar/internal/cart"
	"github.com/pasarlokal/backend-pasar/internal/catalog"
	"github.com/pasarlokal/backend-pasar/internal/common"
	"github.com/pasarlokal/backend-pasar/internal/upstream"
)

type fakeProducts struct {
	byID map[string]*catalog.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return p, nil
}

type fakeSubmitter struct {
	orderErr   error
	failItems  map[string]error
	order      upstream.OrderRequest
	items      []upstream.OrderItemRequest
	orderCalls int
}

func (f *fakeSubmitter) CreateOrder(_ context.Context, req upstream.OrderRequest) (string, error) {
	f.orderCalls++
	if f.orderErr != nil {
		return "", f.orderErr
	}
	f.order = req
	return "ord-1", nil
}

func (f *fakeSubmitter) CreateOrderItem(_ context.Context, req upstream.OrderItemRequest) error {
	if err := f.failItems[req.Product]; err != nil {
		return err
	}
	f.items = append(f.items, req)
	return nil
}

func newCheckout(t *testing.T, products map[string]*catalog.Product, up *fakeSubmitter) (*Service, *cart.Service) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	carts := &cart.Service{
		Store:    &cart.Store{RDB: client},
		Products: &fakeProducts{byID: products},
	}
	return &Service{Cart: carts, Upstream: up, Tasks: &Enqueuer{}}, carts
}

func seed(t *testing.T, carts *cart.Service, in cart.AddInput) {
	t.Helper()
	_, err := carts.Add(context.Background(), "u1", in)
	require.NoError(t, err)
}

var input = Input{Latitude: -6.2, Longitude: 106.8, Address: "Jl. Merdeka 1"}

func TestCheckoutSubmitsOrderThenItems(t *testing.T) {
	up := &fakeSubmitter{}
	svc, carts := newCheckout(t, map[string]*catalog.Product{
		"p1": product(t, `{"_id":"p1","name":"Kaos","store":"s1","price":80,"varieties":[{"name":"XL","priceDifference":20}]}`),
	}, up)
	ctx := context.Background()

	two := 2
	seed(t, carts, cart.AddInput{ProductID: "p1", Quantity: &two, Variety: "XL"})

	out, err := svc.Checkout(ctx, "u1", input)
	require.NoError(t, err)
	require.Equal(t, "ord-1", out.OrderID)
	require.Equal(t, "200.00", out.TotalAmount)
	require.Len(t, out.Items, 1)
	require.True(t, out.Items[0].Submitted)
	require.False(t, out.Compensating)

	require.Len(t, up.items, 1)
	require.Equal(t, "ord-1", up.items[0].Order)
	require.Equal(t, "s1", up.items[0].Store)

	// The cart is spent once the order exists.
	view, err := carts.Get(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, view.Lines)
}

func TestCheckoutTotalMatchesRenderedCart(t *testing.T) {
	up := &fakeSubmitter{}
	svc, carts := newCheckout(t, map[string]*catalog.Product{
		"p1": product(t, `{"_id":"p1","name":"Gula","price":1.004}`),
		"p2": product(t, `{"_id":"p2","name":"Garam","price":1.004}`),
	}, up)
	ctx := context.Background()

	seed(t, carts, cart.AddInput{ProductID: "p1"})
	seed(t, carts, cart.AddInput{ProductID: "p2"})

	view, err := carts.Get(ctx, "u1")
	require.NoError(t, err)

	out, err := svc.Checkout(ctx, "u1", input)
	require.NoError(t, err)
	require.Equal(t, view.Total, out.TotalAmount)
	require.Equal(t, "2.00", out.TotalAmount)
	require.Equal(t, "2.00", string(up.order.TotalAmount))
}

func TestCheckoutAbortsWhenOrderFails(t *testing.T) {
	up := &fakeSubmitter{orderErr: errors.New("boom")}
	svc, carts := newCheckout(t, map[string]*catalog.Product{
		"p1": product(t, `{"_id":"p1","name":"Beras","price":10}`),
	}, up)
	ctx := context.Background()

	seed(t, carts, cart.AddInput{ProductID: "p1"})

	_, err := svc.Checkout(ctx, "u1", input)
	require.Error(t, err)
	require.Empty(t, up.items)

	// Nothing was submitted, so the cart survives for a retry.
	view, err := carts.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
}

func TestCheckoutReportsPartialFailures(t *testing.T) {
	up := &fakeSubmitter{failItems: map[string]error{"p2": errors.New("store closed")}}
	svc, carts := newCheckout(t, map[string]*catalog.Product{
		"p1": product(t, `{"_id":"p1","name":"Beras","price":10}`),
		"p2": product(t, `{"_id":"p2","name":"Gula","price":5}`),
	}, up)
	ctx := context.Background()

	seed(t, carts, cart.AddInput{ProductID: "p1"})
	seed(t, carts, cart.AddInput{ProductID: "p2"})

	out, err := svc.Checkout(ctx, "u1", input)
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	require.True(t, out.Items[0].Submitted)
	require.False(t, out.Items[1].Submitted)
	require.Contains(t, out.Items[1].Error, "store closed")
	require.False(t, out.Compensating)

	// The cart is spent even with a failed line; retries go through the
	// order, not a resubmission of the cart.
	view, err := carts.Get(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, view.Lines)
}

func TestCheckoutFlagsCompensationWhenAllItemsFail(t *testing.T) {
	up := &fakeSubmitter{failItems: map[string]error{"p1": errors.New("down")}}
	svc, carts := newCheckout(t, map[string]*catalog.Product{
		"p1": product(t, `{"_id":"p1","name":"Beras","price":10}`),
	}, up)

	seed(t, carts, cart.AddInput{ProductID: "p1"})

	out, err := svc.Checkout(context.Background(), "u1", input)
	require.NoError(t, err)
	require.True(t, out.Compensating)
	require.False(t, out.Items[0].Submitted)
}

func TestCheckoutRejectsIncompleteLinesBeforeSubmitting(t *testing.T) {
	up := &fakeSubmitter{}
	svc, carts := newCheckout(t, map[string]*catalog.Product{
		"p1": product(t, `{"_id":"p1","name":"Burger","price":50,"productoptions":[{"name":"Size","required":true,"options":[{"_id":"s1","name":"Large","additionalCost":15}]}]}`),
	}, up)

	seed(t, carts, cart.AddInput{ProductID: "p1"})

	_, err := svc.Checkout(context.Background(), "u1", input)
	require.Error(t, err)
	require.Zero(t, up.orderCalls)
}
