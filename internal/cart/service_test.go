package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pasarlokal/backend-pasar/internal/catalog"
	"github.com/pasarlokal/backend-pasar/internal/common"
	"github.com/pasarlokal/backend-pasar/internal/pricing"
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

func mustProduct(t *testing.T, raw string) *catalog.Product {
	t.Helper()
	var p catalog.Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func newService(t *testing.T, products map[string]*catalog.Product) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &Service{
		Store:    &Store{RDB: client},
		Products: &fakeProducts{byID: products},
	}
}

func TestAddMergesIdenticalSelections(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Kaos","price":80,"varieties":[{"name":"XL","priceDifference":20}]}`),
	})
	ctx := context.Background()

	one := 1
	view, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1", Quantity: &one, Variety: "XL"})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 1, view.Lines[0].Quantity)

	view, err = svc.Add(ctx, "u1", AddInput{ProductID: "p1", Quantity: &one, Variety: "XL"})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 2, view.Lines[0].Quantity)
	require.Equal(t, "200.00", view.Lines[0].Amount)
	require.Equal(t, "200.00", view.Total)
}

func TestAddDistinctSelectionsStaySeparate(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Kaos","price":80,"varieties":[{"name":"XL","priceDifference":20},{"name":"M","priceDifference":0}]}`),
	})
	ctx := context.Background()

	one := 1
	_, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1", Quantity: &one, Variety: "XL"})
	require.NoError(t, err)
	view, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1", Quantity: &one, Variety: "M"})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
}

func TestAddDefaultsQuantityFromProduct(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Beras","price":10,"quantity":3}`),
	})
	view, err := svc.Add(context.Background(), "u1", AddInput{ProductID: "p1"})
	require.NoError(t, err)
	require.Equal(t, 3, view.Lines[0].Quantity)
	require.Equal(t, "30.00", view.Total)
}

func TestViewTotalSumsRoundedLineAmounts(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Gula","price":1.004}`),
		"p2": mustProduct(t, `{"_id":"p2","name":"Garam","price":1.004}`),
	})
	ctx := context.Background()

	one := 1
	_, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1", Quantity: &one})
	require.NoError(t, err)
	view, err := svc.Add(ctx, "u1", AddInput{ProductID: "p2", Quantity: &one})
	require.NoError(t, err)

	// each 1.004 line rounds to 1.00 before summing; summing the exact
	// amounts would render 2.01 and disagree with the order payload
	require.Equal(t, "1.00", view.Lines[0].Amount)
	require.Equal(t, "1.00", view.Lines[1].Amount)
	require.Equal(t, "2.00", view.Total)
}

func TestAddRejectsZeroQuantity(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Beras","price":10}`),
	})
	zero := 0
	_, err := svc.Add(context.Background(), "u1", AddInput{ProductID: "p1", Quantity: &zero})
	require.ErrorIs(t, err, pricing.ErrInvalidQuantity)
}

func TestAddRejectsUnknownVariety(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Kaos","price":80,"varieties":[{"name":"XL","priceDifference":20}]}`),
	})
	_, err := svc.Add(context.Background(), "u1", AddInput{ProductID: "p1", Variety: "XXL"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateMergesIntoCollidingLine(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Kaos","price":80,"varieties":[{"name":"XL","priceDifference":20},{"name":"M","priceDifference":0}]}`),
	})
	ctx := context.Background()

	one := 1
	_, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1", Quantity: &one, Variety: "XL"})
	require.NoError(t, err)
	view, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1", Quantity: &one, Variety: "M"})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)

	// Switch the M line to XL; it must fold into the existing XL line.
	var mLine string
	for _, l := range view.Lines {
		if l.Variety == "M" {
			mLine = l.ID
		}
	}
	xl := "XL"
	view, err = svc.Update(ctx, "u1", mLine, UpdateInput{Variety: &xl})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 2, view.Lines[0].Quantity)
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	svc := newService(t, map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Beras","price":10}`),
	})
	ctx := context.Background()

	view, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1"})
	require.NoError(t, err)
	lineID := view.Lines[0].ID

	five := 5
	view, err = svc.Update(ctx, "u1", lineID, UpdateInput{Quantity: &five})
	require.NoError(t, err)
	require.Equal(t, 5, view.Lines[0].Quantity)
	require.Equal(t, "50.00", view.Total)

	view, err = svc.Remove(ctx, "u1", lineID)
	require.NoError(t, err)
	require.Empty(t, view.Lines)
	require.Equal(t, "0.00", view.Total)

	_, err = svc.Remove(ctx, "u1", lineID)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestViewDropsUnresolvableProducts(t *testing.T) {
	products := map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Beras","price":10}`),
		"p2": mustProduct(t, `{"_id":"p2","name":"Gula","price":5}`),
	}
	svc := newService(t, products)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, "u1", AddInput{ProductID: "p2"})
	require.NoError(t, err)

	delete(products, "p2")

	view, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	require.Equal(t, "p1", view.Lines[0].ProductID)
	require.Equal(t, "10.00", view.Total)
}

func TestResolveFailsOnMissingProduct(t *testing.T) {
	products := map[string]*catalog.Product{
		"p1": mustProduct(t, `{"_id":"p1","name":"Beras","price":10}`),
	}
	svc := newService(t, products)
	ctx := context.Background()

	_, err := svc.Add(ctx, "u1", AddInput{ProductID: "p1"})
	require.NoError(t, err)

	delete(products, "p1")
	_, err = svc.Resolve(ctx, "u1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestIdentityIgnoresMapOrderAndZeroCounts(t *testing.T) {
	a := Identity("p1", "XL",
		map[string]string{"Size": "L", "Ice": "Less"},
		map[string]map[string]int{"Toppings": {"Cheese": 2, "Bacon": 0}})
	b := Identity("p1", "XL",
		map[string]string{"Ice": "Less", "Size": "L"},
		map[string]map[string]int{"Toppings": {"Cheese": 2}})
	require.Equal(t, a, b)

	c := Identity("p1", "XL",
		map[string]string{"Size": "M", "Ice": "Less"},
		nil)
	require.NotEqual(t, a, c)
}
