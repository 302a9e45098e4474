package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pasarlokal/backend-pasar/internal/catalog"
	"github.com/pasarlokal/backend-pasar/internal/common"
	"github.com/pasarlokal/backend-pasar/internal/resilience"
)

// Client talks to the marketplace backend API. Reads retry through the
// resilient wrapper; writes run a single attempt because order submission
// carries no idempotency key upstream.
type Client struct {
	BaseURL string
	APIKey  string
	Reads   resilience.HTTPClient
	Writes  resilience.HTTPClient
}

// envelope is one layer of the backend response wrapping. Documents arrive
// as {status, data:{data:{...}}} and creation responses add a third level.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// GetProduct fetches a single product document.
func (c *Client) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	raw, err := c.do(ctx, c.Reads, http.MethodGet, "/api/v1/products/"+url.PathEscape(id), nil, 2)
	if err != nil {
		return nil, err
	}
	var p catalog.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return &p, nil
}

// ListProducts fetches the product collection.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	raw, err := c.do(ctx, c.Reads, http.MethodGet, "/api/v1/products", nil, 2)
	if err != nil {
		return nil, err
	}
	var products []catalog.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// ListServices fetches the bookable service collection. Services share the
// product document shape (price, location) without varieties or options.
func (c *Client) ListServices(ctx context.Context) ([]catalog.Product, error) {
	raw, err := c.do(ctx, c.Reads, http.MethodGet, "/api/v1/services", nil, 2)
	if err != nil {
		return nil, err
	}
	var services []catalog.Product
	if err := json.Unmarshal(raw, &services); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	return services, nil
}

// CreateOrder submits the order and returns the created order id, unwrapped
// from the backend's triple-nested creation envelope.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	raw, err := c.do(ctx, c.Writes, http.MethodPost, "/api/v1/orders", req, 3)
	if err != nil {
		return "", err
	}
	var created struct {
		UID string `json:"_id"`
		ID  string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return "", fmt.Errorf("decode created order: %w", err)
	}
	id := created.UID
	if id == "" {
		id = created.ID
	}
	if id == "" {
		return "", errors.New("upstream: order response missing id")
	}
	return id, nil
}

// CreateOrderItem submits one order line. Callers drive these sequentially;
// a failure here does not undo the parent order.
func (c *Client) CreateOrderItem(ctx context.Context, req OrderItemRequest) error {
	_, err := c.do(ctx, c.Writes, http.MethodPost, "/api/v1/orderitems", req, 0)
	return err
}

// UpdateOrderStatus patches an order's status. Used by the compensation
// worker to mark abandoned orders cancelled.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	body := map[string]string{"status": status}
	_, err := c.do(ctx, c.Writes, http.MethodPatch, "/api/v1/orders/"+url.PathEscape(orderID), body, 0)
	return err
}

// Geocode resolves a free-form query into coordinates and an address.
func (c *Client) Geocode(ctx context.Context, query string) (catalog.Location, error) {
	raw, err := c.do(ctx, c.Reads, http.MethodGet, "/api/v1/geocode?query="+url.QueryEscape(query), nil, 2)
	if err != nil {
		return catalog.Location{}, err
	}
	var loc catalog.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return catalog.Location{}, fmt.Errorf("decode location: %w", err)
	}
	return loc, nil
}

// Ping probes the backend health endpoint for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+"/health/live", nil)
	if err != nil {
		return err
	}
	resp, err := c.Reads.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("upstream unhealthy: %s", resp.Status)
	}
	return nil
}

// do performs a request and unwraps the given number of data envelope
// levels from a successful response.
func (c *Client) do(ctx context.Context, cl resilience.HTTPClient, method, path string, body any, unwrapLevels int) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := cl.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, common.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, upstreamError(resp.StatusCode, raw)
	}
	return unwrap(raw, unwrapLevels)
}

// unwrap peels {"data": ...} layers. Level 0 returns the body untouched;
// the first level also strips the {status, data} envelope.
func unwrap(raw json.RawMessage, levels int) (json.RawMessage, error) {
	if levels <= 0 {
		return raw, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	current := env.Data
	for level := 1; level < levels; level++ {
		var inner struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(current, &inner); err != nil {
			return nil, fmt.Errorf("decode envelope level %d: %w", level+1, err)
		}
		current = inner.Data
	}
	if len(bytes.TrimSpace(current)) == 0 {
		return nil, errors.New("upstream: empty response envelope")
	}
	return current, nil
}

// upstreamError surfaces the server-provided message when one exists,
// falling back to the HTTP status text.
func upstreamError(status int, body []byte) error {
	message := http.StatusText(status)
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && strings.TrimSpace(env.Message) != "" {
		message = env.Message
	}
	return common.NewAppError("UPSTREAM", message, http.StatusBadGateway, fmt.Errorf("upstream status %d", status))
}
