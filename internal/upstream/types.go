package upstream

import "encoding/json"

// StatusPending is the initial status carried by orders and order items.
const StatusPending = "pending"

// StatusCancelled marks an order scheduled for cleanup after its items
// failed to submit.
const StatusCancelled = "cancelled"

// GeoJSON is the Point shape the marketplace API stores locations in.
// Coordinates are ordered longitude first.
type GeoJSON struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// PointAt builds a GeoJSON point from a latitude/longitude pair.
func PointAt(lat, lng float64) GeoJSON {
	return GeoJSON{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// OrderRequest is the order-creation payload. Amounts are serialised as
// plain JSON numbers with two decimal places.
type OrderRequest struct {
	Products    []string    `json:"products"`
	TotalAmount json.Number `json:"totalAmount"`
	User        string      `json:"user"`
	Status      string      `json:"status"`
	Location    GeoJSON     `json:"location"`
	Address     string      `json:"address"`
}

// OptionQuantity is one selected choice within an order option group.
type OptionQuantity struct {
	OptionName string `json:"optionname"`
	Quantity   int    `json:"quantity"`
}

// OrderOption carries the normalised selections of one option group.
type OrderOption struct {
	Name    string           `json:"name"`
	Options []OptionQuantity `json:"options"`
}

// OrderItemRequest is the per-line payload submitted after the order
// exists. Amount is recomputed per line, never sliced from the order total.
type OrderItemRequest struct {
	Order        string        `json:"order"`
	Product      string        `json:"product"`
	Store        string        `json:"store,omitempty"`
	User         string        `json:"user"`
	Quantity     int           `json:"quantity"`
	Amount       json.Number   `json:"amount"`
	Preference   string        `json:"preference,omitempty"`
	Variety      string        `json:"variety,omitempty"`
	Status       string        `json:"status"`
	OrderOptions []OrderOption `json:"orderoptions"`
	Location     GeoJSON       `json:"location"`
	Address      string        `json:"address"`
}
