package cart

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/pasarlokal/backend-pasar/internal/common"
)

// Line is a single cart entry. Two entries with the same product, variety
// and option choices are the same line; adding again bumps the quantity.
type Line struct {
	ID         string                    `json:"id"`
	ProductID  string                    `json:"productId"`
	Quantity   int                       `json:"quantity"`
	Variety    string                    `json:"variety,omitempty"`
	Required   map[string]string         `json:"required,omitempty"`
	Quantities map[string]map[string]int `json:"quantities,omitempty"`
	AddedAt    time.Time                 `json:"addedAt"`
}

// Cart is the per-user snapshot held in redis.
type Cart struct {
	UserID    string    `json:"userId"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity derives the canonical line id from the product, variety and the
// normalized option choices. Map iteration order must not leak into the
// hash, so keys are sorted before encoding.
func Identity(productID, variety string, required map[string]string, quantities map[string]map[string]int) string {
	type kv struct {
		K string `json:"k"`
		V any    `json:"v"`
	}
	canon := struct {
		Product  string `json:"p"`
		Variety  string `json:"v"`
		Required []kv   `json:"r,omitempty"`
		Counts   []kv   `json:"q,omitempty"`
	}{Product: productID, Variety: variety}

	for _, k := range sortedKeys(required) {
		canon.Required = append(canon.Required, kv{K: k, V: required[k]})
	}
	for _, g := range sortedKeys(quantities) {
		inner := make([]kv, 0, len(quantities[g]))
		for _, c := range sortedKeys(quantities[g]) {
			if quantities[g][c] == 0 {
				continue
			}
			inner = append(inner, kv{K: c, V: quantities[g][c]})
		}
		if len(inner) > 0 {
			canon.Counts = append(canon.Counts, kv{K: g, V: inner})
		}
	}

	raw, _ := json.Marshal(canon)
	return common.Sha256Hex(string(raw))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
