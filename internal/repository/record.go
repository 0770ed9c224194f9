// Package repository implements the domain repositories on top of the
// hierarchical storage.Client.
package repository

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Top-level paths of the store.
const (
	productsPath = "products"
	ordersPath   = "orders"
	couponsPath  = "coupons"
	apiKeysPath  = "apiKeys"
)

func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func dec(v any) decimal.Decimal {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	default:
		return decimal.Zero
	}
}

func integer(v any) int {
	return int(dec(v).IntPart())
}

func millis(v any) time.Time {
	return time.UnixMilli(dec(v).IntPart())
}

// optionalMillis returns nil when v is absent or zero.
func optionalMillis(v any) *time.Time {
	if dec(v).IsZero() {
		return nil
	}
	t := millis(v)
	return &t
}

func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}
