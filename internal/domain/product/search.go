package product

import (
	"sort"
	"strings"
)

// Query filters the catalog. Zero values match everything.
type Query struct {
	// Text matches name, brand or category case-insensitively.
	Text    string
	Country string
}

// Search returns the products matching q in their original order.
func Search(products []Product, q Query) []Product {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if q.Country != "" && p.Country != q.Country {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Brand), text) &&
			!strings.Contains(strings.ToLower(p.Category), text) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Countries returns the distinct non-empty countries of products, sorted.
func Countries(products []Product) []string {
	seen := make(map[string]struct{})
	for _, p := range products {
		if p.Country != "" {
			seen[p.Country] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
