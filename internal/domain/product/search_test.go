package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func catalog() []Product {
	return []Product{
		{ID: "1", Name: "Turkish Tea", Brand: "Çaykur", Category: "Beverages", Country: "Turkey"},
		{ID: "2", Name: "Italian Espresso", Brand: "Lavazza", Category: "Beverages", Country: "Italy"},
		{ID: "3", Name: "Simit", Brand: "Simit Sarayı", Category: "Bakery", Country: "Turkey"},
		{ID: "4", Name: "French Baguette", Brand: "Boulangerie", Category: "Bakery", Country: "France"},
	}
}

func ids(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "empty query returns all in order", query: Query{}, want: []string{"1", "2", "3", "4"}},
		{name: "name case insensitive", query: Query{Text: "TEA"}, want: []string{"1"}},
		{name: "brand", query: Query{Text: "lavazza"}, want: []string{"2"}},
		{name: "category", query: Query{Text: "bakery"}, want: []string{"3", "4"}},
		{name: "country exact", query: Query{Country: "Turkey"}, want: []string{"1", "3"}},
		{name: "text and country", query: Query{Text: "bever", Country: "Italy"}, want: []string{"2"}},
		{name: "country is case sensitive", query: Query{Country: "turkey"}, want: []string{}},
		{name: "no match", query: Query{Text: "sushi"}, want: []string{}},
		{name: "surrounding space ignored", query: Query{Text: "  simit "}, want: []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Search(catalog(), tt.query)))
		})
	}
}

func TestCountries(t *testing.T) {
	products := append(catalog(), Product{ID: "5"})

	assert.Equal(t, []string{"France", "Italy", "Turkey"}, Countries(products))
	assert.Empty(t, Countries(nil))
}
