package product

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// Stored field names of a product record.
const (
	FieldName        = "name"
	FieldPrice       = "price"
	FieldDescription = "description"
	FieldImage       = "image"
	FieldCategory    = "category"
	FieldBrand       = "brand"
	FieldCountry     = "country"
	FieldRating      = "rating"
	FieldReviews     = "reviews"
)

var knownFields = map[string]struct{}{
	FieldName: {}, FieldPrice: {}, FieldDescription: {}, FieldImage: {},
	FieldCategory: {}, FieldBrand: {}, FieldCountry: {}, FieldRating: {}, FieldReviews: {},
}

// Normalize converts a loosely-typed stored record into a Product with id.
// A missing or non-numeric rating becomes 0 and missing or malformed reviews
// become an empty slice. It never fails and never modifies raw.
func Normalize(raw map[string]any, id string) Product {
	p := Product{
		ID:          id,
		Name:        stringField(raw[FieldName]),
		Price:       numberOrZero(raw[FieldPrice]),
		Description: stringField(raw[FieldDescription]),
		Image:       stringField(raw[FieldImage]),
		Category:    stringField(raw[FieldCategory]),
		Brand:       stringField(raw[FieldBrand]),
		Country:     stringField(raw[FieldCountry]),
		Rating:      numberOrZero(raw[FieldRating]),
		Reviews:     reviewsField(raw[FieldReviews]),
	}

	for k, v := range raw {
		if _, ok := knownFields[k]; ok {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = copyValue(v)
	}
	return p
}

// MissingFieldDefaults returns default values for the rating and reviews
// fields that raw lacks or holds as null. A present value of any type is
// left alone, so the result is empty for a record that has both.
func MissingFieldDefaults(raw map[string]any) map[string]any {
	out := make(map[string]any, 2)
	if raw[FieldRating] == nil {
		out[FieldRating] = json.Number("0")
	}
	if raw[FieldReviews] == nil {
		out[FieldReviews] = []any{}
	}
	return out
}

// ToRecord converts p into its stored form. The id is not part of the record.
func ToRecord(p Product) map[string]any {
	rec := make(map[string]any, len(knownFields)+len(p.Extra))
	for k, v := range p.Extra {
		rec[k] = copyValue(v)
	}
	rec[FieldName] = p.Name
	rec[FieldPrice] = json.Number(p.Price.String())
	rec[FieldDescription] = p.Description
	rec[FieldImage] = p.Image
	rec[FieldCategory] = p.Category
	rec[FieldBrand] = p.Brand
	rec[FieldCountry] = p.Country
	rec[FieldRating] = json.Number(p.Rating.String())
	rec[FieldReviews] = reviewsToRecords(p.Reviews)
	return rec
}

// UpdateToRecord converts the set fields of u into a partial record.
func UpdateToRecord(u Update) map[string]any {
	rec := make(map[string]any)
	setString := func(field string, v *string) {
		if v != nil {
			rec[field] = *v
		}
	}
	setString(FieldName, u.Name)
	setString(FieldDescription, u.Description)
	setString(FieldImage, u.Image)
	setString(FieldCategory, u.Category)
	setString(FieldBrand, u.Brand)
	setString(FieldCountry, u.Country)
	if u.Price != nil {
		rec[FieldPrice] = json.Number(u.Price.String())
	}
	return rec
}

func reviewsToRecords(reviews []Review) []any {
	out := make([]any, len(reviews))
	for i, r := range reviews {
		out[i] = map[string]any{
			"id":        r.ID,
			"userId":    r.UserID,
			"userName":  r.UserName,
			"rating":    r.Rating,
			"comment":   r.Comment,
			"createdAt": r.CreatedAt,
		}
	}
	return out
}

func reviewsField(v any) []Review {
	list, ok := v.([]any)
	if !ok {
		return []Review{}
	}
	out := make([]Review, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rating := 0
		if d, ok := number(m["rating"]); ok {
			rating = int(d.IntPart())
		}
		out = append(out, Review{
			ID:        stringField(m["id"]),
			UserID:    stringField(m["userId"]),
			UserName:  stringField(m["userName"]),
			Rating:    rating,
			Comment:   stringField(m["comment"]),
			CreatedAt: stringField(m["createdAt"]),
		})
	}
	return out
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func numberOrZero(v any) decimal.Decimal {
	d, ok := number(v)
	if !ok {
		return decimal.Zero
	}
	return d
}

// number accepts the numeric representations a decoded record can hold.
// Strings are not numbers.
func number(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		return number(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case decimal.Decimal:
		return n, true
	default:
		return decimal.Zero, false
	}
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = copyValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}
