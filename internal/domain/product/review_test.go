package product

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRatings(ratings ...int) Product {
	p := Product{ID: "p1", Name: "Baklava", Price: decimal.RequireFromString("15.99")}
	for i, r := range ratings {
		p.Reviews = append(p.Reviews, Review{ID: string(rune('a' + i)), Rating: r, Comment: "ok"})
	}
	p.Rating = MeanRating(p.Reviews)
	return p
}

func TestAppendReview_RecomputesMean(t *testing.T) {
	p := withRatings(4, 5)

	got, err := AppendReview(p, Review{ID: "new", Rating: 3, Comment: "fine"})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("4.0").Equal(got.Rating), "got %s", got.Rating)
	require.Len(t, got.Reviews, 3)
	assert.Equal(t, "new", got.Reviews[2].ID, "appended at the end")
}

func TestAppendReview_DoesNotMutateInput(t *testing.T) {
	p := withRatings(5)
	p.Reviews = append(make([]Review, 0, 10), p.Reviews...)

	got, err := AppendReview(p, Review{Rating: 1, Comment: "bad"})
	require.NoError(t, err)

	assert.Len(t, p.Reviews, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(p.Rating))
	assert.Len(t, got.Reviews, 2)
	assert.True(t, decimal.NewFromInt(3).Equal(got.Rating))

	got.Reviews[0].Comment = "edited"
	assert.Equal(t, "ok", p.Reviews[0].Comment)
}

func TestAppendReview_Validation(t *testing.T) {
	tests := []struct {
		name   string
		review Review
		field  string
	}{
		{name: "rating zero", review: Review{Rating: 0, Comment: "x"}, field: "rating"},
		{name: "rating six", review: Review{Rating: 6, Comment: "x"}, field: "rating"},
		{name: "empty comment", review: Review{Rating: 3, Comment: ""}, field: "comment"},
		{name: "blank comment", review: Review{Rating: 3, Comment: "  \n\t"}, field: "comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := withRatings(4)

			_, err := AppendReview(p, tt.review)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Len(t, p.Reviews, 1)
		})
	}
}

func TestAppendReviewRecord_KeepsStoredFields(t *testing.T) {
	raw := map[string]any{
		"name":   "Tea",
		"price":  "12.50",
		"origin": "Assam",
		"rating": json.Number("4"),
		"reviews": []any{
			map[string]any{"id": "a", "rating": json.Number("4"), "comment": "ok", "helpful": json.Number("3")},
		},
	}

	got, err := AppendReviewRecord(raw, Review{ID: "b", Rating: 5, Comment: " great "})
	require.NoError(t, err)

	assert.Equal(t, "12.50", got["price"])
	assert.Equal(t, "Assam", got["origin"])
	assert.Equal(t, json.Number("4.5"), got["rating"])

	list := got["reviews"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, json.Number("3"), list[0].(map[string]any)["helpful"])
	assert.Equal(t, "great", list[1].(map[string]any)["comment"])

	// the input is untouched
	assert.Len(t, raw["reviews"], 1)
	assert.Equal(t, json.Number("4"), raw["rating"])
	list[0].(map[string]any)["helpful"] = json.Number("9")
	assert.Equal(t, json.Number("3"), raw["reviews"].([]any)[0].(map[string]any)["helpful"])
}

func TestAppendReviewRecord_Reviews(t *testing.T) {
	tests := []struct {
		name    string
		reviews any
		want    json.Number
		count   int
	}{
		{name: "absent", want: "2", count: 1},
		{name: "not a list", reviews: "none", want: "2", count: 1},
		{name: "skips malformed entries", reviews: []any{"junk", map[string]any{"rating": 5}}, want: "3.5", count: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"name": "P"}
			if tt.reviews != nil {
				raw["reviews"] = tt.reviews
			}

			got, err := AppendReviewRecord(raw, Review{Rating: 2, Comment: "meh"})
			require.NoError(t, err)

			assert.Equal(t, tt.want, got["rating"])
			assert.Len(t, got["reviews"], tt.count)
			assert.Equal(t, "P", got["name"])
		})
	}
}

func TestAppendReviewRecord_Validation(t *testing.T) {
	raw := map[string]any{"name": "P"}

	_, err := AppendReviewRecord(raw, Review{Rating: 9, Comment: "x"})

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotContains(t, raw, "reviews")
}

func TestMeanRating(t *testing.T) {
	tests := []struct {
		ratings []int
		want    string
	}{
		{ratings: nil, want: "0"},
		{ratings: []int{5}, want: "5"},
		{ratings: []int{4, 5}, want: "4.5"},
		{ratings: []int{4, 5, 5}, want: "4.7"},
		{ratings: []int{1, 2}, want: "1.5"},
		{ratings: []int{1, 1, 2}, want: "1.3"},
		// 4.25 rounds half up
		{ratings: []int{4, 4, 4, 5}, want: "4.3"},
	}

	for _, tt := range tests {
		p := withRatings(tt.ratings...)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(MeanRating(p.Reviews)),
			"ratings %v: got %s want %s", tt.ratings, MeanRating(p.Reviews), tt.want)
	}
}

func TestNewReview(t *testing.T) {
	now := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	r := NewReview("u1", "Ayse", 5, "  lovely  ", now)

	assert.Equal(t, "1700000000000", r.ID)
	assert.Equal(t, "2023-11-14T22:13:20.000Z", r.CreatedAt)
	assert.Equal(t, "lovely", r.Comment)
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, "Ayse", r.UserName)
}

func TestClone_Independent(t *testing.T) {
	p := withRatings(3)
	p.Extra = map[string]any{"nested": map[string]any{"a": "b"}}

	c := Clone(p)
	c.Reviews[0].Rating = 1
	c.Extra["nested"].(map[string]any)["a"] = "z"

	assert.Equal(t, 3, p.Reviews[0].Rating)
	assert.Equal(t, "b", p.Extra["nested"].(map[string]any)["a"])
}
