package product

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Review rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// createdAtLayout matches JavaScript's Date.toISOString output.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// NewReview builds a review stamped with now. The id is the unix millisecond
// time, which is unique per product in practice but not globally.
func NewReview(userID, userName string, rating int, comment string, now time.Time) Review {
	now = now.UTC()
	return Review{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		UserID:    userID,
		UserName:  userName,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: now.Format(createdAtLayout),
	}
}

// ValidateReview checks the rating range and that the comment is not blank.
func ValidateReview(r Review) error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	if strings.TrimSpace(r.Comment) == "" {
		return &ValidationError{Field: "comment", Reason: "must not be empty"}
	}
	return nil
}

// AppendReview returns a copy of p with r appended and the rating
// recomputed. p is not modified.
func AppendReview(p Product, r Review) (Product, error) {
	if err := ValidateReview(r); err != nil {
		return Product{}, err
	}

	out := Clone(p)
	r.Comment = strings.TrimSpace(r.Comment)
	out.Reviews = append(out.Reviews, r)
	out.Rating = MeanRating(out.Reviews)
	return out, nil
}

// AppendReviewRecord appends r to the reviews of a stored record and
// recomputes its rating. Every other field, including unknown keys inside
// existing reviews, is carried over as stored. raw is not modified.
func AppendReviewRecord(raw map[string]any, r Review) (map[string]any, error) {
	if err := ValidateReview(r); err != nil {
		return nil, err
	}
	r.Comment = strings.TrimSpace(r.Comment)

	out := make(map[string]any, len(raw)+2)
	for k, v := range raw {
		out[k] = copyValue(v)
	}
	list, _ := out[FieldReviews].([]any)
	list = append(list, reviewsToRecords([]Review{r})[0])
	out[FieldReviews] = list
	out[FieldRating] = json.Number(MeanRating(reviewsField(list)).String())
	return out, nil
}

// MeanRating returns the arithmetic mean of the review ratings rounded half
// up to one decimal place, or 0 when there are no reviews.
func MeanRating(reviews []Review) decimal.Decimal {
	if len(reviews) == 0 {
		return decimal.Zero
	}
	var sum int64
	for _, r := range reviews {
		sum += int64(r.Rating)
	}
	// Ratings are positive, so Round's half-away-from-zero is half-up.
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
}

// Clone returns a deep copy of p.
func Clone(p Product) Product {
	out := p
	out.Reviews = make([]Review, len(p.Reviews))
	copy(out.Reviews, p.Reviews)
	if p.Extra != nil {
		out.Extra = copyValue(p.Extra).(map[string]any)
	}
	return out
}
