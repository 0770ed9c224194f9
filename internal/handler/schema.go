package handler

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
)

// --- Encoding ---

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func (h *Handler) imageURL(image string) string {
	if h.imageBaseURL == "" || image == "" || strings.Contains(image, "://") {
		return image
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(image, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image)) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("brand", func(e *jx.Encoder) { e.Str(p.Brand) })
		e.Field("country", func(e *jx.Encoder) { e.Str(p.Country) })
		e.Field("rating", func(e *jx.Encoder) { encodeDecimal(e, p.Rating) })
		e.Field("reviews", func(e *jx.Encoder) { encodeReviews(e, p.Reviews) })
	})
}

func (h *Handler) encodeProducts(e *jx.Encoder, products []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			h.encodeProduct(e, p)
		}
	})
}

func encodeReviews(e *jx.Encoder, reviews []product.Review) {
	e.Arr(func(e *jx.Encoder) {
		for _, r := range reviews {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
				e.Field("userId", func(e *jx.Encoder) { e.Str(r.UserID) })
				e.Field("userName", func(e *jx.Encoder) { e.Str(r.UserName) })
				e.Field("rating", func(e *jx.Encoder) { e.Int(r.Rating) })
				e.Field("comment", func(e *jx.Encoder) { e.Str(r.Comment) })
				e.Field("createdAt", func(e *jx.Encoder) { e.Str(r.CreatedAt) })
			})
		}
	})
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range values {
			e.Str(v)
		}
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, c *cart.Cart) {
	lines, total := c.Snapshot()
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product", func(e *jx.Encoder) { h.encodeProduct(e, l.Product) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, l.Subtotal()) })
					})
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, total) })
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(count) })
	})
}

func encodeSession(e *jx.Encoder, s session.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(s.State().String()) })
		e.Field("authenticated", func(e *jx.Encoder) { e.Bool(s.Authenticated) })
		e.Field("loading", func(e *jx.Encoder) { e.Bool(s.Loading) })
		if s.Error != "" {
			e.Field("error", func(e *jx.Encoder) { e.Str(s.Error) })
		}
		e.Field("user", func(e *jx.Encoder) {
			if s.User == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(s.User.ID) })
				e.Field("email", func(e *jx.Encoder) { e.Str(s.User.Email) })
				e.Field("name", func(e *jx.Encoder) { e.Str(s.User.Name) })
			})
		})
	})
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, it.Price) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, o.Total) })
		if o.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("shipping", func(e *jx.Encoder) {
			s := o.Shipping
			e.Obj(func(e *jx.Encoder) {
				e.Field("fullName", func(e *jx.Encoder) { e.Str(s.FullName) })
				e.Field("email", func(e *jx.Encoder) { e.Str(s.Email) })
				e.Field("address", func(e *jx.Encoder) { e.Str(s.Address) })
				e.Field("city", func(e *jx.Encoder) { e.Str(s.City) })
				e.Field("state", func(e *jx.Encoder) { e.Str(s.State) })
				e.Field("zipCode", func(e *jx.Encoder) { e.Str(s.ZipCode) })
				e.Field("country", func(e *jx.Encoder) { e.Str(s.Country) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(s.Phone) })
			})
		})
		e.Field("cardLast4", func(e *jx.Encoder) { e.Str(o.CardLast4) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Int64(o.CreatedAt.UnixMilli()) })
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for _, o := range orders {
			encodeOrder(e, o)
		}
	})
}

// --- Decoding ---

// errMalformed marks a request body that is not the expected JSON.
var errMalformed = errors.New("malformed request body")

type malformedError struct {
	err error
}

func (e *malformedError) Error() string        { return "malformed request body: " + e.err.Error() }
func (e *malformedError) Unwrap() error        { return e.err }
func (e *malformedError) Is(target error) bool { return target == errMalformed }

func malformed(err error) error {
	if err == nil {
		return nil
	}
	return &malformedError{err: err}
}

func decodeObject(body []byte, field func(d *jx.Decoder, key string) error) error {
	if len(body) == 0 {
		return malformed(errors.New("empty body"))
	}
	return malformed(jx.DecodeBytes(body).Obj(field))
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

type addItemRequest struct {
	ProductID string
	Quantity  int
}

func decodeAddItem(body []byte) (addItemRequest, error) {
	req := addItemRequest{Quantity: 1}
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "productId":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeQuantity(body []byte) (int, error) {
	quantity, seen := 0, false
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		if key != "quantity" {
			return d.Skip()
		}
		seen = true
		quantity, err = d.Int()
		return err
	})
	if err == nil && !seen {
		err = malformed(errors.New("quantity is required"))
	}
	return quantity, err
}

type credentialsRequest struct {
	Email    string
	Password string
	Name     string
}

func decodeCredentials(body []byte) (credentialsRequest, error) {
	var req credentialsRequest
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "email":
			req.Email, err = d.Str()
		case "password":
			req.Password, err = d.Str()
		case "name":
			req.Name, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeName(body []byte) (string, error) {
	var name string
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		if key != "name" {
			return d.Skip()
		}
		name, err = d.Str()
		return err
	})
	return name, err
}

type reviewRequest struct {
	Rating  int
	Comment string
}

func decodeReview(body []byte) (reviewRequest, error) {
	var req reviewRequest
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "rating":
			req.Rating, err = d.Int()
		case "comment":
			req.Comment, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeStringFields(d *jx.Decoder, fields map[string]*string) error {
	return d.Obj(func(d *jx.Decoder, key string) (err error) {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		*dst, err = d.Str()
		return err
	})
}

func decodeCheckout(body []byte) (order.CheckoutRequest, error) {
	var req order.CheckoutRequest
	s, p := &req.Shipping, &req.Payment
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "shipping":
			return decodeStringFields(d, map[string]*string{
				"fullName": &s.FullName,
				"email":    &s.Email,
				"address":  &s.Address,
				"city":     &s.City,
				"state":    &s.State,
				"zipCode":  &s.ZipCode,
				"country":  &s.Country,
				"phone":    &s.Phone,
			})
		case "payment":
			return decodeStringFields(d, map[string]*string{
				"cardNumber": &p.CardNumber,
				"cardName":   &p.CardName,
				"expiryDate": &p.ExpiryDate,
				"cvv":        &p.CVV,
			})
		case "couponCode":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.CouponCode, err = d.Str()
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

// decodeProduct reads a new product. Rating and reviews are ignored.
func decodeProduct(body []byte) (product.Product, error) {
	var p product.Product
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "description":
			p.Description, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "brand":
			p.Brand, err = d.Str()
		case "country":
			p.Country, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeProductUpdate(body []byte) (product.Update, error) {
	var u product.Update
	str := func(d *jx.Decoder) (*string, error) {
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return &s, nil
	}
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			u.Name, err = str(d)
		case "price":
			var price decimal.Decimal
			price, err = decodeDecimal(d)
			u.Price = &price
		case "description":
			u.Description, err = str(d)
		case "image":
			u.Image, err = str(d)
		case "category":
			u.Category, err = str(d)
		case "brand":
			u.Brand, err = str(d)
		case "country":
			u.Country, err = str(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return u, err
}
