package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Product represents a catalog product as served by the marketplace backend
type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	InStock     bool    `json:"inStock"`
	Image       string  `json:"image,omitempty"`
}

// Validate checks the fields the storefront relies on
func (p Product) Validate() error {
	if p.ID == "" {
		return errors.New("product: missing _id")
	}
	if p.Name == "" {
		return fmt.Errorf("product %s: missing name", p.ID)
	}
	if p.Price < 0 {
		return fmt.Errorf("product %s: negative price %v", p.ID, p.Price)
	}
	return nil
}

// ProductInput is the admin create/update payload
type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	InStock     bool    `json:"inStock"`
}

// Validate rejects payloads the backend would refuse anyway
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("product name is required")
	}
	if in.Price < 0 {
		return errors.New("product price must not be negative")
	}
	return nil
}

// CartItem pairs a product identity with a quantity and a snapshot of the
// product taken when it was first added. The snapshot is never refreshed.
type CartItem struct {
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
}

// User represents the signed-in account
type User struct {
	ID               string `json:"id"`
	Phone            string `json:"phone"`
	IsAdmin          bool   `json:"isAdmin"`
	TelegramUsername string `json:"telegramUsername,omitempty"`
}

// Validate checks the user identity
func (u User) Validate() error {
	if u.ID == "" {
		return errors.New("user: missing id")
	}
	return nil
}

// UserRef is an order owner, either a bare id or a populated user document
type UserRef struct {
	ID    string `json:"_id"`
	Phone string `json:"phone,omitempty"`
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = UserRef{}
		return nil
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &r.ID)
	}
	type plain UserRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = UserRef(p)
	return nil
}

// ProductRef is an order line's product, either a bare id, a populated
// product, or null when the product has been deleted since
type ProductRef struct {
	ID      string
	Product *Product
}

func (r *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = ProductRef{}
		return nil
	case len(data) > 0 && data[0] == '"':
		*r = ProductRef{}
		return json.Unmarshal(data, &r.ID)
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ProductRef{ID: p.ID, Product: &p}
	return nil
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	if r.Product != nil {
		return json.Marshal(r.Product)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// Name returns the display name, or a placeholder for deleted products
func (r ProductRef) Name() string {
	if r.Product != nil && r.Product.Name != "" {
		return r.Product.Name
	}
	return "Товар удалён"
}

// OrderItem is one order line with the price captured when the order was placed
type OrderItem struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
	Price    float64    `json:"price"`
}

// Order represents a submitted purchase
type Order struct {
	ID                   string      `json:"_id"`
	User                 UserRef     `json:"user"`
	Products             []OrderItem `json:"products"`
	DeliveryAddress      string      `json:"deliveryAddress"`
	ContactPhone         string      `json:"contactPhone"`
	AdditionalPhone      string      `json:"additionalPhone,omitempty"`
	TelegramUsername     string      `json:"telegramUsername,omitempty"`
	PaymentScreenshot    string      `json:"paymentScreenshot,omitempty"`
	PrepaymentPercentage int         `json:"prepaymentPercentage"`
	PrepaymentAmount     float64     `json:"prepaymentAmount"`
	Status               OrderStatus `json:"status"`
	PassportData         string      `json:"passportData,omitempty"`
	CreatedAt            time.Time   `json:"createdAt"`
}

// Validate checks the order identity and status
func (o Order) Validate() error {
	if o.ID == "" {
		return errors.New("order: missing _id")
	}
	if !o.Status.Valid() {
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	return nil
}

// NewsItem represents a news post
type NewsItem struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the news identity
func (n NewsItem) Validate() error {
	if n.ID == "" {
		return errors.New("news: missing _id")
	}
	if n.Title == "" {
		return fmt.Errorf("news %s: missing title", n.ID)
	}
	return nil
}

// NewsInput is the admin create/update payload
type NewsInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Validate rejects empty posts
func (in NewsInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.New("news title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return errors.New("news content is required")
	}
	return nil
}

// OrderLine is a cart line as submitted at checkout
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest represents a checkout submission
type CreateOrderRequest struct {
	Products             []OrderLine `json:"products"`
	DeliveryAddress      string      `json:"deliveryAddress"`
	ContactPhone         string      `json:"contactPhone"`
	AdditionalPhone      string      `json:"additionalPhone,omitempty"`
	TelegramUsername     string      `json:"telegramUsername,omitempty"`
	PaymentScreenshot    string      `json:"paymentScreenshot"`
	PrepaymentPercentage int         `json:"prepaymentPercentage"`
}

// Credentials is the login/register payload
type Credentials struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Validate requires a token
func (r AuthResponse) Validate() error {
	if r.Token == "" {
		return errors.New("auth: missing token")
	}
	return nil
}

// MeResponse is returned by GET /api/auth/me
type MeResponse struct {
	User User `json:"user"`
}

// Validate checks the wrapped user
func (r MeResponse) Validate() error {
	return r.User.Validate()
}

// UploadResponse is returned by the payment screenshot upload
type UploadResponse struct {
	URL string `json:"url"`
}

// Validate requires a reference url
func (r UploadResponse) Validate() error {
	if r.URL == "" {
		return errors.New("upload: missing url")
	}
	return nil
}
