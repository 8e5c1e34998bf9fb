package services

import (
	"context"
	"errors"
	"io"

	"github.com/SigNoz/marketplace-storefront/internal/models"
)

// The services depend on these slices of the marketplace backend.
// *apiclient.Client implements all of them.

type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	Register(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	Me(ctx context.Context) (*models.User, error)
}

type ProductAPI interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, in models.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type NewsAPI interface {
	ListNews(ctx context.Context) ([]models.NewsItem, error)
	GetNews(ctx context.Context, id string) (*models.NewsItem, error)
	CreateNews(ctx context.Context, in models.NewsInput) (*models.NewsItem, error)
	UpdateNews(ctx context.Context, id string, in models.NewsInput) (*models.NewsItem, error)
	DeleteNews(ctx context.Context, id string) error
}

type OrderAPI interface {
	AllOrders(ctx context.Context) ([]models.Order, error)
	MyOrders(ctx context.Context) ([]models.Order, error)
	CreateOrder(ctx context.Context, in models.CreateOrderRequest) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	RequestPassportData(ctx context.Context, id string) error
	AddPassportData(ctx context.Context, id, passportData string) error
	UploadPaymentScreenshot(ctx context.Context, filename string, r io.Reader) (string, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrForbidden is returned by admin operations for non-admin sessions
	ErrForbidden = errors.New("admin access required")
)

// ValidationError is a request rejected locally before anything was sent
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}
