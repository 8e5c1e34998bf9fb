package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/SigNoz/marketplace-storefront/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrDeliveryAddressRequired = errors.New("delivery address is required")
	ErrScreenshotRequired      = errors.New("payment screenshot is required")
	ErrInvalidPrepayment       = errors.New("prepayment percentage must be between 1 and 100")
)

// Screenshot is the payment proof uploaded with a checkout
type Screenshot struct {
	Filename string
	Content  io.Reader
}

// CheckoutRequest is what the buyer fills in on checkout.
// PrepaymentPercentage 0 selects the configured default.
type CheckoutRequest struct {
	DeliveryAddress      string
	AdditionalPhone      string
	TelegramUsername     string
	PrepaymentPercentage int
	Screenshot           *Screenshot
}

// Quote is the amount due for a cart at a prepayment percentage
type Quote struct {
	Total                decimal.Decimal `json:"total"`
	PrepaymentPercentage int             `json:"prepaymentPercentage"`
	PrepaymentAmount     decimal.Decimal `json:"prepaymentAmount"`
}

// PrepaymentAmount is total*percentage/100 rounded to cents
func PrepaymentAmount(total decimal.Decimal, percentage int) decimal.Decimal {
	return total.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100)).Round(2)
}

// Quote prices the current cart. percentage 0 selects the default.
func (s *OrderService) Quote(ctx context.Context, percentage int) (*Quote, error) {
	pct, err := s.prepayment(percentage)
	if err != nil {
		return nil, err
	}
	items, err := s.cart.Read(ctx)
	if err != nil {
		return nil, err
	}
	total := CartTotal(items)
	return &Quote{Total: total, PrepaymentPercentage: pct, PrepaymentAmount: PrepaymentAmount(total, pct)}, nil
}

// Checkout uploads the payment screenshot, submits the cart as an order and
// clears the cart. Nothing is cleared unless the order was created.
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	user := s.session.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	items, err := s.cart.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, invalid(ErrEmptyCart)
	}

	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, invalid(ErrDeliveryAddressRequired)
	}
	if req.Screenshot == nil || req.Screenshot.Content == nil {
		return nil, invalid(ErrScreenshotRequired)
	}
	pct, err := s.prepayment(req.PrepaymentPercentage)
	if err != nil {
		return nil, err
	}

	order, err := s.submit(ctx, user, items, address, pct, req)
	s.metrics.RecordCheckout(ctx, pct, err == nil)
	if err != nil {
		slog.WarnContext(ctx, "checkout failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, err
	}

	if err := s.cart.Clear(ctx); err != nil {
		// the order already exists on the backend
		slog.ErrorContext(ctx, "order placed but cart not cleared", slog.String("order_id", order.ID), slog.Any("error", err))
	}

	slog.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.Int("items", len(items)),
		slog.String("total", CartTotal(items).StringFixed(2)),
		slog.Int("prepayment_percentage", pct),
	)
	return order, nil
}

func (s *OrderService) submit(ctx context.Context, user *models.User, items []models.CartItem, address string, pct int, req CheckoutRequest) (*models.Order, error) {
	url, err := s.api.UploadPaymentScreenshot(ctx, req.Screenshot.Filename, req.Screenshot.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to upload payment screenshot: %w", err)
	}

	lines := make([]models.OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	telegram := strings.TrimSpace(req.TelegramUsername)
	if telegram == "" {
		telegram = user.TelegramUsername
	}

	order, err := s.api.CreateOrder(ctx, models.CreateOrderRequest{
		Products:             lines,
		DeliveryAddress:      address,
		ContactPhone:         user.Phone,
		AdditionalPhone:      strings.TrimSpace(req.AdditionalPhone),
		TelegramUsername:     telegram,
		PaymentScreenshot:    url,
		PrepaymentPercentage: pct,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

// BuyNow puts a single product into the cart for immediate checkout. A
// product already in the cart keeps its quantity.
func (s *OrderService) BuyNow(ctx context.Context, productID string) ([]models.CartItem, error) {
	if !s.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	product, err := s.api.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", productID, err)
	}
	return s.cart.AddIfAbsent(ctx, *product)
}

func (s *OrderService) prepayment(pct int) (int, error) {
	if pct == 0 {
		pct = s.defaultPrepayment
	}
	if pct < 1 || pct > 100 {
		return 0, invalid(ErrInvalidPrepayment)
	}
	return pct, nil
}
