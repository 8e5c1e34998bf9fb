package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/models"
)

var (
	ErrEmptyPassportData = errors.New("passport data is required")
	// ErrStaleOrders means a transition was applied but the order list could
	// not be re-fetched afterwards
	ErrStaleOrders   = errors.New("order list is stale")
	ErrUnknownAction = errors.New("unknown order action")
)

// TransitionError is a lifecycle action the backend did not apply
type TransitionError struct {
	OrderID string
	Action  models.OrderAction
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("failed to %s order %s: %v", e.Action, e.OrderID, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// OrderService drives the admin order lifecycle and customer checkout.
// The backend is authoritative for order state: after every applied action
// the list is re-fetched rather than patched locally.
type OrderService struct {
	api               OrderAPI
	cart              *CartService
	session           *SessionService
	metrics           *metrics.AppMetrics
	defaultPrepayment int

	mu     sync.RWMutex
	orders []models.Order
}

// NewOrderService creates an order service. defaultPrepayment is used when a
// checkout does not choose a percentage.
func NewOrderService(api OrderAPI, cart *CartService, session *SessionService, m *metrics.AppMetrics, defaultPrepayment int) *OrderService {
	return &OrderService{
		api:               api,
		cart:              cart,
		session:           session,
		metrics:           m,
		defaultPrepayment: defaultPrepayment,
	}
}

// Refresh replaces the last-known order list with the backend's
func (s *OrderService) Refresh(ctx context.Context) ([]models.Order, error) {
	orders, err := s.api.AllOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	s.mu.Lock()
	s.orders = orders
	s.mu.Unlock()
	return copyOrders(orders), nil
}

// Orders returns the last-known order list
func (s *OrderService) Orders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyOrders(s.orders)
}

// Order looks id up in the last-known list
func (s *OrderService) Order(id string) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

func (s *OrderService) VerifyPayment(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.ActionVerifyPayment)
}

func (s *OrderService) Reject(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.ActionReject)
}

func (s *OrderService) Confirm(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.ActionConfirm)
}

// RequestPassport asks the buyer for passport data
func (s *OrderService) RequestPassport(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.ActionRequestPassport, func(ctx context.Context) error {
		return s.api.RequestPassportData(ctx, id)
	})
}

// AttachPassport records passport data on the order. Text that is empty
// after trimming is refused without contacting the backend; otherwise it is
// sent as given.
func (s *OrderService) AttachPassport(ctx context.Context, id, passportData string) error {
	if strings.TrimSpace(passportData) == "" {
		return invalid(ErrEmptyPassportData)
	}
	return s.transition(ctx, id, models.ActionAttachPassport, func(ctx context.Context) error {
		return s.api.AddPassportData(ctx, id, passportData)
	})
}

// Apply runs action on order id. passportData is only read by attach_passport.
func (s *OrderService) Apply(ctx context.Context, id string, action models.OrderAction, passportData string) error {
	switch action {
	case models.ActionVerifyPayment:
		return s.VerifyPayment(ctx, id)
	case models.ActionReject:
		return s.Reject(ctx, id)
	case models.ActionRequestPassport:
		return s.RequestPassport(ctx, id)
	case models.ActionAttachPassport:
		return s.AttachPassport(ctx, id, passportData)
	case models.ActionConfirm:
		return s.Confirm(ctx, id)
	default:
		return invalid(fmt.Errorf("%w %q", ErrUnknownAction, action))
	}
}

// MyOrders lists the signed-in buyer's orders
func (s *OrderService) MyOrders(ctx context.Context) ([]models.Order, error) {
	if !s.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	orders, err := s.api.MyOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load my orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) setStatus(ctx context.Context, id string, action models.OrderAction) error {
	return s.transition(ctx, id, action, func(ctx context.Context) error {
		return s.api.UpdateOrderStatus(ctx, id, action.Target())
	})
}

func (s *OrderService) transition(ctx context.Context, id string, action models.OrderAction, call func(context.Context) error) error {
	err := call(ctx)
	s.metrics.RecordTransition(ctx, string(action), err == nil)
	if err != nil {
		slog.WarnContext(ctx, "order transition failed",
			slog.String("order_id", id),
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
		return &TransitionError{OrderID: id, Action: action, Err: err}
	}

	slog.InfoContext(ctx, "order transition applied",
		slog.String("order_id", id),
		slog.String("action", string(action)),
		slog.String("status", string(action.Target())),
	)

	if _, err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStaleOrders, err)
	}
	return nil
}

func copyOrders(orders []models.Order) []models.Order {
	if orders == nil {
		return nil
	}
	out := make([]models.Order, len(orders))
	copy(out, orders)
	return out
}
