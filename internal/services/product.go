package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProductService reads the catalog and lets admins edit it
type ProductService struct {
	api     ProductAPI
	session *SessionService
	metrics *metrics.AppMetrics
}

// NewProductService creates a new product service
func NewProductService(api ProductAPI, session *SessionService, m *metrics.AppMetrics) *ProductService {
	return &ProductService{
		api:     api,
		session: session,
		metrics: m,
	}
}

// ListProducts returns the whole catalog
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.api.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.api.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Bool("in_stock", p.InStock),
	})...))
	return p, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := s.session.requireAdmin(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	p, err := s.api.CreateProduct(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	slog.InfoContext(ctx, "product created", slog.String("product_id", p.ID))
	return p, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (*models.Product, error) {
	if err := s.session.requireAdmin(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	p, err := s.api.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %s: %w", id, err)
	}
	return p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.session.requireAdmin(); err != nil {
		return err
	}
	if err := s.api.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	slog.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}
