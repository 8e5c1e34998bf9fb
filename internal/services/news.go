package services

import (
	"context"
	"fmt"

	"github.com/SigNoz/marketplace-storefront/internal/models"
)

// NewsService reads news posts and lets admins publish them
type NewsService struct {
	api     NewsAPI
	session *SessionService
}

func NewNewsService(api NewsAPI, session *SessionService) *NewsService {
	return &NewsService{api: api, session: session}
}

func (s *NewsService) ListNews(ctx context.Context) ([]models.NewsItem, error) {
	items, err := s.api.ListNews(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list news: %w", err)
	}
	return items, nil
}

func (s *NewsService) GetNews(ctx context.Context, id string) (*models.NewsItem, error) {
	n, err := s.api.GetNews(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get news %s: %w", id, err)
	}
	return n, nil
}

func (s *NewsService) CreateNews(ctx context.Context, in models.NewsInput) (*models.NewsItem, error) {
	if err := s.session.requireAdmin(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	n, err := s.api.CreateNews(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create news: %w", err)
	}
	return n, nil
}

func (s *NewsService) UpdateNews(ctx context.Context, id string, in models.NewsInput) (*models.NewsItem, error) {
	if err := s.session.requireAdmin(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	n, err := s.api.UpdateNews(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update news %s: %w", id, err)
	}
	return n, nil
}

func (s *NewsService) DeleteNews(ctx context.Context, id string) error {
	if err := s.session.requireAdmin(); err != nil {
		return err
	}
	if err := s.api.DeleteNews(ctx, id); err != nil {
		return fmt.Errorf("failed to delete news %s: %w", id, err)
	}
	return nil
}
