package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/SigNoz/marketplace-storefront/internal/apiclient"
	"github.com/SigNoz/marketplace-storefront/internal/localstore"
	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/models"
)

var (
	ErrCredentialsRequired = errors.New("phone and password are required")
	// ErrSessionRejected means the backend issued a token but refused it on /me
	ErrSessionRejected = errors.New("session could not be established")
)

// SessionService holds the signed-in user and the credential for this device
type SessionService struct {
	api      AuthAPI
	store    localstore.Store
	tokenKey string
	cartKey  string
	metrics  *metrics.AppMetrics

	mu    sync.RWMutex
	user  *models.User
	token string
}

// NewSessionService creates an anonymous session. Call Init to restore a
// stored credential.
func NewSessionService(api AuthAPI, store localstore.Store, tokenKey, cartKey string, m *metrics.AppMetrics) *SessionService {
	return &SessionService{
		api:      api,
		store:    store,
		tokenKey: tokenKey,
		cartKey:  cartKey,
		metrics:  m,
	}
}

// Init restores the session from the stored credential. A credential the
// backend refuses is deleted and the session stays anonymous. Any other
// failure leaves the credential stored and is returned.
func (s *SessionService) Init(ctx context.Context) error {
	token, ok, err := s.store.Get(ctx, s.tokenKey)
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	if !ok || token == "" {
		s.set(ctx, nil, "")
		return nil
	}

	user, err := s.api.Me(ctx)
	if err != nil {
		s.set(ctx, nil, "")
		if !apiclient.IsUnauthorized(err) {
			// the credential stays stored for the next attempt
			return fmt.Errorf("failed to load current user: %w", err)
		}
		slog.WarnContext(ctx, "stored credential rejected, signing out", slog.Any("error", err))
		if delErr := s.store.Delete(ctx, s.tokenKey); delErr != nil {
			return fmt.Errorf("failed to delete rejected credential: %w", delErr)
		}
		return nil
	}

	s.set(ctx, user, token)
	slog.InfoContext(ctx, "session restored", slog.String("user_id", user.ID), slog.Bool("admin", user.IsAdmin))
	return nil
}

// Login exchanges credentials for a token and loads the user
func (s *SessionService) Login(ctx context.Context, phone, password string) (*models.User, error) {
	return s.authenticate(ctx, phone, password, s.api.Login)
}

// Register creates an account and signs in with it
func (s *SessionService) Register(ctx context.Context, phone, password string) (*models.User, error) {
	return s.authenticate(ctx, phone, password, s.api.Register)
}

func (s *SessionService) authenticate(
	ctx context.Context,
	phone, password string,
	call func(context.Context, models.Credentials) (*models.AuthResponse, error),
) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, invalid(ErrCredentialsRequired)
	}

	resp, err := call(ctx, models.Credentials{Phone: phone, Password: password})
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, s.tokenKey, resp.Token); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	if err := s.Init(ctx); err != nil {
		if delErr := s.store.Delete(ctx, s.tokenKey); delErr != nil {
			slog.WarnContext(ctx, "failed to drop unconfirmed credential", slog.Any("error", delErr))
		}
		return nil, err
	}

	user := s.User()
	if user == nil {
		return nil, ErrSessionRejected
	}
	return user, nil
}

// Logout forgets the credential and the cart together
func (s *SessionService) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.tokenKey, s.cartKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.set(ctx, nil, "")
	s.metrics.RecordCart(ctx, 0, 0)
	return nil
}

// User returns a copy of the signed-in user, or nil
func (s *SessionService) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SessionService) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *SessionService) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin
}

func (s *SessionService) requireAdmin() error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if !s.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *SessionService) set(ctx context.Context, user *models.User, token string) {
	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()
	s.metrics.RecordSession(ctx, user != nil, user != nil && user.IsAdmin)
}
