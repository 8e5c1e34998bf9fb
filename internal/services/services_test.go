package services

import (
	"context"
	"testing"

	"github.com/SigNoz/marketplace-storefront/internal/apiclient"
	"github.com/SigNoz/marketplace-storefront/internal/localstore"
	"github.com/SigNoz/marketplace-storefront/internal/marketplacetest"
	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/models"
	"github.com/stretchr/testify/require"
)

const (
	cartKey  = "cart"
	tokenKey = "token"
)

type fixture struct {
	backend  *marketplacetest.Server
	store    *localstore.MemoryStore
	session  *SessionService
	cart     *CartService
	orders   *OrderService
	products *ProductService
	news     *NewsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := marketplacetest.New(t)
	store := localstore.NewMemoryStore()
	m := metrics.NewNoop("test")

	client, err := apiclient.New(backend.URL, nil, apiclient.StoreTokenSource{Store: store, Key: tokenKey}, m)
	require.NoError(t, err)

	session := NewSessionService(client, store, tokenKey, cartKey, m)
	cart := NewCartService(store, cartKey, m)
	return &fixture{
		backend:  backend,
		store:    store,
		session:  session,
		cart:     cart,
		orders:   NewOrderService(client, cart, session, m, 50),
		products: NewProductService(client, session, m),
		news:     NewNewsService(client, session),
	}
}

// signIn registers user on the backend and restores a session for it
func (f *fixture) signIn(t *testing.T, user models.User) {
	t.Helper()
	token := f.backend.AddAccount(marketplacetest.Account{User: user, Password: "secret"})
	require.NoError(t, f.store.Set(context.Background(), tokenKey, token))
	require.NoError(t, f.session.Init(context.Background()))
	require.True(t, f.session.IsAuthenticated())
}

func (f *fixture) signInAdmin(t *testing.T) {
	f.signIn(t, models.User{ID: "admin", Phone: "+998900000000", IsAdmin: true})
}

func (f *fixture) signInBuyer(t *testing.T) {
	f.signIn(t, models.User{ID: "buyer", Phone: "+998901112233", TelegramUsername: "buyer_tg"})
}

func product(id string, price float64) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: price, InStock: true}
}
