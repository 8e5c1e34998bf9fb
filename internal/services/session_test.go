package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/SigNoz/marketplace-storefront/internal/apiclient"
	"github.com/SigNoz/marketplace-storefront/internal/marketplacetest"
	"github.com/SigNoz/marketplace-storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routeMe = "GET /api/auth/me"

func TestInitWithoutCredentialStaysAnonymous(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.session.Init(context.Background()))
	assert.False(t, f.session.IsAuthenticated())
	assert.Nil(t, f.session.User())
	assert.Zero(t, f.backend.Hits(routeMe))
}

func TestInitRestoresStoredCredential(t *testing.T) {
	f := newFixture(t)
	f.signInAdmin(t)

	assert.True(t, f.session.IsAdmin())
	assert.Equal(t, "admin", f.session.User().ID)
	assert.NotEmpty(t, f.session.Token())
}

func TestInitDropsRejectedCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, tokenKey, "expired"))
	require.NoError(t, f.store.Set(ctx, cartKey, "[]"))

	require.NoError(t, f.session.Init(ctx))
	assert.False(t, f.session.IsAuthenticated())
	assert.Empty(t, f.session.Token())

	_, ok, err := f.store.Get(ctx, tokenKey)
	require.NoError(t, err)
	assert.False(t, ok, "rejected token is deleted")

	_, ok, err = f.store.Get(ctx, cartKey)
	require.NoError(t, err)
	assert.True(t, ok, "cart survives a rejected token")
}

func TestInitKeepsCredentialWhenBackendFails(t *testing.T) {
	f := newFixture(t)
	f.signInBuyer(t)
	ctx := context.Background()
	token, _, err := f.store.Get(ctx, tokenKey)
	require.NoError(t, err)

	f.backend.Fail(routeMe, http.StatusInternalServerError, "Ошибка сервера")
	err = f.session.Init(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apiclient.StatusCode(err))
	assert.False(t, f.session.IsAuthenticated())

	stored, ok, err := f.store.Get(ctx, tokenKey)
	require.NoError(t, err)
	require.True(t, ok, "credential survives a backend failure")
	assert.Equal(t, token, stored)

	f.backend.Recover(routeMe)
	require.NoError(t, f.session.Init(ctx))
	assert.True(t, f.session.IsAuthenticated())
}

func TestInitKeepsCredentialWhenDeadlineExpired(t *testing.T) {
	f := newFixture(t)
	f.signInBuyer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	err := f.session.Init(ctx)
	require.Error(t, err)

	var tErr *apiclient.TransportError
	assert.True(t, errors.As(err, &tErr), "got %v", err)
	assert.False(t, f.session.IsAuthenticated())

	_, ok, err := f.store.Get(context.Background(), tokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInitAfterRevocation(t *testing.T) {
	f := newFixture(t)
	f.signInBuyer(t)

	f.backend.RevokeTokens()
	require.NoError(t, f.session.Init(context.Background()))
	assert.False(t, f.session.IsAuthenticated())
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.AddAccount(marketplacetest.Account{
		User:     models.User{ID: "u1", Phone: "+998901234567"},
		Password: "pw",
	})

	user, err := f.session.Login(ctx, " +998901234567 ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.True(t, f.session.IsAuthenticated())
	assert.False(t, f.session.IsAdmin())

	token, ok, err := f.store.Get(ctx, tokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.session.Token(), token)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.AddAccount(marketplacetest.Account{User: models.User{ID: "u1", Phone: "1"}, Password: "pw"})

	_, err := f.session.Login(ctx, "1", "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apiclient.StatusCode(err))
	assert.Equal(t, "Неверный телефон или пароль", apiclient.Message(err))

	_, ok, err := f.store.Get(ctx, tokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.session.IsAuthenticated())
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Login(context.Background(), "  ", "pw")
	assert.True(t, errors.Is(err, ErrCredentialsRequired))
	_, err = f.session.Register(context.Background(), "1", "")
	assert.True(t, errors.Is(err, ErrCredentialsRequired))

	assert.Zero(t, f.backend.Hits("POST /api/auth/login"))
	assert.Zero(t, f.backend.Hits("POST /api/auth/register"))
}

func TestLoginTokenRejectedByMe(t *testing.T) {
	f := newFixture(t)
	f.backend.AddAccount(marketplacetest.Account{User: models.User{ID: "u1", Phone: "1"}, Password: "pw"})
	f.backend.Fail(routeMe, http.StatusUnauthorized, "Недействительный токен")

	_, err := f.session.Login(context.Background(), "1", "pw")
	assert.True(t, errors.Is(err, ErrSessionRejected))
	assert.False(t, f.session.IsAuthenticated())
}

func TestLoginDropsTokenWhenUserCannotBeLoaded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.AddAccount(marketplacetest.Account{User: models.User{ID: "u1", Phone: "1"}, Password: "pw"})
	f.backend.Fail(routeMe, http.StatusBadGateway, "Шлюз недоступен")

	_, err := f.session.Login(ctx, "1", "pw")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apiclient.StatusCode(err))
	assert.False(t, f.session.IsAuthenticated())

	_, ok, err := f.store.Get(ctx, tokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	user, err := f.session.Register(context.Background(), "+998901112200", "pw")
	require.NoError(t, err)
	assert.Equal(t, "+998901112200", user.Phone)
	assert.True(t, f.session.IsAuthenticated())

	_, err = f.session.Register(context.Background(), "+998901112200", "pw")
	assert.Equal(t, "Пользователь уже существует", apiclient.Message(err))
}

func TestLogoutClearsCredentialAndCart(t *testing.T) {
	f := newFixture(t)
	f.signInBuyer(t)
	ctx := context.Background()

	_, err := f.cart.Add(ctx, product("p1", 10))
	require.NoError(t, err)

	require.NoError(t, f.session.Logout(ctx))
	assert.False(t, f.session.IsAuthenticated())
	assert.Empty(t, f.session.Token())

	for _, key := range []string{tokenKey, cartKey} {
		_, ok, err := f.store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestUserReturnsCopy(t *testing.T) {
	f := newFixture(t)
	f.signInBuyer(t)

	u := f.session.User()
	u.IsAdmin = true
	assert.False(t, f.session.IsAdmin())
}
