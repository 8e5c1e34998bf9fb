package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SigNoz/marketplace-storefront/internal/localstore"
	"github.com/SigNoz/marketplace-storefront/internal/logging"
	"github.com/SigNoz/marketplace-storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// newStubServer answers every request with status and body and records what it received
func newStubServer(t *testing.T, status int, body string) (*httptest.Server, <-chan recordedRequest) {
	t.Helper()
	ch := make(chan recordedRequest, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ch <- recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Header: r.Header.Clone(),
			Body:   b,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func newTestClient(t *testing.T, baseURL string, tokens TokenSource) *Client {
	t.Helper()
	c, err := New(baseURL, nil, tokens, nil)
	require.NoError(t, err)
	return c
}

func TestListProductsDecodesAndValidates(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `[{"_id":"p1","name":"Lamp","price":100,"inStock":true}]`)
	c := newTestClient(t, srv.URL, nil)

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Lamp", products[0].Name)
	assert.True(t, products[0].InStock)

	got := <-reqs
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/products", got.Path)
	assert.Empty(t, got.Header.Get("Authorization"))
}

func TestBearerTokenReadFromStoreOnEveryRequest(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `{"user":{"id":"u1","phone":"+998"}}`)
	store := localstore.NewMemoryStore()
	c := newTestClient(t, srv.URL, StoreTokenSource{Store: store, Key: "token"})
	ctx := context.Background()

	_, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Empty(t, (<-reqs).Header.Get("Authorization"))

	require.NoError(t, store.Set(ctx, "token", "secret"))
	user, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Bearer secret", (<-reqs).Header.Get("Authorization"))
}

func TestRequestIDPropagated(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `[]`)
	c := newTestClient(t, srv.URL, nil)

	_, err := c.ListNews(logging.WithRequestID(context.Background(), "rid-1"))
	require.NoError(t, err)
	assert.Equal(t, "rid-1", (<-reqs).Header.Get("X-Request-ID"))
}

func TestAPIErrorCarriesBackendMessage(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusConflict, `{"message":"Неверный статус"}`)
	c := newTestClient(t, srv.URL, nil)

	err := c.UpdateOrderStatus(context.Background(), "o1", models.StatusConfirmed)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Неверный статус", apiErr.Message)
	assert.Equal(t, "Неверный статус", Message(err))
	assert.Equal(t, http.StatusConflict, StatusCode(err))
}

func TestAPIErrorFallsBackToStatusText(t *testing.T) {
	srv, _ := newStubServer(t, http.StatusUnauthorized, `<html>nope</html>`)
	c := newTestClient(t, srv.URL, nil)

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Unauthorized", Message(err))
}

func TestMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(c *Client) error
	}{
		{"not json", `{`, func(c *Client) error { _, err := c.ListProducts(context.Background()); return err }},
		{"wrong shape", `{"_id":"p1"}`, func(c *Client) error { _, err := c.ListProducts(context.Background()); return err }},
		{"invalid element", `[{"_id":"p1","name":"ok","price":1},{"name":"no id"}]`, func(c *Client) error { _, err := c.ListProducts(context.Background()); return err }},
		{"unknown status", `[{"_id":"o1","status":"shipped"}]`, func(c *Client) error { _, err := c.AllOrders(context.Background()); return err }},
		{"missing token", `{"user":{"id":"u1"}}`, func(c *Client) error {
			_, err := c.Login(context.Background(), models.Credentials{Phone: "1", Password: "2"})
			return err
		}},
		{"missing url", `{}`, func(c *Client) error {
			_, err := c.UploadPaymentScreenshot(context.Background(), "a.png", strings.NewReader("x"))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newStubServer(t, http.StatusOK, tt.body)
			err := tt.call(newTestClient(t, srv.URL, nil))

			var mErr *MalformedResponseError
			assert.True(t, errors.As(err, &mErr), "got %v", err)
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, nil).ListProducts(context.Background())
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "marketplace is unreachable", Message(err))
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		call   func(c *Client) error
		method string
		path   string
		body   string
	}{
		{
			name:   "status",
			call:   func(c *Client) error { return c.UpdateOrderStatus(context.Background(), "o1", models.StatusPaymentVerified) },
			method: http.MethodPatch,
			path:   "/api/orders/o1/status",
			body:   `{"status":"payment_verified"}`,
		},
		{
			name:   "request passport",
			call:   func(c *Client) error { return c.RequestPassportData(context.Background(), "o1") },
			method: http.MethodPost,
			path:   "/api/admin/orders/o1/request-passport",
		},
		{
			name:   "attach passport",
			call:   func(c *Client) error { return c.AddPassportData(context.Background(), "o1", "AB123") },
			method: http.MethodPatch,
			path:   "/api/orders/o1/passport",
			body:   `{"passportData":"AB123"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, reqs := newStubServer(t, http.StatusOK, `{"ok":true}`)
			require.NoError(t, tt.call(newTestClient(t, srv.URL, nil)))

			got := <-reqs
			assert.Equal(t, tt.method, got.Method)
			assert.Equal(t, tt.path, got.Path)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, string(got.Body))
			} else {
				assert.Empty(t, got.Body)
			}
		})
	}
}

func TestIDsArePathEscaped(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `{"_id":"a/b","name":"x","price":1}`)
	_, err := newTestClient(t, srv.URL, nil).GetProduct(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/api/products/a%2Fb", (<-reqs).Path)
}

func TestCreateOrderBody(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusCreated, `{"_id":"o1","status":"pending_payment","prepaymentPercentage":50}`)
	c := newTestClient(t, srv.URL, nil)

	order, err := c.CreateOrder(context.Background(), models.CreateOrderRequest{
		Products:             []models.OrderLine{{ProductID: "p1", Quantity: 2}},
		DeliveryAddress:      "Tashkent",
		ContactPhone:         "+998",
		PaymentScreenshot:    "/uploads/1.png",
		PrepaymentPercentage: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingPayment, order.Status)

	var sent map[string]any
	require.NoError(t, json.Unmarshal((<-reqs).Body, &sent))
	assert.Equal(t, "Tashkent", sent["deliveryAddress"])
	_, hasTelegram := sent["telegramUsername"]
	assert.False(t, hasTelegram, "empty optional fields are omitted")
}

func TestUploadPaymentScreenshotMultipart(t *testing.T) {
	srv, reqs := newStubServer(t, http.StatusOK, `{"url":"/uploads/pay.png"}`)
	c := newTestClient(t, srv.URL, StaticToken("tok"))

	url, err := c.UploadPaymentScreenshot(context.Background(), "C:\\pics\\pay.png", strings.NewReader("PNGDATA"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/pay.png", url)

	got := <-reqs
	assert.Equal(t, "/api/upload/payment", got.Path)
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))

	mediaType, params, err := mime.ParseMediaType(got.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	mr := multipart.NewReader(strings.NewReader(string(got.Body)), params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "screenshot", part.FormName())
	assert.Equal(t, "pay.png", part.FileName())
	data, _ := io.ReadAll(part)
	assert.Equal(t, "PNGDATA", string(data))
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := New("localhost:5000", nil, nil, nil)
	assert.Error(t, err)
}

func TestBaseURL(t *testing.T) {
	c := newTestClient(t, "http://shop.example.com:5000", nil)
	assert.Equal(t, "http://shop.example.com:5000", c.BaseURL())
}
