// Package apiclient talks to the marketplace REST backend. Every response is
// decoded into an explicit model and validated before it is handed out.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SigNoz/marketplace-storefront/internal/logging"
	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBody = 64 << 10

type validator interface {
	Validate() error
}

// list validates every element of a decoded JSON array
type list[T validator] []T

func (l list[T]) Validate() error {
	for i, v := range l {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// Client is a typed client for the marketplace backend
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	metrics *metrics.AppMetrics
}

// NewHTTPClient returns an instrumented http.Client with the given timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New creates a client for baseURL. tokens may be nil for anonymous use.
func New(baseURL string, httpClient *http.Client, tokens TokenSource, m *metrics.AppMetrics) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	if m == nil {
		m = metrics.NewNoop("apiclient")
	}
	return &Client{baseURL: u, http: httpClient, tokens: tokens, metrics: m}, nil
}

// BaseURL returns the backend root, used to resolve relative asset references
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one backend call. route is the path template used as a
// metric attribute so ids do not explode cardinality.
type request struct {
	method      string
	route       string
	path        string
	body        io.Reader
	contentType string
}

func (c *Client) jsonRequest(method, route, path string, payload any) (request, error) {
	req := request{method: method, route: route, path: path}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return req, fmt.Errorf("failed to encode %s %s body: %w", method, route, err)
		}
		req.body = bytes.NewReader(b)
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends req and decodes a 2xx body into out when out is not nil
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL.JoinPath(r.path)

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", r.method, r.route, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if id := logging.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(ctx, r.method, r.route, 0, start, false)
		return &TransportError{Method: r.method, Path: r.path, Err: err}
	}
	defer resp.Body.Close()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.metrics.RecordAPIRequest(ctx, r.method, r.route, resp.StatusCode, start, ok)

	if !ok {
		return &APIError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &MalformedResponseError{Method: r.method, Path: r.path, Err: err}
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return &MalformedResponseError{Method: r.method, Path: r.path, Err: err}
		}
	}
	return nil
}

// errorMessage extracts {"message": "..."} from an error body, falling back
// to the status text
func errorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(resp.StatusCode)
}

func (c *Client) getJSON(ctx context.Context, route, path string, out any) error {
	return c.do(ctx, request{method: http.MethodGet, route: route, path: path}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, route, path string, payload, out any) error {
	req, err := c.jsonRequest(method, route, path, payload)
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

func idPath(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}

// -------------------- products --------------------

func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out list[models.Product]
	if err := c.getJSON(ctx, "/api/products", "/api/products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := c.getJSON(ctx, "/api/products/{id}", idPath("/api/products", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	var p models.Product
	if err := c.sendJSON(ctx, http.MethodPost, "/api/products", "/api/products", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (*models.Product, error) {
	var p models.Product
	if err := c.sendJSON(ctx, http.MethodPut, "/api/products/{id}", idPath("/api/products", id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, route: "/api/products/{id}", path: idPath("/api/products", id)}, nil)
}

// -------------------- auth --------------------

func (c *Client) Register(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/api/auth/register", "/api/auth/register", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/api/auth/login", "/api/auth/login", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user owning the current credential
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.MeResponse
	if err := c.getJSON(ctx, "/api/auth/me", "/api/auth/me", &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// -------------------- orders --------------------

func (c *Client) CreateOrder(ctx context.Context, in models.CreateOrderRequest) (*models.Order, error) {
	var o models.Order
	if err := c.sendJSON(ctx, http.MethodPost, "/api/orders", "/api/orders", in, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]models.Order, error) {
	var out list[models.Order]
	if err := c.getJSON(ctx, "/api/orders/my", "/api/orders/my", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllOrders lists every order (admin)
func (c *Client) AllOrders(ctx context.Context) ([]models.Order, error) {
	var out list[models.Order]
	if err := c.getJSON(ctx, "/api/orders", "/api/orders", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	payload := struct {
		Status models.OrderStatus `json:"status"`
	}{status}
	return c.sendJSON(ctx, http.MethodPatch, "/api/orders/{id}/status", idPath("/api/orders", id)+"/status", payload, nil)
}

func (c *Client) RequestPassportData(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/api/admin/orders/{id}/request-passport",
		path:   idPath("/api/admin/orders", id) + "/request-passport",
	}, nil)
}

func (c *Client) AddPassportData(ctx context.Context, id, passportData string) error {
	payload := struct {
		PassportData string `json:"passportData"`
	}{passportData}
	return c.sendJSON(ctx, http.MethodPatch, "/api/orders/{id}/passport", idPath("/api/orders", id)+"/passport", payload, nil)
}

// -------------------- news --------------------

func (c *Client) ListNews(ctx context.Context) ([]models.NewsItem, error) {
	var out list[models.NewsItem]
	if err := c.getJSON(ctx, "/api/news", "/api/news", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetNews(ctx context.Context, id string) (*models.NewsItem, error) {
	var n models.NewsItem
	if err := c.getJSON(ctx, "/api/news/{id}", idPath("/api/news", id), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) CreateNews(ctx context.Context, in models.NewsInput) (*models.NewsItem, error) {
	var n models.NewsItem
	if err := c.sendJSON(ctx, http.MethodPost, "/api/news", "/api/news", in, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) UpdateNews(ctx context.Context, id string, in models.NewsInput) (*models.NewsItem, error) {
	var n models.NewsItem
	if err := c.sendJSON(ctx, http.MethodPut, "/api/news/{id}", idPath("/api/news", id), in, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) DeleteNews(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, route: "/api/news/{id}", path: idPath("/api/news", id)}, nil)
}

// -------------------- upload --------------------

// UploadPaymentScreenshot sends the screenshot as multipart field "screenshot"
// and returns the reference url the backend stored it under
func (c *Client) UploadPaymentScreenshot(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("screenshot", sanitizeFilename(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read screenshot: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var out models.UploadResponse
	err = c.do(ctx, request{
		method:      http.MethodPost,
		route:       "/api/upload/payment",
		path:        "/api/upload/payment",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "screenshot"
	}
	return name
}
