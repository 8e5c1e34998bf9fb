package api

import (
	"net/http"

	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/internal/middleware"
	"github.com/SigNoz/marketplace-storefront/internal/models"
	"github.com/SigNoz/marketplace-storefront/internal/services"
	"github.com/SigNoz/marketplace-storefront/pkg/config"
	"github.com/gorilla/mux"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
)

// App holds application dependencies
type App struct {
	config   *config.Config
	metrics  *metrics.AppMetrics
	session  *services.SessionService
	cart     *services.CartService
	orders   *services.OrderService
	products *services.ProductService
	news     *services.NewsService
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	m *metrics.AppMetrics,
	session *services.SessionService,
	cart *services.CartService,
	orders *services.OrderService,
	products *services.ProductService,
	news *services.NewsService,
) *App {
	return &App{
		config:   cfg,
		metrics:  m,
		session:  session,
		cart:     cart,
		orders:   orders,
		products: products,
		news:     news,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/local/v1").Subrouter()

	// Session
	api.HandleFunc("/session", a.GetSessionHandler).Methods(http.MethodGet)
	api.HandleFunc("/session/login", a.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/register", a.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", a.LogoutHandler).Methods(http.MethodPost)

	// Catalog
	api.HandleFunc("/products", a.ListProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products", a.admin(a.CreateProductHandler)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", a.admin(a.UpdateProductHandler)).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", a.admin(a.DeleteProductHandler)).Methods(http.MethodDelete)

	// News
	api.HandleFunc("/news", a.ListNewsHandler).Methods(http.MethodGet)
	api.HandleFunc("/news", a.admin(a.CreateNewsHandler)).Methods(http.MethodPost)
	api.HandleFunc("/news/{id}", a.GetNewsHandler).Methods(http.MethodGet)
	api.HandleFunc("/news/{id}", a.admin(a.UpdateNewsHandler)).Methods(http.MethodPut)
	api.HandleFunc("/news/{id}", a.admin(a.DeleteNewsHandler)).Methods(http.MethodDelete)

	// Cart
	api.HandleFunc("/cart", a.authed(a.GetCartHandler)).Methods(http.MethodGet)
	api.HandleFunc("/cart", a.authed(a.ClearCartHandler)).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", a.authed(a.AddCartItemHandler)).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productId}", a.authed(a.SetCartItemHandler)).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{productId}", a.authed(a.RemoveCartItemHandler)).Methods(http.MethodDelete)

	// Checkout
	api.HandleFunc("/checkout/quote", a.authed(a.QuoteHandler)).Methods(http.MethodGet)
	api.HandleFunc("/checkout/buy-now", a.authed(a.BuyNowHandler)).Methods(http.MethodPost)
	api.HandleFunc("/checkout", a.authed(a.CheckoutHandler)).Methods(http.MethodPost)

	// Orders
	api.HandleFunc("/orders/my", a.authed(a.MyOrdersHandler)).Methods(http.MethodGet)
	api.HandleFunc("/admin/orders", a.admin(a.ListAdminOrdersHandler)).Methods(http.MethodGet)
	api.HandleFunc("/admin/orders/{id}/actions/{action}", a.admin(a.OrderActionHandler)).Methods(http.MethodPost)
}

// authed rejects requests when nobody is signed in on this device
func (a *App) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.session.IsAuthenticated() {
			writeError(w, r, services.ErrNotAuthenticated)
			return
		}
		h(w, r)
	}
}

// admin additionally requires the signed-in user to be an admin
func (a *App) admin(h http.HandlerFunc) http.HandlerFunc {
	return a.authed(func(w http.ResponseWriter, r *http.Request) {
		if !a.session.IsAdmin() {
			writeError(w, r, services.ErrForbidden)
			return
		}
		h(w, r)
	})
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"authenticated": a.session.IsAuthenticated(),
		"storeBackend":  a.config.StoreBackend,
	})
}

// -------------------- session --------------------

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user"`
}

func (a *App) sessionView() sessionResponse {
	u := a.session.User()
	return sessionResponse{Authenticated: u != nil, User: u}
}

// GetSessionHandler handles GET /local/v1/session
func (a *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sessionView())
}

// LoginHandler handles POST /local/v1/session/login
func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := a.session.Login(r.Context(), req.Phone, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionView())
}

// RegisterHandler handles POST /local/v1/session/register
func (a *App) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := a.session.Register(r.Context(), req.Phone, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.sessionView())
}

// LogoutHandler handles POST /local/v1/session/logout
func (a *App) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.session.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -------------------- products --------------------

// ListProductsHandler handles GET /local/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.products.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /local/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := a.products.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}
	product, err := a.products.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}
	product, err := a.products.UpdateProduct(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.products.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -------------------- news --------------------

func (a *App) ListNewsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := a.news.ListNews(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *App) GetNewsHandler(w http.ResponseWriter, r *http.Request) {
	item, err := a.news.GetNews(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *App) CreateNewsHandler(w http.ResponseWriter, r *http.Request) {
	var in models.NewsInput
	if !decodeBody(w, r, &in) {
		return
	}
	item, err := a.news.CreateNews(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *App) UpdateNewsHandler(w http.ResponseWriter, r *http.Request) {
	var in models.NewsInput
	if !decodeBody(w, r, &in) {
		return
	}
	item, err := a.news.UpdateNews(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *App) DeleteNewsHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.news.DeleteNews(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
