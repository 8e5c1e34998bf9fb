package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SigNoz/marketplace-storefront/internal/models"
	"github.com/SigNoz/marketplace-storefront/internal/services"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// -------------------- cart --------------------

type cartResponse struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

func (a *App) cartView(items []models.CartItem) cartResponse {
	return cartResponse{Items: items, Total: a.cart.Total(items)}
}

type productIDRequest struct {
	ProductID string `json:"productId"`
}

// GetCartHandler handles GET /local/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	items, err := a.cart.Read(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView(items))
}

// AddCartItemHandler handles POST /local/v1/cart/items. The product is
// fetched from the backend so the cart keeps a current snapshot of it.
func (a *App) AddCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req productIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeMessage(w, http.StatusBadRequest, "productId is required")
		return
	}

	product, err := a.products.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := a.cart.Add(r.Context(), *product)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView(items))
}

// SetCartItemHandler handles PUT /local/v1/cart/items/{productId}
func (a *App) SetCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeMessage(w, http.StatusBadRequest, "quantity is required")
		return
	}

	items, err := a.cart.SetQuantity(r.Context(), mux.Vars(r)["productId"], *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView(items))
}

// RemoveCartItemHandler handles DELETE /local/v1/cart/items/{productId}
func (a *App) RemoveCartItemHandler(w http.ResponseWriter, r *http.Request) {
	items, err := a.cart.Remove(r.Context(), mux.Vars(r)["productId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView(items))
}

// ClearCartHandler handles DELETE /local/v1/cart
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.cart.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView([]models.CartItem{}))
}

// -------------------- checkout --------------------

// QuoteHandler handles GET /local/v1/checkout/quote?prepaymentPercentage=N
func (a *App) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	pct, ok := parsePercentage(w, r.URL.Query().Get("prepaymentPercentage"))
	if !ok {
		return
	}
	quote, err := a.orders.Quote(r.Context(), pct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// BuyNowHandler handles POST /local/v1/checkout/buy-now
func (a *App) BuyNowHandler(w http.ResponseWriter, r *http.Request) {
	var req productIDRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		writeMessage(w, http.StatusBadRequest, "productId is required")
		return
	}
	items, err := a.orders.BuyNow(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.cartView(items))
}

// CheckoutHandler handles POST /local/v1/checkout as multipart/form-data
// with the payment screenshot in the "screenshot" file field
func (a *App) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeMessage(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	pct, ok := parsePercentage(w, r.FormValue("prepaymentPercentage"))
	if !ok {
		return
	}

	req := services.CheckoutRequest{
		DeliveryAddress:      r.FormValue("deliveryAddress"),
		AdditionalPhone:      r.FormValue("additionalPhone"),
		TelegramUsername:     r.FormValue("telegramUsername"),
		PrepaymentPercentage: pct,
	}

	file, header, err := r.FormFile("screenshot")
	switch {
	case err == nil:
		defer file.Close()
		req.Screenshot = &services.Screenshot{Filename: header.Filename, Content: file}
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeMessage(w, http.StatusBadRequest, "unreadable screenshot")
		return
	}

	order, err := a.orders.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderView(*order))
}

func parsePercentage(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "prepaymentPercentage must be an integer")
		return 0, false
	}
	return pct, true
}

// -------------------- orders --------------------

// orderView adds the presentation fields the order pages show
type orderView struct {
	models.Order
	StatusLabel      string               `json:"statusLabel"`
	AvailableActions []models.OrderAction `json:"availableActions"`
}

func newOrderView(o models.Order) orderView {
	actions := models.AvailableActions(o.Status)
	if actions == nil {
		actions = []models.OrderAction{}
	}
	return orderView{Order: o, StatusLabel: o.Status.Label(), AvailableActions: actions}
}

func orderViews(orders []models.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderView(o))
	}
	return out
}

type adminOrdersResponse struct {
	Orders []orderView `json:"orders"`
	// Stale is set when an action was applied but the list could not be re-fetched
	Stale bool `json:"stale"`
}

// MyOrdersHandler handles GET /local/v1/orders/my
func (a *App) MyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orders.MyOrders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderViews(orders))
}

// ListAdminOrdersHandler handles GET /local/v1/admin/orders
func (a *App) ListAdminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orders.Refresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminOrdersResponse{Orders: orderViews(orders)})
}

// OrderActionHandler handles POST /local/v1/admin/orders/{id}/actions/{action}.
// Only actions offered for the order's last-known status are forwarded.
func (a *App) OrderActionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	action := models.OrderAction(vars["action"])
	if !action.Valid() {
		writeMessage(w, http.StatusBadRequest, "unknown action "+strconv.Quote(string(action)))
		return
	}

	var body struct {
		PassportData string `json:"passportData"`
	}
	if action == models.ActionAttachPassport && !decodeBody(w, r, &body) {
		return
	}

	order, ok := a.orders.Order(id)
	if !ok {
		if _, err := a.orders.Refresh(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		if order, ok = a.orders.Order(id); !ok {
			writeMessage(w, http.StatusNotFound, "order not found")
			return
		}
	}
	if !order.Status.Allows(action) {
		writeMessage(w, http.StatusConflict, "action "+string(action)+" is not available for status "+string(order.Status))
		return
	}

	err := a.orders.Apply(r.Context(), id, action, body.PassportData)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, adminOrdersResponse{Orders: orderViews(a.orders.Orders())})
	case errors.Is(err, services.ErrStaleOrders):
		writeJSON(w, http.StatusOK, adminOrdersResponse{Orders: orderViews(a.orders.Orders()), Stale: true})
	default:
		writeError(w, r, err)
	}
}
