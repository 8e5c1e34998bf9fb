// Package marketplacetest runs an in-memory marketplace backend over
// httptest for exercising the storefront against real HTTP.
package marketplacetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SigNoz/marketplace-storefront/internal/models"
)

// Account is a backend user with its password
type Account struct {
	User     models.User
	Password string
}

type failure struct {
	status  int
	message string
}

// Server is a stateful fake backend. The zero value is not usable, call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	products map[string]models.Product
	order    []string
	orders   map[string]*models.Order
	news     map[string]models.NewsItem
	accounts map[string]Account // by phone
	tokens   map[string]string  // token -> phone
	failures map[string]failure // by route pattern
	hits     map[string]int     // by route pattern
	created  []models.CreateOrderRequest
	uploads  []string
	seq      int
}

// New starts a server that is closed when t finishes
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		products: make(map[string]models.Product),
		orders:   make(map[string]*models.Order),
		news:     make(map[string]models.NewsItem),
		accounts: make(map[string]Account),
		tokens:   make(map[string]string),
		failures: make(map[string]failure),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /api/products", s.listProducts)
	s.handle(mux, "GET /api/products/{id}", s.getProduct)
	s.handle(mux, "POST /api/products", s.admin(s.saveProduct))
	s.handle(mux, "PUT /api/products/{id}", s.admin(s.saveProduct))
	s.handle(mux, "DELETE /api/products/{id}", s.admin(s.deleteProduct))

	s.handle(mux, "POST /api/auth/register", s.register)
	s.handle(mux, "POST /api/auth/login", s.login)
	s.handle(mux, "GET /api/auth/me", s.me)

	s.handle(mux, "GET /api/orders", s.admin(s.allOrders))
	s.handle(mux, "GET /api/orders/my", s.myOrders)
	s.handle(mux, "POST /api/orders", s.createOrder)
	s.handle(mux, "PATCH /api/orders/{id}/status", s.admin(s.updateStatus))
	s.handle(mux, "POST /api/admin/orders/{id}/request-passport", s.admin(s.requestPassport))
	s.handle(mux, "PATCH /api/orders/{id}/passport", s.admin(s.addPassport))
	s.handle(mux, "POST /api/upload/payment", s.upload)

	s.handle(mux, "GET /api/news", s.listNews)
	s.handle(mux, "GET /api/news/{id}", s.getNews)
	s.handle(mux, "POST /api/news", s.admin(s.saveNews))
	s.handle(mux, "PUT /api/news/{id}", s.admin(s.saveNews))
	s.handle(mux, "DELETE /api/news/{id}", s.admin(s.deleteNews))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// -------------------- seeding and inspection --------------------

func (s *Server) AddProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Server) AddOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		s.order = append(s.order, o.ID)
	}
	s.orders[o.ID] = &o
}

func (s *Server) AddNews(n models.NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.news[n.ID] = n
}

// AddAccount registers a user and returns a token already valid for it
func (s *Server) AddAccount(a Account) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.User.Phone] = a
	return s.issue(a.User.Phone)
}

// RevokeTokens invalidates every issued token
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// Fail makes every request to pattern answer status with message until Recover
func (s *Server) Fail(pattern string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pattern] = failure{status: status, message: message}
}

func (s *Server) Recover(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, pattern)
}

// Hits returns how many requests pattern received
func (s *Server) Hits(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[pattern]
}

func (s *Server) OrderByID(id string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

// Created returns the order submissions received so far
func (s *Server) Created() []models.CreateOrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CreateOrderRequest(nil), s.created...)
}

// Uploads returns the file names of the uploaded screenshots
func (s *Server) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

// -------------------- plumbing --------------------

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[pattern]++
		f, failing := s.failures[pattern]
		s.mu.Unlock()

		if failing {
			writeJSON(w, f.status, map[string]string{"message": f.message})
			return
		}
		h(w, r)
	})
}

func (s *Server) caller(r *http.Request) (Account, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	phone, ok := s.tokens[token]
	if !ok {
		return Account{}, false
	}
	a, ok := s.accounts[phone]
	return a, ok
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := s.caller(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Требуется авторизация"})
			return
		}
		if !a.User.IsAdmin {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Доступ запрещён"})
			return
		}
		h(w, r)
	}
}

// issue must be called with s.mu held
func (s *Server) issue(phone string) string {
	s.seq++
	token := fmt.Sprintf("token-%d", s.seq)
	s.tokens[token] = phone
	return token
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return false
	}
	return true
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Не найдено"})
}

// -------------------- products --------------------

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	p, ok := s.products[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) saveProduct(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	id := r.PathValue("id")
	status := http.StatusOK
	if id == "" {
		id = s.nextID("p")
		status = http.StatusCreated
	} else if _, ok := s.products[id]; !ok {
		s.mu.Unlock()
		notFound(w)
		return
	}
	p := models.Product{ID: id, Name: in.Name, Description: in.Description, Price: in.Price, InStock: in.InStock}
	s.products[id] = p
	s.mu.Unlock()
	writeJSON(w, status, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.products, r.PathValue("id"))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Товар удалён"})
}

// -------------------- auth --------------------

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decode(w, r, &creds) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[creds.Phone]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Пользователь уже существует"})
		return
	}
	u := models.User{ID: s.nextID("u"), Phone: creds.Phone}
	s.accounts[creds.Phone] = Account{User: u, Password: creds.Password}
	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: s.issue(creds.Phone), User: &u})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decode(w, r, &creds) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[creds.Phone]
	if !ok || a.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Неверный телефон или пароль"})
		return
	}
	u := a.User
	writeJSON(w, http.StatusOK, models.AuthResponse{Token: s.issue(creds.Phone), User: &u})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	a, ok := s.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Недействительный токен"})
		return
	}
	writeJSON(w, http.StatusOK, models.MeResponse{User: a.User})
}

// -------------------- orders --------------------

func (s *Server) allOrders(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]models.Order, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.orders[id])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	a, ok := s.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Требуется авторизация"})
		return
	}
	s.mu.Lock()
	out := []models.Order{}
	for _, id := range s.order {
		if o := s.orders[id]; o.User.ID == a.User.ID {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := s.caller(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Требуется авторизация"})
		return
	}
	var in models.CreateOrderRequest
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, in)

	o := &models.Order{
		ID:                   s.nextID("o"),
		User:                 models.UserRef{ID: a.User.ID, Phone: a.User.Phone},
		DeliveryAddress:      in.DeliveryAddress,
		ContactPhone:         in.ContactPhone,
		AdditionalPhone:      in.AdditionalPhone,
		TelegramUsername:     in.TelegramUsername,
		PaymentScreenshot:    in.PaymentScreenshot,
		PrepaymentPercentage: in.PrepaymentPercentage,
		Status:               models.StatusPendingPayment,
		CreatedAt:            time.Now().UTC(),
	}
	var total float64
	for _, line := range in.Products {
		p := s.products[line.ProductID]
		ref := models.ProductRef{ID: line.ProductID}
		if p.ID != "" {
			ref.Product = &p
		}
		o.Products = append(o.Products, models.OrderItem{Product: ref, Quantity: line.Quantity, Price: p.Price})
		total += p.Price * float64(line.Quantity)
	}
	o.PrepaymentAmount = total * float64(in.PrepaymentPercentage) / 100

	s.order = append(s.order, o.ID)
	s.orders[o.ID] = o
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status models.OrderStatus `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		notFound(w)
		return
	}
	o.Status = in.Status
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) requestPassport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		notFound(w)
		return
	}
	o.Status = models.StatusPassportRequested
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) addPassport(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PassportData string `json:"passportData"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		notFound(w)
		return
	}
	o.PassportData = in.PassportData
	o.Status = models.StatusPassportVerified
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Требуется авторизация"})
		return
	}
	file, header, err := r.FormFile("screenshot")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Файл не загружен"})
		return
	}
	defer file.Close()
	_, _ = io.Copy(io.Discard, file)

	s.mu.Lock()
	s.uploads = append(s.uploads, header.Filename)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.UploadResponse{URL: "/uploads/" + header.Filename})
}

// -------------------- news --------------------

func (s *Server) listNews(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]models.NewsItem, 0, len(s.news))
	for _, n := range s.news {
		out = append(out, n)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getNews(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n, ok := s.news[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) saveNews(w http.ResponseWriter, r *http.Request) {
	var in models.NewsInput
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	id := r.PathValue("id")
	status := http.StatusOK
	if id == "" {
		id = s.nextID("n")
		status = http.StatusCreated
	}
	n := models.NewsItem{ID: id, Title: in.Title, Content: in.Content, CreatedAt: time.Now().UTC()}
	s.news[id] = n
	s.mu.Unlock()
	writeJSON(w, status, n)
}

func (s *Server) deleteNews(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.news, r.PathValue("id"))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Новость удалена"})
}
