package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

// --- In-memory repositories ---

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	email map[string]string
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[u.Email]; ok {
		return apperrors.AlreadyExists("user", "email", u.Email)
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.email[u.Email] = u.ID
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

type memProducts struct {
	mu    sync.Mutex
	items map[string]*domain.Product
}

func (m *memProducts) Create(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) Update(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p.ID]; !ok {
		return apperrors.ErrNotFound
	}
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memProducts) Search(_ context.Context, f domain.ProductFilter, _ pagination.Params) ([]domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Product{}
	for _, p := range m.items {
		if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		price := p.EffectivePrice()
		if f.MinPrice.Valid && price.LessThan(f.MinPrice.Decimal) {
			continue
		}
		if f.MaxPrice.Valid && price.GreaterThan(f.MaxPrice.Decimal) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	return &cp
}

func (m *memCarts) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneCart(c), nil
}

func (m *memCarts) Save(_ context.Context, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = cloneCart(c)
	return nil
}

func (m *memCarts) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *memCarts) Update(_ context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = domain.NewCart(userID)
	} else {
		c = cloneCart(c)
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	m.carts[userID] = cloneCart(c)
	return c, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp
}

func (m *memOrders) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memOrders) GetForUser(_ context.Context, id, userID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string, _ pagination.Params) ([]domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *memOrders) TransitionStatus(_ context.Context, id, userID string, from, to domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from || (userID != "" && o.UserID != userID) {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

type nopEvents struct{}

func (nopEvents) PublishUserRegistered(context.Context, *domain.User) error { return nil }
func (nopEvents) PublishOrderPlaced(context.Context, *domain.Order) error   { return nil }
func (nopEvents) PublishOrderStatusChanged(context.Context, *domain.Order, domain.OrderStatus) error {
	return nil
}

// --- Test server ---

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-password-123"
)

type testEnv struct {
	handler  http.Handler
	users    *memUsers
	products *memProducts
	carts    *memCarts
	orders   *memOrders
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		users:    &memUsers{byID: map[string]*domain.User{}, email: map[string]string{}},
		products: &memProducts{items: map[string]*domain.Product{}},
		carts:    &memCarts{carts: map[string]*domain.Cart{}},
		orders:   &memOrders{orders: map[string]*domain.Order{}},
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret-for-handler-tests-0001",
		RefreshSecret: "refresh-secret-for-handler-tests-0001",
		Issuer:        "storefront",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	users := service.NewUserService(env.users, auth.NewBcryptHasher(bcrypt.MinCost), tokens, nopEvents{}, logger)
	require.NoError(t, users.EnsureAdmin(context.Background(), service.RegisterInput{
		Name: "Administrator", Email: adminEmail, Password: adminPassword,
	}))

	svc := Services{
		Users:    users,
		Products: service.NewProductService(env.products, logger),
		Carts:    service.NewCartService(env.carts, env.products, logger),
		Orders:   service.NewOrderService(env.orders, env.carts, nopEvents{}, service.NewOrderMetrics(reg), logger),
		Tokens:   tokens,
	}
	env.handler = NewRouter(svc, RouterConfig{
		Registry: reg,
		Health:   health.NewHandler(),
		CORS:     middleware.DefaultCORSConfig(),
		Cookie:   CookieConfig{Secure: true, MaxAge: tokens.RefreshTTL()},
	}, logger)
	return env
}

type request struct {
	method string
	path   string
	body   any
	token  string
	cookie *http.Cookie
}

func (env *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, r)
	return rec
}

// decodeBody reads the JSON body into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}

// signupAndLogin creates a customer and returns its access token and
// refresh cookie.
func (env *testEnv) signupAndLogin(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()
	rec := env.do(t, request{method: http.MethodPost, path: "/api/signup", body: map[string]string{
		"name": "Test User", "email": email, "password": "password-123",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return env.login(t, email, "password-123")
}

func (env *testEnv) login(t *testing.T, email, password string) (string, *http.Cookie) {
	t.Helper()
	rec := env.do(t, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
		"email": email, "password": password,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decodeBody(t, rec)["accessToken"].(string)
	require.NotEmpty(t, token)
	return token, refreshCookie(rec)
}

func (env *testEnv) seedProduct(t *testing.T, id, name, price string, stock int) {
	t.Helper()
	require.NoError(t, env.products.Create(context.Background(), &domain.Product{
		ID:       id,
		Name:     name,
		Slug:     strings.ToLower(name),
		Category: "kitchen",
		Price:    decimalOf(t, price),
		Stock:    stock,
	}))
}
