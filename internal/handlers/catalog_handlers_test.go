package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

type stubCatalogService struct {
	product   *models.Product
	err       error
	lastPrice float64
	lastStock int
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	return s.product, s.err
}
func (s *stubCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.product, s.err
}
func (s *stubCatalogService) UpdatePrice(ctx context.Context, id uuid.UUID, price float64) (*models.Product, error) {
	s.lastPrice = price
	return s.product, s.err
}
func (s *stubCatalogService) UpdateStock(ctx context.Context, id uuid.UUID, stock int) (*models.Product, error) {
	s.lastStock = stock
	return s.product, s.err
}

type stubRatingService struct {
	rating     *models.ProductRating
	err        error
	lastRating int
}

func (s *stubRatingService) RateProduct(ctx context.Context, productID, userID uuid.UUID, rating int) (*models.ProductRating, error) {
	s.lastRating = rating
	return s.rating, s.err
}
func (s *stubRatingService) GetRating(ctx context.Context, productID uuid.UUID) (*models.ProductRating, error) {
	return s.rating, s.err
}

type stubSubscriptionService struct {
	err          error
	subscribed   int
	unsubscribed int
}

func (s *stubSubscriptionService) Subscribe(ctx context.Context, userID, productID uuid.UUID, kind models.SubscriptionKind) (*models.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.subscribed++
	return &models.Subscription{UserID: userID, ProductID: productID, Kind: kind}, nil
}
func (s *stubSubscriptionService) Unsubscribe(ctx context.Context, userID, productID uuid.UUID, kind models.SubscriptionKind) error {
	if s.err != nil {
		return s.err
	}
	s.unsubscribed++
	return nil
}

func testHandlerLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func TestProductHandler_CreateAndGet(t *testing.T) {
	product := &models.Product{ID: uuid.New(), Title: "Чайник", Price: 19.99, Stock: 5}
	h := NewProductHandler(&stubCatalogService{product: product}, &stubRatingService{}, &stubSubscriptionService{}, testHandlerLogger())

	rr := httptest.NewRecorder()
	h.CreateProduct(rr, httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(`{"title":"Чайник","price":19.99,"stock":5}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.CreateProduct(rr, httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(`{"title":"","price":1}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty title, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.GetProduct(rr, httptest.NewRequest(http.MethodGet, productsPrefix+product.ID.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestProductHandler_UpdatePriceAndStock(t *testing.T) {
	catalog := &stubCatalogService{product: &models.Product{ID: uuid.New()}}
	h := NewProductHandler(catalog, &stubRatingService{}, &stubSubscriptionService{}, testHandlerLogger())
	id := uuid.NewString()

	rr := httptest.NewRecorder()
	h.UpdatePrice(rr, httptest.NewRequest(http.MethodPut, productsPrefix+id+"/price", bytes.NewBufferString(`{"price":14.5}`)))
	if rr.Code != http.StatusOK || catalog.lastPrice != 14.5 {
		t.Fatalf("expected price update, code=%d price=%v", rr.Code, catalog.lastPrice)
	}

	rr = httptest.NewRecorder()
	h.UpdatePrice(rr, httptest.NewRequest(http.MethodPut, productsPrefix+id+"/price", bytes.NewBufferString(`{"price":-1}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative price, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.UpdateStock(rr, httptest.NewRequest(http.MethodPut, productsPrefix+id+"/stock", bytes.NewBufferString(`{"stock":12}`)))
	if rr.Code != http.StatusOK || catalog.lastStock != 12 {
		t.Fatalf("expected stock update, code=%d stock=%d", rr.Code, catalog.lastStock)
	}

	rr = httptest.NewRecorder()
	h.UpdateStock(rr, httptest.NewRequest(http.MethodPost, productsPrefix+id+"/stock", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestProductHandler_Rating(t *testing.T) {
	ratings := &stubRatingService{rating: &models.ProductRating{Average: 3.67, Count: 3}}
	h := NewProductHandler(&stubCatalogService{}, ratings, &stubSubscriptionService{}, testHandlerLogger())
	path := productsPrefix + uuid.NewString() + "/rating"

	rr := httptest.NewRecorder()
	h.Rating(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got models.ProductRating
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil || got.Average != 3.67 {
		t.Fatalf("unexpected rating: %+v (%v)", got, err)
	}

	body := `{"user_id":"` + uuid.NewString() + `","rating":4}`
	rr = httptest.NewRecorder()
	h.Rating(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
	if rr.Code != http.StatusOK || ratings.lastRating != 4 {
		t.Fatalf("expected rating saved, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Rating(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"user_id":"`+uuid.NewString()+`","rating":6}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for rating out of range, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Rating(rr, httptest.NewRequest(http.MethodDelete, path, nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestProductHandler_Subscriptions(t *testing.T) {
	subs := &stubSubscriptionService{}
	h := NewProductHandler(&stubCatalogService{}, &stubRatingService{}, subs, testHandlerLogger())
	path := productsPrefix + uuid.NewString() + "/subscriptions"
	body := `{"user_id":"` + uuid.NewString() + `","kind":"price_drop"}`

	rr := httptest.NewRecorder()
	h.Subscriptions(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
	if rr.Code != http.StatusCreated || subs.subscribed != 1 {
		t.Fatalf("expected subscription, code=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Subscriptions(rr, httptest.NewRequest(http.MethodDelete, path, bytes.NewBufferString(body)))
	if rr.Code != http.StatusOK || subs.unsubscribed != 1 {
		t.Fatalf("expected unsubscription, code=%d", rr.Code)
	}

	missing := NewProductHandler(&stubCatalogService{}, &stubRatingService{}, &stubSubscriptionService{err: apperror.NotFound("subscription not found", nil)}, testHandlerLogger())
	rr = httptest.NewRecorder()
	missing.Subscriptions(rr, httptest.NewRequest(http.MethodDelete, path, bytes.NewBufferString(body)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

type stubCurrencyService struct {
	currency *models.Currency
	err      error
	lastRate float64
}

func (s *stubCurrencyService) CreateCurrency(ctx context.Context, req *models.CreateCurrencyRequest) (*models.Currency, error) {
	return s.currency, s.err
}
func (s *stubCurrencyService) GetCurrency(ctx context.Context, id uuid.UUID) (*models.Currency, error) {
	return s.currency, s.err
}
func (s *stubCurrencyService) UpdateRate(ctx context.Context, id uuid.UUID, rate float64) (*models.Currency, error) {
	s.lastRate = rate
	return s.currency, s.err
}

type stubPricingService struct {
	matrix     *models.PriceMatrix
	delivery   *models.Delivery
	deliveries []*models.Delivery
	err        error
}

func (s *stubPricingService) CreateMatrix(ctx context.Context, req *models.CreateMatrixRequest) (*models.PriceMatrix, error) {
	return s.matrix, s.err
}
func (s *stubPricingService) GetMatrix(ctx context.Context, id uuid.UUID) (*models.PriceMatrix, error) {
	return s.matrix, s.err
}
func (s *stubPricingService) CreateDelivery(ctx context.Context, req *models.CreateDeliveryRequest) (*models.Delivery, error) {
	return s.delivery, s.err
}
func (s *stubPricingService) GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	return s.delivery, s.err
}
func (s *stubPricingService) ListDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	return s.deliveries, s.err
}

func TestReferenceHandler_Currencies(t *testing.T) {
	currencies := &stubCurrencyService{currency: &models.Currency{ID: uuid.New(), Name: "Euro", Code: "EUR", Rate: 1.5}}
	h := NewReferenceHandler(currencies, &stubPricingService{}, testHandlerLogger())

	rr := httptest.NewRecorder()
	h.CreateCurrency(rr, httptest.NewRequest(http.MethodPost, "/api/currencies", bytes.NewBufferString(`{"name":"Euro","code":"EUR","rate":1.5}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.CreateCurrency(rr, httptest.NewRequest(http.MethodPost, "/api/currencies", bytes.NewBufferString(`{"name":"Euro","rate":0}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero rate, got %d", rr.Code)
	}

	id := uuid.NewString()
	rr = httptest.NewRecorder()
	h.UpdateRate(rr, httptest.NewRequest(http.MethodPut, currenciesPrefix+id+"/rate", bytes.NewBufferString(`{"rate":2}`)))
	if rr.Code != http.StatusOK || currencies.lastRate != 2 {
		t.Fatalf("expected rate update, code=%d rate=%v", rr.Code, currencies.lastRate)
	}

	rr = httptest.NewRecorder()
	h.GetCurrency(rr, httptest.NewRequest(http.MethodGet, currenciesPrefix+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReferenceHandler_Deliveries(t *testing.T) {
	pricing := &stubPricingService{delivery: &models.Delivery{ID: uuid.New(), Name: "Courier"}}
	h := NewReferenceHandler(&stubCurrencyService{}, pricing, testHandlerLogger())

	rr := httptest.NewRecorder()
	h.Deliveries(rr, httptest.NewRequest(http.MethodGet, "/api/deliveries", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "[]\n" {
		t.Fatalf("expected empty list, got %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.GetDelivery(rr, httptest.NewRequest(http.MethodGet, deliveriesPrefix+uuid.NewString(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	missing := NewReferenceHandler(&stubCurrencyService{}, &stubPricingService{err: apperror.NotFound("price matrix not found", nil)}, testHandlerLogger())
	rr = httptest.NewRecorder()
	missing.GetMatrix(rr, httptest.NewRequest(http.MethodGet, matricesPrefix+uuid.NewString(), nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Deliveries(rr, httptest.NewRequest(http.MethodPut, "/api/deliveries", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

type stubUserService struct {
	balance float64
	history []*models.BalanceChange
	err     error
	limit   int
}

func (s *stubUserService) GetBalance(ctx context.Context, userID uuid.UUID) (float64, error) {
	return s.balance, s.err
}
func (s *stubUserService) BalanceHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.BalanceChange, error) {
	s.limit = limit
	return s.history, s.err
}

func TestUserHandler_Balance(t *testing.T) {
	users := &stubUserService{balance: 75}
	h := NewUserHandler(users, testHandlerLogger())
	userID := uuid.New()

	rr := httptest.NewRecorder()
	h.GetBalance(rr, httptest.NewRequest(http.MethodGet, usersPrefix+userID.String()+"/balance", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp BalanceResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp.Balance != 75 || resp.UserID != userID.String() {
		t.Fatalf("unexpected balance response: %+v (%v)", resp, err)
	}

	rr = httptest.NewRecorder()
	h.BalanceHistory(rr, httptest.NewRequest(http.MethodGet, usersPrefix+userID.String()+"/balance/history?limit=20", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "[]\n" || users.limit != 20 {
		t.Fatalf("unexpected history response: %d %q limit=%d", rr.Code, rr.Body.String(), users.limit)
	}

	missing := NewUserHandler(&stubUserService{err: apperror.NotFound("user not found", nil)}, testHandlerLogger())
	rr = httptest.NewRecorder()
	missing.GetBalance(rr, httptest.NewRequest(http.MethodGet, usersPrefix+uuid.NewString()+"/balance", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
