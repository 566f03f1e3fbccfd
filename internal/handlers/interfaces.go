package handlers

import (
	"context"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// ----- Orders -----

type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error)
	Checkout(ctx context.Context, userID uuid.UUID, req *models.CheckoutRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
	AddItem(ctx context.Context, orderID uuid.UUID, req *models.AddLineItemRequest) (*models.Order, error)
	Recalc(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ApplyPromoCode(ctx context.Context, orderID uuid.UUID, code string) (*models.Order, error)
	SetDelivery(ctx context.Context, orderID, deliveryID uuid.UUID) (*models.Order, error)
	ChangeStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error)
	Pay(ctx context.Context, orderID uuid.UUID) (*models.PaymentResult, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type EventProducer interface {
	PublishOrderCreated(order *models.Order) error
	PublishOrderStatusChanged(orderID uuid.UUID, oldStatus, newStatus models.OrderStatus) error
	PublishOrderPaid(order *models.Order) error
	PublishOrderCancelled(order *models.Order) error
}

type OrderCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// ----- Promo -----

type PromoService interface {
	CreatePromoCode(ctx context.Context, req *models.CreatePromoCodeRequest) (*models.PromoCode, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	UpdatePromoCode(ctx context.Context, code string, req *models.UpdatePromoCodeRequest) (*models.PromoCode, error)
	DeletePromoCode(ctx context.Context, code string) error
	ListPromoCodes(ctx context.Context, limit, offset int) ([]*models.PromoCode, error)
	CheckPromoCode(ctx context.Context, code string) error
	GeneratePromoCodes(ctx context.Context, req *models.GeneratePromoCodesRequest) ([]*models.PromoCode, error)
}

// ----- Basket -----

type BasketService interface {
	GetBasket(ctx context.Context, userID uuid.UUID) (*models.Basket, error)
	AddToBasket(ctx context.Context, userID uuid.UUID, req *models.AddToBasketRequest) (*models.Basket, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Basket, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Basket, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// ----- Catalog -----

type CatalogService interface {
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price float64) (*models.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) (*models.Product, error)
}

type RatingService interface {
	RateProduct(ctx context.Context, productID, userID uuid.UUID, rating int) (*models.ProductRating, error)
	GetRating(ctx context.Context, productID uuid.UUID) (*models.ProductRating, error)
}

type SubscriptionService interface {
	Subscribe(ctx context.Context, userID, productID uuid.UUID, kind models.SubscriptionKind) (*models.Subscription, error)
	Unsubscribe(ctx context.Context, userID, productID uuid.UUID, kind models.SubscriptionKind) error
}

// ----- Currencies & deliveries -----

type CurrencyService interface {
	CreateCurrency(ctx context.Context, req *models.CreateCurrencyRequest) (*models.Currency, error)
	GetCurrency(ctx context.Context, id uuid.UUID) (*models.Currency, error)
	UpdateRate(ctx context.Context, id uuid.UUID, rate float64) (*models.Currency, error)
}

type PricingService interface {
	CreateMatrix(ctx context.Context, req *models.CreateMatrixRequest) (*models.PriceMatrix, error)
	GetMatrix(ctx context.Context, id uuid.UUID) (*models.PriceMatrix, error)
	CreateDelivery(ctx context.Context, req *models.CreateDeliveryRequest) (*models.Delivery, error)
	GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	ListDeliveries(ctx context.Context) ([]*models.Delivery, error)
}

// ----- Users -----

type UserService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (float64, error)
	BalanceHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.BalanceChange, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}

// ----- Analytics -----

type SalesAnalyticsProvider interface {
	SalesReport(ctx context.Context, filter *models.SalesFilter) (*models.SalesReport, error)
}
