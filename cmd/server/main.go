package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/kafka"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"
	"storefront/internal/services"
	"storefront/internal/tracing"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
	initTracing      = tracing.Init
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server

	shutdownTracing tracing.ShutdownFunc
}

// routeHandlers набор HTTP обработчиков для регистрации маршрутов
type routeHandlers struct {
	orders    *handlers.OrderHandler
	baskets   *handlers.BasketHandler
	products  *handlers.ProductHandler
	reference *handlers.ReferenceHandler
	users     *handlers.UserHandler
	promo     *handlers.PromoHandler
	analytics *handlers.AnalyticsHandler
	health    *handlers.HealthHandler
	rateLimit *handlers.RateLimitHandler
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting storefront server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	if err := app.shutdownTracing(ctx); err != nil {
		app.log.WithError(err).Warn("Failed to flush traces")
	}
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	// без экспортера спаны сервисов остаются no-op, сервис при этом работает
	shutdownTracing, err := initTracing(context.Background(), &cfg.Tracing)
	if err != nil {
		log.WithError(err).Warn("Tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}

	pricingService := services.NewPricingService(db, log)
	promoService := services.NewPromoService(db, log, &cfg.Promo)
	currencyService := services.NewCurrencyService(db, log, redisClient, &cfg.Currency)
	orderService := services.NewOrderService(db, log, promoService, currencyService)
	basketService := services.NewBasketService(db, log)
	subscriptionService := services.NewSubscriptionService(db, log)
	notificationService := services.NewNotificationService(producer, log, &cfg.Notifier)
	catalogService := services.NewCatalogService(db, log, subscriptionService, notificationService)
	ratingService := services.NewRatingService(db, log)
	userService := services.NewUserService(db, log)
	analyticsService := services.NewSalesAnalyticsService(db, redisClient, log, &cfg.Analytics)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	routes := routeHandlers{
		orders:    handlers.NewOrderHandler(orderService, producer, redisClient, log),
		baskets:   handlers.NewBasketHandler(basketService, log),
		products:  handlers.NewProductHandler(catalogService, ratingService, subscriptionService, log),
		reference: handlers.NewReferenceHandler(currencyService, pricingService, log),
		users:     handlers.NewUserHandler(userService, log),
		promo:     handlers.NewPromoHandler(promoService, log),
		analytics: handlers.NewAnalyticsHandler(analyticsService, log, &cfg.Analytics),
		health:    handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck),
		rateLimit: handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
	}

	registerEventHandlers(consumer, redisClient, notificationService, log)
	if err := consumer.Start(); err != nil {
		_ = shutdownTracing(context.Background())
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(routes, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,

		shutdownTracing: shutdownTracing,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(h routeHandlers, rateLimiter handlers.MiddlewareLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(next http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.RateLimitMiddleware(rateLimiter, log, next))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(h.health.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(h.health.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(h.health.Liveness))

	// Orders
	mux.HandleFunc("/api/orders", applyAPI(handleOrdersRoute(h.orders)))
	mux.HandleFunc("/api/orders/", applyAPI(handleOrderRoute(h.orders)))

	// Baskets
	mux.HandleFunc("/api/baskets/", applyAPI(handleBasketRoute(h.baskets, h.orders)))

	// Catalog
	mux.HandleFunc("/api/products", applyAPI(h.products.CreateProduct))
	mux.HandleFunc("/api/products/", applyAPI(handleProductRoute(h.products)))

	// Currencies, deliveries, price matrices
	mux.HandleFunc("/api/currencies", applyAPI(h.reference.CreateCurrency))
	mux.HandleFunc("/api/currencies/", applyAPI(handleCurrencyRoute(h.reference)))
	mux.HandleFunc("/api/deliveries", applyAPI(h.reference.Deliveries))
	mux.HandleFunc("/api/deliveries/", applyAPI(h.reference.GetDelivery))
	mux.HandleFunc("/api/price-matrices", applyAPI(h.reference.CreateMatrix))
	mux.HandleFunc("/api/price-matrices/", applyAPI(h.reference.GetMatrix))

	// Users
	mux.HandleFunc("/api/users/", applyAPI(handleUserRoute(h.users)))

	// Promo codes
	mux.HandleFunc("/api/promo-codes", applyAPI(handlePromoCodesRoute(h.promo)))
	mux.HandleFunc("/api/promo-codes/generate", applyAPI(h.promo.GeneratePromoCodes))
	mux.HandleFunc("/api/promo-codes/", applyAPI(handlePromoCodeRoute(h.promo)))

	// Analytics
	mux.HandleFunc("/api/analytics/sales", applyAPI(h.analytics.SalesReport))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(h.rateLimit.Status))

	return mux
}

// handleOrdersRoute обрабатывает маршруты для коллекции заказов
func handleOrdersRoute(handler *handlers.OrderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListOrders(w, r)
		case http.MethodPost:
			handler.CreateOrder(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleOrderRoute разбирает действие над заказом по последнему сегменту пути
func handleOrderRoute(handler *handlers.OrderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		switch {
		case strings.HasSuffix(path, "/items"):
			handler.AddItem(w, r)
		case strings.HasSuffix(path, "/recalc"):
			handler.Recalc(w, r)
		case strings.HasSuffix(path, "/promo"):
			handler.ApplyPromoCode(w, r)
		case strings.HasSuffix(path, "/delivery"):
			handler.SetDelivery(w, r)
		case strings.HasSuffix(path, "/status"):
			handler.UpdateOrderStatus(w, r)
		case strings.HasSuffix(path, "/pay"):
			handler.Pay(w, r)
		case strings.HasSuffix(path, "/cancel"):
			handler.Cancel(w, r)
		default:
			handler.GetOrder(w, r)
		}
	}
}

// handleBasketRoute обслуживает корзину пользователя и оформление заказа из неё
func handleBasketRoute(basket *handlers.BasketHandler, orders *handlers.OrderHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		if strings.HasSuffix(path, "/checkout") {
			orders.Checkout(w, r)
			return
		}
		if strings.Contains(path, "/items/") {
			switch r.Method {
			case http.MethodPut:
				basket.UpdateItem(w, r)
			case http.MethodDelete:
				basket.RemoveItem(w, r)
			default:
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return
		}
		switch r.Method {
		case http.MethodGet:
			basket.GetBasket(w, r)
		case http.MethodPost:
			basket.AddItem(w, r)
		case http.MethodDelete:
			basket.Clear(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleProductRoute обрабатывает товар и его вложенные ресурсы
func handleProductRoute(handler *handlers.ProductHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		switch {
		case strings.HasSuffix(path, "/price"):
			handler.UpdatePrice(w, r)
		case strings.HasSuffix(path, "/stock"):
			handler.UpdateStock(w, r)
		case strings.HasSuffix(path, "/rating"):
			handler.Rating(w, r)
		case strings.HasSuffix(path, "/subscriptions"):
			handler.Subscriptions(w, r)
		default:
			handler.GetProduct(w, r)
		}
	}
}

func handleCurrencyRoute(handler *handlers.ReferenceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/rate") {
			handler.UpdateRate(w, r)
			return
		}
		handler.GetCurrency(w, r)
	}
}

func handleUserRoute(handler *handlers.UserHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		switch {
		case strings.HasSuffix(path, "/balance/history"):
			handler.BalanceHistory(w, r)
		case strings.HasSuffix(path, "/balance"):
			handler.GetBalance(w, r)
		default:
			writeErrorResponse(w, http.StatusNotFound, "Not found")
		}
	}
}

// handlePromoCodesRoute обрабатывает коллекцию промокодов
func handlePromoCodesRoute(handler *handlers.PromoHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListPromoCodes(w, r)
		case http.MethodPost:
			handler.CreatePromoCode(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handlePromoCodeRoute обрабатывает отдельный промокод
func handlePromoCodeRoute(handler *handlers.PromoHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/check") {
			handler.CheckPromoCode(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			handler.GetPromoCode(w, r)
		case http.MethodPut:
			handler.UpdatePromoCode(w, r)
		case http.MethodDelete:
			handler.DeletePromoCode(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// eventRegistrar регистрирует обработчики событий по типу
type eventRegistrar interface {
	RegisterHandler(eventType models.EventType, handler kafka.EventHandler)
}

// cacheInvalidator сбрасывает закешированный заказ
type cacheInvalidator interface {
	Delete(ctx context.Context, key string) error
}

// notificationDeliverer отправляет уведомление подписчикам
type notificationDeliverer interface {
	Deliver(ctx context.Context, event *models.Event) error
}

// registerEventHandlers регистрирует обработчики событий Kafka.
// События заказов сбрасывают кеш заказа на всех репликах, уведомления уходят подписчикам.
func registerEventHandlers(consumer eventRegistrar, cache cacheInvalidator, notifier notificationDeliverer, log *logger.Logger) {
	invalidate := func(ctx context.Context, event *models.Event) error {
		orderID, _ := event.Data["order_id"].(string)
		if orderID == "" {
			log.WithField("event_id", event.ID).Warn("Order event without order_id")
			return nil
		}
		if err := cache.Delete(ctx, redis.GenerateKey(redis.KeyPrefixOrder, orderID)); err != nil {
			log.WithError(err).WithField("order_id", orderID).Warn("Failed to invalidate order cache")
		}
		log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
			"order_id":   orderID,
		}).Debug("Order event processed")
		return nil
	}

	for _, eventType := range []models.EventType{
		models.EventTypeOrderCreated,
		models.EventTypeOrderStatusChanged,
		models.EventTypeOrderPaid,
		models.EventTypeOrderCancelled,
	} {
		consumer.RegisterHandler(eventType, invalidate)
	}

	consumer.RegisterHandler(models.EventTypePriceDropped, notifier.Deliver)
	consumer.RegisterHandler(models.EventTypeRestocked, notifier.Deliver)
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
