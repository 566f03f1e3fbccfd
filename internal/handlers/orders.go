package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"

	"github.com/google/uuid"
)

const ordersPrefix = "/api/orders/"

// OrderHandler представляет обработчик заказов
type OrderHandler struct {
	orderService OrderService
	producer     EventProducer
	cache        OrderCache
	log          *logger.Logger
}

// NewOrderHandler создает новый обработчик заказов. producer и cache необязательны.
func NewOrderHandler(orderService OrderService, producer EventProducer, cache OrderCache, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		producer:     producer,
		cache:        cache,
		log:          log,
	}
}

// CreateOrder создает пустой заказ
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create order")
		return
	}

	h.publishCreated(order)
	h.cacheOrder(r, order)

	writeJSONResponse(w, http.StatusCreated, order)
}

// Checkout оформляет заказ из корзины пользователя: POST /api/baskets/{userID}/checkout
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, err := extractUUIDFromPath(r.URL.Path, basketsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req models.CheckoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orderService.Checkout(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to checkout basket")
		return
	}

	h.publishCreated(order)
	h.cacheOrder(r, order)

	writeJSONResponse(w, http.StatusCreated, order)
}

// GetOrder получает заказ по ID; сначала смотрит в кеш
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	if h.cache != nil {
		var cached models.Order
		if err := h.cache.Get(r.Context(), orderCacheKey(orderID), &cached); err == nil {
			h.log.WithField("order_id", orderID).Debug("Order retrieved from cache")
			writeJSONResponse(w, http.StatusOK, &cached)
			return
		}
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}

	h.cacheOrder(r, order)
	writeJSONResponse(w, http.StatusOK, order)
}

// ListOrders получает список заказов с фильтрацией по статусу и пользователю
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	filter := models.OrderFilter{}
	filter.Limit, filter.Offset = parsePaging(r)

	if statusStr := query.Get("status"); statusStr != "" {
		status := models.OrderStatus(statusStr)
		if !status.Valid() {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = &status
	}

	if userIDStr := query.Get("user_id"); userIDStr != "" {
		id, err := uuid.Parse(userIDStr)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		filter.UserID = &id
	}

	orders, err := h.orderService.ListOrders(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get orders")
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	writeJSONResponse(w, http.StatusOK, orders)
}

// AddItem добавляет позицию или правит существующую
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.AddLineItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ItemID == nil && req.ProductID == uuid.Nil {
		writeErrorResponse(w, http.StatusBadRequest, "product_id or item_id is required")
		return
	}

	order, err := h.orderService.AddItem(r.Context(), orderID, &req)
	h.respondMutation(w, r, orderID, order, err, "Failed to add order item")
}

// Recalc пересчитывает суммы заказа
func (h *OrderHandler) Recalc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.orderService.Recalc(r.Context(), orderID)
	h.respondMutation(w, r, orderID, order, err, "Failed to recalculate order")
}

// ApplyPromoCode привязывает промокод к заказу
func (h *OrderHandler) ApplyPromoCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.ApplyPromoRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orderService.ApplyPromoCode(r.Context(), orderID, req.Code)
	h.respondMutation(w, r, orderID, order, err, "Failed to apply promo code")
}

// SetDelivery выбирает способ доставки
func (h *OrderHandler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.SetDeliveryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orderService.SetDelivery(r.Context(), orderID, req.DeliveryID)
	h.respondMutation(w, r, orderID, order, err, "Failed to set delivery")
}

// UpdateOrderStatus выполняет ручной переход статуса
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// Текущий статус нужен для события
	current, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}
	oldStatus := current.Status

	order, err := h.orderService.ChangeStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update order status")
		return
	}

	h.invalidate(r, orderID)
	if h.producer != nil && oldStatus != order.Status {
		if err := h.producer.PublishOrderStatusChanged(orderID, oldStatus, order.Status); err != nil {
			h.log.WithError(err).Error("Failed to publish order status changed event")
		}
		if order.Status == models.OrderStatusCancelled {
			h.publishCancelled(order)
		}
	}

	h.log.WithField("order_id", orderID).WithField("new_status", order.Status).Info("Order status updated")
	writeJSONResponse(w, http.StatusOK, order)
}

// Pay оплачивает заказ с баланса. Нехватка средств возвращается в теле с paid=false.
func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	result, err := h.orderService.Pay(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to pay order")
		return
	}

	if result.Paid {
		h.invalidate(r, orderID)
		if h.producer != nil {
			if err := h.producer.PublishOrderPaid(result.Order); err != nil {
				h.log.WithError(err).Error("Failed to publish order paid event")
			}
		}
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// Cancel отменяет заказ с возвратом средств за оплаченный
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, ordersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.orderService.Cancel(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to cancel order")
		return
	}

	h.invalidate(r, orderID)
	h.publishCancelled(order)

	writeJSONResponse(w, http.StatusOK, order)
}

func (h *OrderHandler) respondMutation(w http.ResponseWriter, r *http.Request, orderID uuid.UUID, order *models.Order, err error, internalMessage string) {
	if err != nil {
		writeServiceError(w, h.log, err, internalMessage)
		return
	}
	h.invalidate(r, orderID)
	writeJSONResponse(w, http.StatusOK, order)
}

func (h *OrderHandler) publishCreated(order *models.Order) {
	if h.producer == nil {
		return
	}
	// Заказ уже создан, ошибка публикации клиенту не возвращается
	if err := h.producer.PublishOrderCreated(order); err != nil {
		h.log.WithError(err).Error("Failed to publish order created event")
	}
}

func (h *OrderHandler) publishCancelled(order *models.Order) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishOrderCancelled(order); err != nil {
		h.log.WithError(err).Error("Failed to publish order cancelled event")
	}
}

func (h *OrderHandler) cacheOrder(r *http.Request, order *models.Order) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(r.Context(), orderCacheKey(order.ID), order, defaultCacheTTL); err != nil {
		h.log.WithError(err).Error("Failed to cache order")
	}
}

func (h *OrderHandler) invalidate(r *http.Request, orderID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(r.Context(), orderCacheKey(orderID)); err != nil {
		h.log.WithError(err).Error("Failed to invalidate order cache")
	}
}

func orderCacheKey(orderID uuid.UUID) string {
	return redis.GenerateKey(redis.KeyPrefixOrder, orderID.String())
}
