package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const productsPrefix = "/api/products/"

// ProductHandler обрабатывает каталог: цены, остатки, оценки и подписки
type ProductHandler struct {
	catalog       CatalogService
	ratings       RatingService
	subscriptions SubscriptionService
	log           *logger.Logger
}

// NewProductHandler создаёт обработчик каталога
func NewProductHandler(catalog CatalogService, ratings RatingService, subscriptions SubscriptionService, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		catalog:       catalog,
		ratings:       ratings,
		subscriptions: subscriptions,
		log:           log,
	}
}

// CreateProduct создаёт товар
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateProductRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create product")
		return
	}
	writeJSONResponse(w, http.StatusCreated, product)
}

// GetProduct возвращает товар
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get product")
		return
	}
	writeJSONResponse(w, http.StatusOK, product)
}

// UpdatePrice меняет цену товара
func (h *ProductHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req models.UpdatePriceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.UpdatePrice(r.Context(), id, req.Price)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update price")
		return
	}
	writeJSONResponse(w, http.StatusOK, product)
}

// UpdateStock меняет остаток товара
func (h *ProductHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req models.UpdateStockRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.UpdateStock(r.Context(), id, req.Stock)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update stock")
		return
	}
	writeJSONResponse(w, http.StatusOK, product)
}

// Rating возвращает оценку (GET) или сохраняет оценку пользователя (POST)
func (h *ProductHandler) Rating(w http.ResponseWriter, r *http.Request) {
	id, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rating, err := h.ratings.GetRating(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to get rating")
			return
		}
		writeJSONResponse(w, http.StatusOK, rating)
	case http.MethodPost:
		var req models.RateProductRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		rating, err := h.ratings.RateProduct(r.Context(), id, req.UserID, req.Rating)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to rate product")
			return
		}
		writeJSONResponse(w, http.StatusOK, rating)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// Subscriptions подписывает (POST) или отписывает (DELETE) пользователя
func (h *ProductHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, productsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req models.SubscriptionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.subscriptions.Unsubscribe(r.Context(), req.UserID, id, req.Kind); err != nil {
			writeServiceError(w, h.log, err, "Failed to unsubscribe")
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Subscription removed"})
		return
	}

	sub, err := h.subscriptions.Subscribe(r.Context(), req.UserID, id, req.Kind)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to subscribe")
		return
	}
	writeJSONResponse(w, http.StatusCreated, sub)
}
