package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/google/uuid"
)

const basketsPrefix = "/api/baskets/"

// BasketHandler обрабатывает корзины пользователей
type BasketHandler struct {
	basketService BasketService
	log           *logger.Logger
}

// NewBasketHandler создаёт обработчик корзин
func NewBasketHandler(basketService BasketService, log *logger.Logger) *BasketHandler {
	return &BasketHandler{basketService: basketService, log: log}
}

// GetBasket возвращает корзину с итогом
func (h *BasketHandler) GetBasket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, err := extractUUIDFromPath(r.URL.Path, basketsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	basket, err := h.basketService.GetBasket(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get basket")
		return
	}
	writeJSONResponse(w, http.StatusOK, basket)
}

// AddItem добавляет товар в корзину
func (h *BasketHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, err := extractUUIDFromPath(r.URL.Path, basketsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req models.AddToBasketRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	basket, err := h.basketService.AddToBasket(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add basket item")
		return
	}
	writeJSONResponse(w, http.StatusOK, basket)
}

// UpdateItem меняет количество: PUT /api/baskets/{userID}/items/{productID}
func (h *BasketHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, productID, ok := basketItemPath(w, r)
	if !ok {
		return
	}

	var req models.UpdateBasketItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	basket, err := h.basketService.UpdateQuantity(r.Context(), userID, productID, req.Quantity)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update basket item")
		return
	}
	writeJSONResponse(w, http.StatusOK, basket)
}

// RemoveItem удаляет строку: DELETE /api/baskets/{userID}/items/{productID}
func (h *BasketHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, productID, ok := basketItemPath(w, r)
	if !ok {
		return
	}

	basket, err := h.basketService.RemoveItem(r.Context(), userID, productID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to remove basket item")
		return
	}
	writeJSONResponse(w, http.StatusOK, basket)
}

// Clear очищает корзину
func (h *BasketHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, err := extractUUIDFromPath(r.URL.Path, basketsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.basketService.Clear(r.Context(), userID); err != nil {
		writeServiceError(w, h.log, err, "Failed to clear basket")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Basket cleared"})
}

func basketItemPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, err := extractUUIDFromPath(r.URL.Path, basketsPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return uuid.Nil, uuid.Nil, false
	}
	productID, err := uuid.Parse(pathSegment(r.URL.Path, basketsPrefix, 2))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid product ID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, productID, true
}
