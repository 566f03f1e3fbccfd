package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const (
	currenciesPrefix = "/api/currencies/"
	deliveriesPrefix = "/api/deliveries/"
	matricesPrefix   = "/api/price-matrices/"
)

// ReferenceHandler обрабатывает справочники: валюты, способы доставки и матрицы цен
type ReferenceHandler struct {
	currencies CurrencyService
	pricing    PricingService
	log        *logger.Logger
}

// NewReferenceHandler создаёт обработчик справочников
func NewReferenceHandler(currencies CurrencyService, pricing PricingService, log *logger.Logger) *ReferenceHandler {
	return &ReferenceHandler{currencies: currencies, pricing: pricing, log: log}
}

// CreateCurrency создаёт валюту
func (h *ReferenceHandler) CreateCurrency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateCurrencyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	currency, err := h.currencies.CreateCurrency(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create currency")
		return
	}
	writeJSONResponse(w, http.StatusCreated, currency)
}

// GetCurrency возвращает валюту
func (h *ReferenceHandler) GetCurrency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, currenciesPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid currency ID")
		return
	}

	currency, err := h.currencies.GetCurrency(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get currency")
		return
	}
	writeJSONResponse(w, http.StatusOK, currency)
}

// UpdateRate меняет курс; созданные заказы сохраняют прежний курс
func (h *ReferenceHandler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, currenciesPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid currency ID")
		return
	}

	var req models.UpdateRateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	currency, err := h.currencies.UpdateRate(r.Context(), id, req.Rate)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update rate")
		return
	}
	writeJSONResponse(w, http.StatusOK, currency)
}

// CreateMatrix создаёт матрицу цен доставки
func (h *ReferenceHandler) CreateMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateMatrixRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	matrix, err := h.pricing.CreateMatrix(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create price matrix")
		return
	}
	writeJSONResponse(w, http.StatusCreated, matrix)
}

// GetMatrix возвращает матрицу с диапазонами
func (h *ReferenceHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, matricesPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid matrix ID")
		return
	}

	matrix, err := h.pricing.GetMatrix(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get price matrix")
		return
	}
	writeJSONResponse(w, http.StatusOK, matrix)
}

// Deliveries создаёт способ доставки (POST) или возвращает список (GET)
func (h *ReferenceHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		deliveries, err := h.pricing.ListDeliveries(r.Context())
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to list deliveries")
			return
		}
		if deliveries == nil {
			deliveries = []*models.Delivery{}
		}
		writeJSONResponse(w, http.StatusOK, deliveries)
	case http.MethodPost:
		var req models.CreateDeliveryRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		delivery, err := h.pricing.CreateDelivery(r.Context(), &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to create delivery")
			return
		}
		writeJSONResponse(w, http.StatusCreated, delivery)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// GetDelivery возвращает способ доставки
func (h *ReferenceHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, deliveriesPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid delivery ID")
		return
	}

	delivery, err := h.pricing.GetDelivery(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get delivery")
		return
	}
	writeJSONResponse(w, http.StatusOK, delivery)
}
