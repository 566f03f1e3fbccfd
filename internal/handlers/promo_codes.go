package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const promoCodesPrefix = "/api/promo-codes/"

// PromoHandler обрабатывает промокоды.
type PromoHandler struct {
	promoService PromoService
	log          *logger.Logger
}

// NewPromoHandler создаёт новый обработчик промокодов.
func NewPromoHandler(promoService PromoService, log *logger.Logger) *PromoHandler {
	return &PromoHandler{
		promoService: promoService,
		log:          log,
	}
}

// CreatePromoCode создаёт промокод.
func (h *PromoHandler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreatePromoCodeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeErrorResponse(w, http.StatusBadRequest, "promo code is required")
		return
	}

	promo, err := h.promoService.CreatePromoCode(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create promo code")
		return
	}

	writeJSONResponse(w, http.StatusCreated, promo)
}

// GeneratePromoCodes создаёт пачку случайных кодов с общими параметрами.
func (h *PromoHandler) GeneratePromoCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.GeneratePromoCodesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	promos, err := h.promoService.GeneratePromoCodes(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to generate promo codes")
		return
	}

	h.log.WithField("count", len(promos)).Info("Promo codes generated")
	writeJSONResponse(w, http.StatusCreated, promos)
}

// ListPromoCodes возвращает список промокодов.
func (h *PromoHandler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := parsePaging(r)
	promos, err := h.promoService.ListPromoCodes(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list promo codes")
		return
	}
	if promos == nil {
		promos = []*models.PromoCode{}
	}

	writeJSONResponse(w, http.StatusOK, promos)
}

// GetPromoCode возвращает промокод по коду.
func (h *PromoHandler) GetPromoCode(w http.ResponseWriter, r *http.Request) {
	code, ok := promoCodeFromRequest(w, r, http.MethodGet)
	if !ok {
		return
	}

	promo, err := h.promoService.GetPromoCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get promo code")
		return
	}

	writeJSONResponse(w, http.StatusOK, promo)
}

// CheckPromoCode отвечает 200, если код действует сегодня.
func (h *PromoHandler) CheckPromoCode(w http.ResponseWriter, r *http.Request) {
	code, ok := promoCodeFromRequest(w, r, http.MethodGet)
	if !ok {
		return
	}

	if err := h.promoService.CheckPromoCode(r.Context(), code); err != nil {
		writeServiceError(w, h.log, err, "Failed to check promo code")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"code": code, "valid": true})
}

// UpdatePromoCode обновляет промокод.
func (h *PromoHandler) UpdatePromoCode(w http.ResponseWriter, r *http.Request) {
	code, ok := promoCodeFromRequest(w, r, http.MethodPut)
	if !ok {
		return
	}

	var req models.UpdatePromoCodeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	promo, err := h.promoService.UpdatePromoCode(r.Context(), code, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update promo code")
		return
	}

	writeJSONResponse(w, http.StatusOK, promo)
}

// DeletePromoCode удаляет промокод.
func (h *PromoHandler) DeletePromoCode(w http.ResponseWriter, r *http.Request) {
	code, ok := promoCodeFromRequest(w, r, http.MethodDelete)
	if !ok {
		return
	}

	if err := h.promoService.DeletePromoCode(r.Context(), code); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete promo code")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Promo code deleted"})
}

// promoCodeFromRequest проверяет метод и достаёт код из пути. При ошибке ответ уже записан.
func promoCodeFromRequest(w http.ResponseWriter, r *http.Request, method string) (string, bool) {
	if r.Method != method {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return "", false
	}
	code, err := extractPromoCodeFromPath(r.URL.Path)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return code, true
}

// extractPromoCodeFromPath берёт первый сегмент после /api/promo-codes/. Коды регистрозависимы.
func extractPromoCodeFromPath(path string) (string, error) {
	if !strings.HasPrefix(path, promoCodesPrefix) {
		return "", fmt.Errorf("invalid path format")
	}
	code := strings.TrimSpace(pathSegment(path, promoCodesPrefix, 0))
	if code == "" {
		return "", fmt.Errorf("promo code is required")
	}
	return code, nil
}
