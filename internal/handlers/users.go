package handlers

import (
	"net/http"

	"storefront/internal/logger"
	"storefront/internal/models"
)

const usersPrefix = "/api/users/"

// UserHandler отдаёт баланс и журнал его изменений
type UserHandler struct {
	users UserService
	log   *logger.Logger
}

// NewUserHandler создаёт обработчик пользователей
func NewUserHandler(users UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// BalanceResponse баланс пользователя
type BalanceResponse struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

// GetBalance GET /api/users/{id}/balance
func (h *UserHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, err := extractUUIDFromPath(r.URL.Path, usersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	balance, err := h.users.GetBalance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get balance")
		return
	}
	writeJSONResponse(w, http.StatusOK, BalanceResponse{UserID: userID.String(), Balance: balance})
}

// BalanceHistory GET /api/users/{id}/balance/history
func (h *UserHandler) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, err := extractUUIDFromPath(r.URL.Path, usersPrefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	limit, offset := parsePaging(r)
	changes, err := h.users.BalanceHistory(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get balance history")
		return
	}
	if changes == nil {
		changes = []*models.BalanceChange{}
	}
	writeJSONResponse(w, http.StatusOK, changes)
}
