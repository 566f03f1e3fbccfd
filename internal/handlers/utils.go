package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// заказ в кеше живёт дольше, чем между двумя пересчётами
	defaultCacheTTL = 15 * time.Minute

	defaultLimit = 50
	maxLimit     = 200
)

var validate = validator.New()

// ErrorResponse тело любого ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// заголовок уже ушёл, остаётся только оборвать тело
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: http.StatusText(statusCode), Message: message})
}

// decodeAndValidate читает JSON тело и проверяет теги validate.
// Текст ошибки безопасно отдавать клиенту.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag())
		}
		return err
	}
	return nil
}

// extractUUIDFromPath разбирает первый сегмент после prefix как UUID, хвост вида /pay игнорируется
func extractUUIDFromPath(path, prefix string) (uuid.UUID, error) {
	if !strings.HasPrefix(path, prefix) {
		return uuid.Nil, fmt.Errorf("path %q is outside %s", path, prefix)
	}
	raw := pathSegment(path, prefix, 0)
	if raw == "" {
		return uuid.Nil, errors.New("id is missing in path")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed id %q: %w", raw, err)
	}
	return id, nil
}

// pathSegment возвращает сегмент пути после префикса по индексу
func pathSegment(path, prefix string, index int) string {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, prefix), "/"), "/")
	if index < 0 || index >= len(parts) {
		return ""
	}
	return parts[index]
}

// parsePaging разбирает limit/offset; некорректные значения заменяются умолчаниями
func parsePaging(r *http.Request) (int, int) {
	limit := defaultLimit
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxLimit {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
