package handlers

import (
	"net/http"

	"storefront/internal/apperror"
	"storefront/internal/logger"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindNotFound:    http.StatusNotFound,
	apperror.KindValidation:  http.StatusBadRequest,
	apperror.KindConflict:    http.StatusConflict,
	apperror.KindExhausted:   http.StatusServiceUnavailable,
	apperror.KindUnavailable: http.StatusServiceUnavailable,
}

// writeServiceError переводит ошибку сервиса в ответ. Текст внутренних ошибок клиенту не уходит.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	kind := apperror.KindOf(err)
	status, known := kindStatus[kind]
	if !known {
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
		return
	}

	if status == http.StatusServiceUnavailable && log != nil {
		log.WithError(err).WithField("kind", kind).Warn(internalMessage)
	}
	writeErrorResponse(w, status, err.Error())
}
