// Пакет errors - единый формат ошибок HTTP API: {"error": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Сообщения, не раскрывающие деталей (наличие аккаунта, текущую роль).
const (
	MsgUnauthorized = "Unauthorized"
	MsgForbidden    = "Forbidden"
	MsgInternal     = "Внутренняя ошибка сервера"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteError записывает ответ ошибки с указанным статусом.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}

// ValidationError - 400 некорректные входные данные или недопустимый переход.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// Unauthorized - 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, MsgUnauthorized)
}

// Forbidden - 403 недостаточно прав.
func Forbidden(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, MsgForbidden)
}

// NotFound - 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// Conflict - 409 запись используется (нарушение ссылочной целостности).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

// IDPUnavailable - 502 Identity Provider (Keycloak) недоступен.
func IDPUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, message)
}

// InternalError - 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, MsgInternal)
}
