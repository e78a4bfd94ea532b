// Пакет errors — конструкторы стандартных ошибок API Community Module.
// Единый формат: {"error": {"code": "...", "message": "...", "details": {...}}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeAlreadyUnlocked      = "ALREADY_UNLOCKED"
	CodeOwnerCannotPurchase  = "OWNER_CANNOT_PURCHASE"
	CodeTransientConflict    = "TRANSIENT_CONFLICT"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeRouteNotFound        = "ROUTE_NOT_FOUND"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteErrorWithDetails(w, statusCode, code, message, nil)
}

// WriteErrorWithDetails — WriteError с дополнительными полями в details.
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// InsufficientFunds — 402 недостаточно токенов. details содержит have, need и missing.
func InsufficientFunds(w http.ResponseWriter, message string, have, need int64) {
	WriteErrorWithDetails(w, http.StatusPaymentRequired, CodeInsufficientFunds, message, map[string]any{
		"have":    have,
		"need":    need,
		"missing": need - have,
	})
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// AlreadyUnlocked — 409 файл уже разблокирован.
func AlreadyUnlocked(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeAlreadyUnlocked, message)
}

// OwnerCannotPurchase — 409 владелец пытается купить свой файл.
func OwnerCannotPurchase(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeOwnerCannotPurchase, message)
}

// TransientConflict — 503 конфликт параллельных транзакций, запрос можно повторить.
func TransientConflict(w http.ResponseWriter, message string) {
	w.Header().Set("Retry-After", "1")
	WriteError(w, http.StatusServiceUnavailable, CodeTransientConflict, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
