// handler.go — основной обработчик API Community Module.
// Регистрирует маршруты на chi-роутере и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/taskmasterai/community-module/internal/api/errors"
	"github.com/taskmasterai/community-module/internal/api/middleware"
	"github.com/taskmasterai/community-module/internal/service"
)

// maxBodyBytes — максимальный размер тела JSON-запроса.
const maxBodyBytes = 1 << 20

// Services — сервисы, используемые обработчиками.
type Services struct {
	Accounts   *service.AccountService
	Files      *service.FileService
	Unlocks    *service.UnlockRegistry
	Downloads  *service.DownloadRewardProcessor
	Reputation *service.ReputationAggregator
	Abuse      *service.AbuseMonitor
}

// APIHandler — основной обработчик API Community Module.
type APIHandler struct {
	health  *HealthHandler
	openapi http.Handler
	svc     Services
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// openapiHandler отдаёт встроенный OpenAPI документ (может быть nil).
func NewAPIHandler(health *HealthHandler, openapiHandler http.Handler, svc Services, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:  health,
		openapi: openapiHandler,
		svc:     svc,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterRoutes регистрирует все маршруты API.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
	if h.openapi != nil {
		r.Method(http.MethodGet, "/api/v1/openapi.json", h.openapi)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/prices", h.ListPrices)

		r.Get("/me", h.GetMe)
		r.Get("/me/unlocks", h.ListMyUnlocks)
		r.Post("/me/abuse-check", h.CheckMyAbuse)

		r.Post("/files", h.RegisterFile)
		r.Route("/files/{file_id}", func(r chi.Router) {
			r.Get("/", h.GetFile)
			r.Delete("/", h.DeleteFile)
			r.Get("/quote", h.QuoteUnlock)
			r.Post("/unlock", h.UnlockFile)
			r.Post("/downloads", h.RecordDownload)
			r.Post("/like", h.ToggleLike)
			r.Post("/dislike", h.ToggleDislike)
			r.Put("/rating", h.RateFile)
			r.Get("/reputation", h.GetReputation)
		})
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса в dst. При ошибке пишет ответ и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			apierrors.WriteError(w, http.StatusUnsupportedMediaType, apierrors.CodeUnsupportedMediaType,
				"Ожидается Content-Type: application/json")
			return false
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректное тело запроса: %v", err))
		return false
	}
	return true
}

// callerID возвращает sub аутентифицированного пользователя.
// При отсутствии пишет 401 и возвращает false.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return "", false
	}
	return subject, true
}

// fileIDParam извлекает и валидирует {file_id} как UUID.
func fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var fileID openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "file_id", chi.URLParam(r, "file_id"), &fileID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр file_id: %v", err))
		return "", false
	}
	return fileID.String(), true
}

// ensureCaller создаёт запись пользователя при первом обращении.
func (h *APIHandler) ensureCaller(w http.ResponseWriter, r *http.Request, userID string) bool {
	if _, _, err := h.svc.Accounts.EnsureUser(r.Context(), userID); err != nil {
		h.writeServiceError(w, r, err)
		return false
	}
	return true
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *service.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		apierrors.InsufficientFunds(w,
			fmt.Sprintf("Недостаточно токенов: есть %d, нужно %d", insufficient.Have, insufficient.Need),
			insufficient.Have, insufficient.Need)
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidRatingValue),
		errors.Is(err, service.ErrInvalidAmount):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrFileNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrUserNotFound):
		apierrors.NotFound(w, "Пользователь не найден")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrAlreadyUnlocked):
		apierrors.AlreadyUnlocked(w, "Файл уже разблокирован")
	case errors.Is(err, service.ErrOwnerCannotPurchase):
		apierrors.OwnerCannotPurchase(w, "Владелец не может разблокировать собственный файл")
	case errors.Is(err, service.ErrTransientConflict):
		apierrors.TransientConflict(w, "Параллельная операция изменила данные, повторите запрос")
	case errors.Is(err, context.Canceled):
		// Клиент закрыл соединение, ответ уже никто не прочитает
		h.logger.Debug("Запрос отменён клиентом", slog.String("path", r.URL.Path))
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
