// logging.go — журнал HTTP-запросов Community Module через slog.
// Пишет шаблон маршрута chi вместо сырого пути (без UUID файла)
// и user_id, если запрос прошёл аутентификацию.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// requestRecord — данные запроса, которые становятся известны только
// внутри цепочки (после аутентификации).
type requestRecord struct {
	userID string
}

type requestRecordKey struct{}

// recordUser запоминает аутентифицированного пользователя для журнала.
func recordUser(ctx context.Context, userID string) {
	if rec, ok := ctx.Value(requestRecordKey{}).(*requestRecord); ok {
		rec.userID = userID
	}
}

// statusRecorder перехватывает статус и размер ответа.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// routeLabel возвращает шаблон маршрута chi ("/api/v1/files/{file_id}/unlock").
// Вне chi или для несуществующего маршрута — путь с заменой UUID.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// logLevel: 5xx — ERROR, 401/403 и прочие 4xx — WARN, остальное — INFO.
func logLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware журнала запросов.
// Должен стоять перед middleware аутентификации, чтобы получить user_id.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			record := &requestRecord{}
			r = r.WithContext(context.WithValue(r.Context(), requestRecordKey{}, record))
			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("route", routeLabel(r)),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", sw.bytes),
			}
			if record.userID != "" {
				attrs = append(attrs, slog.String("user_id", record.userID))
			}
			logger.LogAttrs(r.Context(), logLevel(sw.status), "HTTP запрос", attrs...)
		})
	}
}
