package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// logEntry — поля записи журнала запросов.
type logEntry struct {
	Level  string `json:"level"`
	Method string `json:"method"`
	Route  string `json:"route"`
	Status int    `json:"status"`
	Bytes  int64  `json:"bytes"`
	UserID string `json:"user_id"`
}

func newCapturingLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func lastEntry(t *testing.T, buf *bytes.Buffer) logEntry {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var e logEntry
	if err := json.Unmarshal(lines[len(lines)-1], &e); err != nil {
		t.Fatalf("ошибка разбора записи журнала %q: %v", lines[len(lines)-1], err)
	}
	return e
}

func TestRequestLogger_RouteAndUser(t *testing.T) {
	const fileID = "0b7e5f5e-2f3c-4b8e-9d1a-6c2e1f0a9b3d"

	tests := []struct {
		name       string
		path       string
		user       string
		wantRoute  string
		wantStatus int
		wantLevel  string
		wantUser   string
	}{
		{"аутентифицированный запрос", "/api/v1/files/" + fileID + "/unlock", "alice",
			"/api/v1/files/{file_id}/unlock", http.StatusCreated, "INFO", "alice"},
		{"без пользователя", "/api/v1/files/" + fileID + "/unlock", "",
			"/api/v1/files/{file_id}/unlock", http.StatusUnauthorized, "WARN", ""},
		{"ошибка сервера", "/api/v1/broken", "bob",
			"/api/v1/broken", http.StatusInternalServerError, "ERROR", "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := chi.NewRouter()
			r.Use(RequestLogger(newCapturingLogger(&buf)))
			r.Use(HeaderAuth(nil))
			r.Post("/api/v1/files/{file_id}/unlock", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte("{}"))
			})
			r.Post("/api/v1/broken", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.user != "" {
				req.Header.Set(HeaderUserID, tt.user)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			e := lastEntry(t, &buf)
			if e.Route != tt.wantRoute {
				t.Errorf("route = %q, ожидался %q", e.Route, tt.wantRoute)
			}
			if e.Status != tt.wantStatus {
				t.Errorf("status = %d, ожидался %d", e.Status, tt.wantStatus)
			}
			if e.Level != tt.wantLevel {
				t.Errorf("level = %q, ожидался %q", e.Level, tt.wantLevel)
			}
			if e.UserID != tt.wantUser {
				t.Errorf("user_id = %q, ожидался %q", e.UserID, tt.wantUser)
			}
			if e.Method != http.MethodPost {
				t.Errorf("method = %q, ожидался POST", e.Method)
			}
		})
	}
}

func TestRequestLogger_WithoutRouter(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(newCapturingLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("нет"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/0b7e5f5e-2f3c-4b8e-9d1a-6c2e1f0a9b3d", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус = %d, ожидался 404", rec.Code)
	}
	e := lastEntry(t, &buf)
	if e.Route != "/api/v1/files/{file_id}" {
		t.Errorf("route = %q, ожидался шаблон с {file_id}", e.Route)
	}
	if e.Bytes != int64(len("нет")) {
		t.Errorf("bytes = %d, ожидалось %d", e.Bytes, len("нет"))
	}
	if e.UserID != "" {
		t.Errorf("user_id = %q, ожидался пустой", e.UserID)
	}
}
