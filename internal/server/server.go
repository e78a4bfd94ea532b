// Пакет server — HTTP-сервер Community Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/taskmasterai/community-module/internal/api/errors"
	"github.com/taskmasterai/community-module/internal/api/middleware"
	"github.com/taskmasterai/community-module/internal/config"
)

// publicPrefixes — пути, доступные без аутентификации.
// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
var publicPrefixes = []string{"/health/", "/metrics", "/api/v1/openapi.json"}

// RouteRegistrar регистрирует маршруты API на роутере.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server — HTTP-сервер Community Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth — middleware аутентификации (nil — без auth, только для тестов).
func New(cfg *config.Config, logger *slog.Logger, routes RouteRegistrar, auth func(http.Handler) http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, routes, auth),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер: глобальные middleware, аутентификация
// с исключениями для публичных endpoints и JSON-ответы 404/405.
func NewRouter(logger *slog.Logger, routes RouteRegistrar, auth func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	if auth != nil {
		router.Use(authWithExclusions(auth, publicPrefixes...))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.CodeRouteNotFound,
			fmt.Sprintf("Маршрут %s %s не найден", r.Method, r.URL.Path))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeMethodNotAllowed,
			fmt.Sprintf("Метод %s не поддерживается для %s", r.Method, r.URL.Path))
	})

	routes.RegisterRoutes(router)
	return router
}

// authWithExclusions оборачивает middleware аутентификации, пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без проверки.
func authWithExclusions(auth func(http.Handler) http.Handler, excludePrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := auth(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
