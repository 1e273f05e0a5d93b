// Пакет server — HTTP-сервер mkt-uploader с graceful shutdown.
// Без TLS — TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandlers "github.com/bigkaa/goartstore/mkt-uploader/internal/api/handlers"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/api/middleware"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/auth"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/config"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
	uihandlers "github.com/bigkaa/goartstore/mkt-uploader/internal/ui/handlers"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/ui/pages"
)

// Routes — обработчики и зависимости маршрутизатора.
type Routes struct {
	Sessions    *auth.SessionManager
	Bundle      *i18n.Bundle
	DefaultLang string

	Upload   *apihandlers.UploadHandler
	Datasets *apihandlers.DatasetsHandler
	Health   *apihandlers.HealthHandler

	Auth   *uihandlers.AuthHandler
	Picker *uihandlers.PickerHandler
}

// NewRouter собирает маршруты.
// middlewares (metrics, logging) применяются ко всем запросам в порядке переданного среза.
//
// Health и /metrics не требуют сессии. POST /upload проверяет сессию сам
// и отвечает журналом загрузки, а не redirect.
func NewRouter(rt Routes, logger *slog.Logger, middlewares ...func(http.Handler) http.Handler) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(i18n.Middleware(rt.Bundle, rt.DefaultLang))
	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.NotFound(apihandlers.NotFound)
	router.MethodNotAllowed(apihandlers.MethodNotAllowed)

	router.Get("/health/live", rt.Health.HealthLive)
	router.Get("/health/ready", rt.Health.HealthReady)
	router.Get("/metrics", rt.Health.GetMetrics)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(pages.FileSystem())))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Session(rt.Sessions, logger))

		r.Get("/login", rt.Auth.HandleLoginPage)
		r.Post("/login", rt.Auth.HandleLogin)
		r.Post("/logout", rt.Auth.HandleLogout)
		r.Post("/lang", uihandlers.HandleSetLanguage(rt.DefaultLang))

		r.Post("/upload", rt.Upload.Upload)

		r.With(middleware.RequireUISession).Get("/", rt.Picker.HandleIndex)
		r.With(middleware.RequireAPISession).Get("/api/datasets", rt.Datasets.ListDatasets)
	})

	return router
}

// Server — HTTP-сервер mkt-uploader.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер поверх готового маршрутизатора.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown: текущие загрузки
// дожидаются завершения load job в пределах ShutdownTimeout.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
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
