// Пакет handlers — HTTP-обработчики страниц консоли.
// auth.go — вход по общему паролю и выход.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/auth"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/ui/pages"
)

// AuthHandler — обработчики входа и выхода.
type AuthHandler struct {
	sessionManager *auth.SessionManager
	logger         *slog.Logger
}

// NewAuthHandler создаёт новый AuthHandler.
func NewAuthHandler(sessionManager *auth.SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		sessionManager: sessionManager,
		logger:         logger.With(slog.String("component", "ui_auth")),
	}
}

// HandleLoginPage — GET /login.
// С действующей сессией перенаправляет на страницу выбора набора данных.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.FromContext(r.Context()).Authenticated {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	data := pages.LoginData{}
	if !h.sessionManager.Configured() {
		data.ErrorKey = "login.error_not_configured"
	}
	h.render(w, r, http.StatusOK, data)
}

// HandleLogin — POST /login.
// Проверяет пароль, выдаёт cookie сессии и перенаправляет на /.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pages.LoginData{ErrorKey: "login.error_empty"})
		return
	}

	err := h.sessionManager.CheckPassword(r.PostFormValue("password"))
	switch {
	case err == nil:
		h.sessionManager.SetSessionCookie(w)
		h.logger.Info("Вход выполнен", slog.String("remote_addr", r.RemoteAddr))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, auth.ErrNotConfigured):
		h.logger.Error("Пароль приложения не задан (APP_LOGIN_PASSWORD)")
		h.render(w, r, http.StatusServiceUnavailable, pages.LoginData{ErrorKey: "login.error_not_configured"})
	case errors.Is(err, auth.ErrEmptyPassword):
		h.render(w, r, http.StatusBadRequest, pages.LoginData{ErrorKey: "login.error_empty"})
	default:
		h.logger.Warn("Неверный пароль", slog.String("remote_addr", r.RemoteAddr))
		h.render(w, r, http.StatusUnauthorized, pages.LoginData{ErrorKey: "login.error_wrong"})
	}
}

// HandleLogout — POST /logout. Удаляет cookie сессии.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, data pages.LoginData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.Login(data).Render(r.Context(), w); err != nil {
		h.logger.Error("Ошибка рендеринга страницы входа", slog.String("error", err.Error()))
	}
}
