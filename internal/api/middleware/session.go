// session.go — проверка cookie сессии.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/api/errors"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/auth"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
)

// LoginPath — страница входа для redirect неаутентифицированных UI-запросов.
const LoginPath = "/login"

// Session помещает в контекст результат проверки cookie сессии.
// Запрос не отклоняется: решение принимают RequireUISession, RequireAPISession
// или сам обработчик (POST /upload отвечает журналом загрузки).
func Session(sm *auth.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "session_middleware"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := sm.Authenticate(r)
			if !ac.Authenticated {
				logger.Debug("Запрос без действующей сессии",
					slog.String("path", r.URL.Path),
					slog.String("reason", string(ac.Reason)),
					slog.String("remote_addr", r.RemoteAddr),
				)
			}
			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}

// RequireUISession — redirect на /login без действующей сессии.
func RequireUISession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).Authenticated {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPISession — 401 JSON без действующей сессии.
func RequireAPISession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).Authenticated {
			errors.Unauthorized(w, i18n.T(r.Context(), "error.unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
