// language.go — обработчик переключения языка UI и журнала загрузки.
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
)

// HandleSetLanguage возвращает обработчик POST /lang.
// Устанавливает cookie "lang" и перенаправляет на исходную страницу.
// Неподдерживаемый язык заменяется на defaultLang.
func HandleSetLanguage(defaultLang string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang := r.FormValue("lang")
		if !i18n.IsSupported(lang) {
			lang = defaultLang
		}

		http.SetCookie(w, &http.Cookie{
			Name:     i18n.LangCookieName,
			Value:    lang,
			Path:     "/",
			MaxAge:   365 * 24 * 60 * 60,
			HttpOnly: false, // JS может читать для UI-логики
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(365 * 24 * time.Hour),
		})

		http.Redirect(w, r, backTo(r.Header.Get("Referer")), http.StatusSeeOther)
	}
}

// backTo возвращает путь из Referer; внешние адреса не используются.
func backTo(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Path == "" || u.Path[0] != '/' || (len(u.Path) > 1 && u.Path[1] == '/') {
		return "/"
	}
	return u.Path
}
