// Пакет auth — аутентификация по общему паролю.
// Сессия — cookie со значением hex(SHA-256(пароль)); состояние на сервере не хранится.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
)

// Имя cookie сессии.
const SessionCookieName = "mkt-session"

// Максимальный возраст cookie сессии (8 часов).
const SessionCookieMaxAge = 8 * 60 * 60

var (
	// ErrNotConfigured — пароль не задан в окружении процесса.
	ErrNotConfigured = errors.New("пароль приложения не настроен")
	// ErrEmptyPassword — пароль не введён.
	ErrEmptyPassword = errors.New("пароль не указан")
	// ErrWrongPassword — пароль не совпадает.
	ErrWrongPassword = errors.New("неверный пароль")
)

// Reason — причина отказа в аутентификации.
type Reason string

const (
	// ReasonNone — запрос аутентифицирован.
	ReasonNone Reason = ""
	// ReasonNotConfigured — пароль приложения не задан.
	ReasonNotConfigured Reason = "not_configured"
	// ReasonMissing — cookie сессии нет.
	ReasonMissing Reason = "missing"
	// ReasonMismatch — cookie есть, но значение не совпадает (пароль сменился или cookie подделан).
	ReasonMismatch Reason = "mismatch"
)

// AuthContext — результат проверки сессии одного запроса.
// Вычисляется из cookie и конфигурации и передаётся дальше явно.
type AuthContext struct {
	Authenticated bool
	Reason        Reason
}

// ExpectedSessionValue возвращает значение cookie для пароля: hex(SHA-256).
// Для пустого пароля возвращает пустую строку.
func ExpectedSessionValue(password string) string {
	if password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// SessionManager — проверка пароля и cookie сессии.
type SessionManager struct {
	// password — APP_LOGIN_PASSWORD (или APP_PASSWORD)
	password string
	// expected — ожидаемое значение cookie
	expected string
	// secure — Secure flag для cookie (true для HTTPS).
	secure bool
}

// NewSessionManager создаёт менеджер сессий. Пустой password означает,
// что вход невозможен: все запросы считаются неаутентифицированными.
func NewSessionManager(password string, secure bool) *SessionManager {
	return &SessionManager{
		password: password,
		expected: ExpectedSessionValue(password),
		secure:   secure,
	}
}

// Configured возвращает true, если пароль приложения задан.
func (sm *SessionManager) Configured() bool {
	return sm.password != ""
}

// CheckPassword проверяет введённый пароль.
func (sm *SessionManager) CheckPassword(password string) error {
	if !sm.Configured() {
		return ErrNotConfigured
	}
	if password == "" {
		return ErrEmptyPassword
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(sm.password)) != 1 {
		return ErrWrongPassword
	}
	return nil
}

// Authenticate проверяет cookie сессии запроса.
func (sm *SessionManager) Authenticate(r *http.Request) AuthContext {
	if !sm.Configured() {
		return AuthContext{Reason: ReasonNotConfigured}
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return AuthContext{Reason: ReasonMissing}
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(sm.expected)) != 1 {
		return AuthContext{Reason: ReasonMismatch}
	}
	return AuthContext{Authenticated: true}
}

// SetSessionCookie устанавливает cookie сессии в ответ.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sm.expected,
		Path:     "/",
		MaxAge:   SessionCookieMaxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет cookie сессии (logout).
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type contextKey struct{}

// WithContext помещает AuthContext в контекст запроса.
func WithContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext извлекает AuthContext из контекста.
// Без значения в контексте запрос считается неаутентифицированным.
func FromContext(ctx context.Context) AuthContext {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	if !ok {
		return AuthContext{Reason: ReasonMissing}
	}
	return ac
}
