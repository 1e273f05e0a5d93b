// Пакет i18n — переводы журнала загрузки, сообщений об ошибках и страниц UI.
// Поддерживаемые языки: 한국어 (ko), English (en).
// Язык определяется middleware: cookie "lang" → Accept-Language → язык по умолчанию.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
)

// Поддерживаемые языки. Первый тег — fallback matcher'а.
var (
	SupportedLanguages = []language.Tag{
		language.Korean,
		language.English,
	}

	// LanguageCodes — коды SupportedLanguages в том же порядке.
	LanguageCodes = []string{"ko", "en"}

	matcher = language.NewMatcher(SupportedLanguages)
)

// IsSupported проверяет код языка.
func IsSupported(lang string) bool {
	return lang == "ko" || lang == "en"
}

type contextKey string

const (
	contextKeyLang   contextKey = "i18n_lang"
	contextKeyBundle contextKey = "i18n_bundle"
)

// Bundle — каталоги переводов всех языков.
// Загружается один раз при старте, после этого только читается.
type Bundle struct {
	mu       sync.RWMutex
	catalogs map[string]map[string]string // lang → key → translation
	fallback string
	logger   *slog.Logger
}

// NewBundle создаёт пустой Bundle. fallback — язык, в котором ищется
// отсутствующий в запрошенном каталоге ключ.
func NewBundle(fallback string, logger *slog.Logger) *Bundle {
	return &Bundle{
		catalogs: make(map[string]map[string]string),
		fallback: fallback,
		logger:   logger,
	}
}

// LoadMessages загружает плоский JSON-каталог {"key": "translation"} для языка.
func (b *Bundle) LoadMessages(lang string, data []byte) error {
	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("i18n: ошибка парсинга каталога %s: %w", lang, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogs[lang] = messages

	if b.logger != nil {
		b.logger.Debug("i18n каталог загружен",
			slog.String("lang", lang),
			slog.Int("keys", len(messages)),
		)
	}
	return nil
}

// Translate возвращает перевод ключа. Ключ, которого нет ни в одном каталоге,
// возвращается как есть.
func (b *Bundle) Translate(lang, key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if msg, ok := b.catalogs[lang][key]; ok {
		return msg
	}
	if lang != b.fallback {
		if msg, ok := b.catalogs[b.fallback][key]; ok {
			return msg
		}
	}
	return key
}

// Translatef — Translate с подстановкой аргументов.
func (b *Bundle) Translatef(lang, key string, args ...any) string {
	template := b.Translate(lang, key)
	if len(args) == 0 {
		return template
	}
	return formatFunc(template, args...)
}

// Keys возвращает ключи каталога языка.
func (b *Bundle) Keys(lang string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.catalogs[lang]))
	for k := range b.catalogs[lang] {
		keys = append(keys, k)
	}
	return keys
}

// Translator — переводчик, привязанный к языку одного запроса.
type Translator struct {
	bundle *Bundle
	lang   string
}

// For возвращает Translator для языка.
func (b *Bundle) For(lang string) Translator {
	return Translator{bundle: b, lang: lang}
}

// Lang возвращает язык переводчика.
func (t Translator) Lang() string {
	return t.lang
}

// T возвращает перевод ключа.
func (t Translator) T(key string) string {
	if t.bundle == nil {
		return key
	}
	return t.bundle.Translate(t.lang, key)
}

// Tf возвращает перевод ключа с аргументами.
func (t Translator) Tf(key string, args ...any) string {
	if t.bundle == nil {
		return formatFunc(key, args...)
	}
	return t.bundle.Translatef(t.lang, key, args...)
}

// --- Контекст запроса ---

// WithLang помещает язык в контекст.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, contextKeyLang, lang)
}

// WithBundle помещает Bundle в контекст.
func WithBundle(ctx context.Context, b *Bundle) context.Context {
	return context.WithValue(ctx, contextKeyBundle, b)
}

// LangFromContext извлекает язык из контекста. Default: "ko".
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(contextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return "ko"
}

// FromContext возвращает Translator для языка и Bundle из контекста.
// Без Bundle переводчик возвращает ключи.
func FromContext(ctx context.Context) Translator {
	b, _ := ctx.Value(contextKeyBundle).(*Bundle)
	return Translator{bundle: b, lang: LangFromContext(ctx)}
}

// T — перевод ключа по контексту, для templ-компонентов.
func T(ctx context.Context, key string) string {
	return FromContext(ctx).T(key)
}

// Tf — перевод ключа с аргументами по контексту.
func Tf(ctx context.Context, key string, args ...any) string {
	return FromContext(ctx).Tf(key, args...)
}

// formatFunc — fmt.Sprintf через переменную: формат-строки приходят из JSON-каталогов,
// и printf-анализатор go vet не должен их проверять.
//
//nolint:govet // обход go vet printf-анализатора
var formatFunc = fmt.Sprintf

// MatchLanguage определяет язык по заголовку Accept-Language.
// Возвращает "ko" или "en"; при отсутствии совпадения — fallback.
func MatchLanguage(acceptLanguage, fallback string) string {
	tag, _, conf := matcher.Match(parseAccept(acceptLanguage)...)
	if conf == language.No {
		return fallback
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return "en"
	}
	return "ko"
}

func parseAccept(s string) []language.Tag {
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil {
		return nil
	}
	return tags
}
