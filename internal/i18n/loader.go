// loader.go — загрузка каталогов переводов из embed.FS.
package i18n

import (
	"embed"
	"fmt"
	"log/slog"
)

// LocaleFS — встроенные JSON-каталоги.
//
//go:embed locales/*.json
var LocaleFS embed.FS

// Load создаёт Bundle из встроенных каталогов locales/ko.json и locales/en.json.
func Load(fallback string, logger *slog.Logger) (*Bundle, error) {
	bundle := NewBundle(fallback, logger)
	langs := []string{"ko", "en"}

	for _, lang := range langs {
		path := fmt.Sprintf("locales/%s.json", lang)
		data, err := LocaleFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}

		if err := bundle.LoadMessages(lang, data); err != nil {
			return nil, err
		}
	}

	logger.Info("i18n каталоги загружены",
		slog.Int("languages", len(langs)),
		slog.String("default", fallback),
	)
	return bundle, nil
}
