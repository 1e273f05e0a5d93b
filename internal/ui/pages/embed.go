// Пакет pages — HTML-страницы консоли: вход и выбор набора данных.
// Компоненты собираются через templ.ComponentFunc, статические ресурсы встраиваются в бинарник.
package pages

import (
	"embed"
	"io/fs"
	"net/http"
)

// content — CSS и JS страниц.
//
//go:embed static/app.css static/app.js
var content embed.FS

// FileSystem возвращает http.FileSystem для обработки запросов к /static/*.
// Файлы доступны по путям вида /static/app.css.
func FileSystem() http.FileSystem {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
