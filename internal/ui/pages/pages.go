package pages

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/bigkaa/goartstore/mkt-uploader/internal/domain/model"
	"github.com/bigkaa/goartstore/mkt-uploader/internal/i18n"
)

// LoginData — данные страницы входа.
type LoginData struct {
	// ErrorKey — ключ сообщения об ошибке; пусто — без ошибки
	ErrorKey string
}

// PickerData — данные страницы выбора набора данных.
type PickerData struct {
	Datasets []model.DatasetWithSchema
}

// html — запись фрагментов с сохранением первой ошибки.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

// text записывает экранированный текст.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

// Layout — общий каркас страницы.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="`, templ.EscapeString(i18n.LangFromContext(ctx)), `"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`)
		h.text(title)
		h.raw(`</title><link rel="stylesheet" href="/static/app.css"></head><body>`)
		if h.err != nil {
			return h.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		h.raw(`</body></html>`)
		return h.err
	})
}

// languageSwitch — форма выбора языка.
func languageSwitch(ctx context.Context, h *html) {
	current := i18n.LangFromContext(ctx)
	h.raw(`<form class="lang" method="post" action="/lang"><span>`)
	h.text(i18n.T(ctx, "picker.language"))
	h.raw(`</span>`)
	for _, lang := range i18n.LanguageCodes {
		h.raw(`<button class="link" type="submit" name="lang" value="`, lang, `"`)
		if lang == current {
			h.raw(` disabled`)
		}
		h.raw(`>`, strings.ToUpper(lang), `</button>`)
	}
	h.raw(`</form>`)
}

// Login — страница входа по общему паролю.
func Login(data LoginData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<main class="login"><div class="card"><h2>`)
		h.text(i18n.T(ctx, "login.title"))
		h.raw(`</h2><p class="muted">`)
		h.text(i18n.T(ctx, "login.subtitle"))
		h.raw(`</p>`)
		if data.ErrorKey != "" {
			h.raw(`<div class="alert" role="alert">`)
			h.text(i18n.T(ctx, data.ErrorKey))
			h.raw(`</div>`)
		}
		h.raw(`<form method="post" action="/login"><label for="password">`)
		h.text(i18n.T(ctx, "login.password"))
		h.raw(`</label><input id="password" type="password" name="password" autocomplete="current-password" autofocus>`,
			`<button class="primary" type="submit">`)
		h.text(i18n.T(ctx, "login.submit"))
		h.raw(`</button></form><p class="muted">`)
		h.text(i18n.T(ctx, "login.hint"))
		h.raw(`</p>`)
		languageSwitch(ctx, h)
		h.raw(`</div></main>`)
		return h.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(i18n.T(ctx, "app.title"), body).Render(ctx, w)
	})
}

// Picker — страница выбора набора данных с формой загрузки и журналом.
func Picker(data PickerData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<header><h1>`)
		h.text(i18n.T(ctx, "app.title"))
		h.raw(`</h1><div class="lang">`)
		languageSwitch(ctx, h)
		h.raw(`<form method="post" action="/logout"><button class="link" type="submit">`)
		h.text(i18n.T(ctx, "picker.logout"))
		h.raw(`</button></form></div></header><main>`)

		h.raw(`<nav class="tabs" role="tablist">`)
		for i, d := range data.Datasets {
			selected := "false"
			if i == 0 {
				selected = "true"
			}
			h.raw(`<button type="button" role="tab" data-tab="`, templ.EscapeString(string(d.ID)),
				`" aria-selected="`, selected, `">`)
			h.text(d.Label)
			h.raw(`</button>`)
		}
		h.raw(`</nav>`)

		for i, d := range data.Datasets {
			datasetSection(ctx, h, d, i != 0)
		}

		h.raw(`<section class="card"><h2>`)
		h.text(i18n.T(ctx, "picker.log_title"))
		h.raw(`</h2><div id="log" class="log" aria-live="polite">`)
		h.text(i18n.T(ctx, "picker.log_placeholder"))
		h.raw(`</div></section></main><script src="/static/app.js"></script>`)
		return h.err
	})
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(i18n.T(ctx, "app.title"), body).Render(ctx, w)
	})
}

// datasetSection — карточка набора данных: таблица, схема, форма загрузки.
func datasetSection(ctx context.Context, h *html, d model.DatasetWithSchema, hidden bool) {
	h.raw(`<section class="card dataset" data-dataset="`, templ.EscapeString(string(d.ID)), `"`)
	if hidden {
		h.raw(` hidden`)
	}
	h.raw(`><h2>`)
	h.text(d.Label)
	h.raw(`</h2><p class="muted">`)
	h.text(i18n.T(ctx, "picker.target_table"))
	h.raw(`: `)
	h.text(d.TableLabel)
	h.raw(` (<code>`)
	h.text(d.TableID)
	h.raw(`</code>)</p>`)

	h.raw(`<h3 class="muted">`)
	h.text(i18n.T(ctx, "picker.upload_title"))
	h.raw(`</h3><form class="upload" data-upload data-confirm="`, templ.EscapeString(i18n.T(ctx, "picker.confirm")),
		`" data-failed="`, templ.EscapeString(i18n.T(ctx, "picker.request_failed")), `">`,
		`<input type="hidden" name="datasetId" value="`, templ.EscapeString(string(d.ID)), `">`,
		`<input type="file" name="file" accept=".csv,text/csv" title="`, templ.EscapeString(i18n.T(ctx, "picker.upload_hint")), `">`,
		`<button class="primary" type="submit">`)
	h.text(i18n.T(ctx, "picker.upload_button"))
	h.raw(`</button></form>`)

	h.raw(`<h3 class="muted">`)
	h.text(i18n.T(ctx, "picker.schema_title"))
	h.raw(`</h3><table><thead><tr><th>`)
	h.text(i18n.T(ctx, "picker.col_source"))
	h.raw(`</th><th>`)
	h.text(i18n.T(ctx, "picker.col_type"))
	h.raw(`</th><th>`)
	h.text(i18n.T(ctx, "picker.col_target"))
	h.raw(`</th></tr></thead><tbody>`)
	for _, f := range d.Schema {
		h.raw(`<tr><td>`)
		h.text(f.SourceName)
		h.raw(`</td><td>`)
		h.text(f.DataType)
		h.raw(`</td><td>`)
		h.text(f.TargetName)
		h.raw(`</td></tr>`)
	}
	h.raw(`</tbody></table></section>`)
}
