package web

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown рендерер ответов модели. Сырой HTML из ответа не пропускается:
// goldmark без html.WithUnsafe заменяет его комментарием.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// renderMarkdown превращает текст ответа в безопасный HTML.
// При ошибке рендера текст выводится экранированным как есть.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(buf.String())
}
