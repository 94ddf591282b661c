package web

import (
	"html/template"
)

type pageModel struct {
	Label    string
	ID       string
	Selected bool
}

type pageMessage struct {
	User bool
	Text string
	HTML template.HTML
}

type pageData struct {
	Title        string
	Models       []pageModel
	CurrentModel string
	Messages     []pageMessage
	Error        string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { max-width: 760px; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; color: #222; }
aside { margin-bottom: 1rem; padding: .75rem 1rem; background: #f4f4f6; border-radius: 8px; }
.msg { margin: .75rem 0; padding: .75rem 1rem; border-radius: 8px; }
.msg.user { background: #eef3ff; }
.msg.bot { background: #f7f7f7; }
.msg p:first-child { margin-top: 0; }
.msg p:last-child { margin-bottom: 0; }
.error { color: #a40000; }
form.chat { display: flex; gap: .5rem; margin-top: 1rem; }
form.chat input[type=text] { flex: 1; padding: .6rem; font-size: 1rem; }
code { background: #eee; padding: 0 .2rem; border-radius: 3px; }
pre code { display: block; padding: .5rem; overflow-x: auto; }
</style>
</head>
<body>
<h1>🤖 {{.Title}}</h1>
<aside>
  <form method="post" action="/model">
    <label for="model">Choose a model</label>
    <select id="model" name="model" onchange="this.form.submit()">
      {{range .Models}}<option value="{{.ID}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
      {{end}}
    </select>
    <noscript><button type="submit">Apply</button></noscript>
  </form>
  <small>💡 Current model: <code>{{.CurrentModel}}</code></small>
  <form method="post" action="/reset" style="display:inline"><button type="submit">Clear chat</button></form>
</aside>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form class="chat" method="post" action="/chat">
  <input type="hidden" name="model" value="{{.CurrentModel}}">
  <input type="text" name="text" placeholder="You:" autofocus autocomplete="off">
  <button type="submit">Send</button>
</form>
<section>
{{range .Messages}}{{if .User}}<div class="msg user"><strong>🧑 You:</strong> {{.Text}}</div>
{{else}}<div class="msg bot"><strong>🤖 Bot:</strong> {{.HTML}}</div>
{{end}}{{end}}
</section>
</body>
</html>
`))
