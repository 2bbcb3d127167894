package web

import "html/template"

const pageStyle = `
body{font-family:system-ui,sans-serif;margin:0;color:#222;background:#fafafa}
header{padding:.75rem 1rem;border-bottom:1px solid #e0e0e0;background:#fff}
h1{font-size:1.2rem;margin:0 0 .5rem}
form{display:flex;flex-wrap:wrap;gap:.5rem 1rem;align-items:center}
input[type=url],input[type=text]{padding:.3rem .5rem;border:1px solid #ccc;border-radius:4px}
input[type=url]{min-width:28rem}
.summary{font-size:.85rem;color:#555;margin-top:.5rem}
.panels{display:grid;grid-template-columns:1fr 1fr;gap:1rem;padding:1rem;height:calc(100vh - 11rem)}
.panel{display:flex;flex-direction:column;background:#fff;border:1px solid #e0e0e0;border-radius:6px;min-height:0}
.panel h2{font-size:1rem;margin:0;padding:.5rem .75rem;border-bottom:1px solid #e0e0e0}
.panel iframe{flex:1;border:0;width:100%}
.panel pre{flex:1;margin:0;padding:.75rem;overflow:auto;font-size:.75rem;white-space:pre-wrap;word-break:break-all}
.error{padding:.75rem;color:#b00020}
.hint{color:#8a6d00}
table{border-collapse:collapse;margin:1rem;font-size:.85rem;background:#fff}
td,th{border:1px solid #e0e0e0;padding:.3rem .6rem;text-align:left}
`

var formTmpl = `
<form method="get" action="/compare">
  <input type="hidden" name="opts" value="1">
  <input type="url" name="url" placeholder="https://example.com/page" value="{{.URL}}" required>
  <input type="text" name="target" placeholder="tab target id (optional)" value="{{.Target}}">
  <label><input type="checkbox" name="raw" value="1"{{if .Options.Raw}} checked{{end}}> Raw</label>
  <label><input type="checkbox" name="rewrite" value="1"{{if .Options.Rewrite}} checked{{end}}> Rewrite URLs</label>
  <label><input type="checkbox" name="highlight" value="1"{{if .Options.Highlight}} checked{{end}}> Highlight diff</label>
  <label><input type="checkbox" name="sanitize" value="1"{{if .Options.Sanitize}} checked{{end}}> Strip scripts</label>
  <label><input type="checkbox" name="minify" value="1"{{if .Options.Minify}} checked{{end}}> Minify raw</label>
  <button type="submit">Compare</button>
</form>`

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>ssrdiff</title>
<style>` + pageStyle + `</style></head><body>
<header><h1>ssrdiff</h1>` + formTmpl + `</header>
{{- if .History}}
<table>
<tr><th>When</th><th>Page</th><th>Added</th><th>Missing</th><th>Errors</th></tr>
{{- range .History}}
<tr><td>{{.When}}</td><td><a href="{{.Link}}">{{.PageURL}}</a></td><td>{{.Added}}</td><td>{{.Missing}}</td><td>{{.Errors}}</td></tr>
{{- end}}
</table>
{{- end}}
</body></html>`))

var compareTmpl = template.Must(template.New("compare").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>ssrdiff {{.URL}}</title>
<style>` + pageStyle + `</style></head><body>
<header><h1>ssrdiff</h1>` + formTmpl + `
<div class="summary">
{{- if .Report.Compared}}{{.Report.Added}} added, {{.Report.Missing}} missing{{else if .Options.Highlight}}structure not compared{{end}}
{{- if .Report.BaseURL}} &middot; base {{.Report.BaseURL}}{{end}}
{{- if .Report.Shell}} &middot; <span class="hint">server markup looks like a client-rendered shell</span>{{end}}
</div></header>
<div class="panels">
{{- range .Panels}}
<section class="panel"><h2>{{.Title}}</h2>
{{- if .Failed}}
<div class="error">Error: {{.Error}}</div>
{{- else if .Raw}}
<pre>{{.Markup}}</pre>
{{- else}}
<iframe sandbox="allow-same-origin" srcdoc="{{.Markup}}" title="{{.Title}}"></iframe>
{{- end}}
</section>
{{- end}}
</div>
</body></html>`))
