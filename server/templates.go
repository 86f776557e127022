package server

import (
	"html/template"
	"unicode/utf8"
)

const (
	maxDisplayName   = 130
	truncatedDisplay = 127
)

// formatLongString shortens names longer than maxDisplayName characters
// for display.
func formatLongString(s string) string {
	if utf8.RuneCountInString(s) <= maxDisplayName {
		return s
	}
	n := 0
	for i := range s {
		if n == truncatedDisplay {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"formatLongString": formatLongString,
}).Parse(`
{{define "header"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.}} - jxml</title></head>
<body>
<nav><a href="/">Reports</a> | <a href="/xml/">Generated XML</a></nav>
{{end}}

{{define "footer"}}</body>
</html>
{{end}}

{{define "index"}}{{template "header" "Home"}}
<h1>Reports</h1>
{{if .}}<table>
<tr><th>Report</th><th>Modified</th></tr>
{{range .}}<tr><td><a href="/xml/{{.Name}}">{{formatLongString .Name}}</a></td><td>{{.Modified}}</td></tr>
{{end}}</table>
{{else}}<p>No reports found.</p>
{{end}}{{template "footer"}}{{end}}

{{define "singlelink"}}{{template "header" "XML report"}}
<p><a href="{{.}}">{{.}}</a></p>
{{template "footer"}}{{end}}

{{define "xmls"}}{{template "header" "Generated XML"}}
<h1>Generated XML</h1>
{{if .}}<ul>
{{range .}}<li><a href="/static/reports_xml/{{.}}">{{formatLongString .}}</a></li>
{{end}}</ul>
{{else}}<p>No XML reports generated yet.</p>
{{end}}{{template "footer"}}{{end}}

{{define "404"}}{{template "header" "Not found"}}
<h1>Not found</h1>
{{template "footer"}}{{end}}

{{define "500"}}{{template "header" "Error"}}
<h1>Internal server error</h1>
{{template "footer"}}{{end}}
`))
