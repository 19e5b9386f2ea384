package httpapi

import (
	"embed"
	"html/template"
)

//go:embed templates/demo.tmpl
var demoTemplateFS embed.FS

var demoTemplate = template.Must(template.ParseFS(demoTemplateFS, "templates/demo.tmpl"))

type demoTemplateData struct {
	PageTitle  string
	Heading    string
	Message    string
	ResellerID string
	FooterHTML template.HTML
}
