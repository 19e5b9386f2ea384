package footer

import (
	"bytes"
	"html/template"
)

// Link describes one entry of the footer navigation.
type Link struct {
	Label string
	URL   string
}

// Config captures the markup hooks and content of the footer.
type Config struct {
	ElementID  string
	BaseClass  string
	LinkClass  string
	PrefixText string
	Links      []Link
}

var (
	footerTemplate = template.Must(template.New("footer").Parse(`<footer id="{{.ElementID}}" class="{{.BaseClass}}">
  <span>{{.PrefixText}}</span>
  <nav>
    {{range .Links}}<a class="{{$.LinkClass}}" href="{{.URL}}">{{.Label}}</a>
    {{end}}
  </nav>
</footer>`))
)

// Render returns the footer HTML for the provided configuration.
func Render(config Config) (template.HTML, error) {
	var buffer bytes.Buffer
	if err := footerTemplate.Execute(&buffer, config); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}
