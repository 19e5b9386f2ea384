package httpapi

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/page"
)

//go:embed assets/widget.js
var widgetJavaScriptSource string

var widgetJavaScriptTemplate = template.Must(template.New("widget.js").Parse(widgetJavaScriptSource))

func renderWidgetTemplate() (string, error) {
	var buffer bytes.Buffer
	executeErr := widgetJavaScriptTemplate.Execute(&buffer, map[string]any{
		"NodeAttribute":     page.AttributeNode,
		"AppendAttribute":   page.AttributeAppend,
		"RemoveAttribute":   page.AttributeRemove,
		"SelfAttribute":     page.AttributeSelf,
		"TemplateAttribute": page.AttributeTemplate,
		"DelayAttribute":    page.AttributeDelay,
	})
	if executeErr != nil {
		return "", fmt.Errorf("render widget template: %w", executeErr)
	}
	return buffer.String(), nil
}
