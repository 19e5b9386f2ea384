package widget

import (
	"html"
	"strings"
)

// Global placeholders filled from the configuration.
const (
	PlaceholderButtonColor          = "{BUTTON_COLOR}"
	PlaceholderModalBackgroundColor = "{MODAL_BACKGROUND_COLOR}"
	PlaceholderPositionStyles       = "{POSITION_STYLES}"
	PlaceholderMessage              = "{MESSAGE}"
)

// FieldPlaceholder returns the token a template uses for a mapped field.
func FieldPlaceholder(field string) string {
	return "{" + strings.ToUpper(field) + "}"
}

// Render substitutes the fixed configuration placeholders, then one placeholder per mapped
// field in mapping order. Tokens outside that vocabulary are left as written.
func Render(template string, record Record, config Config) string {
	return render(template, record, config, func(value string) string { return value })
}

// RenderMarkup is Render for HTML templates: field values are escaped so a lookup
// response can only contribute text and attribute values.
func RenderMarkup(template string, record Record, config Config) string {
	return render(template, record, config, html.EscapeString)
}

func render(template string, record Record, config Config, encodeField func(string) string) string {
	rendered := template
	for _, replacement := range globalReplacements(config) {
		rendered = strings.ReplaceAll(rendered, replacement.placeholder, replacement.value)
	}
	for _, binding := range config.FieldMapping {
		rendered = strings.ReplaceAll(rendered, FieldPlaceholder(binding.Field), encodeField(record[binding.Field]))
	}
	return rendered
}

type placeholderReplacement struct {
	placeholder string
	value       string
}

func globalReplacements(config Config) []placeholderReplacement {
	return []placeholderReplacement{
		{placeholder: PlaceholderButtonColor, value: config.ButtonColor},
		{placeholder: PlaceholderModalBackgroundColor, value: config.ModalBackgroundColor},
		{placeholder: PlaceholderPositionStyles, value: PositionStyle(config.Position, config.Spacing)},
		{placeholder: PlaceholderMessage, value: config.Message},
	}
}

// KnownPlaceholders lists every token Render would replace for the configuration.
func KnownPlaceholders(config Config) []string {
	replacements := globalReplacements(config)
	known := make([]string, 0, len(replacements)+len(config.FieldMapping))
	for _, replacement := range replacements {
		known = append(known, replacement.placeholder)
	}
	for _, binding := range config.FieldMapping {
		known = append(known, FieldPlaceholder(binding.Field))
	}
	return known
}
