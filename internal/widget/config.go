package widget

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Position names a screen corner for the floating button.
type Position string

const (
	PositionBottomRight Position = "bottom-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionTopRight    Position = "top-right"
	PositionTopLeft     Position = "top-left"
)

// Override keys recognized by Resolve.
const (
	KeyEndpoint             = "endpoint"
	KeyEnableButton         = "enable_button"
	KeyButtonPosition       = "button_position"
	KeyButtonColor          = "button_color"
	KeyModalBackgroundColor = "modal_background_color"
	KeyButtonSpacing        = "button_spacing"
	KeyMessage              = "message"
	KeyButtonHTML           = "button_html"
	KeyModalHTML            = "modal_html"
	KeyButtonCSS            = "button_css"
	KeyModalCSS             = "modal_css"
	KeyFieldMapping         = "field_mapping"
	KeyDefaultValues        = "default_values"
	KeyStatusPath           = "status_path"
	KeySuccessStatus        = "success_status"
)

// Canonical record fields.
const (
	FieldNickname     = "nickname"
	FieldBillingPhone = "billing_phone"
	FieldURL          = "url"
)

const (
	DefaultEndpoint             = "https://thewebgo.com/wp-json/api/v1/reseller/"
	DefaultName                 = "Theme Wordpress giá rẻ"
	DefaultPhone                = "0989 072 072"
	DefaultWebsite              = "https://thewebgo.com"
	DefaultPosition             = PositionBottomRight
	DefaultButtonColor          = "#ffffff"
	DefaultModalBackgroundColor = "#1e73be"
	DefaultSpacing              = "10"
	DefaultMessage              = "Bạn đang xem demo từ thewebgo.com"
	DefaultButtonHTML           = "[i]"
	DefaultModalHTML            = `<span class="trc-close">×</span>
<p>{MESSAGE} {NICKNAME}</p>
<a class="trc-btn" href="tel:{BILLING_PHONE}">📞 {BILLING_PHONE}</a>
<a class="trc-btn" href="{URL}" target="_blank">🌐 WEBSITE</a>`
	DefaultStatusPath    = "data.status"
	DefaultSuccessStatus = 200

	fieldBindingFieldKey = "field"
	fieldBindingPathKey  = "path"
)

// FieldBinding associates a record field with a dotted path into the lookup response.
type FieldBinding struct {
	Field string `json:"field" yaml:"field" mapstructure:"field"`
	Path  string `json:"path" yaml:"path" mapstructure:"path"`
}

// Overrides is the host-supplied partial configuration.
type Overrides map[string]any

// Config is the resolved widget configuration. Resolve builds a fresh copy; callers treat it
// as read-only for the lifetime of a widget.
type Config struct {
	Endpoint             string         `json:"endpoint"`
	Enabled              bool           `json:"enable_button"`
	Position             Position       `json:"button_position"`
	ButtonColor          string         `json:"button_color"`
	ModalBackgroundColor string         `json:"modal_background_color"`
	Spacing              string         `json:"button_spacing"`
	Message              string         `json:"message"`
	ButtonHTML           string         `json:"button_html"`
	ModalHTML            string         `json:"modal_html"`
	ButtonCSS            string         `json:"button_css"`
	ModalCSS             string         `json:"modal_css"`
	FieldMapping         []FieldBinding `json:"field_mapping"`
	Defaults             Record         `json:"default_values"`
	StatusPath           string         `json:"status_path"`
	SuccessStatus        float64        `json:"success_status"`
}

// DefaultFieldMapping returns the canonical nickname/phone/url bindings.
func DefaultFieldMapping() []FieldBinding {
	return []FieldBinding{
		{Field: FieldNickname, Path: "data.reseller.nickname"},
		{Field: FieldBillingPhone, Path: "data.reseller.billing_phone"},
		{Field: FieldURL, Path: "data.reseller.url"},
	}
}

// DefaultValues returns the built-in fallback record.
func DefaultValues() Record {
	return Record{
		FieldNickname:     DefaultName,
		FieldBillingPhone: DefaultPhone,
		FieldURL:          DefaultWebsite,
	}
}

// Resolve layers overrides over the built-in defaults. Every key is defaulted on its own
// when absent, nil or empty; values are otherwise passed through without validation.
func Resolve(overrides Overrides) Config {
	return Config{
		Endpoint:             overrides.text(KeyEndpoint, DefaultEndpoint),
		Enabled:              overrides.enabled(),
		Position:             Position(overrides.text(KeyButtonPosition, string(DefaultPosition))),
		ButtonColor:          overrides.text(KeyButtonColor, DefaultButtonColor),
		ModalBackgroundColor: overrides.text(KeyModalBackgroundColor, DefaultModalBackgroundColor),
		Spacing:              overrides.text(KeyButtonSpacing, DefaultSpacing),
		Message:              overrides.text(KeyMessage, DefaultMessage),
		ButtonHTML:           overrides.text(KeyButtonHTML, DefaultButtonHTML),
		ModalHTML:            overrides.text(KeyModalHTML, DefaultModalHTML),
		ButtonCSS:            overrides.text(KeyButtonCSS, ""),
		ModalCSS:             overrides.text(KeyModalCSS, ""),
		FieldMapping:         overrides.fieldMapping(),
		Defaults:             overrides.defaultValues(),
		StatusPath:           overrides.text(KeyStatusPath, DefaultStatusPath),
		SuccessStatus:        overrides.successStatus(),
	}
}

// Fields lists mapped field names in mapping order.
func (config Config) Fields() []string {
	fields := make([]string, 0, len(config.FieldMapping))
	for _, binding := range config.FieldMapping {
		fields = append(fields, binding.Field)
	}
	return fields
}

func (overrides Overrides) lookup(key string) (any, bool) {
	if overrides == nil {
		return nil, false
	}
	value, found := overrides[key]
	if !found || value == nil {
		return nil, false
	}
	return value, true
}

func (overrides Overrides) text(key string, fallback string) string {
	value, found := overrides.lookup(key)
	if !found {
		return fallback
	}
	text := stringify(value)
	if text == "" {
		return fallback
	}
	return text
}

// enabled is true unless the override is exactly the boolean false.
func (overrides Overrides) enabled() bool {
	value, found := overrides.lookup(KeyEnableButton)
	if !found {
		return true
	}
	flag, isBool := value.(bool)
	return !isBool || flag
}

func (overrides Overrides) successStatus() float64 {
	value, found := overrides.lookup(KeySuccessStatus)
	if !found {
		return DefaultSuccessStatus
	}
	parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(stringify(value)), 64)
	if parseErr != nil {
		return DefaultSuccessStatus
	}
	return parsed
}

func (overrides Overrides) defaultValues() Record {
	defaults := DefaultValues()
	value, found := overrides.lookup(KeyDefaultValues)
	if !found {
		return defaults
	}
	for field, fieldValue := range stringMap(value) {
		if fieldValue == "" {
			continue
		}
		defaults[field] = fieldValue
	}
	return defaults
}

func (overrides Overrides) fieldMapping() []FieldBinding {
	value, found := overrides.lookup(KeyFieldMapping)
	if !found {
		return DefaultFieldMapping()
	}

	var bindings []FieldBinding
	switch typed := value.(type) {
	case []FieldBinding:
		bindings = append(bindings, typed...)
	case []any:
		for _, entry := range typed {
			binding, ok := bindingFromEntry(entry)
			if ok {
				bindings = append(bindings, binding)
			}
		}
	case []map[string]any:
		for _, entry := range typed {
			binding, ok := bindingFromEntry(entry)
			if ok {
				bindings = append(bindings, binding)
			}
		}
	default:
		pathsByField := stringMap(value)
		fields := make([]string, 0, len(pathsByField))
		for field := range pathsByField {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			bindings = append(bindings, FieldBinding{Field: field, Path: pathsByField[field]})
		}
	}

	bindings = compactBindings(bindings)
	if len(bindings) == 0 {
		return DefaultFieldMapping()
	}
	return bindings
}

func bindingFromEntry(entry any) (FieldBinding, bool) {
	switch typed := entry.(type) {
	case FieldBinding:
		return typed, true
	case map[string]any, map[string]string, map[any]any:
		values := stringMap(typed)
		return FieldBinding{Field: values[fieldBindingFieldKey], Path: values[fieldBindingPathKey]}, true
	default:
		return FieldBinding{}, false
	}
}

func compactBindings(bindings []FieldBinding) []FieldBinding {
	seen := make(map[string]struct{}, len(bindings))
	compacted := make([]FieldBinding, 0, len(bindings))
	for _, binding := range bindings {
		field := strings.TrimSpace(binding.Field)
		path := strings.TrimSpace(binding.Path)
		if field == "" || path == "" {
			continue
		}
		if _, duplicate := seen[field]; duplicate {
			continue
		}
		seen[field] = struct{}{}
		compacted = append(compacted, FieldBinding{Field: field, Path: path})
	}
	return compacted
}

func stringMap(value any) map[string]string {
	converted := make(map[string]string)
	switch typed := value.(type) {
	case map[string]string:
		for key, entry := range typed {
			converted[strings.TrimSpace(key)] = entry
		}
	case map[string]any:
		for key, entry := range typed {
			converted[strings.TrimSpace(key)] = stringify(entry)
		}
	case Record:
		for key, entry := range typed {
			converted[strings.TrimSpace(key)] = entry
		}
	case map[any]any:
		for key, entry := range typed {
			converted[strings.TrimSpace(stringify(key))] = stringify(entry)
		}
	}
	return converted
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
