package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/widget"
)

const defaultWidgetConfigPath = "configs/widget.yaml"

var (
	errAuditFailed     = errors.New("config_audit_failed")
	placeholderPattern = regexp.MustCompile(`\{[A-Z0-9_]+\}`)
	knownOverrideKeys  = []string{
		widget.KeyEndpoint,
		widget.KeyEnableButton,
		widget.KeyButtonPosition,
		widget.KeyButtonColor,
		widget.KeyModalBackgroundColor,
		widget.KeyButtonSpacing,
		widget.KeyMessage,
		widget.KeyButtonHTML,
		widget.KeyModalHTML,
		widget.KeyButtonCSS,
		widget.KeyModalCSS,
		widget.KeyFieldMapping,
		widget.KeyDefaultValues,
		widget.KeyStatusPath,
		widget.KeySuccessStatus,
	}
	knownPositions = []widget.Position{
		widget.PositionBottomRight,
		widget.PositionBottomLeft,
		widget.PositionTopRight,
		widget.PositionTopLeft,
	}
	templatedKeys = []string{
		widget.KeyButtonHTML,
		widget.KeyModalHTML,
		widget.KeyButtonCSS,
		widget.KeyModalCSS,
	}
)

// fieldMappingEntries keeps the raw field_mapping entries, written as a list of
// {field, path} objects or as a field-to-path map.
type fieldMappingEntries []widget.FieldBinding

func (entries *fieldMappingEntries) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*entries = nil
		return nil
	}
	switch node.Kind {
	case yaml.SequenceNode:
		decoded := make([]widget.FieldBinding, 0, len(node.Content))
		for _, child := range node.Content {
			if child == nil {
				continue
			}
			var binding widget.FieldBinding
			if err := child.Decode(&binding); err != nil {
				return err
			}
			decoded = append(decoded, binding)
		}
		*entries = decoded
		return nil
	case yaml.MappingNode:
		decoded := make(map[string]string)
		if err := node.Decode(&decoded); err != nil {
			return err
		}
		fields := make([]string, 0, len(decoded))
		for field := range decoded {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		bindings := make([]widget.FieldBinding, 0, len(fields))
		for _, field := range fields {
			bindings = append(bindings, widget.FieldBinding{Field: field, Path: decoded[field]})
		}
		*entries = bindings
		return nil
	default:
		return fmt.Errorf("unsupported yaml node kind %d for field_mapping", node.Kind)
	}
}

type widgetDocument struct {
	Widget map[string]any `yaml:"widget"`
}

type fieldMappingDocument struct {
	Widget struct {
		FieldMapping fieldMappingEntries `yaml:"field_mapping"`
	} `yaml:"widget"`
}

type auditResult struct {
	errors   []string
	warnings []string
}

func (result *auditResult) addError(message string, arguments ...any) {
	result.errors = append(result.errors, fmt.Sprintf(message, arguments...))
}

func (result *auditResult) addWarning(message string, arguments ...any) {
	result.warnings = append(result.warnings, fmt.Sprintf(message, arguments...))
}

func (result auditResult) ok() bool {
	return len(result.errors) == 0
}

func main() {
	configPath := defaultWidgetConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	result := runAudit(configPath)
	sort.Strings(result.errors)
	sort.Strings(result.warnings)

	for _, warning := range result.warnings {
		_, _ = fmt.Fprintf(os.Stdout, "WARN: %s\n", warning)
	}
	for _, errorMessage := range result.errors {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %s\n", errorMessage)
	}
	if !result.ok() {
		_, _ = fmt.Fprintf(os.Stderr, "config-audit failed\n")
		os.Exit(1)
	}
	_, _ = fmt.Fprintf(os.Stdout, "config-audit OK\n")
}

func runAudit(configPath string) auditResult {
	var result auditResult

	payload, readErr := os.ReadFile(configPath)
	if readErr != nil {
		result.addError("read widget config %s: %v", configPath, readErr)
		return result
	}

	var document widgetDocument
	if decodeErr := yaml.Unmarshal(payload, &document); decodeErr != nil {
		result.addError("parse widget config %s: %v", configPath, decodeErr)
		return result
	}
	if len(document.Widget) == 0 {
		result.addError("widget config %s: %v: no widget section", configPath, errAuditFailed)
		return result
	}

	var mappingDocument fieldMappingDocument
	if decodeErr := yaml.Unmarshal(payload, &mappingDocument); decodeErr != nil {
		result.addError("parse field_mapping in %s: %v", configPath, decodeErr)
		return result
	}

	overrides := widget.Overrides(document.Widget)
	config := widget.Resolve(overrides)

	checkUnknownKeys(overrides, &result)
	checkEndpoint(config.Endpoint, &result)
	checkEnableButton(overrides, &result)
	checkPosition(config.Position, &result)
	checkSpacing(config.Spacing, &result)
	checkFieldMapping(mappingDocument.Widget.FieldMapping, config, &result)
	checkPlaceholders(config, &result)

	return result
}

func checkUnknownKeys(overrides widget.Overrides, result *auditResult) {
	known := make(map[string]struct{}, len(knownOverrideKeys))
	for _, key := range knownOverrideKeys {
		known[key] = struct{}{}
	}
	for key := range overrides {
		if _, ok := known[key]; !ok {
			result.addWarning("widget: unknown key %s is ignored", key)
		}
	}
}

func checkEndpoint(endpoint string, result *auditResult) {
	parsed, parseErr := url.Parse(endpoint)
	if parseErr != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		result.addError("widget: endpoint %q is not an absolute http(s) URL", endpoint)
		return
	}
	if !strings.HasSuffix(endpoint, "/") && !strings.HasSuffix(endpoint, "=") {
		result.addWarning("widget: endpoint %q does not end in / or =; the reseller id is appended after a /", endpoint)
	}
}

func checkEnableButton(overrides widget.Overrides, result *auditResult) {
	value, found := overrides[widget.KeyEnableButton]
	if !found || value == nil {
		return
	}
	if _, isBool := value.(bool); !isBool {
		result.addWarning("widget: enable_button %v is not a boolean; the button stays enabled", value)
	}
}

func checkPosition(position widget.Position, result *auditResult) {
	for _, knownPosition := range knownPositions {
		if position == knownPosition {
			return
		}
	}
	result.addWarning("widget: button_position %q is unknown; bottom-right offsets are used", position)
}

func checkSpacing(spacing string, result *auditResult) {
	if _, parseErr := strconv.ParseFloat(strings.TrimSpace(spacing), 64); parseErr != nil {
		result.addWarning("widget: button_spacing %q is not numeric", spacing)
	}
}

func checkFieldMapping(entries fieldMappingEntries, config widget.Config, result *auditResult) {
	seen := make(map[string]struct{}, len(entries))
	for index, entry := range entries {
		field := strings.TrimSpace(entry.Field)
		path := strings.TrimSpace(entry.Path)
		if field == "" || path == "" {
			result.addError("widget: field_mapping entry %d needs both field and path", index)
			continue
		}
		if _, duplicate := seen[field]; duplicate {
			result.addError("widget: field_mapping defines %s more than once", field)
			continue
		}
		seen[field] = struct{}{}
	}
	for _, binding := range config.FieldMapping {
		if strings.TrimSpace(config.Defaults[binding.Field]) == "" {
			result.addError("widget: mapped field %s has no default value", binding.Field)
		}
	}
}

func checkPlaceholders(config widget.Config, result *auditResult) {
	known := make(map[string]struct{})
	for _, placeholder := range widget.KnownPlaceholders(config) {
		known[placeholder] = struct{}{}
	}
	templates := map[string]string{
		widget.KeyButtonHTML: config.ButtonHTML,
		widget.KeyModalHTML:  config.ModalHTML,
		widget.KeyButtonCSS:  config.ButtonCSS,
		widget.KeyModalCSS:   config.ModalCSS,
	}
	for _, key := range templatedKeys {
		for _, placeholder := range uniqueStrings(placeholderPattern.FindAllString(templates[key], -1)) {
			if _, ok := known[placeholder]; !ok {
				result.addWarning("widget: %s uses unknown placeholder %s", key, placeholder)
			}
		}
	}
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	sort.Strings(values)
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if len(unique) == 0 || unique[len(unique)-1] != value {
			unique = append(unique, value)
		}
	}
	return unique
}
