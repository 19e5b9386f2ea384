package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/widget"
)

const (
	errorMessageReadWidgetConfig  = "read widget config"
	errorMessageParseWidgetConfig = "parse widget config"
)

type widgetConfigDocument struct {
	Widget map[string]any `yaml:"widget"`
}

// loadWidgetOverrides reads the widget section of a YAML or JSON file. An empty path
// yields no overrides. Keys keep their case, so custom field names survive as written.
func loadWidgetOverrides(configPath string) (widget.Overrides, error) {
	overrides := widget.Overrides{}
	if configPath == "" {
		return overrides, nil
	}

	payload, readErr := os.ReadFile(configPath)
	if readErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageReadWidgetConfig, readErr)
	}

	var document widgetConfigDocument
	if decodeErr := yaml.Unmarshal(payload, &document); decodeErr != nil {
		return nil, fmt.Errorf("%s %s: %w", errorMessageParseWidgetConfig, configPath, decodeErr)
	}
	for key, value := range document.Widget {
		overrides[key] = value
	}
	return overrides, nil
}
