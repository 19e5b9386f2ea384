// Package jsontree wraps arbitrary decoded JSON so callers can read nested values by
// dotted path without type assertions at every step.
package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	pathSeparator = "."

	errorMessageDecode        = "jsontree: decode"
	errorMessageTrailingInput = "jsontree: trailing input"
)

// ErrTrailingInput indicates the payload held more than one JSON value.
var ErrTrailingInput = errors.New(errorMessageTrailingInput)

// Value is a node of a decoded JSON document. The zero Value is JSON null.
type Value struct {
	raw any
}

// Parse decodes a single JSON document. Numbers are kept as json.Number.
func Parse(payload []byte) (Value, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var decoded any
	if decodeErr := decoder.Decode(&decoded); decodeErr != nil {
		return Value{}, fmt.Errorf("%s: %w", errorMessageDecode, decodeErr)
	}
	if decoder.More() {
		return Value{}, ErrTrailingInput
	}
	return Value{raw: decoded}, nil
}

// From wraps an already decoded value such as map[string]any.
func From(raw any) Value {
	return Value{raw: raw}
}

// Raw returns the underlying decoded value.
func (value Value) Raw() any {
	return value.raw
}

// IsNull reports whether the value is JSON null or absent.
func (value Value) IsNull() bool {
	return value.raw == nil
}

// IsObject reports whether the value is a JSON object.
func (value Value) IsObject() bool {
	_, isObject := value.raw.(map[string]any)
	return isObject
}

// Lookup follows a dotted path through nested objects. Array elements are addressed by
// decimal index segments. A missing segment yields false, never a panic.
func (value Value) Lookup(path string) (Value, bool) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return value, true
	}

	current := value.raw
	for _, segment := range strings.Split(trimmedPath, pathSeparator) {
		switch node := current.(type) {
		case map[string]any:
			child, found := node[segment]
			if !found {
				return Value{}, false
			}
			current = child
		case []any:
			index, indexErr := strconv.Atoi(segment)
			if indexErr != nil || index < 0 || index >= len(node) {
				return Value{}, false
			}
			current = node[index]
		default:
			return Value{}, false
		}
	}
	return Value{raw: current}, true
}

// Text renders scalar values the way a script would coerce them to strings. Objects,
// arrays and null report false.
func (value Value) Text() (string, bool) {
	switch scalar := value.raw.(type) {
	case string:
		return scalar, true
	case json.Number:
		return scalar.String(), true
	case float64:
		return strconv.FormatFloat(scalar, 'f', -1, 64), true
	case int:
		return strconv.Itoa(scalar), true
	case int64:
		return strconv.FormatInt(scalar, 10), true
	case bool:
		return strconv.FormatBool(scalar), true
	default:
		return "", false
	}
}

// Number returns numeric values only; numeric-looking strings report false.
func (value Value) Number() (float64, bool) {
	switch numeric := value.raw.(type) {
	case json.Number:
		parsed, parseErr := numeric.Float64()
		if parseErr != nil {
			return 0, false
		}
		return parsed, true
	case float64:
		return numeric, true
	case int:
		return float64(numeric), true
	case int64:
		return float64(numeric), true
	default:
		return 0, false
	}
}

// Truthy coerces the value the way a script condition would: null, false, zero and the
// empty string are false; objects and arrays are always true.
func (value Value) Truthy() bool {
	switch scalar := value.raw.(type) {
	case nil:
		return false
	case bool:
		return scalar
	case string:
		return scalar != ""
	case json.Number, float64, int, int64:
		numeric, _ := value.Number()
		return numeric != 0 && !math.IsNaN(numeric)
	default:
		return true
	}
}
