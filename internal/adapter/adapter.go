// Package adapter converts between the extraction backend's flat record shape
// and the typed plan-data shape, and validates edits before they leave the
// process. It is the single point of truth for percent unit conversion:
// the backend stores decimal fractions (0.03), the UI layer works in whole
// percent (3), and free-text surfaces may hand in literal "3%" strings.
package adapter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/planwise/planwise-cli/internal/model"
)

// BackendEdit is one converted write, ready for wire transmission. Value is
// always a string; the backend coerces per its own validation rules.
type BackendEdit struct {
	FieldName string
	Value     string
}

// Adapter performs registry-driven conversion and validation.
type Adapter struct {
	reg *model.FieldRegistry
}

// New returns an Adapter over the given registry.
func New(reg *model.FieldRegistry) *Adapter {
	return &Adapter{reg: reg}
}

// ToUIRecord converts backend extractions into a PlanRecord. Every
// registry-known field is first initialized to its type-correct zero value,
// so downstream lookups never miss. Extractions whose field name has no
// mapping are skipped; the backend's field set may grow ahead of ours.
func (a *Adapter) ToUIRecord(extractions []model.Extraction) *model.PlanRecord {
	rec := model.NewPlanRecord()
	for _, def := range a.reg.Fields {
		rec.Set(def.ID, model.ZeroValue(def.Type))
	}

	for _, ext := range extractions {
		def := a.reg.ByBackendName(ext.FieldName)
		if def == nil {
			continue
		}
		rec.Set(def.ID, a.convertExtraction(def, ext.Value))
	}

	return rec
}

func (a *Adapter) convertExtraction(def *model.FieldDefinition, raw any) model.FieldValue {
	switch def.Type {
	case model.TypePercent:
		// Backend decimal fraction → UI whole percent; null reads as 0.
		return model.PercentValue(coerceNumber(raw) * 100)
	case model.TypeBoolean:
		return model.BoolValue(coerceBool(raw))
	case model.TypeNumber:
		return model.NumberValue(coerceNumber(raw))
	case model.TypeSelect:
		return model.EnumValue(coerceString(raw))
	default:
		return model.TextValue(coerceString(raw))
	}
}

// ToBackendEdit converts a UI edit into its backend wire form. Percent values
// are divided by 100; a trailing "%" on free-text input is tolerated. Fails
// with a MappingError when the field has no backend counterpart.
func (a *Adapter) ToBackendEdit(fieldID, uiValue string) (BackendEdit, error) {
	def := a.reg.Lookup(fieldID)
	if def.BackendName == "" {
		return BackendEdit{}, &MappingError{FieldID: fieldID}
	}

	if def.Type == model.TypePercent {
		n, err := parsePercentInput(uiValue)
		if err != nil {
			return BackendEdit{}, &ValidationError{FieldID: fieldID, Message: "must be a number"}
		}
		return BackendEdit{
			FieldName: def.BackendName,
			Value:     strconv.FormatFloat(n/100, 'f', -1, 64),
		}, nil
	}

	return BackendEdit{FieldName: def.BackendName, Value: uiValue}, nil
}

// ParseUIValue parses raw user input into the typed value the cache holds.
// The same coercions ToUIRecord applies to wire values apply here, so an
// optimistic write and the subsequent refetch agree.
func (a *Adapter) ParseUIValue(fieldID, raw string) (model.FieldValue, error) {
	def := a.reg.Lookup(fieldID)
	switch def.Type {
	case model.TypePercent:
		n, err := parsePercentInput(raw)
		if err != nil {
			return model.FieldValue{}, &ValidationError{FieldID: fieldID, Message: "must be a number"}
		}
		return model.PercentValue(n), nil
	case model.TypeNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return model.FieldValue{}, &ValidationError{FieldID: fieldID, Message: "must be a number"}
		}
		return model.NumberValue(n), nil
	case model.TypeBoolean:
		return model.BoolValue(coerceBool(raw)), nil
	case model.TypeSelect:
		return model.EnumValue(raw), nil
	default:
		return model.TextValue(raw), nil
	}
}

// Validate checks a raw edit against the field's registry constraints.
// Booleans are always considered present; every other type requires a value.
// Bound violations are reported in the field's display unit even though
// percent bounds are stored as decimal fractions.
func (a *Adapter) Validate(fieldID, raw string) error {
	def := a.reg.Lookup(fieldID)
	trimmed := strings.TrimSpace(raw)

	if def.Type != model.TypeBoolean && trimmed == "" {
		return &ValidationError{FieldID: fieldID, Message: fmt.Sprintf("%s is required", def.Label)}
	}

	switch def.Type {
	case model.TypeNumber, model.TypePercent:
		var backendVal float64
		if def.Type == model.TypePercent {
			n, err := parsePercentInput(trimmed)
			if err != nil {
				return &ValidationError{FieldID: fieldID, Message: fmt.Sprintf("%s must be a number", def.Label)}
			}
			backendVal = n / 100
		} else {
			n, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				return &ValidationError{FieldID: fieldID, Message: fmt.Sprintf("%s must be a number", def.Label)}
			}
			backendVal = n
		}
		if def.Bounds != nil {
			if def.Bounds.Min != nil && backendVal < *def.Bounds.Min {
				return &ValidationError{
					FieldID: fieldID,
					Message: fmt.Sprintf("%s must be at least %s", def.Label, a.formatBound(def, *def.Bounds.Min)),
				}
			}
			if def.Bounds.Max != nil && backendVal > *def.Bounds.Max {
				return &ValidationError{
					FieldID: fieldID,
					Message: fmt.Sprintf("%s must not exceed %s", def.Label, a.formatBound(def, *def.Bounds.Max)),
				}
			}
		}
	case model.TypeSelect:
		if !def.HasOption(trimmed) {
			return &ValidationError{
				FieldID: fieldID,
				Message: fmt.Sprintf("%s must be one of: %s", def.Label, strings.Join(def.Options, ", ")),
			}
		}
	}

	return nil
}

// formatBound renders a stored bound in the field's display unit.
func (a *Adapter) formatBound(def model.FieldDefinition, bound float64) string {
	if def.Type == model.TypePercent {
		return strconv.FormatFloat(bound*100, 'f', -1, 64) + "%"
	}
	return strconv.FormatFloat(bound, 'f', -1, 64)
}

// parsePercentInput parses a whole-percent number, tolerating a literal
// percent suffix ("6%" → 6).
func parsePercentInput(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	return strconv.ParseFloat(s, 64)
}

// coerceNumber converts an untyped wire value to a float64, defaulting to 0
// on nil, parse failure, or non-finite results. It never propagates NaN.
func coerceNumber(raw any) float64 {
	var n float64
	switch v := raw.(type) {
	case nil:
		return 0
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		n = parsed
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// coerceBool accepts the three truthy wire forms the backend emits: a native
// true, the string "true", or the string "Yes". Everything else is false.
func coerceBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "Yes"
	default:
		return false
	}
}

func coerceString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
