package model

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
)

// ValueKind discriminates the FieldValue union.
type ValueKind string

const (
	KindText    ValueKind = "text"
	KindNumber  ValueKind = "number"
	KindPercent ValueKind = "percent"
	KindBoolean ValueKind = "boolean"
	KindEnum    ValueKind = "enum"
)

// FieldValue is a typed plan-field value: a tagged union over the five kinds
// a plan field can hold. Kind selects which payload field is meaningful;
// the others stay at their zero value. Percent values are held in UI units
// (whole percent), matching PlanRecord's convention.
type FieldValue struct {
	Kind ValueKind `json:"kind" yaml:"kind"`
	Str  string    `json:"str,omitempty" yaml:"str,omitempty"`
	Num  float64   `json:"num,omitempty" yaml:"num,omitempty"`
	Bool bool      `json:"bool,omitempty" yaml:"bool,omitempty"`
}

// TextValue returns a free-text value.
func TextValue(s string) FieldValue {
	return FieldValue{Kind: KindText, Str: s}
}

// NumberValue returns a plain numeric value.
func NumberValue(n float64) FieldValue {
	return FieldValue{Kind: KindNumber, Num: n}
}

// PercentValue returns a percent value in UI units (3 means 3%).
func PercentValue(n float64) FieldValue {
	return FieldValue{Kind: KindPercent, Num: n}
}

// BoolValue returns a boolean value.
func BoolValue(b bool) FieldValue {
	return FieldValue{Kind: KindBoolean, Bool: b}
}

// EnumValue returns a select-option value.
func EnumValue(s string) FieldValue {
	return FieldValue{Kind: KindEnum, Str: s}
}

// ZeroValue returns the type-correct zero value for a field type, used to
// pre-fill records so lookups on unextracted fields never miss.
func ZeroValue(t ValueType) FieldValue {
	switch t {
	case TypeNumber:
		return NumberValue(0)
	case TypePercent:
		return PercentValue(0)
	case TypeBoolean:
		return BoolValue(false)
	case TypeSelect:
		return EnumValue("")
	default:
		return TextValue("")
	}
}

// IsZero reports whether the value is the zero of its kind.
func (v FieldValue) IsZero() bool {
	return v.Str == "" && v.Num == 0 && !v.Bool
}

// Equal compares two values. Numeric kinds tolerate float representation
// noise; everything else is exact.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber, KindPercent:
		return math.Abs(v.Num-o.Num) < 1e-9
	case KindBoolean:
		return v.Bool == o.Bool
	default:
		return v.Str == o.Str
	}
}

// String renders the value for display. Booleans read Yes/No; numerics use
// the shortest exact decimal form.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindNumber, KindPercent:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBoolean:
		if v.Bool {
			return "Yes"
		}
		return "No"
	default:
		return v.Str
	}
}

// fieldValueJSON is the wire shape. Pointer payloads keep kinds from leaking
// irrelevant zero fields into encoded output.
type fieldValueJSON struct {
	Kind ValueKind `json:"kind"`
	Str  *string   `json:"str,omitempty"`
	Num  *float64  `json:"num,omitempty"`
	Bool *bool     `json:"bool,omitempty"`
}

// MarshalJSON encodes the kind plus only its meaningful payload field.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	out := fieldValueJSON{Kind: v.Kind}
	switch v.Kind {
	case KindNumber, KindPercent:
		out.Num = &v.Num
	case KindBoolean:
		out.Bool = &v.Bool
	default:
		out.Str = &v.Str
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire shape, leaving absent payload fields zero.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var in fieldValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return eris.Wrap(err, "model: unmarshal field value")
	}
	*v = FieldValue{Kind: in.Kind}
	if in.Str != nil {
		v.Str = *in.Str
	}
	if in.Num != nil {
		v.Num = *in.Num
	}
	if in.Bool != nil {
		v.Bool = *in.Bool
	}
	return nil
}
