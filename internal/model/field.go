package model

import (
	"github.com/rotisserie/eris"
)

// ValueType classifies how a plan field's value is typed and edited.
type ValueType string

const (
	TypeText    ValueType = "text"
	TypeNumber  ValueType = "number"
	TypePercent ValueType = "percent"
	TypeBoolean ValueType = "boolean"
	TypeSelect  ValueType = "select"
)

// Category groups plan fields into the four plan-design sections.
type Category string

const (
	CategoryEligibility   Category = "Eligibility"
	CategoryContributions Category = "Contributions"
	CategoryVesting       Category = "Vesting"
	CategoryAutoFeatures  Category = "Auto Features"
)

// Bounds constrains a numeric or percent field. Min and Max are stored in
// backend units (decimal fractions for percent fields); validation renders
// them in UI units.
type Bounds struct {
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step float64  `json:"step,omitempty" yaml:"step,omitempty"`
}

// Dependency gates a field's editability on the live value of another field.
// The field is editable only while the parent's current value is a member of
// AllowedValues; a single-element set expresses scalar equality.
type Dependency struct {
	ParentID      string       `json:"parent_id" yaml:"parent_id"`
	AllowedValues []FieldValue `json:"allowed_values" yaml:"allowed_values"`
}

// FieldDefinition is the static catalog entry for one plan field.
// BackendName is the field's name in the extraction backend's namespace;
// empty means the field is display-only and cannot be written back.
type FieldDefinition struct {
	ID          string      `json:"id" yaml:"id"`
	Label       string      `json:"label" yaml:"label"`
	Category    Category    `json:"category" yaml:"category"`
	Type        ValueType   `json:"type" yaml:"type"`
	BackendName string      `json:"backend_name,omitempty" yaml:"backend_name,omitempty"`
	Options     []string    `json:"options,omitempty" yaml:"options,omitempty"`
	Bounds      *Bounds     `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Dependency  *Dependency `json:"dependency,omitempty" yaml:"dependency,omitempty"`
}

// HasOption reports whether s is one of the field's allowed options.
func (f *FieldDefinition) HasOption(s string) bool {
	for _, o := range f.Options {
		if o == s {
			return true
		}
	}
	return false
}

// FieldRegistry is an indexed, immutable catalog of field definitions.
type FieldRegistry struct {
	Fields    []FieldDefinition
	byID      map[string]*FieldDefinition
	byBackend map[string]*FieldDefinition
}

// NewFieldRegistry indexes the given definitions and verifies the catalog is
// well formed: unique ids, options present on select fields, dependency
// parents resolvable and acyclic. Configuration defects fail here, at load
// time, rather than surfacing mid-edit.
func NewFieldRegistry(fields []FieldDefinition) (*FieldRegistry, error) {
	r := &FieldRegistry{
		Fields:    fields,
		byID:      make(map[string]*FieldDefinition, len(fields)),
		byBackend: make(map[string]*FieldDefinition, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		if f.ID == "" {
			return nil, eris.New("registry: field definition missing id")
		}
		if _, dup := r.byID[f.ID]; dup {
			return nil, eris.Errorf("registry: duplicate field id %q", f.ID)
		}
		if f.Type == TypeSelect && len(f.Options) == 0 {
			return nil, eris.Errorf("registry: select field %q has no options", f.ID)
		}
		r.byID[f.ID] = f
		if f.BackendName != "" {
			if _, dup := r.byBackend[f.BackendName]; dup {
				return nil, eris.Errorf("registry: backend name %q mapped twice", f.BackendName)
			}
			r.byBackend[f.BackendName] = f
		}
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		if f.Dependency == nil {
			continue
		}
		if _, ok := r.byID[f.Dependency.ParentID]; !ok {
			return nil, eris.Errorf("registry: field %q depends on unknown field %q", f.ID, f.Dependency.ParentID)
		}
		if err := r.checkDependencyChain(f.ID); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// checkDependencyChain walks the parent chain from id and fails if it loops.
// The observed catalog is depth-1, but a cycle would otherwise hang callers
// that chase parents.
func (r *FieldRegistry) checkDependencyChain(id string) error {
	seen := map[string]bool{}
	for cur := r.byID[id]; cur != nil && cur.Dependency != nil; cur = r.byID[cur.Dependency.ParentID] {
		if seen[cur.ID] {
			return eris.Errorf("registry: dependency cycle through field %q", cur.ID)
		}
		seen[cur.ID] = true
	}
	return nil
}

// Lookup returns the definition for id. Unknown ids degrade to an
// unconstrained plain-text definition labeled with the id itself, so the
// backend's field set can grow without a registry update breaking reads.
func (r *FieldRegistry) Lookup(id string) FieldDefinition {
	if f, ok := r.byID[id]; ok {
		return *f
	}
	return FieldDefinition{ID: id, Label: id, Type: TypeText}
}

// Known reports whether id is a registry-declared field.
func (r *FieldRegistry) Known(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// ByBackendName resolves a backend extraction field name to its definition,
// or nil when the name has no mapping.
func (r *FieldRegistry) ByBackendName(name string) *FieldDefinition {
	return r.byBackend[name]
}

// IsEnabled evaluates id's dependency rule against the record's live values.
// Fields without a dependency are always enabled. A missing parent value
// means the dependency is not satisfied, never an error.
func (r *FieldRegistry) IsEnabled(id string, rec *PlanRecord) bool {
	f, ok := r.byID[id]
	if !ok || f.Dependency == nil {
		return true
	}
	if rec == nil {
		return false
	}
	parent, ok := rec.Get(f.Dependency.ParentID)
	if !ok {
		return false
	}
	for _, allowed := range f.Dependency.AllowedValues {
		if parent.Equal(allowed) {
			return true
		}
	}
	return false
}

// Editable returns the definitions that can be written back to the backend.
func (r *FieldRegistry) Editable() []*FieldDefinition {
	var out []*FieldDefinition
	for i := range r.Fields {
		if r.Fields[i].BackendName != "" {
			out = append(out, &r.Fields[i])
		}
	}
	return out
}
