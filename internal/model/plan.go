package model

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// PlanRecord is the canonical in-memory plan-design record for one client:
// a mapping from field id to its current typed value. Percent values are held
// in UI units; only the adapter converts to and from backend units.
type PlanRecord struct {
	values map[string]FieldValue
}

// NewPlanRecord returns an empty record.
func NewPlanRecord() *PlanRecord {
	return &PlanRecord{values: make(map[string]FieldValue)}
}

// Get returns the value for a field id and whether it is present.
func (p *PlanRecord) Get(fieldID string) (FieldValue, bool) {
	v, ok := p.values[fieldID]
	return v, ok
}

// Set stores a value for a field id.
func (p *PlanRecord) Set(fieldID string, v FieldValue) {
	p.values[fieldID] = v
}

// Delete removes a field from the record.
func (p *PlanRecord) Delete(fieldID string) {
	delete(p.values, fieldID)
}

// Len returns the number of fields present.
func (p *PlanRecord) Len() int {
	return len(p.values)
}

// FieldIDs returns the present field ids in sorted order.
func (p *PlanRecord) FieldIDs() []string {
	ids := make([]string, 0, len(p.values))
	for id := range p.values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy. FieldValue has no reference fields, so copying
// the map entries is a full snapshot.
func (p *PlanRecord) Clone() *PlanRecord {
	out := &PlanRecord{values: make(map[string]FieldValue, len(p.values))}
	for k, v := range p.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether two records hold the same fields and values.
func (p *PlanRecord) Equal(o *PlanRecord) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.values) != len(o.values) {
		return false
	}
	for k, v := range p.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as a field-id keyed object.
func (p *PlanRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.values)
}

// UnmarshalJSON decodes a field-id keyed object.
func (p *PlanRecord) UnmarshalJSON(data []byte) error {
	values := make(map[string]FieldValue)
	if err := json.Unmarshal(data, &values); err != nil {
		return eris.Wrap(err, "model: unmarshal plan record")
	}
	p.values = values
	return nil
}
