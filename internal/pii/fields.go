package pii

import platformstrings "amparo/pkg/platform/strings"

// FieldRegistry maps entity types to their protected field names. The audit
// trail consults it to decide whether a read deserves a PII-access entry and
// to intersect changed fields with protected fields on updates. Built once
// at wiring time; not safe for concurrent mutation afterwards.
type FieldRegistry struct {
	fields map[string][]string
}

// NewFieldRegistry creates an empty registry.
func NewFieldRegistry() *FieldRegistry {
	return &FieldRegistry{fields: make(map[string][]string)}
}

// Register declares the protected fields of an entity type.
func (r *FieldRegistry) Register(entityType string, fields ...string) {
	r.fields[entityType] = platformstrings.DedupeAndTrim(fields)
}

// FieldsFor returns the protected fields of an entity type, nil if none.
func (r *FieldRegistry) FieldsFor(entityType string) []string {
	return r.fields[entityType]
}

// HasPII reports whether the entity type has any protected fields.
func (r *FieldRegistry) HasPII(entityType string) bool {
	return len(r.fields[entityType]) > 0
}

// Intersect returns the subset of changed that is protected for the entity
// type, preserving the order of changed.
func (r *FieldRegistry) Intersect(entityType string, changed []string) []string {
	protected := r.fields[entityType]
	if len(protected) == 0 || len(changed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(protected))
	for _, f := range protected {
		set[f] = struct{}{}
	}
	var out []string
	for _, f := range platformstrings.DedupeAndTrim(changed) {
		if _, ok := set[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
