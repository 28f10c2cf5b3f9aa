// Package model defines the configuration entities managed by orgsync and
// their field-level diff semantics. Every entity knows its natural key, the
// provider-assigned id used to track identity across renames, and how to turn
// itself into create/update payloads for the provider gateway.
package model

// Kind identifies an entity type.
type Kind string

const (
	KindSettings     Kind = "settings"
	KindWebhook      Kind = "webhook"
	KindRepository   Kind = "repository"
	KindRuleset      Kind = "ruleset"
	KindSecret       Kind = "secret"
	KindVariable     Kind = "variable"
	KindEnvironment  Kind = "environment"
	KindBranchPolicy Kind = "branch_policy"
)

// KeyField returns the name of the field carrying the natural key for a kind.
// A rename shows up as a change of this field.
func KeyField(k Kind) string {
	switch k {
	case KindWebhook:
		return "url"
	case KindRuleset:
		return "pattern"
	default:
		return "name"
	}
}

// FieldChange records one field whose expected and current values differ.
type FieldChange struct {
	Field    string
	Expected any
	Current  any
}

// Entity is the contract every managed entity type implements.
//
// Diff compares the receiver (expected configuration) against the live entity
// and returns only fields that actually differ under the per-field semantics:
// nil expected scalars mean "no preference" and are skipped, list fields
// compare as sets, nested entity lists are diffed by the engine rather than
// here. Diff is pure and never mutates either side.
type Entity interface {
	Kind() Kind
	Key() string
	ProviderID() string
	Diff(current Entity) []FieldChange
	CreatePayload() map[string]any
	UpdatePayload(changes []FieldChange) map[string]any
}

// Subresourced is implemented by entities with fields that cannot ride on a
// generic update call and need their own provider endpoint (e.g. repository
// topics, vulnerability alerts). The planner splits these into separate
// patches.
type Subresourced interface {
	SubresourceFields() []string
}

// diffScalar appends a change when expected is set and differs from current.
// A nil expected value is "no preference" and never reported.
func diffScalar[T comparable](changes []FieldChange, field string, expected, current *T) []FieldChange {
	if expected == nil {
		return changes
	}
	if current != nil && *current == *expected {
		return changes
	}
	var cur any
	if current != nil {
		cur = *current
	}
	return append(changes, FieldChange{Field: field, Expected: *expected, Current: cur})
}

// diffStringSet compares list fields order-insensitively but reports the
// expected slice verbatim so patches preserve the configured order.
func diffStringSet(changes []FieldChange, field string, expected, current []string) []FieldChange {
	if expected == nil {
		return changes
	}
	if equalStringSets(expected, current) {
		return changes
	}
	return append(changes, FieldChange{Field: field, Expected: expected, Current: current})
}

// equalStringSets ignores order and duplicates: the provider stores these
// fields as sets, so a duplicated config entry must not diff forever.
func equalStringSets(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, s := range a {
		as[s] = true
	}
	bs := make(map[string]bool, len(b))
	for _, s := range b {
		if !as[s] {
			return false
		}
		bs[s] = true
	}
	return len(as) == len(bs)
}

// putScalar adds a field to a payload when it carries a value.
func putScalar[T any](payload map[string]any, field string, v *T) {
	if v != nil {
		payload[field] = *v
	}
}

func putList(payload map[string]any, field string, v []string) {
	if v != nil {
		payload[field] = v
	}
}

// PayloadFromChanges builds an update payload carrying only the changed
// fields, valued with the expected side of each change.
func PayloadFromChanges(changes []FieldChange) map[string]any {
	payload := make(map[string]any, len(changes))
	for _, c := range changes {
		payload[c.Field] = c.Expected
	}
	return payload
}

// Helpers for building pointer fields in tests and gateways.

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
