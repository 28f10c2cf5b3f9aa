package model

// Variable is an Actions variable, keyed by name. Unlike secrets, variable
// values are readable and diffed directly. Visibility and
// SelectedRepositories apply only at organization scope.
type Variable struct {
	Name                 string   `yaml:"name"`
	Value                *string  `yaml:"value,omitempty"`
	Visibility           *string  `yaml:"visibility,omitempty"`
	SelectedRepositories []string `yaml:"selected_repositories,omitempty"`
}

func (v *Variable) Kind() Kind         { return KindVariable }
func (v *Variable) Key() string        { return v.Name }
func (v *Variable) ProviderID() string { return v.Name }

func (v *Variable) Diff(current Entity) []FieldChange {
	cur, ok := current.(*Variable)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "value", v.Value, cur.Value)
	changes = diffScalar(changes, "visibility", v.Visibility, cur.Visibility)
	changes = diffStringSet(changes, "selected_repositories", v.SelectedRepositories, cur.SelectedRepositories)
	return changes
}

func (v *Variable) CreatePayload() map[string]any {
	payload := map[string]any{"name": v.Name}
	putScalar(payload, "value", v.Value)
	putScalar(payload, "visibility", v.Visibility)
	putList(payload, "selected_repositories", v.SelectedRepositories)
	return payload
}

func (v *Variable) UpdatePayload(changes []FieldChange) map[string]any {
	return PayloadFromChanges(changes)
}
