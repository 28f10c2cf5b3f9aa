package model

// Secret is an Actions secret, keyed by name. Secret values are write-only
// upstream: the provider never returns them, so the diff is driven by
// presence plus an optional value digest recorded in the configuration.
// Visibility and SelectedRepositories apply only at organization scope.
type Secret struct {
	Name                 string   `yaml:"name"`
	Value                *string  `yaml:"value,omitempty"`
	ValueDigest          *string  `yaml:"value_digest,omitempty"`
	Visibility           *string  `yaml:"visibility,omitempty"`
	SelectedRepositories []string `yaml:"selected_repositories,omitempty"`
}

func (s *Secret) Kind() Kind         { return KindSecret }
func (s *Secret) Key() string        { return s.Name }
func (s *Secret) ProviderID() string { return s.Name }

func (s *Secret) Diff(current Entity) []FieldChange {
	cur, ok := current.(*Secret)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "value_digest", s.ValueDigest, cur.ValueDigest)
	changes = diffScalar(changes, "visibility", s.Visibility, cur.Visibility)
	changes = diffStringSet(changes, "selected_repositories", s.SelectedRepositories, cur.SelectedRepositories)
	return changes
}

func (s *Secret) CreatePayload() map[string]any {
	payload := map[string]any{"name": s.Name}
	putScalar(payload, "value", s.Value)
	putScalar(payload, "visibility", s.Visibility)
	putList(payload, "selected_repositories", s.SelectedRepositories)
	return payload
}

func (s *Secret) UpdatePayload(changes []FieldChange) map[string]any {
	payload := PayloadFromChanges(changes)
	// A digest change means the value itself must be re-sent; the digest is
	// bookkeeping, not something the provider accepts.
	if _, ok := payload["value_digest"]; ok {
		delete(payload, "value_digest")
		if s.Value != nil {
			payload["value"] = *s.Value
		}
	}
	return payload
}
