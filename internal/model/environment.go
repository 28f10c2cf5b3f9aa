package model

import "strconv"

// Environment is a deployment environment, keyed by name. Its deployment
// branch policies form a nested collection reconciled with the same
// algorithm as top-level collections.
type Environment struct {
	Name              string `yaml:"name"`
	WaitTimer         *int   `yaml:"wait_timer,omitempty"`
	PreventSelfReview *bool  `yaml:"prevent_self_review,omitempty"`
	// BranchPolicyMode is one of "all", "protected", "selected". "selected"
	// enables the nested BranchPolicies collection.
	BranchPolicyMode *string  `yaml:"deployment_branch_policy,omitempty"`
	Reviewers        []string `yaml:"reviewers,omitempty"`

	BranchPolicies []*BranchPolicy `yaml:"branch_policies,omitempty"`
}

func (e *Environment) Kind() Kind  { return KindEnvironment }
func (e *Environment) Key() string { return e.Name }

// ProviderID is the name: environments are addressed by name and cannot be
// renamed in place.
func (e *Environment) ProviderID() string { return e.Name }

func (e *Environment) Diff(current Entity) []FieldChange {
	cur, ok := current.(*Environment)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "wait_timer", e.WaitTimer, cur.WaitTimer)
	changes = diffScalar(changes, "prevent_self_review", e.PreventSelfReview, cur.PreventSelfReview)
	changes = diffScalar(changes, "deployment_branch_policy", e.BranchPolicyMode, cur.BranchPolicyMode)
	changes = diffStringSet(changes, "reviewers", e.Reviewers, cur.Reviewers)
	return changes
}

func (e *Environment) CreatePayload() map[string]any {
	payload := map[string]any{"name": e.Name}
	putScalar(payload, "wait_timer", e.WaitTimer)
	putScalar(payload, "prevent_self_review", e.PreventSelfReview)
	putScalar(payload, "deployment_branch_policy", e.BranchPolicyMode)
	putList(payload, "reviewers", e.Reviewers)
	return payload
}

func (e *Environment) UpdatePayload(changes []FieldChange) map[string]any {
	return PayloadFromChanges(changes)
}

// BranchPolicy is one deployment branch policy inside an environment,
// keyed by its name pattern.
type BranchPolicy struct {
	ID int64 `yaml:"-"`

	Name string  `yaml:"name"`
	Type *string `yaml:"type,omitempty"` // "branch" or "tag"
}

func (b *BranchPolicy) Kind() Kind  { return KindBranchPolicy }
func (b *BranchPolicy) Key() string { return b.Name }

func (b *BranchPolicy) ProviderID() string {
	if b.ID == 0 {
		return ""
	}
	return strconv.FormatInt(b.ID, 10)
}

func (b *BranchPolicy) Diff(current Entity) []FieldChange {
	cur, ok := current.(*BranchPolicy)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "type", b.Type, cur.Type)
	return changes
}

func (b *BranchPolicy) CreatePayload() map[string]any {
	payload := map[string]any{"name": b.Name}
	putScalar(payload, "type", b.Type)
	return payload
}

func (b *BranchPolicy) UpdatePayload(changes []FieldChange) map[string]any {
	payload := PayloadFromChanges(changes)
	// The endpoint is a full replace and always wants the name.
	payload["name"] = b.Name
	return payload
}
