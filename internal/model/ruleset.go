package model

import "strconv"

// Ruleset is a branch protection rule for one branch name pattern. It maps
// onto the provider's repository ruleset API, whose numeric id is stable
// across pattern changes and serves as the provider id.
type Ruleset struct {
	ID int64 `yaml:"id,omitempty"`

	Pattern                  string   `yaml:"pattern"`
	Enforcement              *string  `yaml:"enforcement,omitempty"`
	RequiredApprovingReviews *int     `yaml:"required_approving_review_count,omitempty"`
	DismissStaleReviews      *bool    `yaml:"dismisses_stale_reviews,omitempty"`
	RequireCodeOwnerReview   *bool    `yaml:"requires_code_owner_review,omitempty"`
	RequireLastPushApproval  *bool    `yaml:"requires_last_push_approval,omitempty"`
	RequireThreadResolution  *bool    `yaml:"requires_review_thread_resolution,omitempty"`
	RequiresLinearHistory    *bool    `yaml:"requires_linear_history,omitempty"`
	RequiresSignatures       *bool    `yaml:"requires_commit_signatures,omitempty"`
	RequiresStatusChecks     *bool    `yaml:"requires_status_checks,omitempty"`
	StrictStatusChecks       *bool    `yaml:"requires_strict_status_checks,omitempty"`
	RequiredStatusChecks     []string `yaml:"required_status_checks,omitempty"`
	AllowsDeletions          *bool    `yaml:"allows_deletions,omitempty"`
	AllowsForcePushes        *bool    `yaml:"allows_force_pushes,omitempty"`
	BypassActors             []string `yaml:"bypass_actors,omitempty"`
}

func (r *Ruleset) Kind() Kind  { return KindRuleset }
func (r *Ruleset) Key() string { return r.Pattern }

func (r *Ruleset) ProviderID() string {
	if r.ID == 0 {
		return ""
	}
	return strconv.FormatInt(r.ID, 10)
}

func (r *Ruleset) Diff(current Entity) []FieldChange {
	cur, ok := current.(*Ruleset)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "enforcement", r.Enforcement, cur.Enforcement)
	changes = diffScalar(changes, "required_approving_review_count", r.RequiredApprovingReviews, cur.RequiredApprovingReviews)
	changes = diffScalar(changes, "dismisses_stale_reviews", r.DismissStaleReviews, cur.DismissStaleReviews)
	changes = diffScalar(changes, "requires_code_owner_review", r.RequireCodeOwnerReview, cur.RequireCodeOwnerReview)
	changes = diffScalar(changes, "requires_last_push_approval", r.RequireLastPushApproval, cur.RequireLastPushApproval)
	changes = diffScalar(changes, "requires_review_thread_resolution", r.RequireThreadResolution, cur.RequireThreadResolution)
	changes = diffScalar(changes, "requires_linear_history", r.RequiresLinearHistory, cur.RequiresLinearHistory)
	changes = diffScalar(changes, "requires_commit_signatures", r.RequiresSignatures, cur.RequiresSignatures)
	changes = diffScalar(changes, "requires_status_checks", r.RequiresStatusChecks, cur.RequiresStatusChecks)
	changes = diffScalar(changes, "requires_strict_status_checks", r.StrictStatusChecks, cur.StrictStatusChecks)
	changes = diffStringSet(changes, "required_status_checks", r.RequiredStatusChecks, cur.RequiredStatusChecks)
	changes = diffScalar(changes, "allows_deletions", r.AllowsDeletions, cur.AllowsDeletions)
	changes = diffScalar(changes, "allows_force_pushes", r.AllowsForcePushes, cur.AllowsForcePushes)
	changes = diffStringSet(changes, "bypass_actors", r.BypassActors, cur.BypassActors)
	return changes
}

func (r *Ruleset) CreatePayload() map[string]any {
	payload := map[string]any{"pattern": r.Pattern}
	putScalar(payload, "enforcement", r.Enforcement)
	putScalar(payload, "required_approving_review_count", r.RequiredApprovingReviews)
	putScalar(payload, "dismisses_stale_reviews", r.DismissStaleReviews)
	putScalar(payload, "requires_code_owner_review", r.RequireCodeOwnerReview)
	putScalar(payload, "requires_last_push_approval", r.RequireLastPushApproval)
	putScalar(payload, "requires_review_thread_resolution", r.RequireThreadResolution)
	putScalar(payload, "requires_linear_history", r.RequiresLinearHistory)
	putScalar(payload, "requires_commit_signatures", r.RequiresSignatures)
	putScalar(payload, "requires_status_checks", r.RequiresStatusChecks)
	putScalar(payload, "requires_strict_status_checks", r.StrictStatusChecks)
	putList(payload, "required_status_checks", r.RequiredStatusChecks)
	putScalar(payload, "allows_deletions", r.AllowsDeletions)
	putScalar(payload, "allows_force_pushes", r.AllowsForcePushes)
	putList(payload, "bypass_actors", r.BypassActors)
	return payload
}

func (r *Ruleset) UpdatePayload(changes []FieldChange) map[string]any {
	return PayloadFromChanges(changes)
}
