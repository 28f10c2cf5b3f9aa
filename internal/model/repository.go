package model

import "strconv"

// Repository is one repository owned by the organization, keyed by name.
// The provider-assigned numeric id survives renames and is used to correlate
// a renamed repository with its configuration.
type Repository struct {
	ID int64 `yaml:"id,omitempty"`

	Name                string   `yaml:"name"`
	Description         *string  `yaml:"description,omitempty"`
	Homepage            *string  `yaml:"homepage,omitempty"`
	Private             *bool    `yaml:"private,omitempty"`
	HasIssues           *bool    `yaml:"has_issues,omitempty"`
	HasWiki             *bool    `yaml:"has_wiki,omitempty"`
	HasProjects         *bool    `yaml:"has_projects,omitempty"`
	HasDiscussions      *bool    `yaml:"has_discussions,omitempty"`
	IsTemplate          *bool    `yaml:"is_template,omitempty"`
	AllowSquashMerge    *bool    `yaml:"allow_squash_merge,omitempty"`
	AllowMergeCommit    *bool    `yaml:"allow_merge_commit,omitempty"`
	AllowRebaseMerge    *bool    `yaml:"allow_rebase_merge,omitempty"`
	AllowAutoMerge      *bool    `yaml:"allow_auto_merge,omitempty"`
	DeleteBranchOnMerge *bool    `yaml:"delete_branch_on_merge,omitempty"`
	AllowUpdateBranch   *bool    `yaml:"allow_update_branch,omitempty"`
	DefaultBranch       *string  `yaml:"default_branch,omitempty"`
	Archived            *bool    `yaml:"archived,omitempty"`
	WebCommitSignoff    *bool    `yaml:"web_commit_signoff_required,omitempty"`
	Topics              []string `yaml:"topics,omitempty"`
	VulnerabilityAlerts *bool    `yaml:"vulnerability_alerts,omitempty"`

	Rulesets     []*Ruleset     `yaml:"branch_protection_rules,omitempty"`
	Secrets      []*Secret      `yaml:"secrets,omitempty"`
	Variables    []*Variable    `yaml:"variables,omitempty"`
	Environments []*Environment `yaml:"environments,omitempty"`
}

func (r *Repository) Kind() Kind  { return KindRepository }
func (r *Repository) Key() string { return r.Name }

func (r *Repository) ProviderID() string {
	if r.ID == 0 {
		return ""
	}
	return strconv.FormatInt(r.ID, 10)
}

// SubresourceFields lists fields that require dedicated provider endpoints
// and therefore their own patches.
func (r *Repository) SubresourceFields() []string {
	return []string{"topics", "vulnerability_alerts"}
}

func (r *Repository) Diff(current Entity) []FieldChange {
	cur, ok := current.(*Repository)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "description", r.Description, cur.Description)
	changes = diffScalar(changes, "homepage", r.Homepage, cur.Homepage)
	changes = diffScalar(changes, "private", r.Private, cur.Private)
	changes = diffScalar(changes, "has_issues", r.HasIssues, cur.HasIssues)
	changes = diffScalar(changes, "has_wiki", r.HasWiki, cur.HasWiki)
	changes = diffScalar(changes, "has_projects", r.HasProjects, cur.HasProjects)
	changes = diffScalar(changes, "has_discussions", r.HasDiscussions, cur.HasDiscussions)
	changes = diffScalar(changes, "is_template", r.IsTemplate, cur.IsTemplate)
	changes = diffScalar(changes, "allow_squash_merge", r.AllowSquashMerge, cur.AllowSquashMerge)
	changes = diffScalar(changes, "allow_merge_commit", r.AllowMergeCommit, cur.AllowMergeCommit)
	changes = diffScalar(changes, "allow_rebase_merge", r.AllowRebaseMerge, cur.AllowRebaseMerge)
	changes = diffScalar(changes, "allow_auto_merge", r.AllowAutoMerge, cur.AllowAutoMerge)
	changes = diffScalar(changes, "delete_branch_on_merge", r.DeleteBranchOnMerge, cur.DeleteBranchOnMerge)
	changes = diffScalar(changes, "allow_update_branch", r.AllowUpdateBranch, cur.AllowUpdateBranch)
	changes = diffScalar(changes, "default_branch", r.DefaultBranch, cur.DefaultBranch)
	changes = diffScalar(changes, "archived", r.Archived, cur.Archived)
	changes = diffScalar(changes, "web_commit_signoff_required", r.WebCommitSignoff, cur.WebCommitSignoff)
	changes = diffStringSet(changes, "topics", r.Topics, cur.Topics)
	changes = diffScalar(changes, "vulnerability_alerts", r.VulnerabilityAlerts, cur.VulnerabilityAlerts)
	return changes
}

func (r *Repository) CreatePayload() map[string]any {
	payload := map[string]any{"name": r.Name}
	putScalar(payload, "description", r.Description)
	putScalar(payload, "homepage", r.Homepage)
	putScalar(payload, "private", r.Private)
	putScalar(payload, "has_issues", r.HasIssues)
	putScalar(payload, "has_wiki", r.HasWiki)
	putScalar(payload, "has_projects", r.HasProjects)
	putScalar(payload, "has_discussions", r.HasDiscussions)
	putScalar(payload, "is_template", r.IsTemplate)
	putScalar(payload, "allow_squash_merge", r.AllowSquashMerge)
	putScalar(payload, "allow_merge_commit", r.AllowMergeCommit)
	putScalar(payload, "allow_rebase_merge", r.AllowRebaseMerge)
	putScalar(payload, "allow_auto_merge", r.AllowAutoMerge)
	putScalar(payload, "delete_branch_on_merge", r.DeleteBranchOnMerge)
	putScalar(payload, "allow_update_branch", r.AllowUpdateBranch)
	putScalar(payload, "default_branch", r.DefaultBranch)
	putScalar(payload, "archived", r.Archived)
	putScalar(payload, "web_commit_signoff_required", r.WebCommitSignoff)
	putList(payload, "topics", r.Topics)
	putScalar(payload, "vulnerability_alerts", r.VulnerabilityAlerts)
	return payload
}

func (r *Repository) UpdatePayload(changes []FieldChange) map[string]any {
	return PayloadFromChanges(changes)
}
