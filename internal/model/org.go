package model

// Organization is the root of an expected-state tree: one GitHub organization
// with its settings and owned collections.
type Organization struct {
	Login        string        `yaml:"github_id"`
	Settings     *Settings     `yaml:"settings,omitempty"`
	Webhooks     []*Webhook    `yaml:"webhooks,omitempty"`
	Secrets      []*Secret     `yaml:"secrets,omitempty"`
	Variables    []*Variable   `yaml:"variables,omitempty"`
	Repositories []*Repository `yaml:"repositories,omitempty"`
}

// Settings holds organization-wide settings. It is a singleton per org; its
// natural key is the organization login.
type Settings struct {
	Org string `yaml:"-"`

	Name                         *string `yaml:"name,omitempty"`
	Description                  *string `yaml:"description,omitempty"`
	Company                      *string `yaml:"company,omitempty"`
	Email                        *string `yaml:"email,omitempty"`
	BillingEmail                 *string `yaml:"billing_email,omitempty"`
	Location                     *string `yaml:"location,omitempty"`
	Blog                         *string `yaml:"blog,omitempty"`
	TwitterUsername              *string `yaml:"twitter_username,omitempty"`
	HasOrganizationProjects      *bool   `yaml:"has_organization_projects,omitempty"`
	HasRepositoryProjects        *bool   `yaml:"has_repository_projects,omitempty"`
	DefaultRepoPermission        *string `yaml:"default_repository_permission,omitempty"`
	MembersCanCreateRepos        *bool   `yaml:"members_can_create_repositories,omitempty"`
	MembersCanCreatePrivateRepos *bool   `yaml:"members_can_create_private_repositories,omitempty"`
	MembersCanCreatePages        *bool   `yaml:"members_can_create_pages,omitempty"`
	MembersCanForkPrivateRepos   *bool   `yaml:"members_can_fork_private_repositories,omitempty"`
	WebCommitSignoffRequired     *bool   `yaml:"web_commit_signoff_required,omitempty"`
	TwoFactorRequired            *bool   `yaml:"two_factor_required,omitempty"`
}

func (s *Settings) Kind() Kind         { return KindSettings }
func (s *Settings) Key() string        { return s.Org }
func (s *Settings) ProviderID() string { return "" }

func (s *Settings) Diff(current Entity) []FieldChange {
	cur, ok := current.(*Settings)
	if !ok {
		return nil
	}
	var changes []FieldChange
	changes = diffScalar(changes, "name", s.Name, cur.Name)
	changes = diffScalar(changes, "description", s.Description, cur.Description)
	changes = diffScalar(changes, "company", s.Company, cur.Company)
	changes = diffScalar(changes, "email", s.Email, cur.Email)
	changes = diffScalar(changes, "billing_email", s.BillingEmail, cur.BillingEmail)
	changes = diffScalar(changes, "location", s.Location, cur.Location)
	changes = diffScalar(changes, "blog", s.Blog, cur.Blog)
	changes = diffScalar(changes, "twitter_username", s.TwitterUsername, cur.TwitterUsername)
	changes = diffScalar(changes, "has_organization_projects", s.HasOrganizationProjects, cur.HasOrganizationProjects)
	changes = diffScalar(changes, "has_repository_projects", s.HasRepositoryProjects, cur.HasRepositoryProjects)
	changes = diffScalar(changes, "default_repository_permission", s.DefaultRepoPermission, cur.DefaultRepoPermission)
	changes = diffScalar(changes, "members_can_create_repositories", s.MembersCanCreateRepos, cur.MembersCanCreateRepos)
	changes = diffScalar(changes, "members_can_create_private_repositories", s.MembersCanCreatePrivateRepos, cur.MembersCanCreatePrivateRepos)
	changes = diffScalar(changes, "members_can_create_pages", s.MembersCanCreatePages, cur.MembersCanCreatePages)
	changes = diffScalar(changes, "members_can_fork_private_repositories", s.MembersCanForkPrivateRepos, cur.MembersCanForkPrivateRepos)
	changes = diffScalar(changes, "web_commit_signoff_required", s.WebCommitSignoffRequired, cur.WebCommitSignoffRequired)
	changes = diffScalar(changes, "two_factor_required", s.TwoFactorRequired, cur.TwoFactorRequired)
	return changes
}

func (s *Settings) CreatePayload() map[string]any {
	// Settings are never created, only updated; the payload is still useful
	// for the fetch/import flow.
	payload := map[string]any{}
	putScalar(payload, "name", s.Name)
	putScalar(payload, "description", s.Description)
	putScalar(payload, "company", s.Company)
	putScalar(payload, "email", s.Email)
	putScalar(payload, "billing_email", s.BillingEmail)
	putScalar(payload, "location", s.Location)
	putScalar(payload, "blog", s.Blog)
	putScalar(payload, "twitter_username", s.TwitterUsername)
	putScalar(payload, "has_organization_projects", s.HasOrganizationProjects)
	putScalar(payload, "has_repository_projects", s.HasRepositoryProjects)
	putScalar(payload, "default_repository_permission", s.DefaultRepoPermission)
	putScalar(payload, "members_can_create_repositories", s.MembersCanCreateRepos)
	putScalar(payload, "members_can_create_private_repositories", s.MembersCanCreatePrivateRepos)
	putScalar(payload, "members_can_create_pages", s.MembersCanCreatePages)
	putScalar(payload, "members_can_fork_private_repositories", s.MembersCanForkPrivateRepos)
	putScalar(payload, "web_commit_signoff_required", s.WebCommitSignoffRequired)
	putScalar(payload, "two_factor_required", s.TwoFactorRequired)
	return payload
}

func (s *Settings) UpdatePayload(changes []FieldChange) map[string]any {
	return PayloadFromChanges(changes)
}
