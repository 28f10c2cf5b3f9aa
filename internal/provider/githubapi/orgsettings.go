package githubapi

import (
	"context"

	gh "github.com/google/go-github/v59/github"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

func (g *Gateway) fetchSettings(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	org, _, err := g.client.Organizations.Get(ctx, scope.Org)
	if err != nil {
		return nil, err
	}
	s := &model.Settings{
		Org:                          scope.Org,
		Name:                         org.Name,
		Description:                  org.Description,
		Company:                      org.Company,
		Email:                        org.Email,
		BillingEmail:                 org.BillingEmail,
		Location:                     org.Location,
		Blog:                         org.Blog,
		TwitterUsername:              org.TwitterUsername,
		HasOrganizationProjects:      org.HasOrganizationProjects,
		HasRepositoryProjects:        org.HasRepositoryProjects,
		DefaultRepoPermission:        org.DefaultRepoPermission,
		MembersCanCreateRepos:        org.MembersCanCreateRepos,
		MembersCanCreatePrivateRepos: org.MembersCanCreatePrivateRepos,
		MembersCanCreatePages:        org.MembersCanCreatePages,
		MembersCanForkPrivateRepos:   org.MembersCanForkPrivateRepos,
		WebCommitSignoffRequired:     org.WebCommitSignoffRequired,
		TwoFactorRequired:            org.TwoFactorRequirementEnabled,
	}
	return []model.Entity{s}, nil
}

func (g *Gateway) updateSettings(ctx context.Context, scope provider.Scope, payload map[string]any) error {
	org := &gh.Organization{}
	if v, ok := strField(payload, "name"); ok {
		org.Name = v
	}
	if v, ok := strField(payload, "description"); ok {
		org.Description = v
	}
	if v, ok := strField(payload, "company"); ok {
		org.Company = v
	}
	if v, ok := strField(payload, "email"); ok {
		org.Email = v
	}
	if v, ok := strField(payload, "billing_email"); ok {
		org.BillingEmail = v
	}
	if v, ok := strField(payload, "location"); ok {
		org.Location = v
	}
	if v, ok := strField(payload, "blog"); ok {
		org.Blog = v
	}
	if v, ok := strField(payload, "twitter_username"); ok {
		org.TwitterUsername = v
	}
	if v, ok := boolField(payload, "has_organization_projects"); ok {
		org.HasOrganizationProjects = v
	}
	if v, ok := boolField(payload, "has_repository_projects"); ok {
		org.HasRepositoryProjects = v
	}
	if v, ok := strField(payload, "default_repository_permission"); ok {
		org.DefaultRepoPermission = v
	}
	if v, ok := boolField(payload, "members_can_create_repositories"); ok {
		org.MembersCanCreateRepos = v
	}
	if v, ok := boolField(payload, "members_can_create_private_repositories"); ok {
		org.MembersCanCreatePrivateRepos = v
	}
	if v, ok := boolField(payload, "members_can_create_pages"); ok {
		org.MembersCanCreatePages = v
	}
	if v, ok := boolField(payload, "members_can_fork_private_repositories"); ok {
		org.MembersCanForkPrivateRepos = v
	}
	if v, ok := boolField(payload, "web_commit_signoff_required"); ok {
		org.WebCommitSignoffRequired = v
	}
	_, _, err := g.client.Organizations.Edit(ctx, scope.Org, org)
	return err
}
