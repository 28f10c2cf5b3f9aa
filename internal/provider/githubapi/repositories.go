package githubapi

import (
	"context"

	gh "github.com/google/go-github/v59/github"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

func (g *Gateway) fetchRepositories(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	var out []model.Entity
	opts := &gh.RepositoryListByOrgOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		repos, resp, err := g.client.Repositories.ListByOrg(ctx, scope.Org, opts)
		if err != nil {
			return nil, err
		}
		for _, r := range repos {
			m := repoToModel(r)
			// The list endpoint does not carry the alert flag; it has its
			// own sub-resource.
			alerts, _, err := g.client.Repositories.GetVulnerabilityAlerts(ctx, scope.Org, r.GetName())
			if err == nil {
				m.VulnerabilityAlerts = &alerts
			}
			out = append(out, m)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func repoToModel(r *gh.Repository) *model.Repository {
	return &model.Repository{
		ID:                  r.GetID(),
		Name:                r.GetName(),
		Description:         r.Description,
		Homepage:            r.Homepage,
		Private:             r.Private,
		HasIssues:           r.HasIssues,
		HasWiki:             r.HasWiki,
		HasProjects:         r.HasProjects,
		HasDiscussions:      r.HasDiscussions,
		IsTemplate:          r.IsTemplate,
		AllowSquashMerge:    r.AllowSquashMerge,
		AllowMergeCommit:    r.AllowMergeCommit,
		AllowRebaseMerge:    r.AllowRebaseMerge,
		AllowAutoMerge:      r.AllowAutoMerge,
		DeleteBranchOnMerge: r.DeleteBranchOnMerge,
		AllowUpdateBranch:   r.AllowUpdateBranch,
		DefaultBranch:       r.DefaultBranch,
		Archived:            r.Archived,
		WebCommitSignoff:    r.WebCommitSignoffRequired,
		Topics:              r.Topics,
	}
}

func repoFromPayload(payload map[string]any) *gh.Repository {
	r := &gh.Repository{}
	if v, ok := strField(payload, "name"); ok {
		r.Name = v
	}
	if v, ok := strField(payload, "description"); ok {
		r.Description = v
	}
	if v, ok := strField(payload, "homepage"); ok {
		r.Homepage = v
	}
	if v, ok := boolField(payload, "private"); ok {
		r.Private = v
	}
	if v, ok := boolField(payload, "has_issues"); ok {
		r.HasIssues = v
	}
	if v, ok := boolField(payload, "has_wiki"); ok {
		r.HasWiki = v
	}
	if v, ok := boolField(payload, "has_projects"); ok {
		r.HasProjects = v
	}
	if v, ok := boolField(payload, "has_discussions"); ok {
		r.HasDiscussions = v
	}
	if v, ok := boolField(payload, "is_template"); ok {
		r.IsTemplate = v
	}
	if v, ok := boolField(payload, "allow_squash_merge"); ok {
		r.AllowSquashMerge = v
	}
	if v, ok := boolField(payload, "allow_merge_commit"); ok {
		r.AllowMergeCommit = v
	}
	if v, ok := boolField(payload, "allow_rebase_merge"); ok {
		r.AllowRebaseMerge = v
	}
	if v, ok := boolField(payload, "allow_auto_merge"); ok {
		r.AllowAutoMerge = v
	}
	if v, ok := boolField(payload, "delete_branch_on_merge"); ok {
		r.DeleteBranchOnMerge = v
	}
	if v, ok := boolField(payload, "allow_update_branch"); ok {
		r.AllowUpdateBranch = v
	}
	if v, ok := strField(payload, "default_branch"); ok {
		r.DefaultBranch = v
	}
	if v, ok := boolField(payload, "archived"); ok {
		r.Archived = v
	}
	if v, ok := boolField(payload, "web_commit_signoff_required"); ok {
		r.WebCommitSignoffRequired = v
	}
	return r
}

func (g *Gateway) createRepository(ctx context.Context, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	created, _, err := g.client.Repositories.Create(ctx, scope.Org, repoFromPayload(payload))
	if err != nil {
		return nil, err
	}
	return repoToModel(created), nil
}

// updateRepository dispatches on the payload: topics and vulnerability
// alerts have their own endpoints, everything else rides on a single edit.
// The planner guarantees a payload holds either one sub-resource field or
// only generic fields.
func (g *Gateway) updateRepository(ctx context.Context, scope provider.Scope, payload map[string]any) error {
	if topics, ok := listField(payload, "topics"); ok {
		_, _, err := g.client.Repositories.ReplaceAllTopics(ctx, scope.Org, scope.Repo, topics)
		return err
	}
	if enabled, ok := boolField(payload, "vulnerability_alerts"); ok {
		if *enabled {
			_, err := g.client.Repositories.EnableVulnerabilityAlerts(ctx, scope.Org, scope.Repo)
			return err
		}
		_, err := g.client.Repositories.DisableVulnerabilityAlerts(ctx, scope.Org, scope.Repo)
		return err
	}
	_, _, err := g.client.Repositories.Edit(ctx, scope.Org, scope.Repo, repoFromPayload(payload))
	return err
}

func (g *Gateway) deleteRepository(ctx context.Context, scope provider.Scope) error {
	_, err := g.client.Repositories.Delete(ctx, scope.Org, scope.Repo)
	return err
}
