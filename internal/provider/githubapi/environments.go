package githubapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v59/github"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

func (g *Gateway) fetchEnvironments(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	var out []model.Entity
	opts := &gh.EnvironmentListOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		envs, resp, err := g.client.Repositories.ListEnvironments(ctx, scope.Org, scope.Repo, opts)
		if err != nil {
			return nil, err
		}
		for _, e := range envs.Environments {
			out = append(out, environmentToModel(e))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func environmentToModel(e *gh.Environment) *model.Environment {
	m := &model.Environment{Name: e.GetName()}
	for _, rule := range e.ProtectionRules {
		switch rule.GetType() {
		case "wait_timer":
			m.WaitTimer = model.Ptr(rule.GetWaitTimer())
		case "required_reviewers":
			m.PreventSelfReview = rule.PreventSelfReview
			for _, r := range rule.Reviewers {
				if name := reviewerHandle(r); name != "" {
					m.Reviewers = append(m.Reviewers, name)
				}
			}
		}
	}
	m.BranchPolicyMode = model.Ptr(branchPolicyMode(e.DeploymentBranchPolicy))
	return m
}

// reviewerHandle flattens a protection-rule reviewer into the "type:login"
// form the config uses.
func reviewerHandle(r *gh.RequiredReviewer) string {
	switch v := r.Reviewer.(type) {
	case *gh.User:
		return "user:" + v.GetLogin()
	case *gh.Team:
		return "team:" + v.GetSlug()
	}
	return ""
}

func branchPolicyMode(bp *gh.BranchPolicy) string {
	switch {
	case bp == nil:
		return "all"
	case bp.GetProtectedBranches():
		return "protected"
	case bp.GetCustomBranchPolicies():
		return "selected"
	}
	return "all"
}

func branchPolicyFromMode(mode string) *gh.BranchPolicy {
	switch mode {
	case "protected":
		return &gh.BranchPolicy{ProtectedBranches: gh.Bool(true), CustomBranchPolicies: gh.Bool(false)}
	case "selected":
		return &gh.BranchPolicy{ProtectedBranches: gh.Bool(false), CustomBranchPolicies: gh.Bool(true)}
	}
	return nil
}

func (g *Gateway) createEnvironment(ctx context.Context, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	name, ok := strField(payload, "name")
	if !ok {
		return nil, fmt.Errorf("environment payload missing name")
	}
	return g.putEnvironment(ctx, scope, *name, payload, nil)
}

// updateEnvironment folds the change payload over the live environment:
// the provider endpoint is a full PUT, so unmentioned fields must be
// re-sent with their current values.
func (g *Gateway) updateEnvironment(ctx context.Context, scope provider.Scope, name string, payload map[string]any) error {
	current, _, err := g.client.Repositories.GetEnvironment(ctx, scope.Org, scope.Repo, name)
	if err != nil {
		return err
	}
	_, err = g.putEnvironment(ctx, scope, name, payload, environmentToModel(current))
	return err
}

func (g *Gateway) putEnvironment(ctx context.Context, scope provider.Scope, name string, payload map[string]any, current *model.Environment) (model.Entity, error) {
	req := &gh.CreateUpdateEnvironment{}
	if current != nil {
		req.WaitTimer = current.WaitTimer
		req.PreventSelfReview = current.PreventSelfReview
		if current.BranchPolicyMode != nil {
			req.DeploymentBranchPolicy = branchPolicyFromMode(*current.BranchPolicyMode)
		}
		reviewers, err := g.resolveReviewers(ctx, scope.Org, current.Reviewers)
		if err != nil {
			return nil, err
		}
		req.Reviewers = reviewers
	}

	if timer, ok := intField(payload, "wait_timer"); ok {
		req.WaitTimer = timer
	}
	if prevent, ok := boolField(payload, "prevent_self_review"); ok {
		req.PreventSelfReview = prevent
	}
	if mode, ok := strField(payload, "deployment_branch_policy"); ok {
		req.DeploymentBranchPolicy = branchPolicyFromMode(*mode)
	}
	if handles, ok := listField(payload, "reviewers"); ok {
		reviewers, err := g.resolveReviewers(ctx, scope.Org, handles)
		if err != nil {
			return nil, err
		}
		req.Reviewers = reviewers
	}

	env, _, err := g.client.Repositories.CreateUpdateEnvironment(ctx, scope.Org, scope.Repo, name, req)
	if err != nil {
		return nil, err
	}
	return environmentToModel(env), nil
}

// resolveReviewers turns "user:login" and "team:slug" handles into the
// numeric ids the protection-rule endpoint wants.
func (g *Gateway) resolveReviewers(ctx context.Context, org string, handles []string) ([]*gh.EnvReviewers, error) {
	reviewers := make([]*gh.EnvReviewers, 0, len(handles))
	for _, handle := range handles {
		kind, name, found := strings.Cut(handle, ":")
		if !found {
			kind, name = "user", handle
		}
		switch kind {
		case "user":
			u, _, err := g.client.Users.Get(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("resolving reviewer %q: %w", handle, err)
			}
			reviewers = append(reviewers, &gh.EnvReviewers{Type: gh.String("User"), ID: u.ID})
		case "team":
			t, _, err := g.client.Teams.GetTeamBySlug(ctx, org, name)
			if err != nil {
				return nil, fmt.Errorf("resolving reviewer %q: %w", handle, err)
			}
			reviewers = append(reviewers, &gh.EnvReviewers{Type: gh.String("Team"), ID: t.ID})
		default:
			return nil, fmt.Errorf("unknown reviewer type in %q", handle)
		}
	}
	return reviewers, nil
}

func (g *Gateway) deleteEnvironment(ctx context.Context, scope provider.Scope, name string) error {
	_, err := g.client.Repositories.DeleteEnvironment(ctx, scope.Org, scope.Repo, name)
	return err
}

func (g *Gateway) fetchBranchPolicies(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	policies, _, err := g.client.Repositories.ListDeploymentBranchPolicies(ctx, scope.Org, scope.Repo, scope.Environment)
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(policies.BranchPolicies))
	for _, p := range policies.BranchPolicies {
		m := &model.BranchPolicy{ID: p.GetID(), Name: p.GetName()}
		if p.Type != nil {
			m.Type = model.Ptr(*p.Type)
		}
		out = append(out, m)
	}
	return out, nil
}

func branchPolicyRequest(payload map[string]any) (*gh.DeploymentBranchPolicyRequest, error) {
	name, ok := strField(payload, "name")
	if !ok {
		return nil, fmt.Errorf("branch policy payload missing name")
	}
	req := &gh.DeploymentBranchPolicyRequest{Name: name}
	if t, ok := strField(payload, "type"); ok {
		req.Type = t
	}
	return req, nil
}

func (g *Gateway) createBranchPolicy(ctx context.Context, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	req, err := branchPolicyRequest(payload)
	if err != nil {
		return nil, err
	}
	p, _, err := g.client.Repositories.CreateDeploymentBranchPolicy(ctx, scope.Org, scope.Repo, scope.Environment, req)
	if err != nil {
		return nil, err
	}
	return &model.BranchPolicy{ID: p.GetID(), Name: p.GetName(), Type: p.Type}, nil
}

func (g *Gateway) updateBranchPolicy(ctx context.Context, scope provider.Scope, providerID string, payload map[string]any) error {
	id, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return fmt.Errorf("branch policy id %q: %w", providerID, err)
	}
	req, err := branchPolicyRequest(payload)
	if err != nil {
		return err
	}
	_, _, err = g.client.Repositories.UpdateDeploymentBranchPolicy(ctx, scope.Org, scope.Repo, scope.Environment, id, req)
	return err
}

func (g *Gateway) deleteBranchPolicy(ctx context.Context, scope provider.Scope, providerID string) error {
	id, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return fmt.Errorf("branch policy id %q: %w", providerID, err)
	}
	_, err = g.client.Repositories.DeleteDeploymentBranchPolicy(ctx, scope.Org, scope.Repo, scope.Environment, id)
	return err
}
