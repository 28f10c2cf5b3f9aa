package githubapi

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v59/github"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

func (g *Gateway) fetchVariables(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	var out []model.Entity
	opts := &gh.ListOptions{PerPage: 100}
	for {
		var vars *gh.ActionsVariables
		var resp *gh.Response
		var err error
		if scope.Repo == "" {
			vars, resp, err = g.client.Actions.ListOrgVariables(ctx, scope.Org, opts)
		} else {
			vars, resp, err = g.client.Actions.ListRepoVariables(ctx, scope.Org, scope.Repo, opts)
		}
		if err != nil {
			return nil, err
		}
		for _, v := range vars.Variables {
			m := &model.Variable{Name: v.Name, Value: model.Ptr(v.Value)}
			if v.Visibility != nil {
				m.Visibility = model.Ptr(*v.Visibility)
			}
			if v.Visibility != nil && *v.Visibility == "selected" {
				selected, err := g.selectedRepoNamesForVariable(ctx, scope.Org, v.Name)
				if err != nil {
					return nil, err
				}
				m.SelectedRepositories = selected
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

func (g *Gateway) selectedRepoNamesForVariable(ctx context.Context, org, name string) ([]string, error) {
	var names []string
	opts := &gh.ListOptions{PerPage: 100}
	for {
		list, resp, err := g.client.Actions.ListSelectedReposForOrgVariable(ctx, org, name, opts)
		if err != nil {
			return nil, err
		}
		for _, r := range list.Repositories {
			names = append(names, r.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

func (g *Gateway) variableFromPayload(ctx context.Context, scope provider.Scope, payload map[string]any) (*gh.ActionsVariable, error) {
	name, ok := strField(payload, "name")
	if !ok {
		return nil, fmt.Errorf("variable payload missing name")
	}
	v := &gh.ActionsVariable{Name: *name}
	if value, ok := strField(payload, "value"); ok {
		v.Value = *value
	}
	if scope.Repo == "" {
		if vis, ok := strField(payload, "visibility"); ok {
			v.Visibility = vis
		}
		if names, ok := listField(payload, "selected_repositories"); ok {
			ids, err := g.resolveRepoIDs(ctx, scope.Org, names)
			if err != nil {
				return nil, err
			}
			v.SelectedRepositoryIDs = &ids
		}
	}
	return v, nil
}

func (g *Gateway) createVariable(ctx context.Context, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	v, err := g.variableFromPayload(ctx, scope, payload)
	if err != nil {
		return nil, err
	}
	if scope.Repo == "" {
		_, err = g.client.Actions.CreateOrgVariable(ctx, scope.Org, v)
	} else {
		_, err = g.client.Actions.CreateRepoVariable(ctx, scope.Org, scope.Repo, v)
	}
	if err != nil {
		return nil, err
	}
	return &model.Variable{Name: v.Name}, nil
}

// updateVariable folds the change payload over the current variable so the
// PATCH body carries every field the provider expects.
func (g *Gateway) updateVariable(ctx context.Context, scope provider.Scope, name string, payload map[string]any) error {
	payload["name"] = name
	v, err := g.variableFromPayload(ctx, scope, payload)
	if err != nil {
		return err
	}
	if scope.Repo == "" {
		_, err = g.client.Actions.UpdateOrgVariable(ctx, scope.Org, v)
	} else {
		_, err = g.client.Actions.UpdateRepoVariable(ctx, scope.Org, scope.Repo, v)
	}
	return err
}

func (g *Gateway) deleteVariable(ctx context.Context, scope provider.Scope, name string) error {
	var err error
	if scope.Repo == "" {
		_, err = g.client.Actions.DeleteOrgVariable(ctx, scope.Org, name)
	} else {
		_, err = g.client.Actions.DeleteRepoVariable(ctx, scope.Org, scope.Repo, name)
	}
	return err
}
