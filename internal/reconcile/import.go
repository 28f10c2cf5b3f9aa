package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Import reads the full live state of one organization and assembles it
// into an expected-state tree, used to seed or refresh a config file.
func (r *Runner) Import(ctx context.Context, org string) (*model.Organization, error) {
	out := &model.Organization{Login: org}
	scope := provider.Scope{Org: org}

	settings, err := r.gw.Fetch(ctx, model.KindSettings, scope)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		s, ok := settings[0].(*model.Settings)
		if !ok {
			return nil, fmt.Errorf("unexpected settings entity %T", settings[0])
		}
		out.Settings = s
	}

	hooks, err := r.gw.Fetch(ctx, model.KindWebhook, scope)
	if err != nil {
		return nil, err
	}
	for _, e := range hooks {
		out.Webhooks = append(out.Webhooks, e.(*model.Webhook))
	}

	secrets, err := r.gw.Fetch(ctx, model.KindSecret, scope)
	if err != nil {
		return nil, err
	}
	for _, e := range secrets {
		out.Secrets = append(out.Secrets, e.(*model.Secret))
	}

	variables, err := r.gw.Fetch(ctx, model.KindVariable, scope)
	if err != nil {
		return nil, err
	}
	for _, e := range variables {
		out.Variables = append(out.Variables, e.(*model.Variable))
	}

	repos, err := r.gw.Fetch(ctx, model.KindRepository, scope)
	if err != nil {
		return nil, err
	}
	for _, e := range repos {
		repo := e.(*model.Repository)
		if err := r.importRepo(ctx, org, repo); err != nil {
			return nil, err
		}
		out.Repositories = append(out.Repositories, repo)
		slog.Info("imported repository", "org", org, "repo", repo.Name)
	}
	return out, nil
}

func (r *Runner) importRepo(ctx context.Context, org string, repo *model.Repository) error {
	scope := provider.Scope{Org: org, Repo: repo.Name}

	rulesets, err := r.gw.Fetch(ctx, model.KindRuleset, scope)
	if err != nil {
		return err
	}
	for _, e := range rulesets {
		repo.Rulesets = append(repo.Rulesets, e.(*model.Ruleset))
	}

	secrets, err := r.gw.Fetch(ctx, model.KindSecret, scope)
	if err != nil {
		return err
	}
	for _, e := range secrets {
		repo.Secrets = append(repo.Secrets, e.(*model.Secret))
	}

	variables, err := r.gw.Fetch(ctx, model.KindVariable, scope)
	if err != nil {
		return err
	}
	for _, e := range variables {
		repo.Variables = append(repo.Variables, e.(*model.Variable))
	}

	envs, err := r.gw.Fetch(ctx, model.KindEnvironment, scope)
	if err != nil {
		return err
	}
	for _, e := range envs {
		env := e.(*model.Environment)
		if env.BranchPolicyMode != nil && *env.BranchPolicyMode == "selected" {
			escope := provider.Scope{Org: org, Repo: repo.Name, Environment: env.Name}
			policies, err := r.gw.Fetch(ctx, model.KindBranchPolicy, escope)
			if err != nil {
				return err
			}
			for _, p := range policies {
				env.BranchPolicies = append(env.BranchPolicies, p.(*model.BranchPolicy))
			}
		}
		repo.Environments = append(repo.Environments, env)
	}
	return nil
}
