package diff

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Options controls engine behavior.
type Options struct {
	// TolerateFetchErrors treats a failed current-state fetch as an empty
	// collection plus a warning instead of a fatal condition for that
	// subtree. Some providers 404 on collections of temporary forks.
	TolerateFetchErrors bool
	// FetchConcurrency bounds concurrent child-collection fetches across
	// repositories. Zero means a sensible default.
	FetchConcurrency int
}

// Engine reconciles one organization tree against live state.
type Engine struct {
	gw   provider.Gateway
	opts Options
}

// New creates an Engine reading current state through gw.
func New(gw provider.Gateway, opts Options) *Engine {
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}
	return &Engine{gw: gw, opts: opts}
}

// Compute walks the expected tree against current state and returns the
// Diff. It is a pure function of its two inputs: running it twice against
// unchanged current state yields identical results. Only fetch failures can
// make it fail; it never writes anything.
func (e *Engine) Compute(ctx context.Context, org *model.Organization) (*Diff, error) {
	d := &Diff{Org: org.Login}
	orgScope := provider.Scope{Org: org.Login}

	if org.Settings != nil {
		if err := e.diffSettings(ctx, orgScope, org.Settings, d); err != nil {
			return nil, err
		}
	}

	if err := e.diffCollection(ctx, orgScope, orgScope, model.KindWebhook, webhookEntities(org.Webhooks), d, nil); err != nil {
		return nil, err
	}
	if err := e.diffCollection(ctx, orgScope, orgScope, model.KindSecret, secretEntities(org.Secrets), d, nil); err != nil {
		return nil, err
	}
	if err := e.diffCollection(ctx, orgScope, orgScope, model.KindVariable, variableEntities(org.Variables), d, nil); err != nil {
		return nil, err
	}

	if err := e.diffRepositories(ctx, orgScope, org.Repositories, d); err != nil {
		return nil, err
	}

	d.summarize()
	return d, nil
}

func (e *Engine) diffSettings(ctx context.Context, scope provider.Scope, expected *model.Settings, d *Diff) error {
	current, ok, err := e.fetch(ctx, model.KindSettings, scope, d)
	if err != nil {
		return err
	}
	if !ok || len(current) == 0 {
		return nil
	}
	changes := expected.Diff(current[0])
	if len(changes) == 0 {
		return nil
	}
	d.Nodes = append(d.Nodes, &Node{
		Scope: scope,
		Kind:  model.KindSettings,
		Modifications: []Modification{{
			Key:        scope.Org,
			CurrentKey: scope.Org,
			Expected:   expected,
			Changes:    changes,
		}},
	})
	return nil
}

// diffCollection reconciles one flat collection and appends a node when it
// is non-empty. Current state is read at fetchScope, which differs from
// scope only while a parent rename is pending. Matched pairs, when the
// caller cares about them, land in out.
func (e *Engine) diffCollection(ctx context.Context, scope, fetchScope provider.Scope, kind model.Kind, expected []model.Entity, d *Diff, out *[]matchedPair) error {
	current, ok, err := e.fetch(ctx, kind, fetchScope, d)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	node, matched, err := reconcile(scope, kind, expected, current)
	if err != nil {
		return err
	}
	if !node.empty() {
		d.Nodes = append(d.Nodes, node)
	}
	if out != nil {
		*out = append(*out, matched...)
	}
	return nil
}

func (e *Engine) diffRepositories(ctx context.Context, orgScope provider.Scope, repos []*model.Repository, d *Diff) error {
	current, ok, err := e.fetch(ctx, model.KindRepository, orgScope, d)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	node, matched, err := reconcile(orgScope, model.KindRepository, repositoryEntities(repos), current)
	if err != nil {
		return err
	}
	if !node.empty() {
		d.Nodes = append(d.Nodes, node)
	}

	// Child collections of added repositories are not diffed: the parent
	// does not exist live, the whole subtree is one addition.
	type repoResult struct {
		nodes    []*Node
		warnings []string
	}
	results := make([]repoResult, len(matched))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FetchConcurrency)
	for i, pair := range matched {
		i, pair := i, pair
		g.Go(func() error {
			sub := &Diff{Org: d.Org}
			expected := pair.expected.(*model.Repository)
			if err := e.diffRepoChildren(gctx, orgScope.Org, expected, pair.current.Key(), sub); err != nil {
				return err
			}
			results[i] = repoResult{nodes: sub.Nodes, warnings: sub.Warnings}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		d.Nodes = append(d.Nodes, r.nodes...)
		d.Warnings = append(d.Warnings, r.warnings...)
	}
	return nil
}

func (e *Engine) diffRepoChildren(ctx context.Context, org string, repo *model.Repository, liveName string, d *Diff) error {
	scope := provider.Scope{Org: org, Repo: repo.Name}
	// A repository pending a rename is still addressed by its live name; the
	// emitted nodes keep the configured name since the rename patch is
	// applied before any child patch.
	fetchScope := provider.Scope{Org: org, Repo: liveName}

	if err := e.diffCollection(ctx, scope, fetchScope, model.KindRuleset, rulesetEntities(repo.Rulesets), d, nil); err != nil {
		return err
	}
	if err := e.diffCollection(ctx, scope, fetchScope, model.KindSecret, secretEntities(repo.Secrets), d, nil); err != nil {
		return err
	}
	if err := e.diffCollection(ctx, scope, fetchScope, model.KindVariable, variableEntities(repo.Variables), d, nil); err != nil {
		return err
	}

	var envPairs []matchedPair
	if err := e.diffCollection(ctx, scope, fetchScope, model.KindEnvironment, environmentEntities(repo.Environments), d, &envPairs); err != nil {
		return err
	}
	for _, pair := range envPairs {
		env := pair.expected.(*model.Environment)
		envScope := provider.Scope{Org: org, Repo: repo.Name, Environment: env.Name}
		envFetch := provider.Scope{Org: org, Repo: liveName, Environment: env.Name}
		if err := e.diffCollection(ctx, envScope, envFetch, model.KindBranchPolicy, branchPolicyEntities(env.BranchPolicies), d, nil); err != nil {
			return err
		}
	}
	return nil
}

// fetch reads current state for one collection. Auth failures and context
// cancellation abort the run; other fetch failures are either tolerated
// (empty current state plus a warning) or recorded and the subtree skipped,
// leaving sibling subtrees unaffected.
func (e *Engine) fetch(ctx context.Context, kind model.Kind, scope provider.Scope, d *Diff) ([]model.Entity, bool, error) {
	current, err := e.gw.Fetch(ctx, kind, scope)
	if err == nil {
		return current, true, nil
	}
	if provider.IsAuth(err) || ctx.Err() != nil {
		return nil, false, err
	}
	if e.opts.TolerateFetchErrors {
		slog.Warn("fetch failed, assuming empty", "kind", kind, "scope", scope.String(), "error", err)
		d.Warnings = append(d.Warnings, fmt.Sprintf("assumed empty %s in %s: %v", kind, scope, err))
		return nil, true, nil
	}
	slog.Error("fetch failed, skipping subtree", "kind", kind, "scope", scope.String(), "error", err)
	d.Warnings = append(d.Warnings, fmt.Sprintf("skipped %s in %s: %v", kind, scope, err))
	return nil, false, nil
}

func webhookEntities(in []*model.Webhook) []model.Entity {
	out := make([]model.Entity, len(in))
	for i, w := range in {
		out[i] = w
	}
	return out
}

func secretEntities(in []*model.Secret) []model.Entity {
	out := make([]model.Entity, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func variableEntities(in []*model.Variable) []model.Entity {
	out := make([]model.Entity, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func repositoryEntities(in []*model.Repository) []model.Entity {
	out := make([]model.Entity, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}

func rulesetEntities(in []*model.Ruleset) []model.Entity {
	out := make([]model.Entity, len(in))
	for i, r := range in {
		out[i] = r
	}
	return out
}

func environmentEntities(in []*model.Environment) []model.Entity {
	out := make([]model.Entity, len(in))
	for i, e := range in {
		out[i] = e
	}
	return out
}

func branchPolicyEntities(in []*model.BranchPolicy) []model.Entity {
	out := make([]model.Entity, len(in))
	for i, b := range in {
		out[i] = b
	}
	return out
}
