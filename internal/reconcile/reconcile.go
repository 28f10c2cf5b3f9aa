// Package reconcile orchestrates the full workflow per organization: load
// the expected configuration, validate it, diff against live state, plan,
// and optionally apply.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/orgsync/internal/apply"
	"github.com/everstacklabs/orgsync/internal/config"
	"github.com/everstacklabs/orgsync/internal/diff"
	"github.com/everstacklabs/orgsync/internal/loader"
	"github.com/everstacklabs/orgsync/internal/plan"
	"github.com/everstacklabs/orgsync/internal/provider"
	"github.com/everstacklabs/orgsync/internal/validate"
)

// ExitCode constants for CLI.
const (
	ExitSuccess    = 0
	ExitChanges    = 2 // Pending changes detected (plan mode)
	ExitValidation = 3 // Configuration failed validation
	ExitPartial    = 4 // Apply finished with failures
)

// Runner drives reconciliation for the configured organizations.
type Runner struct {
	cfg *config.Config
	gw  provider.Gateway
}

// New creates a Runner.
func New(cfg *config.Config, gw provider.Gateway) *Runner {
	return &Runner{cfg: cfg, gw: gw}
}

// RunResult holds the outcome for one organization.
type RunResult struct {
	Org        string
	Validation *validate.Result
	Diff       *diff.Diff
	Patches    []plan.Patch
	Apply      *apply.Result
	Error      error
}

// Orgs resolves the organization list: the configured names, or every
// config file under <config_path>/orgs when none are named.
func (r *Runner) Orgs() ([]string, error) {
	if len(r.cfg.Orgs) > 0 {
		return r.cfg.Orgs, nil
	}

	pattern := filepath.Join(r.cfg.ConfigPath, "orgs", "*.yml")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}
	var orgs []string
	for _, m := range matches {
		orgs = append(orgs, strings.TrimSuffix(filepath.Base(m), ".yml"))
	}
	sort.Strings(orgs)
	if len(orgs) == 0 {
		return nil, fmt.Errorf("no organization configs under %s", filepath.Join(r.cfg.ConfigPath, "orgs"))
	}
	return orgs, nil
}

// Plan computes the pending changes for every organization without writing
// anything. Organizations are independent and diffed concurrently.
func (r *Runner) Plan(ctx context.Context) ([]RunResult, error) {
	return r.run(ctx, false)
}

// Apply computes and executes the pending changes for every organization.
func (r *Runner) Apply(ctx context.Context) ([]RunResult, error) {
	return r.run(ctx, true)
}

func (r *Runner) run(ctx context.Context, doApply bool) ([]RunResult, error) {
	orgs, err := r.Orgs()
	if err != nil {
		return nil, err
	}

	results := make([]RunResult, len(orgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, org := range orgs {
		i, org := i, org
		g.Go(func() error {
			res := r.runOrg(gctx, org, doApply)
			results[i] = res
			// Auth failures abort everything; anything else is recorded
			// per organization.
			if provider.IsAuth(res.Error) {
				return res.Error
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) runOrg(ctx context.Context, org string, doApply bool) RunResult {
	res := RunResult{Org: org}

	path := loader.ConfigPath(r.cfg.ConfigPath, org)
	expected, err := loader.Load(path)
	if err != nil {
		res.Error = err
		return res
	}
	if expected.Login != org {
		res.Error = fmt.Errorf("config %s declares github_id %q", filepath.Base(path), expected.Login)
		return res
	}

	res.Validation = validate.Organization(expected)
	for _, issue := range res.Validation.Warnings() {
		slog.Warn("validation", "org", org, "issue", issue.String())
	}
	if res.Validation.HasErrors() {
		res.Error = fmt.Errorf("configuration for %s has %d validation error(s)", org, len(res.Validation.Errors()))
		return res
	}

	engine := diff.New(r.gw, diff.Options{
		TolerateFetchErrors: r.cfg.TolerateFetchErrors,
		FetchConcurrency:    r.cfg.FetchConcurrency,
	})
	d, err := engine.Compute(ctx, expected)
	if err != nil {
		res.Error = err
		return res
	}
	res.Diff = d
	res.Patches = plan.Build(d, plan.Options{Prune: r.cfg.Prune})

	slog.Info("diff computed", "org", org,
		"additions", d.Summary.Additions,
		"differences", d.Summary.Differences,
		"patches", len(res.Patches))

	if !doApply || len(res.Patches) == 0 {
		return res
	}

	ex := apply.New(r.gw)
	ex.Concurrency = r.cfg.Concurrency
	applied, err := ex.Run(ctx, res.Patches)
	res.Apply = applied
	if err != nil {
		res.Error = err
	}
	return res
}

// ExitCodeFor maps a set of run results onto the process exit code.
// planMode reports pending changes via ExitChanges.
func ExitCodeFor(results []RunResult, planMode bool) int {
	code := ExitSuccess
	for _, res := range results {
		if res.Validation != nil && res.Validation.HasErrors() {
			return ExitValidation
		}
		if res.Error != nil {
			return ExitPartial
		}
		if res.Apply != nil && !res.Apply.Succeeded() {
			code = ExitPartial
		}
		if planMode && res.Diff != nil && res.Diff.HasChanges() && code == ExitSuccess {
			code = ExitChanges
		}
	}
	return code
}

// SyncConfigRepo clones or pulls the config repository when one is
// configured. Returns the repo handle, or nil when configs are local files.
func SyncConfigRepo(ctx context.Context, cfg *config.Config) (*loader.ConfigRepo, error) {
	if cfg.GitRepo.URL == "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return nil, fmt.Errorf("config path: %w", err)
		}
		return nil, nil
	}
	repo, err := loader.OpenConfigRepo(ctx, cfg.ConfigPath, cfg.GitRepo.URL, cfg.GitHub.Token)
	if err != nil {
		return nil, err
	}
	if err := repo.Pull(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}
