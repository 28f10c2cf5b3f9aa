// Package apply executes a planned patch sequence against the provider
// gateway. Application is best-effort per entity: a failed patch is recorded
// and unrelated patches still run; only authentication failures abort the
// run, since every later call would fail identically.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/plan"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Failure records one patch that could not be applied.
type Failure struct {
	Patch plan.Patch
	Err   error
}

// Result tallies one apply run. Already-applied changes are never rolled
// back; a non-empty Failures list means a second run is needed to converge
// the remainder.
type Result struct {
	Additions   int
	Differences int
	Failures    []Failure
}

// Succeeded reports whether every patch applied cleanly.
func (r *Result) Succeeded() bool { return len(r.Failures) == 0 }

// Executor applies patches through a gateway.
type Executor struct {
	gw provider.Gateway

	// Concurrency bounds how many independent repository groups apply at
	// once. 1 means fully sequential.
	Concurrency int
}

// New creates an Executor.
func New(gw provider.Gateway) *Executor {
	return &Executor{gw: gw, Concurrency: 1}
}

// Run executes the patches in planner order. Organization-scoped patches run
// strictly sequentially first; patches for different repositories are
// independent and may run concurrently, each repository's own patches in
// order. A failed parent creation skips that parent's queued children. On
// cancellation, in-flight patches finish but nothing further is dispatched.
func (e *Executor) Run(ctx context.Context, patches []plan.Patch) (*Result, error) {
	res := &Result{}
	failed := make(map[int]bool) // patch index -> failed or skipped
	var mu sync.Mutex

	groups, order := groupByRepo(patches)

	// Org-level patches first: repository-scoped patches may depend on
	// organization state (e.g. org secrets visible to new repos).
	if err := e.runGroup(ctx, groups[""], res, failed, &mu); err != nil {
		return res, err
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := e.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for _, repo := range order {
		if repo == "" {
			continue
		}
		group := groups[repo]
		g.Go(func() error {
			return e.runGroup(gctx, group, res, failed, &mu)
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

type indexed struct {
	idx   int
	patch plan.Patch
}

// groupByRepo partitions patches by repository scope, preserving the
// planner's relative order inside each group and across group starts.
func groupByRepo(patches []plan.Patch) (map[string][]indexed, []string) {
	groups := make(map[string][]indexed)
	var order []string
	for i, p := range patches {
		key := p.Scope.Repo
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], indexed{idx: i, patch: p})
	}
	return groups, order
}

func (e *Executor) runGroup(ctx context.Context, group []indexed, res *Result, failed map[int]bool, mu *sync.Mutex) error {
	for _, ip := range group {
		if ctx.Err() != nil {
			// Stop dispatching; whatever already ran stands.
			return nil
		}
		p := ip.patch

		mu.Lock()
		parentFailed := p.Parent >= 0 && failed[p.Parent]
		mu.Unlock()
		if parentFailed {
			mu.Lock()
			failed[ip.idx] = true
			res.Failures = append(res.Failures, Failure{
				Patch: p,
				Err:   fmt.Errorf("skipped: parent creation failed"),
			})
			mu.Unlock()
			continue
		}

		err := e.applyOne(ctx, p)
		mu.Lock()
		if err != nil {
			failed[ip.idx] = true
			res.Failures = append(res.Failures, Failure{Patch: p, Err: err})
			mu.Unlock()
			if provider.IsAuth(err) {
				return err
			}
			slog.Error("patch failed", "op", p.Op, "kind", p.Kind, "scope", p.Scope.String(), "key", p.Key, "error", err)
			continue
		}
		switch p.Op {
		case plan.OpCreate:
			res.Additions++
		case plan.OpUpdate:
			res.Differences += len(p.Payload)
		case plan.OpDelete:
			res.Differences++
		}
		mu.Unlock()
		slog.Info("patch applied", "op", p.Op, "kind", p.Kind, "scope", p.Scope.String(), "key", p.Key)
	}
	return nil
}

func (e *Executor) applyOne(ctx context.Context, p plan.Patch) error {
	switch p.Op {
	case plan.OpCreate:
		_, err := e.gw.Create(ctx, p.Kind, p.Scope, p.Payload)
		return err
	case plan.OpUpdate:
		// Updates address the entity by provider id when it has one; the
		// gateway falls back to the current natural key otherwise.
		return e.gw.Update(ctx, p.Kind, withCurrentKey(p), p.ProviderID, p.Payload)
	case plan.OpDelete:
		return e.gw.Delete(ctx, p.Kind, withCurrentKey(p), p.ProviderID)
	default:
		return fmt.Errorf("unknown op %q", p.Op)
	}
}

// withCurrentKey rewrites repository-kind scopes so update and delete calls
// address the live (pre-rename) repository name.
func withCurrentKey(p plan.Patch) provider.Scope {
	scope := p.Scope
	if p.Kind == model.KindRepository {
		scope.Repo = p.CurrentKey
	}
	return scope
}
