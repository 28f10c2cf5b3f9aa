// Package diff computes the structured difference between an expected
// organization tree and current state fetched through a provider gateway.
// The same keyed reconcile algorithm runs at every scope level, which is
// what keeps the engine uniform across entity kinds.
package diff

import (
	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Modification is one existing entity whose fields differ from the expected
// configuration. Key is the desired natural key; CurrentKey is the live one
// and differs from Key only on a rename.
type Modification struct {
	Key        string
	CurrentKey string
	ProviderID string
	Expected   model.Entity
	Changes    []model.FieldChange
}

// Node groups the reconcile outcome for one parent-scope × entity-kind pair.
// Unmatched entities exist live but not in the configuration; they are
// reported, never deleted, unless pruning is explicitly requested at plan
// time.
type Node struct {
	Scope         provider.Scope
	Kind          model.Kind
	Additions     []model.Entity
	Modifications []Modification
	Unmatched     []model.Entity
}

func (n *Node) empty() bool {
	return len(n.Additions) == 0 && len(n.Modifications) == 0 && len(n.Unmatched) == 0
}

// Summary holds the running counts for a whole diff. Differences are counted
// at field granularity: one per changed field, plus one per unmatched entity.
type Summary struct {
	Additions   int
	Differences int
}

// Diff is the immutable result of one reconciliation pass over one
// organization. Nodes appear in traversal order: settings, webhooks,
// org secrets, org variables, repositories, then each existing repository's
// child collections.
type Diff struct {
	Org      string
	Nodes    []*Node
	Warnings []string
	Summary  Summary
}

// HasChanges reports whether anything would be created or modified, or any
// unmatched entity was found.
func (d *Diff) HasChanges() bool {
	return d.Summary.Additions > 0 || d.Summary.Differences > 0
}

func (d *Diff) summarize() {
	var s Summary
	for _, n := range d.Nodes {
		for _, a := range n.Additions {
			s.Additions += 1 + countNested(a)
		}
		for _, m := range n.Modifications {
			s.Differences += len(m.Changes)
		}
		s.Differences += len(n.Unmatched)
	}
	d.Summary = s
}

// countNested counts the child entities an addition brings with it: creating
// a new repository also creates every configured child.
func countNested(e model.Entity) int {
	switch v := e.(type) {
	case *model.Repository:
		n := len(v.Rulesets) + len(v.Secrets) + len(v.Variables)
		for _, env := range v.Environments {
			n += 1 + len(env.BranchPolicies)
		}
		return n
	case *model.Environment:
		return len(v.BranchPolicies)
	default:
		return 0
	}
}
