// Package plan turns a computed diff into an ordered, executable patch
// sequence. Ordering is load-bearing: parents are created before their
// children, renames land before anything that resolves the old key, and
// deletes (prune mode only) run last, children first.
package plan

import (
	"github.com/everstacklabs/orgsync/internal/diff"
	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Op is a patch operation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Patch is one atomic provider write: create, update, or delete of a single
// entity. Patches for different repositories are independent; within one
// repository they execute in slice order.
type Patch struct {
	Kind       model.Kind
	Op         Op
	Scope      provider.Scope
	Key        string
	CurrentKey string
	ProviderID string
	Payload    map[string]any

	// Parent is the index of a patch that must succeed before this one is
	// attempted (the creation of this entity's parent), or -1.
	Parent int
}

// Options controls planning.
type Options struct {
	// Prune schedules deletes for entities present live but absent from the
	// configuration. Off by default: unmatched entities are only reported.
	Prune bool
}

// Build converts a diff into the ordered patch list. Field-level changes to
// one entity collapse into a single update patch, except fields requiring a
// dedicated provider endpoint, which become their own patches.
func Build(d *diff.Diff, opts Options) []Patch {
	b := &builder{}

	for _, n := range d.Nodes {
		for _, m := range n.Modifications {
			b.update(n, m)
		}
		for _, a := range n.Additions {
			b.create(n.Scope, a, -1)
		}
		if opts.Prune {
			for _, u := range n.Unmatched {
				b.deletes = append(b.deletes, Patch{
					Kind:       n.Kind,
					Op:         OpDelete,
					Scope:      n.Scope,
					Key:        u.Key(),
					CurrentKey: u.Key(),
					ProviderID: u.ProviderID(),
					Parent:     -1,
				})
			}
		}
	}

	// Deletes run last, children before parents. Nodes are ordered
	// parent-first, so reversing the collected deletes flips that.
	for i := len(b.deletes) - 1; i >= 0; i-- {
		b.patches = append(b.patches, b.deletes[i])
	}
	return b.patches
}

type builder struct {
	patches []Patch
	deletes []Patch
}

func (b *builder) push(p Patch) int {
	b.patches = append(b.patches, p)
	return len(b.patches) - 1
}

func (b *builder) update(n *diff.Node, m diff.Modification) {
	payload := m.Expected.UpdatePayload(m.Changes)
	sub := subresourcePayloads(m.Expected, payload)

	if len(payload) > 0 {
		b.push(Patch{
			Kind:       n.Kind,
			Op:         OpUpdate,
			Scope:      n.Scope,
			Key:        m.Key,
			CurrentKey: m.CurrentKey,
			ProviderID: m.ProviderID,
			Payload:    payload,
			Parent:     -1,
		})
	}
	for _, s := range sub {
		b.push(Patch{
			Kind:       n.Kind,
			Op:         OpUpdate,
			Scope:      n.Scope,
			Key:        m.Key,
			CurrentKey: m.Key, // sub-resource patches run after the rename
			ProviderID: m.ProviderID,
			Payload:    s,
			Parent:     -1,
		})
	}
}

// create emits the creation patch for an entity plus, for parents, the
// creation patches of every configured child gated on the parent.
func (b *builder) create(scope provider.Scope, e model.Entity, parent int) {
	payload := e.CreatePayload()
	sub := subresourcePayloads(e, payload)

	idx := b.push(Patch{
		Kind:       e.Kind(),
		Op:         OpCreate,
		Scope:      scope,
		Key:        e.Key(),
		CurrentKey: e.Key(),
		Payload:    payload,
		Parent:     parent,
	})
	for _, s := range sub {
		b.push(Patch{
			Kind:       e.Kind(),
			Op:         OpUpdate,
			Scope:      scope,
			Key:        e.Key(),
			CurrentKey: e.Key(),
			Payload:    s,
			Parent:     idx,
		})
	}

	switch v := e.(type) {
	case *model.Repository:
		child := provider.Scope{Org: scope.Org, Repo: v.Name}
		for _, r := range v.Rulesets {
			b.create(child, r, idx)
		}
		for _, s := range v.Secrets {
			b.create(child, s, idx)
		}
		for _, vr := range v.Variables {
			b.create(child, vr, idx)
		}
		for _, env := range v.Environments {
			b.create(child, env, idx)
		}
	case *model.Environment:
		child := provider.Scope{Org: scope.Org, Repo: scope.Repo, Environment: v.Name}
		for _, p := range v.BranchPolicies {
			b.create(child, p, idx)
		}
	}
}

// subresourcePayloads strips independently-writable fields out of payload
// and returns one single-field payload per stripped field.
func subresourcePayloads(e model.Entity, payload map[string]any) []map[string]any {
	s, ok := e.(model.Subresourced)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, field := range s.SubresourceFields() {
		if v, present := payload[field]; present {
			delete(payload, field)
			out = append(out, map[string]any{field: v})
		}
	}
	return out
}
