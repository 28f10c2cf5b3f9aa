package diff

import (
	"fmt"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// matched pairs let the engine recurse into child collections of entities
// that exist on both sides.
type matchedPair struct {
	expected model.Entity
	current  model.Entity
}

// reconcile correlates expected and current entities of one kind within one
// scope by natural key, falling back to provider id for renames. Expected
// keys must be unique within the scope.
func reconcile(scope provider.Scope, kind model.Kind, expected, current []model.Entity) (*Node, []matchedPair, error) {
	node := &Node{Scope: scope, Kind: kind}

	expectedByKey := make(map[string]model.Entity, len(expected))
	order := make([]string, 0, len(expected))
	for _, e := range expected {
		if _, dup := expectedByKey[e.Key()]; dup {
			return nil, nil, fmt.Errorf("duplicate %s key %q in %s", kind, e.Key(), scope)
		}
		expectedByKey[e.Key()] = e
		order = append(order, e.Key())
	}

	var matched []matchedPair
	var leftover []model.Entity

	for _, cur := range current {
		exp, ok := expectedByKey[cur.Key()]
		if !ok {
			leftover = append(leftover, cur)
			continue
		}
		delete(expectedByKey, cur.Key())
		matched = append(matched, matchedPair{expected: exp, current: cur})
		if changes := exp.Diff(cur); len(changes) > 0 {
			node.Modifications = append(node.Modifications, Modification{
				Key:        exp.Key(),
				CurrentKey: cur.Key(),
				ProviderID: cur.ProviderID(),
				Expected:   exp,
				Changes:    changes,
			})
		}
	}

	// Rename pass: a live entity whose key matches nothing but whose
	// provider id matches a remaining expected entity is the same entity
	// renamed, never an addition plus an unmatched.
	for _, cur := range leftover {
		exp := matchByProviderID(expectedByKey, order, cur)
		if exp == nil {
			node.Unmatched = append(node.Unmatched, cur)
			continue
		}
		delete(expectedByKey, exp.Key())
		matched = append(matched, matchedPair{expected: exp, current: cur})
		changes := []model.FieldChange{{
			Field:    model.KeyField(kind),
			Expected: exp.Key(),
			Current:  cur.Key(),
		}}
		changes = append(changes, exp.Diff(cur)...)
		node.Modifications = append(node.Modifications, Modification{
			Key:        exp.Key(),
			CurrentKey: cur.Key(),
			ProviderID: cur.ProviderID(),
			Expected:   exp,
			Changes:    changes,
		})
	}

	for _, key := range order {
		if exp, ok := expectedByKey[key]; ok {
			node.Additions = append(node.Additions, exp)
		}
	}

	return node, matched, nil
}

func matchByProviderID(remaining map[string]model.Entity, order []string, cur model.Entity) model.Entity {
	id := cur.ProviderID()
	if id == "" {
		return nil
	}
	for _, key := range order {
		exp, ok := remaining[key]
		if ok && exp.ProviderID() == id {
			return exp
		}
	}
	return nil
}
