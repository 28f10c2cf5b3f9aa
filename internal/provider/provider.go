// Package provider defines the gateway contract orgsync requires from a
// state provider, plus the error taxonomy the reconciliation core keys on.
// The gateway is a uniform CRUD surface per entity kind; everything
// provider-specific (endpoints, sealing, pagination, rate limits) lives
// behind it.
package provider

import (
	"context"

	"github.com/everstacklabs/orgsync/internal/model"
)

// Scope addresses the parent of an entity collection: the organization, and
// for repository-level collections the repository name. Environment-nested
// collections additionally carry the environment name.
type Scope struct {
	Org         string
	Repo        string
	Environment string
}

func (s Scope) String() string {
	out := s.Org
	if s.Repo != "" {
		out += "/" + s.Repo
	}
	if s.Environment != "" {
		out += "/" + s.Environment
	}
	return out
}

// Gateway is the capability set the reconciliation core needs per entity
// kind. Fetch returns current-state entities; for singleton kinds
// (settings) it returns a single-element slice. Implementations must be
// safe for concurrent use.
type Gateway interface {
	Fetch(ctx context.Context, kind model.Kind, scope Scope) ([]model.Entity, error)
	Create(ctx context.Context, kind model.Kind, scope Scope, payload map[string]any) (model.Entity, error)
	Update(ctx context.Context, kind model.Kind, scope Scope, providerID string, payload map[string]any) error
	Delete(ctx context.Context, kind model.Kind, scope Scope, providerID string) error
}
