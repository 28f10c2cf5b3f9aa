package diff

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// fakeGateway serves canned current state keyed by kind and scope and
// records every fetch it sees.
type fakeGateway struct {
	mu      sync.Mutex
	state   map[string][]model.Entity
	errs    map[string]error
	fetched []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		state: make(map[string][]model.Entity),
		errs:  make(map[string]error),
	}
}

func stateKey(kind model.Kind, scope provider.Scope) string {
	return string(kind) + "|" + scope.String()
}

func (f *fakeGateway) set(kind model.Kind, scope provider.Scope, entities ...model.Entity) {
	f.state[stateKey(kind, scope)] = entities
}

func (f *fakeGateway) fail(kind model.Kind, scope provider.Scope, err error) {
	f.errs[stateKey(kind, scope)] = err
}

func (f *fakeGateway) Fetch(ctx context.Context, kind model.Kind, scope provider.Scope) ([]model.Entity, error) {
	key := stateKey(kind, scope)
	f.mu.Lock()
	f.fetched = append(f.fetched, key)
	f.mu.Unlock()
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.state[key], nil
}

func (f *fakeGateway) Create(ctx context.Context, kind model.Kind, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	return nil, errors.New("diff must not create")
}

func (f *fakeGateway) Update(ctx context.Context, kind model.Kind, scope provider.Scope, providerID string, payload map[string]any) error {
	return errors.New("diff must not update")
}

func (f *fakeGateway) Delete(ctx context.Context, kind model.Kind, scope provider.Scope, providerID string) error {
	return errors.New("diff must not delete")
}

func (f *fakeGateway) fetchedKey(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.fetched {
		if k == key {
			return true
		}
	}
	return false
}

func acmeScope() provider.Scope { return provider.Scope{Org: "acme"} }

func TestNoChangesWhenStateMatches(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope(),
		&model.Repository{ID: 1, Name: "site", Private: model.Ptr(true), Topics: []string{"web", "go"}})
	gw.set(model.KindRuleset, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindSecret, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindVariable, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindEnvironment, provider.Scope{Org: "acme", Repo: "site"})

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{Name: "site", Private: model.Ptr(true), Topics: []string{"go", "web"}},
		},
	}

	engine := New(gw, Options{})
	d, err := engine.Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if d.HasChanges() {
		t.Errorf("expected converged state, got %+v", d.Summary)
	}

	// A second pass over unchanged state yields the same result.
	d2, err := engine.Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.Summary, d2.Summary) {
		t.Errorf("diff not idempotent: %+v vs %+v", d.Summary, d2.Summary)
	}
}

func TestFieldLevelDifferencesCounted(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope(),
		&model.Repository{ID: 1, Name: "site", Description: model.Ptr("old"), Topics: []string{"web"}})
	gw.set(model.KindRuleset, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindSecret, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindVariable, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindEnvironment, provider.Scope{Org: "acme", Repo: "site"})

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{Name: "site", Description: model.Ptr("new"), Topics: []string{"web", "go"}},
		},
	}

	d, err := New(gw, Options{}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if d.Summary.Differences != 2 {
		t.Errorf("expected 2 field differences, got %d", d.Summary.Differences)
	}
	if d.Summary.Additions != 0 {
		t.Errorf("expected 0 additions, got %d", d.Summary.Additions)
	}
}

func TestAdditionCountsNestedChildren(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope())

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{
				Name:     "tooling",
				Rulesets: []*model.Ruleset{{Pattern: "main"}},
				Environments: []*model.Environment{
					{
						Name:             "production",
						BranchPolicyMode: model.Ptr("selected"),
						BranchPolicies:   []*model.BranchPolicy{{Name: "release/*"}},
					},
				},
			},
		},
	}

	d, err := New(gw, Options{}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	// Repository + ruleset + environment + branch policy.
	if d.Summary.Additions != 4 {
		t.Errorf("expected 4 additions, got %d", d.Summary.Additions)
	}

	// Child collections of a repository that does not exist yet are never
	// fetched; the subtree is one addition.
	if gw.fetchedKey(stateKey(model.KindRuleset, provider.Scope{Org: "acme", Repo: "tooling"})) {
		t.Error("fetched rulesets of a repository that does not exist")
	}
}

func TestRenameCorrelatedByProviderID(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope(),
		&model.Repository{ID: 42, Name: "website", Private: model.Ptr(false)})
	gw.set(model.KindRuleset, provider.Scope{Org: "acme", Repo: "website"})
	gw.set(model.KindSecret, provider.Scope{Org: "acme", Repo: "website"})
	gw.set(model.KindVariable, provider.Scope{Org: "acme", Repo: "website"})
	gw.set(model.KindEnvironment, provider.Scope{Org: "acme", Repo: "website"})

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{ID: 42, Name: "web", Private: model.Ptr(true)},
		},
	}

	d, err := New(gw, Options{}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if d.Summary.Additions != 0 {
		t.Fatalf("a rename is not an addition, got %d additions", d.Summary.Additions)
	}

	var mod *Modification
	for _, n := range d.Nodes {
		if n.Kind == model.KindRepository && len(n.Modifications) > 0 {
			mod = &n.Modifications[0]
		}
		if len(n.Unmatched) > 0 {
			t.Errorf("a rename must not leave unmatched entities: %v", n.Unmatched[0].Key())
		}
	}
	if mod == nil {
		t.Fatal("expected a repository modification")
	}
	if mod.Key != "web" || mod.CurrentKey != "website" {
		t.Errorf("unexpected rename keys %q <- %q", mod.Key, mod.CurrentKey)
	}
	if mod.Changes[0].Field != "name" {
		t.Errorf("expected leading name change, got %s", mod.Changes[0].Field)
	}
	// name + private
	if len(mod.Changes) != 2 {
		t.Errorf("expected 2 changes, got %v", mod.Changes)
	}
}

func TestRenamedRepoChildrenFetchedAtLiveName(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope(),
		&model.Repository{ID: 42, Name: "website"})
	// Child state lives under the current name until the rename is applied.
	liveScope := provider.Scope{Org: "acme", Repo: "website"}
	gw.set(model.KindRuleset, liveScope,
		&model.Ruleset{ID: 5, Pattern: "main", Enforcement: model.Ptr("active")})
	gw.set(model.KindSecret, liveScope)
	gw.set(model.KindVariable, liveScope)
	gw.set(model.KindEnvironment, liveScope)

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{
				ID:       42,
				Name:     "web",
				Rulesets: []*model.Ruleset{{Pattern: "main", Enforcement: model.Ptr("active")}},
			},
		},
	}

	d, err := New(gw, Options{}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}

	if gw.fetchedKey(stateKey(model.KindRuleset, provider.Scope{Org: "acme", Repo: "web"})) {
		t.Error("fetched child state at the configured name instead of the live name")
	}
	if !gw.fetchedKey(stateKey(model.KindRuleset, liveScope)) {
		t.Error("never fetched child state at the live name")
	}

	// The identical ruleset matches; only the rename itself differs.
	if d.Summary.Additions != 0 {
		t.Errorf("matching child reported as addition after rename: %+v", d.Summary)
	}
	if d.Summary.Differences != 1 {
		t.Errorf("expected only the name change, got %+v", d.Summary)
	}

	// Child nodes keep the configured name; the rename patch runs first.
	for _, n := range d.Nodes {
		if n.Kind == model.KindRuleset && n.Scope.Repo != "web" {
			t.Errorf("ruleset node scoped to %q, want configured name", n.Scope.Repo)
		}
	}
}

func TestUnmatchedReportedNotDeleted(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindWebhook, acmeScope(),
		&model.Webhook{ID: 7, URL: "https://legacy.example.com/hook"})
	gw.set(model.KindRepository, acmeScope())

	org := &model.Organization{Login: "acme"}

	d, err := New(gw, Options{}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if d.Summary.Differences != 1 {
		t.Errorf("an unmatched entity counts one difference, got %d", d.Summary.Differences)
	}

	var unmatched []model.Entity
	for _, n := range d.Nodes {
		unmatched = append(unmatched, n.Unmatched...)
	}
	if len(unmatched) != 1 || unmatched[0].Key() != "https://legacy.example.com/hook" {
		t.Errorf("expected the live webhook reported, got %v", unmatched)
	}
}

func TestDuplicateKeysRejected(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope())

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{Name: "site"},
			{Name: "site"},
		},
	}

	if _, err := New(gw, Options{}).Compute(context.Background(), org); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestAuthErrorAbortsRun(t *testing.T) {
	gw := newFakeGateway()
	gw.fail(model.KindWebhook, acmeScope(), &provider.AuthError{Message: "bad credentials"})

	org := &model.Organization{Login: "acme"}

	_, err := New(gw, Options{}).Compute(context.Background(), org)
	if !provider.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestFetchErrorSkipsSubtree(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope(),
		&model.Repository{ID: 1, Name: "site"})
	gw.fail(model.KindRuleset, provider.Scope{Org: "acme", Repo: "site"}, errors.New("boom"))
	gw.set(model.KindSecret, provider.Scope{Org: "acme", Repo: "site"},
		&model.Secret{Name: "LEGACY"})
	gw.set(model.KindVariable, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindEnvironment, provider.Scope{Org: "acme", Repo: "site"})

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{Name: "site", Rulesets: []*model.Ruleset{{Pattern: "main"}}},
		},
	}

	d, err := New(gw, Options{}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Warnings) != 1 {
		t.Fatalf("expected a warning for the failed fetch, got %v", d.Warnings)
	}
	// The ruleset subtree is skipped entirely, not treated as empty.
	if d.Summary.Additions != 0 {
		t.Errorf("skipped subtree must not produce additions, got %d", d.Summary.Additions)
	}
	// Sibling collections still diff.
	if d.Summary.Differences != 1 {
		t.Errorf("expected sibling unmatched secret counted, got %d", d.Summary.Differences)
	}
}

func TestTolerateFetchErrorsAssumesEmpty(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindRepository, acmeScope(),
		&model.Repository{ID: 1, Name: "site"})
	gw.fail(model.KindRuleset, provider.Scope{Org: "acme", Repo: "site"}, errors.New("boom"))
	gw.set(model.KindSecret, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindVariable, provider.Scope{Org: "acme", Repo: "site"})
	gw.set(model.KindEnvironment, provider.Scope{Org: "acme", Repo: "site"})

	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{Name: "site", Rulesets: []*model.Ruleset{{Pattern: "main"}}},
		},
	}

	d, err := New(gw, Options{TolerateFetchErrors: true}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Warnings) != 1 {
		t.Fatalf("expected a warning, got %v", d.Warnings)
	}
	// Assumed-empty current state turns the configured ruleset into an
	// addition.
	if d.Summary.Additions != 1 {
		t.Errorf("expected 1 addition, got %d", d.Summary.Additions)
	}
}

func TestSettingsDiffedAsSingleton(t *testing.T) {
	gw := newFakeGateway()
	gw.set(model.KindSettings, acmeScope(),
		&model.Settings{Org: "acme", BillingEmail: model.Ptr("old@acme.io"), Location: model.Ptr("Berlin")})
	gw.set(model.KindRepository, acmeScope())

	org := &model.Organization{
		Login:    "acme",
		Settings: &model.Settings{BillingEmail: model.Ptr("ops@acme.io")},
	}

	d, err := New(gw, Options{}).Compute(context.Background(), org)
	if err != nil {
		t.Fatal(err)
	}
	if d.Summary.Differences != 1 {
		t.Fatalf("expected only billing_email to differ, got %+v", d.Summary)
	}
	if d.Nodes[0].Kind != model.KindSettings {
		t.Errorf("expected settings node first, got %s", d.Nodes[0].Kind)
	}
}
