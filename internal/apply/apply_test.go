package apply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/plan"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// fakeGateway records every write and can be told to fail specific keys.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string
	fails map[string]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{fails: make(map[string]error)}
}

func (f *fakeGateway) record(op string, kind model.Kind, scope provider.Scope, key string) error {
	call := fmt.Sprintf("%s %s %s %s", op, kind, scope, key)
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return f.fails[string(kind)+"/"+key]
}

func (f *fakeGateway) Fetch(ctx context.Context, kind model.Kind, scope provider.Scope) ([]model.Entity, error) {
	return nil, errors.New("apply must not fetch")
}

func (f *fakeGateway) Create(ctx context.Context, kind model.Kind, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	key, _ := payload[model.KeyField(kind)].(string)
	return nil, f.record("create", kind, scope, key)
}

func (f *fakeGateway) Update(ctx context.Context, kind model.Kind, scope provider.Scope, providerID string, payload map[string]any) error {
	return f.record("update", kind, scope, providerID)
}

func (f *fakeGateway) Delete(ctx context.Context, kind model.Kind, scope provider.Scope, providerID string) error {
	return f.record("delete", kind, scope, providerID)
}

func TestCountsAdditionsAndDifferences(t *testing.T) {
	gw := newFakeGateway()
	patches := []plan.Patch{
		{Kind: model.KindRepository, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "site", CurrentKey: "site", Payload: map[string]any{"name": "site"}, Parent: -1},
		{Kind: model.KindRepository, Op: plan.OpUpdate, Scope: provider.Scope{Org: "acme"},
			Key: "docs", CurrentKey: "docs", ProviderID: "2",
			Payload: map[string]any{"description": "d", "private": true}, Parent: -1},
	}

	res, err := New(gw).Run(context.Background(), patches)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Succeeded() {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if res.Additions != 1 {
		t.Errorf("expected 1 addition, got %d", res.Additions)
	}
	// Updates count per field.
	if res.Differences != 2 {
		t.Errorf("expected 2 differences, got %d", res.Differences)
	}
}

func TestParentFailureSkipsChildren(t *testing.T) {
	gw := newFakeGateway()
	gw.fails[string(model.KindRepository)+"/tooling"] = errors.New("boom")

	patches := []plan.Patch{
		{Kind: model.KindRepository, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "tooling", CurrentKey: "tooling", Payload: map[string]any{"name": "tooling"}, Parent: -1},
		{Kind: model.KindRuleset, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme", Repo: "tooling"},
			Key: "main", CurrentKey: "main", Payload: map[string]any{"pattern": "main"}, Parent: 0},
		{Kind: model.KindWebhook, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "https://ci.example.com", CurrentKey: "https://ci.example.com",
			Payload: map[string]any{"url": "https://ci.example.com"}, Parent: -1},
	}

	res, err := New(gw).Run(context.Background(), patches)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected parent failure + skipped child, got %v", res.Failures)
	}
	var skipped bool
	for _, f := range res.Failures {
		if strings.Contains(f.Err.Error(), "parent creation failed") {
			skipped = true
			if f.Patch.Kind != model.KindRuleset {
				t.Errorf("wrong patch skipped: %+v", f.Patch)
			}
		}
	}
	if !skipped {
		t.Error("expected the child patch recorded as skipped")
	}
	// The unrelated webhook still applied.
	if res.Additions != 1 {
		t.Errorf("expected the independent patch applied, got %d additions", res.Additions)
	}
	for _, call := range gw.calls {
		if strings.Contains(call, "ruleset") {
			t.Errorf("skipped child must not reach the gateway: %s", call)
		}
	}
}

func TestFailureIsolatedToEntity(t *testing.T) {
	gw := newFakeGateway()
	gw.fails[string(model.KindWebhook)+"/https://a.example.com"] = errors.New("boom")

	patches := []plan.Patch{
		{Kind: model.KindWebhook, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "https://a.example.com", CurrentKey: "https://a.example.com",
			Payload: map[string]any{"url": "https://a.example.com"}, Parent: -1},
		{Kind: model.KindWebhook, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "https://b.example.com", CurrentKey: "https://b.example.com",
			Payload: map[string]any{"url": "https://b.example.com"}, Parent: -1},
	}

	res, err := New(gw).Run(context.Background(), patches)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("expected exactly one failure, got %v", res.Failures)
	}
	if res.Additions != 1 {
		t.Errorf("the second webhook must still be created, got %d", res.Additions)
	}
}

func TestAuthErrorAborts(t *testing.T) {
	gw := newFakeGateway()
	gw.fails[string(model.KindWebhook)+"/https://a.example.com"] = &provider.AuthError{Message: "bad credentials"}

	patches := []plan.Patch{
		{Kind: model.KindWebhook, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "https://a.example.com", CurrentKey: "https://a.example.com",
			Payload: map[string]any{"url": "https://a.example.com"}, Parent: -1},
		{Kind: model.KindWebhook, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "https://b.example.com", CurrentKey: "https://b.example.com",
			Payload: map[string]any{"url": "https://b.example.com"}, Parent: -1},
	}

	_, err := New(gw).Run(context.Background(), patches)
	if !provider.IsAuth(err) {
		t.Fatalf("expected auth error to abort, got %v", err)
	}
	if len(gw.calls) != 1 {
		t.Errorf("nothing must run after an auth failure, got %v", gw.calls)
	}
}

func TestOrgPatchesRunBeforeRepoGroups(t *testing.T) {
	gw := newFakeGateway()
	patches := []plan.Patch{
		{Kind: model.KindRuleset, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme", Repo: "site"},
			Key: "main", CurrentKey: "main", Payload: map[string]any{"pattern": "main"}, Parent: -1},
		{Kind: model.KindSettings, Op: plan.OpUpdate, Scope: provider.Scope{Org: "acme"},
			Key: "acme", CurrentKey: "acme", Payload: map[string]any{"billing_email": "ops@acme.io"}, Parent: -1},
	}

	ex := New(gw)
	ex.Concurrency = 4
	res, err := ex.Run(context.Background(), patches)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Succeeded() {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if len(gw.calls) != 2 || !strings.HasPrefix(gw.calls[0], "update settings") {
		t.Errorf("org-scoped patch must run first: %v", gw.calls)
	}
}

func TestRenamedRepositoryAddressedByLiveName(t *testing.T) {
	gw := newFakeGateway()
	patches := []plan.Patch{
		{Kind: model.KindRepository, Op: plan.OpUpdate, Scope: provider.Scope{Org: "acme"},
			Key: "web", CurrentKey: "website", ProviderID: "42",
			Payload: map[string]any{"name": "web"}, Parent: -1},
	}

	if _, err := New(gw).Run(context.Background(), patches); err != nil {
		t.Fatal(err)
	}
	if len(gw.calls) != 1 || !strings.Contains(gw.calls[0], "acme/website") {
		t.Errorf("update must address the live repository name: %v", gw.calls)
	}
}

func TestCancelledContextStopsDispatch(t *testing.T) {
	gw := newFakeGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	patches := []plan.Patch{
		{Kind: model.KindWebhook, Op: plan.OpCreate, Scope: provider.Scope{Org: "acme"},
			Key: "https://a.example.com", CurrentKey: "https://a.example.com",
			Payload: map[string]any{"url": "https://a.example.com"}, Parent: -1},
	}

	res, err := New(gw).Run(ctx, patches)
	if err != nil {
		t.Fatal(err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("nothing must be dispatched after cancellation: %v", gw.calls)
	}
	if !res.Succeeded() {
		t.Errorf("cancellation is not a patch failure: %v", res.Failures)
	}
}
