package validate

import (
	"strings"
	"testing"

	"github.com/everstacklabs/orgsync/internal/model"
)

func TestValidConfigPasses(t *testing.T) {
	org := &model.Organization{
		Login: "acme",
		Webhooks: []*model.Webhook{
			{URL: "https://ci.example.com/hook", ContentType: model.Ptr("json"), Events: []string{"push"}},
		},
		Secrets: []*model.Secret{
			{Name: "DEPLOY_KEY", Value: model.Ptr("x"), Visibility: model.Ptr("all")},
		},
		Repositories: []*model.Repository{
			{
				Name:     "site",
				Rulesets: []*model.Ruleset{{Pattern: "main", Enforcement: model.Ptr("active")}},
				Environments: []*model.Environment{
					{
						Name:             "production",
						Reviewers:        []string{"team:sre", "user:alice"},
						BranchPolicyMode: model.Ptr("selected"),
						BranchPolicies:   []*model.BranchPolicy{{Name: "release/*", Type: model.Ptr("branch")}},
					},
				},
			},
		},
	}

	r := Organization(org)
	if r.HasErrors() {
		t.Fatalf("expected valid config, got %v", r.Errors())
	}
}

func TestMissingLoginIsError(t *testing.T) {
	r := Organization(&model.Organization{})
	if !r.HasErrors() {
		t.Fatal("expected error for missing github_id")
	}
}

func TestDuplicateKeysRejected(t *testing.T) {
	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{Name: "site"},
			{Name: "site"},
		},
	}
	r := Organization(org)
	if !r.HasErrors() {
		t.Fatal("expected duplicate repository error")
	}
	if !strings.Contains(r.Errors()[0].Message, "duplicate key") {
		t.Errorf("unexpected message %q", r.Errors()[0].Message)
	}
}

func TestUnknownEnumValues(t *testing.T) {
	org := &model.Organization{
		Login:    "acme",
		Settings: &model.Settings{DefaultRepoPermission: model.Ptr("owner")},
		Repositories: []*model.Repository{
			{
				Name:     "site",
				Rulesets: []*model.Ruleset{{Pattern: "main", Enforcement: model.Ptr("strict")}},
				Environments: []*model.Environment{
					{Name: "prod", BranchPolicyMode: model.Ptr("some")},
				},
			},
		},
	}
	r := Organization(org)
	if len(r.Errors()) != 3 {
		t.Fatalf("expected 3 enum errors, got %v", r.Errors())
	}
}

func TestSelectedRepositoriesRequireSelectedVisibility(t *testing.T) {
	org := &model.Organization{
		Login: "acme",
		Secrets: []*model.Secret{
			{Name: "K", Value: model.Ptr("v"), Visibility: model.Ptr("all"), SelectedRepositories: []string{"site"}},
		},
	}
	if r := Organization(org); !r.HasErrors() {
		t.Fatal("expected error for selected_repositories without selected visibility")
	}
}

func TestReservedSecretName(t *testing.T) {
	org := &model.Organization{
		Login:   "acme",
		Secrets: []*model.Secret{{Name: "GITHUB_TOKEN", Value: model.Ptr("v")}},
	}
	if r := Organization(org); !r.HasErrors() {
		t.Fatal("expected error for reserved secret name")
	}
}

func TestMissingSecretValueWarnsOnly(t *testing.T) {
	org := &model.Organization{
		Login:   "acme",
		Secrets: []*model.Secret{{Name: "K"}},
	}
	r := Organization(org)
	if r.HasErrors() {
		t.Fatalf("a valueless secret is a warning, got %v", r.Errors())
	}
	if len(r.Warnings()) == 0 {
		t.Fatal("expected a warning")
	}
}

func TestBadReviewerHandle(t *testing.T) {
	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{
				Name: "site",
				Environments: []*model.Environment{
					{Name: "prod", Reviewers: []string{"alice"}},
				},
			},
		},
	}
	if r := Organization(org); !r.HasErrors() {
		t.Fatal("expected error for bare reviewer handle")
	}
}

func TestBranchPoliciesRequireSelectedMode(t *testing.T) {
	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{
				Name: "site",
				Environments: []*model.Environment{
					{
						Name:             "prod",
						BranchPolicyMode: model.Ptr("all"),
						BranchPolicies:   []*model.BranchPolicy{{Name: "release/*"}},
					},
				},
			},
		},
	}
	if r := Organization(org); !r.HasErrors() {
		t.Fatal("expected error for branch policies without selected mode")
	}
}

func TestWaitTimerRange(t *testing.T) {
	org := &model.Organization{
		Login: "acme",
		Repositories: []*model.Repository{
			{
				Name: "site",
				Environments: []*model.Environment{
					{Name: "prod", WaitTimer: model.Ptr(99999)},
				},
			},
		},
	}
	if r := Organization(org); !r.HasErrors() {
		t.Fatal("expected error for out-of-range wait timer")
	}
}
