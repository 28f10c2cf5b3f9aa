package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/everstacklabs/orgsync/internal/model"
)

const sampleConfig = `github_id: acme
settings:
  billing_email: ops@acme.io
  two_factor_required: true
webhooks:
  - url: https://ci.example.com/hook
    content_type: json
    events:
      - push
      - pull_request
repositories:
  - name: site
    private: true
    topics:
      - go
      - web
    branch_protection_rules:
      - pattern: main
        enforcement: active
        required_status_checks:
          - ci/test
    environments:
      - name: production
        wait_timer: 30
        deployment_branch_policy: selected
        branch_policies:
          - name: release/*
            type: branch
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acme.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	org, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	if org.Login != "acme" {
		t.Errorf("login = %q", org.Login)
	}
	// The settings singleton inherits the org login as its key.
	if org.Settings == nil || org.Settings.Org != "acme" {
		t.Fatalf("settings key not filled: %+v", org.Settings)
	}
	if org.Settings.BillingEmail == nil || *org.Settings.BillingEmail != "ops@acme.io" {
		t.Errorf("billing_email = %v", org.Settings.BillingEmail)
	}
	if len(org.Webhooks) != 1 || len(org.Webhooks[0].Events) != 2 {
		t.Fatalf("webhooks = %+v", org.Webhooks)
	}

	if len(org.Repositories) != 1 {
		t.Fatal("expected one repository")
	}
	repo := org.Repositories[0]
	if repo.Private == nil || !*repo.Private {
		t.Error("private not parsed")
	}
	if len(repo.Rulesets) != 1 || repo.Rulesets[0].Pattern != "main" {
		t.Errorf("rulesets = %+v", repo.Rulesets)
	}
	env := repo.Environments[0]
	if env.WaitTimer == nil || *env.WaitTimer != 30 {
		t.Errorf("wait_timer = %v", env.WaitTimer)
	}
	if len(env.BranchPolicies) != 1 || env.BranchPolicies[0].Name != "release/*" {
		t.Errorf("branch policies = %+v", env.BranchPolicies)
	}
}

func TestUnsetFieldsStayNil(t *testing.T) {
	org, err := Load(writeConfig(t, "github_id: acme\nrepositories:\n  - name: site\n"))
	if err != nil {
		t.Fatal(err)
	}
	repo := org.Repositories[0]
	if repo.Private != nil || repo.Description != nil || repo.Topics != nil {
		t.Errorf("absent fields must stay nil: %+v", repo)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "github_id: acme\nbogus_field: true\n"))
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestMissingLoginRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "settings:\n  name: Acme\n"))
	if err == nil || !strings.Contains(err.Error(), "github_id") {
		t.Fatalf("expected github_id error, got %v", err)
	}
}

func TestEmptyConfigRejected(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	org := &model.Organization{
		Login:    "acme",
		Settings: &model.Settings{Org: "acme", BillingEmail: model.Ptr("ops@acme.io")},
		Repositories: []*model.Repository{
			{Name: "site", Private: model.Ptr(true), Topics: []string{"go"}},
		},
	}

	path := filepath.Join(t.TempDir(), "acme.yml")
	if err := Save(path, org); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Login != "acme" {
		t.Errorf("login = %q", loaded.Login)
	}
	if loaded.Repositories[0].Private == nil || !*loaded.Repositories[0].Private {
		t.Error("private lost in round trip")
	}
	if len(loaded.Repositories[0].Topics) != 1 {
		t.Error("topics lost in round trip")
	}
}

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/data/cfg", "acme")
	want := filepath.Join("/data/cfg", "orgs", "acme.yml")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}
