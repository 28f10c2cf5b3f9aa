package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/everstacklabs/orgsync/internal/apply"
	"github.com/everstacklabs/orgsync/internal/config"
	"github.com/everstacklabs/orgsync/internal/diff"
	"github.com/everstacklabs/orgsync/internal/plan"
	"github.com/everstacklabs/orgsync/internal/validate"
)

func TestExitCodeMapping(t *testing.T) {
	changed := &diff.Diff{Org: "acme", Summary: diff.Summary{Additions: 1}}
	clean := &diff.Diff{Org: "acme"}

	cases := []struct {
		name     string
		results  []RunResult
		planMode bool
		want     int
	}{
		{"no changes", []RunResult{{Org: "acme", Diff: clean}}, true, ExitSuccess},
		{"pending changes in plan mode", []RunResult{{Org: "acme", Diff: changed}}, true, ExitChanges},
		{"changes applied cleanly", []RunResult{{Org: "acme", Diff: changed, Apply: &apply.Result{Additions: 1}}}, false, ExitSuccess},
		{
			"apply failures",
			[]RunResult{{Org: "acme", Diff: changed, Apply: &apply.Result{
				Failures: []apply.Failure{{Patch: plan.Patch{}, Err: errors.New("boom")}},
			}}},
			false, ExitPartial,
		},
		{
			"validation errors win",
			[]RunResult{{Org: "acme", Validation: &validate.Result{
				Issues: []validate.Issue{{Severity: validate.SeverityError, Path: "acme", Field: "x", Message: "bad"}},
			}}},
			true, ExitValidation,
		},
		{"run error", []RunResult{{Org: "acme", Error: errors.New("boom")}}, true, ExitPartial},
	}

	for _, tc := range cases {
		if got := ExitCodeFor(tc.results, tc.planMode); got != tc.want {
			t.Errorf("%s: exit code = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestOrgsDiscoveredFromConfigFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "orgs"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"zeta.yml", "acme.yml"} {
		if err := os.WriteFile(filepath.Join(dir, "orgs", name), []byte("github_id: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := New(&config.Config{ConfigPath: dir}, nil)
	orgs, err := r.Orgs()
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 2 || orgs[0] != "acme" || orgs[1] != "zeta" {
		t.Errorf("orgs = %v", orgs)
	}
}

func TestOrgsExplicitListWins(t *testing.T) {
	r := New(&config.Config{Orgs: []string{"acme"}}, nil)
	orgs, err := r.Orgs()
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 1 || orgs[0] != "acme" {
		t.Errorf("orgs = %v", orgs)
	}
}

func TestOrgsEmptyDirIsError(t *testing.T) {
	r := New(&config.Config{ConfigPath: t.TempDir()}, nil)
	if _, err := r.Orgs(); err == nil {
		t.Fatal("expected error for missing configs")
	}
}
