// Package validate checks organization configurations before they reach the
// diff engine. Errors block a run; warnings are reported and ignored.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/everstacklabs/orgsync/internal/model"
)

// Severity classifies validation issues.
type Severity int

const (
	SeverityError   Severity = iota // Blocks plan/apply
	SeverityWarning                 // Reported but doesn't block
)

// Issue represents a single validation problem.
type Issue struct {
	Severity Severity
	Path     string
	Field    string
	Message  string
}

func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s: %s", sev, i.Path, i.Field, i.Message)
}

// Result holds all validation issues for one organization.
type Result struct {
	Issues []Issue
}

func (r *Result) errorf(path, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{SeverityError, path, field, fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(path, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{SeverityWarning, path, field, fmt.Sprintf(format, args...)})
}

// HasErrors returns true if there are any blocking errors.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (r *Result) Errors() []Issue {
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (r *Result) Warnings() []Issue {
	var warns []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			warns = append(warns, i)
		}
	}
	return warns
}

var secretNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	validPermissions  = map[string]bool{"read": true, "write": true, "admin": true, "none": true}
	validContentTypes = map[string]bool{"json": true, "form": true}
	validVisibility   = map[string]bool{"all": true, "private": true, "selected": true}
	validEnforcement  = map[string]bool{"active": true, "evaluate": true, "disabled": true}
	validBranchModes  = map[string]bool{"all": true, "protected": true, "selected": true}
	validPolicyTypes  = map[string]bool{"branch": true, "tag": true}
)

// Organization checks one expected-state tree.
func Organization(org *model.Organization) *Result {
	r := &Result{}
	path := org.Login
	if path == "" {
		path = "organization"
		r.errorf(path, "github_id", "required field is empty")
	}

	if org.Settings != nil {
		if p := org.Settings.DefaultRepoPermission; p != nil && !validPermissions[*p] {
			r.errorf(path, "default_repository_permission",
				"unknown value %q, expected one of: read, write, admin, none", *p)
		}
	}

	checkDuplicates(r, path, "webhooks", entityKeys(org.Webhooks))
	for _, hook := range org.Webhooks {
		checkWebhook(r, path, hook)
	}

	checkDuplicates(r, path, "secrets", entityKeys(org.Secrets))
	for _, s := range org.Secrets {
		checkSecret(r, path, s, true)
	}

	checkDuplicates(r, path, "variables", entityKeys(org.Variables))
	for _, v := range org.Variables {
		checkVariable(r, path, v, true)
	}

	checkDuplicates(r, path, "repositories", entityKeys(org.Repositories))
	for _, repo := range org.Repositories {
		checkRepository(r, path+"/"+repo.Name, repo)
	}
	return r
}

func checkWebhook(r *Result, path string, hook *model.Webhook) {
	if hook.URL == "" {
		r.errorf(path, "webhooks.url", "required field is empty")
		return
	}
	if !strings.HasPrefix(hook.URL, "https://") && !strings.HasPrefix(hook.URL, "http://") {
		r.errorf(path, "webhooks."+hook.URL, "url must be http(s)")
	}
	if hook.ContentType != nil && !validContentTypes[*hook.ContentType] {
		r.errorf(path, "webhooks."+hook.URL, "unknown content_type %q, expected json or form", *hook.ContentType)
	}
	if len(hook.Events) == 0 {
		r.warnf(path, "webhooks."+hook.URL, "no events configured, hook will never fire")
	}
}

func checkSecret(r *Result, path string, s *model.Secret, orgScope bool) {
	if s.Name == "" {
		r.errorf(path, "secrets.name", "required field is empty")
		return
	}
	field := "secrets." + s.Name
	if !secretNameRe.MatchString(s.Name) {
		r.errorf(path, field, "name must be alphanumeric with underscores")
	}
	if strings.HasPrefix(strings.ToUpper(s.Name), "GITHUB_") {
		r.errorf(path, field, "names starting with GITHUB_ are reserved")
	}
	if s.Value == nil {
		r.warnf(path, field, "no value configured, secret can be created but never updated")
	}
	checkVisibility(r, path, field, s.Visibility, s.SelectedRepositories, orgScope)
}

func checkVariable(r *Result, path string, v *model.Variable, orgScope bool) {
	if v.Name == "" {
		r.errorf(path, "variables.name", "required field is empty")
		return
	}
	field := "variables." + v.Name
	if !secretNameRe.MatchString(v.Name) {
		r.errorf(path, field, "name must be alphanumeric with underscores")
	}
	if v.Value == nil {
		r.errorf(path, field, "required field value is empty")
	}
	checkVisibility(r, path, field, v.Visibility, v.SelectedRepositories, orgScope)
}

func checkVisibility(r *Result, path, field string, visibility *string, selected []string, orgScope bool) {
	if !orgScope {
		if visibility != nil || len(selected) > 0 {
			r.warnf(path, field, "visibility applies only at organization scope")
		}
		return
	}
	if visibility != nil && !validVisibility[*visibility] {
		r.errorf(path, field, "unknown visibility %q, expected one of: all, private, selected", *visibility)
	}
	if len(selected) > 0 && (visibility == nil || *visibility != "selected") {
		r.errorf(path, field, "selected_repositories requires visibility: selected")
	}
}

func checkRepository(r *Result, path string, repo *model.Repository) {
	if repo.Name == "" {
		r.errorf(path, "name", "required field is empty")
		return
	}

	checkDuplicates(r, path, "rulesets", entityKeys(repo.Rulesets))
	for _, rs := range repo.Rulesets {
		if rs.Pattern == "" {
			r.errorf(path, "rulesets.pattern", "required field is empty")
			continue
		}
		if rs.Enforcement != nil && !validEnforcement[*rs.Enforcement] {
			r.errorf(path, "rulesets."+rs.Pattern,
				"unknown enforcement %q, expected one of: active, evaluate, disabled", *rs.Enforcement)
		}
		if rs.StrictStatusChecks != nil && len(rs.RequiredStatusChecks) == 0 {
			r.warnf(path, "rulesets."+rs.Pattern, "strict_status_checks without required_status_checks has no effect")
		}
	}

	checkDuplicates(r, path, "secrets", entityKeys(repo.Secrets))
	for _, s := range repo.Secrets {
		checkSecret(r, path, s, false)
	}

	checkDuplicates(r, path, "variables", entityKeys(repo.Variables))
	for _, v := range repo.Variables {
		checkVariable(r, path, v, false)
	}

	checkDuplicates(r, path, "environments", entityKeys(repo.Environments))
	for _, env := range repo.Environments {
		checkEnvironment(r, path, env)
	}
}

func checkEnvironment(r *Result, path string, env *model.Environment) {
	if env.Name == "" {
		r.errorf(path, "environments.name", "required field is empty")
		return
	}
	field := "environments." + env.Name

	if env.WaitTimer != nil && (*env.WaitTimer < 0 || *env.WaitTimer > 43200) {
		r.errorf(path, field, "wait_timer must be between 0 and 43200 minutes")
	}
	if env.BranchPolicyMode != nil && !validBranchModes[*env.BranchPolicyMode] {
		r.errorf(path, field,
			"unknown deployment_branch_policy %q, expected one of: all, protected, selected", *env.BranchPolicyMode)
	}
	selected := env.BranchPolicyMode != nil && *env.BranchPolicyMode == "selected"
	if len(env.BranchPolicies) > 0 && !selected {
		r.errorf(path, field, "branch_policies requires deployment_branch_policy: selected")
	}
	for _, reviewer := range env.Reviewers {
		kind, _, found := strings.Cut(reviewer, ":")
		if !found || (kind != "user" && kind != "team") {
			r.errorf(path, field, "reviewer %q must be user:<login> or team:<slug>", reviewer)
		}
	}

	checkDuplicates(r, path, field+".branch_policies", entityKeys(env.BranchPolicies))
	for _, bp := range env.BranchPolicies {
		if bp.Name == "" {
			r.errorf(path, field, "branch policy name is empty")
			continue
		}
		if bp.Type != nil && !validPolicyTypes[*bp.Type] {
			r.errorf(path, field, "unknown branch policy type %q, expected branch or tag", *bp.Type)
		}
	}
}

func checkDuplicates(r *Result, path, collection string, keys []string) {
	seen := map[string]bool{}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if seen[k] {
			r.errorf(path, collection, "duplicate key %q", k)
		}
		seen[k] = true
	}
}

func entityKeys[E model.Entity](entities []E) []string {
	keys := make([]string, len(entities))
	for i, e := range entities {
		keys[i] = e.Key()
	}
	return keys
}
