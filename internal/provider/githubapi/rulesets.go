package githubapi

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v59/github"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Branch protection rules map onto repository rulesets: the ruleset's
// numeric id is the stable provider id, and the branch name pattern lives in
// the ref-name condition. The pattern doubles as the ruleset name.

const refPrefix = "refs/heads/"

func (g *Gateway) fetchRulesets(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	listed, _, err := g.client.Repositories.GetAllRulesets(ctx, scope.Org, scope.Repo, false)
	if err != nil {
		return nil, err
	}
	var out []model.Entity
	for _, rs := range listed {
		// The list endpoint omits rules and conditions.
		full, _, err := g.client.Repositories.GetRuleset(ctx, scope.Org, scope.Repo, rs.GetID(), false)
		if err != nil {
			return nil, err
		}
		out = append(out, rulesetToModel(full))
	}
	return out, nil
}

func rulesetToModel(rs *gh.Ruleset) *model.Ruleset {
	m := &model.Ruleset{
		ID:          rs.GetID(),
		Pattern:     rs.Name,
		Enforcement: model.Ptr(rs.Enforcement),
		// Rule-backed fields default to off: an absent rule means the
		// restriction is not in force.
		RequiredApprovingReviews: model.Ptr(0),
		DismissStaleReviews:      model.Ptr(false),
		RequireCodeOwnerReview:   model.Ptr(false),
		RequireLastPushApproval:  model.Ptr(false),
		RequireThreadResolution:  model.Ptr(false),
		RequiresLinearHistory:    model.Ptr(false),
		RequiresSignatures:       model.Ptr(false),
		RequiresStatusChecks:     model.Ptr(false),
		StrictStatusChecks:       model.Ptr(false),
		AllowsDeletions:          model.Ptr(true),
		AllowsForcePushes:        model.Ptr(true),
	}
	if rs.Conditions != nil && rs.Conditions.RefName != nil && len(rs.Conditions.RefName.Include) > 0 {
		m.Pattern = strings.TrimPrefix(rs.Conditions.RefName.Include[0], refPrefix)
	}
	for _, actor := range rs.BypassActors {
		m.BypassActors = append(m.BypassActors,
			actor.GetActorType()+":"+strconv.FormatInt(actor.GetActorID(), 10))
	}
	for _, rule := range rs.Rules {
		switch rule.Type {
		case "deletion":
			m.AllowsDeletions = model.Ptr(false)
		case "non_fast_forward":
			m.AllowsForcePushes = model.Ptr(false)
		case "required_linear_history":
			m.RequiresLinearHistory = model.Ptr(true)
		case "required_signatures":
			m.RequiresSignatures = model.Ptr(true)
		case "pull_request":
			var params gh.PullRequestRuleParameters
			if rule.Parameters != nil {
				_ = json.Unmarshal(*rule.Parameters, &params)
			}
			m.RequiredApprovingReviews = model.Ptr(params.RequiredApprovingReviewCount)
			m.DismissStaleReviews = model.Ptr(params.DismissStaleReviewsOnPush)
			m.RequireCodeOwnerReview = model.Ptr(params.RequireCodeOwnerReview)
			m.RequireLastPushApproval = model.Ptr(params.RequireLastPushApproval)
			m.RequireThreadResolution = model.Ptr(params.RequiredReviewThreadResolution)
		case "required_status_checks":
			var params gh.RequiredStatusChecksRuleParameters
			if rule.Parameters != nil {
				_ = json.Unmarshal(*rule.Parameters, &params)
			}
			m.RequiresStatusChecks = model.Ptr(true)
			m.StrictStatusChecks = model.Ptr(params.StrictRequiredStatusChecksPolicy)
			checks := make([]string, 0, len(params.RequiredStatusChecks))
			for _, c := range params.RequiredStatusChecks {
				checks = append(checks, c.Context)
			}
			m.RequiredStatusChecks = checks
		}
	}
	return m
}

func rulesetFromPayload(payload map[string]any) *gh.Ruleset {
	pattern, _ := strField(payload, "pattern")
	rs := &gh.Ruleset{
		Target:      model.Ptr("branch"),
		Enforcement: "active",
	}
	if pattern != nil {
		rs.Name = *pattern
		rs.Conditions = &gh.RulesetConditions{
			RefName: &gh.RulesetRefConditionParameters{Include: []string{refPrefix + *pattern}},
		}
	}
	if v, ok := strField(payload, "enforcement"); ok {
		rs.Enforcement = *v
	}
	rs.BypassActors = bypassList(payload)

	var rules []*gh.RepositoryRule
	if v, ok := boolField(payload, "allows_deletions"); ok && !*v {
		rules = append(rules, gh.NewDeletionRule())
	}
	if v, ok := boolField(payload, "allows_force_pushes"); ok && !*v {
		rules = append(rules, gh.NewNonFastForwardRule())
	}
	if v, ok := boolField(payload, "requires_linear_history"); ok && *v {
		rules = append(rules, gh.NewRequiredLinearHistoryRule())
	}
	if v, ok := boolField(payload, "requires_commit_signatures"); ok && *v {
		rules = append(rules, gh.NewRequiredSignaturesRule())
	}
	if pr := pullRequestParams(payload); pr != nil {
		rules = append(rules, gh.NewPullRequestRule(pr))
	}
	if v, ok := boolField(payload, "requires_status_checks"); ok && *v {
		params := &gh.RequiredStatusChecksRuleParameters{}
		if strict, ok := boolField(payload, "requires_strict_status_checks"); ok {
			params.StrictRequiredStatusChecksPolicy = *strict
		}
		if checks, ok := listField(payload, "required_status_checks"); ok {
			for _, c := range checks {
				params.RequiredStatusChecks = append(params.RequiredStatusChecks,
					gh.RuleRequiredStatusChecks{Context: c})
			}
		}
		rules = append(rules, gh.NewRequiredStatusChecksRule(params))
	}
	rs.Rules = rules
	return rs
}

func pullRequestParams(payload map[string]any) *gh.PullRequestRuleParameters {
	params := &gh.PullRequestRuleParameters{}
	set := false
	if v, ok := intField(payload, "required_approving_review_count"); ok {
		params.RequiredApprovingReviewCount = *v
		set = true
	}
	if v, ok := boolField(payload, "dismisses_stale_reviews"); ok {
		params.DismissStaleReviewsOnPush = *v
		set = true
	}
	if v, ok := boolField(payload, "requires_code_owner_review"); ok {
		params.RequireCodeOwnerReview = *v
		set = true
	}
	if v, ok := boolField(payload, "requires_last_push_approval"); ok {
		params.RequireLastPushApproval = *v
		set = true
	}
	if v, ok := boolField(payload, "requires_review_thread_resolution"); ok {
		params.RequiredReviewThreadResolution = *v
		set = true
	}
	if !set {
		return nil
	}
	return params
}

// bypassList parses "ActorType:id" strings into bypass actors with
// always-bypass mode.
func bypassList(payload map[string]any) []*gh.BypassActor {
	specs, ok := listField(payload, "bypass_actors")
	if !ok {
		return nil
	}
	var out []*gh.BypassActor
	for _, spec := range specs {
		actorType, idStr, found := strings.Cut(spec, ":")
		if !found {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &gh.BypassActor{
			ActorID:    model.Ptr(id),
			ActorType:  model.Ptr(actorType),
			BypassMode: model.Ptr("always"),
		})
	}
	return out
}

func (g *Gateway) createRuleset(ctx context.Context, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	created, _, err := g.client.Repositories.CreateRuleset(ctx, scope.Org, scope.Repo, rulesetFromPayload(payload))
	if err != nil {
		return nil, err
	}
	return rulesetToModel(created), nil
}

func (g *Gateway) updateRuleset(ctx context.Context, scope provider.Scope, providerID string, payload map[string]any) error {
	id, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return err
	}
	// The rulesets API replaces rather than patches, so fetch, fold the
	// changed fields into the full current payload, and write it back.
	current, _, err := g.client.Repositories.GetRuleset(ctx, scope.Org, scope.Repo, id, false)
	if err != nil {
		return err
	}
	full := rulesetToModel(current).CreatePayload()
	for k, v := range payload {
		full[k] = v
	}
	_, _, err = g.client.Repositories.UpdateRuleset(ctx, scope.Org, scope.Repo, id, rulesetFromPayload(full))
	return err
}

func (g *Gateway) deleteRuleset(ctx context.Context, scope provider.Scope, providerID string) error {
	id, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return err
	}
	_, err = g.client.Repositories.DeleteRuleset(ctx, scope.Org, scope.Repo, id)
	return err
}
