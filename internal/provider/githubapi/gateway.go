// Package githubapi implements the provider gateway on the GitHub REST API.
// All GitHub-specific behavior lives here: endpoint mapping per entity kind,
// secret sealing, sub-resource endpoints for topics and vulnerability
// alerts, pagination, rate limiting, and conditional-request caching.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/everstacklabs/orgsync/internal/cache"
	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Gateway fulfills provider.Gateway against api.github.com (or a GHES
// instance). It is safe for concurrent use; the underlying transport
// serializes requests through its rate limiter.
type Gateway struct {
	client *gh.Client
}

// Option configures the Gateway.
type Option func(*settings)

type settings struct {
	baseURL string
	rps     float64
	store   *cache.Store
	timeout time.Duration
}

// WithBaseURL points the gateway at a GitHub Enterprise Server instance.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) Option {
	return func(s *settings) { s.rps = rps }
}

// WithCache enables conditional-request caching of GET responses.
func WithCache(store *cache.Store) Option {
	return func(s *settings) { s.store = store }
}

// New creates a Gateway authenticating with token.
func New(ctx context.Context, token string, opts ...Option) (*Gateway, error) {
	s := settings{rps: 10, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(ctx, ts)

	rt := hc.Transport
	rt = &throttled{next: rt, limiter: rate.NewLimiter(rate.Limit(s.rps), 1)}
	if s.store != nil {
		rt = &caching{next: rt, store: s.store}
	}
	hc = &http.Client{Transport: rt, Timeout: s.timeout}

	client := gh.NewClient(hc)
	if s.baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(s.baseURL, s.baseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring base URL: %w", err)
		}
	}
	return &Gateway{client: client}, nil
}

// Fetch reads current state for one entity collection.
func (g *Gateway) Fetch(ctx context.Context, kind model.Kind, scope provider.Scope) ([]model.Entity, error) {
	var (
		out []model.Entity
		err error
	)
	switch kind {
	case model.KindSettings:
		out, err = g.fetchSettings(ctx, scope)
	case model.KindWebhook:
		out, err = g.fetchWebhooks(ctx, scope)
	case model.KindRepository:
		out, err = g.fetchRepositories(ctx, scope)
	case model.KindRuleset:
		out, err = g.fetchRulesets(ctx, scope)
	case model.KindSecret:
		out, err = g.fetchSecrets(ctx, scope)
	case model.KindVariable:
		out, err = g.fetchVariables(ctx, scope)
	case model.KindEnvironment:
		out, err = g.fetchEnvironments(ctx, scope)
	case model.KindBranchPolicy:
		out, err = g.fetchBranchPolicies(ctx, scope)
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
	if err != nil {
		return nil, fetchErr(kind, scope, err)
	}
	return out, nil
}

// Create makes a new entity and returns its provider-assigned state.
func (g *Gateway) Create(ctx context.Context, kind model.Kind, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	var (
		out model.Entity
		err error
	)
	switch kind {
	case model.KindWebhook:
		out, err = g.createWebhook(ctx, scope, payload)
	case model.KindRepository:
		out, err = g.createRepository(ctx, scope, payload)
	case model.KindRuleset:
		out, err = g.createRuleset(ctx, scope, payload)
	case model.KindSecret:
		out, err = g.putSecret(ctx, scope, payload)
	case model.KindVariable:
		out, err = g.createVariable(ctx, scope, payload)
	case model.KindEnvironment:
		out, err = g.createEnvironment(ctx, scope, payload)
	case model.KindBranchPolicy:
		out, err = g.createBranchPolicy(ctx, scope, payload)
	default:
		return nil, fmt.Errorf("cannot create kind %q", kind)
	}
	if err != nil {
		return nil, opErr(kind, scope, keyOf(payload, kind), err)
	}
	return out, nil
}

// Update patches an existing entity, addressed by provider id where the
// natural key is mutable.
func (g *Gateway) Update(ctx context.Context, kind model.Kind, scope provider.Scope, providerID string, payload map[string]any) error {
	var err error
	switch kind {
	case model.KindSettings:
		err = g.updateSettings(ctx, scope, payload)
	case model.KindWebhook:
		err = g.updateWebhook(ctx, scope, providerID, payload)
	case model.KindRepository:
		err = g.updateRepository(ctx, scope, payload)
	case model.KindRuleset:
		err = g.updateRuleset(ctx, scope, providerID, payload)
	case model.KindSecret:
		err = g.updateSecret(ctx, scope, providerID, payload)
	case model.KindVariable:
		err = g.updateVariable(ctx, scope, providerID, payload)
	case model.KindEnvironment:
		err = g.updateEnvironment(ctx, scope, providerID, payload)
	case model.KindBranchPolicy:
		err = g.updateBranchPolicy(ctx, scope, providerID, payload)
	default:
		return fmt.Errorf("cannot update kind %q", kind)
	}
	if err != nil {
		return opErr(kind, scope, providerID, err)
	}
	return nil
}

// Delete removes an entity.
func (g *Gateway) Delete(ctx context.Context, kind model.Kind, scope provider.Scope, providerID string) error {
	var err error
	switch kind {
	case model.KindWebhook:
		err = g.deleteWebhook(ctx, scope, providerID)
	case model.KindRepository:
		err = g.deleteRepository(ctx, scope)
	case model.KindRuleset:
		err = g.deleteRuleset(ctx, scope, providerID)
	case model.KindSecret:
		err = g.deleteSecret(ctx, scope, providerID)
	case model.KindVariable:
		err = g.deleteVariable(ctx, scope, providerID)
	case model.KindEnvironment:
		err = g.deleteEnvironment(ctx, scope, providerID)
	case model.KindBranchPolicy:
		err = g.deleteBranchPolicy(ctx, scope, providerID)
	default:
		return fmt.Errorf("cannot delete kind %q", kind)
	}
	if err != nil {
		return opErr(kind, scope, providerID, err)
	}
	return nil
}

// --- error mapping ---

func httpStatus(err error) int {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode
	}
	return 0
}

func isAuthStatus(err error) bool {
	return httpStatus(err) == http.StatusUnauthorized
}

func fetchErr(kind model.Kind, scope provider.Scope, err error) error {
	if isAuthStatus(err) {
		return &provider.AuthError{Message: err.Error()}
	}
	return &provider.FetchError{Kind: kind, Scope: scope, Status: httpStatus(err), Err: err}
}

func opErr(kind model.Kind, scope provider.Scope, key string, err error) error {
	if isAuthStatus(err) {
		return &provider.AuthError{Message: err.Error()}
	}
	return &provider.OperationError{
		Kind:    kind,
		Scope:   scope,
		Key:     key,
		Status:  httpStatus(err),
		Message: err.Error(),
		Err:     err,
	}
}

func keyOf(payload map[string]any, kind model.Kind) string {
	if v, ok := payload[model.KeyField(kind)].(string); ok {
		return v
	}
	return ""
}

// --- payload helpers ---

func strField(payload map[string]any, field string) (*string, bool) {
	v, ok := payload[field]
	if !ok {
		return nil, false
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

func boolField(payload map[string]any, field string) (*bool, bool) {
	v, ok := payload[field]
	if !ok {
		return nil, false
	}
	b, ok := v.(bool)
	if !ok {
		return nil, false
	}
	return &b, true
}

func intField(payload map[string]any, field string) (*int, bool) {
	v, ok := payload[field]
	if !ok {
		return nil, false
	}
	i, ok := v.(int)
	if !ok {
		return nil, false
	}
	return &i, true
}

func listField(payload map[string]any, field string) ([]string, bool) {
	v, ok := payload[field]
	if !ok {
		return nil, false
	}
	l, ok := v.([]string)
	if !ok {
		return nil, false
	}
	return l, true
}
