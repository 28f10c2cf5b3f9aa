package githubapi

import (
	"context"
	"strconv"

	gh "github.com/google/go-github/v59/github"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

func (g *Gateway) fetchWebhooks(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	var out []model.Entity
	opts := &gh.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := g.client.Organizations.ListHooks(ctx, scope.Org, opts)
		if err != nil {
			return nil, err
		}
		for _, h := range hooks {
			out = append(out, hookToModel(h))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func hookToModel(h *gh.Hook) *model.Webhook {
	w := &model.Webhook{
		ID:     h.GetID(),
		Events: h.Events,
		Active: h.Active,
	}
	if v, ok := h.Config["url"].(string); ok {
		w.URL = v
	}
	if v, ok := h.Config["content_type"].(string); ok {
		w.ContentType = &v
	}
	if v, ok := h.Config["insecure_ssl"].(string); ok {
		w.InsecureSSL = &v
	}
	return w
}

func hookFromPayload(payload map[string]any) *gh.Hook {
	cfg := map[string]any{}
	if v, ok := strField(payload, "url"); ok {
		cfg["url"] = *v
	}
	if v, ok := strField(payload, "content_type"); ok {
		cfg["content_type"] = *v
	}
	if v, ok := strField(payload, "secret"); ok {
		cfg["secret"] = *v
	}
	if v, ok := strField(payload, "insecure_ssl"); ok {
		cfg["insecure_ssl"] = *v
	}
	h := &gh.Hook{Config: cfg}
	if v, ok := boolField(payload, "active"); ok {
		h.Active = v
	}
	if v, ok := listField(payload, "events"); ok {
		h.Events = v
	}
	return h
}

func (g *Gateway) createWebhook(ctx context.Context, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	created, _, err := g.client.Organizations.CreateHook(ctx, scope.Org, hookFromPayload(payload))
	if err != nil {
		return nil, err
	}
	return hookToModel(created), nil
}

func (g *Gateway) updateWebhook(ctx context.Context, scope provider.Scope, providerID string, payload map[string]any) error {
	id, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return err
	}
	_, _, err = g.client.Organizations.EditHook(ctx, scope.Org, id, hookFromPayload(payload))
	return err
}

func (g *Gateway) deleteWebhook(ctx context.Context, scope provider.Scope, providerID string) error {
	id, err := strconv.ParseInt(providerID, 10, 64)
	if err != nil {
		return err
	}
	_, err = g.client.Organizations.DeleteHook(ctx, scope.Org, id)
	return err
}
