package githubapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	gh "github.com/google/go-github/v59/github"
	"golang.org/x/crypto/nacl/box"

	"github.com/everstacklabs/orgsync/internal/model"
	"github.com/everstacklabs/orgsync/internal/provider"
)

// Actions secrets must be sealed with the org/repo public key before upload;
// GitHub only accepts libsodium sealed boxes. Values are never readable
// back, so fetched secrets carry names (and org-level visibility) only.

func (g *Gateway) fetchSecrets(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	if scope.Repo == "" {
		return g.fetchOrgSecrets(ctx, scope)
	}
	var out []model.Entity
	opts := &gh.ListOptions{PerPage: 100}
	for {
		secrets, resp, err := g.client.Actions.ListRepoSecrets(ctx, scope.Org, scope.Repo, opts)
		if err != nil {
			return nil, err
		}
		for _, s := range secrets.Secrets {
			out = append(out, &model.Secret{Name: s.Name})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *Gateway) fetchOrgSecrets(ctx context.Context, scope provider.Scope) ([]model.Entity, error) {
	var out []model.Entity
	opts := &gh.ListOptions{PerPage: 100}
	for {
		secrets, resp, err := g.client.Actions.ListOrgSecrets(ctx, scope.Org, opts)
		if err != nil {
			return nil, err
		}
		for _, s := range secrets.Secrets {
			m := &model.Secret{Name: s.Name}
			if s.Visibility != "" {
				m.Visibility = model.Ptr(s.Visibility)
			}
			if s.Visibility == "selected" {
				selected, err := g.selectedRepoNames(ctx, scope.Org, s.Name)
				if err != nil {
					return nil, err
				}
				m.SelectedRepositories = selected
			}
			out = append(out, m)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *Gateway) selectedRepoNames(ctx context.Context, org, secret string) ([]string, error) {
	var names []string
	opts := &gh.ListOptions{PerPage: 100}
	for {
		list, resp, err := g.client.Actions.ListSelectedReposForOrgSecret(ctx, org, secret, opts)
		if err != nil {
			return nil, err
		}
		for _, r := range list.Repositories {
			names = append(names, r.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// putSecret handles both create and update: the provider endpoint is a
// create-or-update PUT either way.
func (g *Gateway) putSecret(ctx context.Context, scope provider.Scope, payload map[string]any) (model.Entity, error) {
	name, ok := strField(payload, "name")
	if !ok {
		return nil, fmt.Errorf("secret payload missing name")
	}

	var pk *gh.PublicKey
	var err error
	if scope.Repo == "" {
		pk, _, err = g.client.Actions.GetOrgPublicKey(ctx, scope.Org)
	} else {
		pk, _, err = g.client.Actions.GetRepoPublicKey(ctx, scope.Org, scope.Repo)
	}
	if err != nil {
		return nil, err
	}

	enc := &gh.EncryptedSecret{Name: *name, KeyID: pk.GetKeyID()}
	if value, ok := strField(payload, "value"); ok {
		sealed, err := sealValue(*value, pk)
		if err != nil {
			return nil, err
		}
		enc.EncryptedValue = sealed
	}

	if scope.Repo != "" {
		_, err = g.client.Actions.CreateOrUpdateRepoSecret(ctx, scope.Org, scope.Repo, enc)
		if err != nil {
			return nil, err
		}
		return &model.Secret{Name: *name}, nil
	}

	if v, ok := strField(payload, "visibility"); ok {
		enc.Visibility = *v
	}
	if names, ok := listField(payload, "selected_repositories"); ok {
		ids, err := g.resolveRepoIDs(ctx, scope.Org, names)
		if err != nil {
			return nil, err
		}
		enc.SelectedRepositoryIDs = ids
	}
	_, err = g.client.Actions.CreateOrUpdateOrgSecret(ctx, scope.Org, enc)
	if err != nil {
		return nil, err
	}
	return &model.Secret{Name: *name}, nil
}

// updateSecret re-seals and re-puts the secret under its existing name.
func (g *Gateway) updateSecret(ctx context.Context, scope provider.Scope, name string, payload map[string]any) error {
	payload["name"] = name
	_, err := g.putSecret(ctx, scope, payload)
	return err
}

func (g *Gateway) resolveRepoIDs(ctx context.Context, org string, names []string) (gh.SelectedRepoIDs, error) {
	ids := make(gh.SelectedRepoIDs, 0, len(names))
	for _, name := range names {
		repo, _, err := g.client.Repositories.Get(ctx, org, name)
		if err != nil {
			return nil, fmt.Errorf("resolving repository %q: %w", name, err)
		}
		ids = append(ids, repo.GetID())
	}
	return ids, nil
}

func sealValue(value string, pk *gh.PublicKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(pk.GetKey())
	if err != nil {
		return "", fmt.Errorf("decoding public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("unexpected public key length %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	sealed, err := box.SealAnonymous(nil, []byte(value), &key, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("sealing secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (g *Gateway) deleteSecret(ctx context.Context, scope provider.Scope, name string) error {
	var err error
	if scope.Repo == "" {
		_, err = g.client.Actions.DeleteOrgSecret(ctx, scope.Org, name)
	} else {
		_, err = g.client.Actions.DeleteRepoSecret(ctx, scope.Org, scope.Repo, name)
	}
	return err
}
