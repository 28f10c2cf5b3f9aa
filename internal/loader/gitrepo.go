package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ConfigRepo is the git repository that holds organization config files.
type ConfigRepo struct {
	path  string
	url   string
	token string

	repo     *git.Repository
	worktree *git.Worktree
}

// OpenConfigRepo clones url into path if the checkout does not exist yet,
// otherwise opens the existing one. Token may be empty for public repos.
func OpenConfigRepo(ctx context.Context, path, url, token string) (*ConfigRepo, error) {
	c := &ConfigRepo{path: path, url: url, token: token}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
			URL:  url,
			Auth: c.auth(),
		})
		if err != nil {
			return nil, fmt.Errorf("cloning config repo: %w", err)
		}
		c.repo = repo
	} else {
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, fmt.Errorf("opening config repo: %w", err)
		}
		c.repo = repo
	}

	wt, err := c.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	c.worktree = wt
	return c, nil
}

// Path is the worktree root; config files are read relative to it.
func (c *ConfigRepo) Path() string { return c.path }

// Pull fast-forwards the checkout to the remote head.
func (c *ConfigRepo) Pull(ctx context.Context) error {
	err := c.worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Auth:       c.auth(),
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pulling config repo: %w", err)
	}
	return nil
}

// CommitAndPush stages everything, commits, and pushes. Used after the
// fetch/import flow writes updated config files. Returns without committing
// when the worktree is clean.
func (c *ConfigRepo) CommitAndPush(ctx context.Context, message string) error {
	if _, err := c.worktree.Add("."); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}

	status, err := c.worktree.Status()
	if err != nil {
		return fmt.Errorf("checking status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	_, err = c.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "orgsync",
			Email: "orgsync@everstack.dev",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	err = c.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       c.auth(),
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pushing: %w", err)
	}
	return nil
}

func (c *ConfigRepo) auth() *githttp.BasicAuth {
	if c.token == "" {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: c.token,
	}
}
