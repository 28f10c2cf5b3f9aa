// Package loader reads and writes organization configuration files. Configs
// live in a git repository, one YAML file per organization; the loader also
// syncs that repository and commits imported state back.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/everstacklabs/orgsync/internal/model"
)

// Load parses one organization config file. Unknown fields are an error:
// a typoed setting that silently parses to nothing is worse than a failed
// load.
func Load(path string) (*model.Organization, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	org, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return org, nil
}

func decode(r io.Reader) (*model.Organization, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var org model.Organization
	if err := dec.Decode(&org); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty configuration")
		}
		return nil, err
	}
	if org.Login == "" {
		return nil, fmt.Errorf("missing github_id")
	}
	if org.Settings != nil {
		org.Settings.Org = org.Login
	}
	return &org, nil
}

// Save writes the organization back out, used by the fetch/import flow to
// seed a config file from live state.
func Save(path string, org *model.Organization) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(org); err != nil {
		return fmt.Errorf("encoding %s: %w", org.Login, err)
	}
	return enc.Close()
}

// ConfigPath returns the conventional file path for an organization inside
// the config repository.
func ConfigPath(root, login string) string {
	return filepath.Join(root, "orgs", login+".yml")
}
