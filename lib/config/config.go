// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads the YAML repository configuration that backs the
// CLI surface of spec.md §6: each named repository selects an address, a
// local path, a relay-side base directory, an access mode and the lock
// and placeholder tuning parameters lib/lock and lib/relay need.
package config

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/francoislaurent/escale-go/lib/marker"
)

// Duration marshals as a Go duration string ("60s") in YAML/JSON rather
// than as a bare integer of nanoseconds, so hand-written config files stay
// readable.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarkerOverrides lets a repository override the default marker codec
// prefixes/suffixes of spec.md §4.1. Empty fields keep the default.
type MarkerOverrides struct {
	PlaceholderPrefix string `json:"placeholderPrefix,omitempty"`
	PlaceholderSuffix string `json:"placeholderSuffix,omitempty"`
	LockPrefix        string `json:"lockPrefix,omitempty"`
	LockSuffix        string `json:"lockSuffix,omitempty"`
	MessagePrefix     string `json:"messagePrefix,omitempty"`
	MessageSuffix     string `json:"messageSuffix,omitempty"`
}

// Apply overrides the non-empty fields of base, returning the resulting
// codec.
func (o MarkerOverrides) Apply(base marker.Codec) marker.Codec {
	c := base
	if o.PlaceholderPrefix != "" {
		c.PlaceholderPrefix = o.PlaceholderPrefix
	}
	if o.PlaceholderSuffix != "" {
		c.PlaceholderSuffix = o.PlaceholderSuffix
	}
	if o.LockPrefix != "" {
		c.LockPrefix = o.LockPrefix
	}
	if o.LockSuffix != "" {
		c.LockSuffix = o.LockSuffix
	}
	if o.MessagePrefix != "" {
		c.MessagePrefix = o.MessagePrefix
	}
	if o.MessageSuffix != "" {
		c.MessageSuffix = o.MessageSuffix
	}
	return c
}

// Repository is one entry of the configuration file: everything a Manager
// loop needs to drive lib/relay, lib/lock and lib/access for a single
// synchronized directory.
type Repository struct {
	Address        string          `json:"address"`
	Path           string          `json:"path"`
	RelayDir       string          `json:"relayDir,omitempty"`
	Mode           string          `json:"mode"`
	PullerCount    int             `json:"pullerCount,omitempty"`
	LockTimeout    Duration        `json:"lockTimeout,omitempty"`
	PollInterval   Duration        `json:"pollInterval,omitempty"`
	TickInterval   Duration        `json:"tickInterval,omitempty"`
	MarkerPrefixes MarkerOverrides `json:"markerPrefixes,omitempty"`
	Cipher         string          `json:"cipher,omitempty"`
}

// Config is the parsed configuration file: a named set of repositories.
type Config struct {
	Repositories map[string]Repository `json:"repositories"`
}

// Load reads and parses the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Repository looks up one named repository, erroring if it is undefined.
func (c *Config) Repository(name string) (Repository, error) {
	repo, ok := c.Repositories[name]
	if !ok {
		return Repository{}, fmt.Errorf("config: no repository named %q", name)
	}
	return repo, nil
}

// Set replaces the named repository's configuration entry.
func (c *Config) Set(name string, repo Repository) {
	if c.Repositories == nil {
		c.Repositories = map[string]Repository{}
	}
	c.Repositories[name] = repo
}

// Save writes cfg back to path as YAML, for tools (escalectl migrate) that
// update the configuration after moving a repository's relay endpoint.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
