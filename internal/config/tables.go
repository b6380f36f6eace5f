package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaltPlaceholder is the substring of a salt template replaced by the
// candidate secret when building a salt.
const SaltPlaceholder = "{}"

// Tables holds the enumeration tables driving the seed hypothesis search.
// They are configuration, not code: every axis can be overridden from a
// YAML file without touching the search implementation.
type Tables struct {
	Secrets       []string `yaml:"secrets"`
	SaltTemplates []string `yaml:"salt_templates"`
	Encodings     []string `yaml:"encodings"`
	Orderings     []string `yaml:"orderings"`
	Algorithms    []string `yaml:"algorithms"`
}

// DefaultTables returns the built-in enumeration tables
func DefaultTables() *Tables {
	return &Tables{
		Secrets: []string{
			"rugs.fun",
			"rugsfun",
			"rug",
			"rugpull",
			"crypto",
			"game",
			"seed",
			"random",
			"bitcoin",
			"ethereum",
			"secret",
			"provably-fair",
		},
		SaltTemplates: []string{
			"{}",
			"{}_salt",
			"salt_{}",
			"{}_key",
			"key_{}",
			"{}_seed",
			"seed_{}",
		},
		Encodings: []string{
			"epoch",
			"epoch_ms",
			"date",
			"time",
			"datetime",
			"year",
			"month",
			"day",
			"hour",
			"minute",
			"second",
			"microsecond",
			"game_id",
		},
		Orderings: []string{
			"time_salt",
			"salt_time",
			"time_only",
			"salt_only",
		},
		Algorithms: []string{
			"md5",
			"sha1",
			"sha256",
		},
	}
}

// LoadTables loads enumeration tables from a YAML file. An empty path
// returns the defaults; axes missing from the file fall back to their
// default lists, so a file may override only the secrets, say.
func LoadTables(path string) (*Tables, error) {
	tables := DefaultTables()
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}

	var loaded Tables
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse tables file %s: %w", path, err)
	}

	if len(loaded.Secrets) > 0 {
		tables.Secrets = loaded.Secrets
	}
	if len(loaded.SaltTemplates) > 0 {
		tables.SaltTemplates = loaded.SaltTemplates
	}
	if len(loaded.Encodings) > 0 {
		tables.Encodings = loaded.Encodings
	}
	if len(loaded.Orderings) > 0 {
		tables.Orderings = loaded.Orderings
	}
	if len(loaded.Algorithms) > 0 {
		tables.Algorithms = loaded.Algorithms
	}

	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("tables validation failed: %w", err)
	}

	return tables, nil
}

// Validate checks the tables for structural problems. Semantic checks
// (unknown encoding or algorithm names) belong to the search package that
// interprets the names.
func (t *Tables) Validate() error {
	axes := []struct {
		name   string
		values []string
	}{
		{"secrets", t.Secrets},
		{"salt_templates", t.SaltTemplates},
		{"encodings", t.Encodings},
		{"orderings", t.Orderings},
		{"algorithms", t.Algorithms},
	}

	for _, axis := range axes {
		if len(axis.values) == 0 {
			return fmt.Errorf("%s cannot be empty", axis.name)
		}
		seen := make(map[string]bool, len(axis.values))
		for _, v := range axis.values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s contains an empty entry", axis.name)
			}
			if seen[v] {
				return fmt.Errorf("%s contains duplicate entry %q", axis.name, v)
			}
			seen[v] = true
		}
	}

	return nil
}

// Salt builds the salt string for a secret from a template by substituting
// the placeholder. A template without a placeholder is a literal salt.
func (t *Tables) Salt(template, secret string) string {
	return strings.ReplaceAll(template, SaltPlaceholder, secret)
}

// Combinations returns the size of the enumeration grid per record
// (encodings x secrets x salt templates x orderings x algorithms).
func (t *Tables) Combinations() int {
	return len(t.Encodings) * len(t.Secrets) * len(t.SaltTemplates) * len(t.Orderings) * len(t.Algorithms)
}
