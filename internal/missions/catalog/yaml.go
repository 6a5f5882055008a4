package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the YAML layout of a catalog override:
//
//	extend: true
//	actions:
//	  create_post: [posts_created]
//	rules:
//	  dgt_spent_tips: {kind: amount}
//	immediate: [login]
type fileFormat struct {
	Extend    bool                `yaml:"extend"`
	Actions   map[string][]string `yaml:"actions"`
	Rules     map[string]Rule     `yaml:"rules"`
	Immediate []string            `yaml:"immediate"`
}

// Load reads a catalog from path. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return FromYAML(data)
}

func FromYAML(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if !f.Extend {
		return New(f.Actions, f.Rules, f.Immediate)
	}
	actions, rules, immediate := Default().tables()
	for a, keys := range f.Actions {
		actions[a] = keys
	}
	for k, r := range f.Rules {
		rules[k] = r
	}
	return New(actions, rules, append(immediate, f.Immediate...))
}
