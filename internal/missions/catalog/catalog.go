// Package catalog maps platform actions to mission requirement keys and
// computes how much a single action advances each requirement.
package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type RuleKind string

const (
	// RuleCount advances by one per action.
	RuleCount RuleKind = "count"
	// RuleAmount advances by the numeric value at Field (default "amount").
	RuleAmount RuleKind = "amount"
	// RuleQuality advances by one when the number at Field reaches Min.
	RuleQuality RuleKind = "quality"
	// RuleUnique advances by one when the value is new for the user. When the
	// metadata carries the identifier at IDField the engine tracks seen values
	// itself; otherwise the flag at Field decides. An explicit false flag never counts.
	RuleUnique RuleKind = "unique"
)

type Rule struct {
	Kind  RuleKind `yaml:"kind"`
	Field string   `yaml:"field,omitempty"`
	Min   float64  `yaml:"min,omitempty"`
	// IDField names the metadata value a unique rule deduplicates on.
	IDField string `yaml:"id_field,omitempty"`
}

type Catalog struct {
	actions   map[string][]string
	rules     map[string]Rule
	immediate map[string]bool
}

// New validates and copies the given tables.
func New(actions map[string][]string, rules map[string]Rule, immediate []string) (*Catalog, error) {
	c := &Catalog{
		actions:   make(map[string][]string, len(actions)),
		rules:     make(map[string]Rule, len(rules)),
		immediate: make(map[string]bool, len(immediate)),
	}
	for action, keys := range actions {
		action = strings.TrimSpace(action)
		if action == "" {
			return nil, fmt.Errorf("catalog: empty action name")
		}
		seen := map[string]bool{}
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			k = strings.TrimSpace(k)
			if k == "" {
				return nil, fmt.Errorf("catalog: action %s maps to an empty requirement key", action)
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
		c.actions[action] = out
	}
	for key, r := range rules {
		if r.Kind == "" {
			r.Kind = RuleCount
		}
		switch r.Kind {
		case RuleCount:
		case RuleAmount:
			if r.Field == "" {
				r.Field = "amount"
			}
		case RuleQuality:
			if r.Field == "" {
				r.Field = "quality.length"
			}
			if r.Min <= 0 {
				return nil, fmt.Errorf("catalog: quality rule %s needs a positive min", key)
			}
		case RuleUnique:
			if r.Field == "" {
				r.Field = "context.isFirstTime"
			}
		default:
			return nil, fmt.Errorf("catalog: requirement %s has unknown rule kind %q", key, r.Kind)
		}
		c.rules[strings.TrimSpace(key)] = r
	}
	for _, a := range immediate {
		if a = strings.TrimSpace(a); a != "" {
			c.immediate[a] = true
		}
	}
	return c, nil
}

// RequirementsFor returns the requirement keys fed by action, or nil.
func (c *Catalog) RequirementsFor(action string) []string {
	keys := c.actions[action]
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

func (c *Catalog) RuleFor(key string) Rule {
	if r, ok := c.rules[key]; ok {
		return r
	}
	return Rule{Kind: RuleCount}
}

// IncrementFor never rejects malformed metadata: missing fields yield zero
// for amount/quality/unique rules and one for count rules.
func (c *Catalog) IncrementFor(key string, metadata map[string]any) int64 {
	r := c.RuleFor(key)
	switch r.Kind {
	case RuleAmount:
		v, ok := Number(metadata, r.Field)
		if !ok || math.IsNaN(v) || v <= 0 {
			return 0
		}
		// float64(MaxInt64) rounds up to 2^63, which no longer fits.
		if v >= math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(math.Floor(v))
	case RuleQuality:
		v, ok := Number(metadata, r.Field)
		if ok && v >= r.Min {
			return 1
		}
		return 0
	case RuleUnique:
		if Flag(metadata, r.Field) {
			return 1
		}
		return 0
	default:
		return 1
	}
}

// IsImmediate reports whether action must flush the dispatcher queue at once.
func (c *Catalog) IsImmediate(action string) bool {
	return c.immediate[action]
}

func (c *Catalog) Actions() []string {
	out := make([]string, 0, len(c.actions))
	for a := range c.actions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) tables() (map[string][]string, map[string]Rule, []string) {
	actions := make(map[string][]string, len(c.actions))
	for a, keys := range c.actions {
		actions[a] = append([]string(nil), keys...)
	}
	rules := make(map[string]Rule, len(c.rules))
	for k, r := range c.rules {
		rules[k] = r
	}
	immediate := make([]string, 0, len(c.immediate))
	for a := range c.immediate {
		immediate = append(immediate, a)
	}
	return actions, rules, immediate
}
