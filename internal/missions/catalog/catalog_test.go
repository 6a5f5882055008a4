package catalog

import (
	"encoding/json"
	"math"
	"testing"
)

func TestRequirementsForSendTipFeedsTwoKeys(t *testing.T) {
	c := Default()
	got := c.RequirementsFor(ActionSendTip)
	if len(got) != 2 || got[0] != "tips_sent" || got[1] != "dgt_spent_tips" {
		t.Fatalf("RequirementsFor(send_tip): unexpected %v", got)
	}
	if c.RequirementsFor("unknown_action") != nil {
		t.Fatalf("RequirementsFor(unknown): want nil")
	}
	got[0] = "mutated"
	if c.RequirementsFor(ActionSendTip)[0] != "tips_sent" {
		t.Fatalf("RequirementsFor must return a copy")
	}
}

func TestIncrementForRules(t *testing.T) {
	c := Default()
	cases := []struct {
		name string
		key  string
		meta map[string]any
		want int64
	}{
		{"count ignores metadata", "tips_sent", map[string]any{"amount": 40.0}, 1},
		{"count with nil metadata", "posts_created", nil, 1},
		{"amount from float", "dgt_spent_tips", map[string]any{"amount": 40.0}, 40},
		{"amount floors fractions", "dgt_spent_tips", map[string]any{"amount": 12.9}, 12},
		{"amount from json number", "dgt_spent_tips", map[string]any{"amount": json.Number("7")}, 7},
		{"amount missing", "dgt_spent_tips", map[string]any{}, 0},
		{"amount negative", "dgt_spent_tips", map[string]any{"amount": -5}, 0},
		{"quality met", "quality_posts", map[string]any{"quality": map[string]any{"length": 150}}, 1},
		{"quality short", "quality_posts", map[string]any{"quality": map[string]any{"length": 20}}, 0},
		{"quality missing", "quality_posts", map[string]any{"quality": map[string]any{"hasMedia": true}}, 0},
		{"unique flagged", "unique_forums_posted", map[string]any{"context": map[string]any{"isNewForum": true}}, 1},
		{"unique flag at top level", "unique_forums_posted", map[string]any{"isNewForum": true}, 1},
		{"unique not flagged", "unique_forums_posted", map[string]any{"targetId": "forum-1"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.IncrementFor(tc.key, tc.meta); got != tc.want {
				t.Fatalf("IncrementFor(%s): want=%d got=%d", tc.key, tc.want, got)
			}
		})
	}
}

func TestImmediateActions(t *testing.T) {
	c := Default()
	if !c.IsImmediate(ActionLogin) {
		t.Fatalf("login should be immediate")
	}
	if c.IsImmediate(ActionCreatePost) {
		t.Fatalf("create_post should be batched")
	}
}

func TestNewRejectsInvalidRules(t *testing.T) {
	if _, err := New(nil, map[string]Rule{"x": {Kind: "weird"}}, nil); err == nil {
		t.Fatalf("expected error for unknown rule kind")
	}
	if _, err := New(nil, map[string]Rule{"x": {Kind: RuleQuality}}, nil); err == nil {
		t.Fatalf("expected error for quality rule without min")
	}
	if _, err := New(map[string][]string{"a": {""}}, nil, nil); err == nil {
		t.Fatalf("expected error for empty requirement key")
	}
}

func TestFromYAMLExtendMergesDefaults(t *testing.T) {
	c, err := FromYAML([]byte(`
extend: true
actions:
  vote_poll: [polls_voted]
rules:
  quality_posts: {kind: quality, min: 500}
immediate: [vote_poll]
`))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if got := c.RequirementsFor("vote_poll"); len(got) != 1 || got[0] != "polls_voted" {
		t.Fatalf("vote_poll: unexpected %v", got)
	}
	if got := c.RequirementsFor(ActionSendTip); len(got) != 2 {
		t.Fatalf("defaults should survive extend, got %v", got)
	}
	if got := c.IncrementFor("quality_posts", map[string]any{"quality": map[string]any{"length": 300}}); got != 0 {
		t.Fatalf("override min: want=0 got=%d", got)
	}
	if !c.IsImmediate("vote_poll") || !c.IsImmediate(ActionLogin) {
		t.Fatalf("immediate set should merge")
	}
}

func TestFromYAMLReplace(t *testing.T) {
	c, err := FromYAML([]byte("actions:\n  create_post: [posts_created]\n"))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if c.RequirementsFor(ActionSendTip) != nil {
		t.Fatalf("replace mode should drop defaults")
	}
	if c.IsImmediate(ActionLogin) {
		t.Fatalf("replace mode should drop default immediate set")
	}
}

func TestIdentifierAndFlagValue(t *testing.T) {
	if got := Identifier(map[string]any{"forumId": " forum-9 "}, "forumId"); got != "forum-9" {
		t.Fatalf("Identifier: want=forum-9 got=%q", got)
	}
	if got := Identifier(map[string]any{"context": map[string]any{"forumId": 42.0}}, "context.forumId"); got != "42" {
		t.Fatalf("Identifier numeric: want=42 got=%q", got)
	}
	if got := Identifier(nil, "forumId"); got != "" {
		t.Fatalf("Identifier nil: want empty got=%q", got)
	}
	if v, ok := FlagValue(map[string]any{"context": map[string]any{"isNewForum": false}}, "context.isNewForum"); !ok || v {
		t.Fatalf("FlagValue explicit false: want=(false,true) got=(%v,%v)", v, ok)
	}
	if _, ok := FlagValue(map[string]any{"targetId": "post-1"}, "context.isNewForum"); ok {
		t.Fatalf("FlagValue absent: want present=false")
	}
}

func TestUniqueRuleCarriesIdentifierField(t *testing.T) {
	r := Default().RuleFor("unique_forums_posted")
	if r.Kind != RuleUnique || r.IDField != "forumId" {
		t.Fatalf("unique_forums_posted: unexpected rule %+v", r)
	}
}

func TestIncrementForAmountSaturates(t *testing.T) {
	c := Default()
	if got := c.IncrementFor("dgt_spent_tips", map[string]any{"amount": 1e300}); got != math.MaxInt64 {
		t.Fatalf("huge amount: want=%d got=%d", int64(math.MaxInt64), got)
	}
	if got := c.IncrementFor("dgt_spent_tips", map[string]any{"amount": math.Inf(1)}); got != math.MaxInt64 {
		t.Fatalf("infinite amount: want=%d got=%d", int64(math.MaxInt64), got)
	}
	if got := c.IncrementFor("dgt_spent_tips", map[string]any{"amount": math.NaN()}); got != 0 {
		t.Fatalf("NaN amount: want=0 got=%d", got)
	}
}
