package catalog

// Action names emitted by the platform.
const (
	ActionCreatePost      = "create_post"
	ActionCreateThread    = "create_thread"
	ActionGiveReaction    = "give_reaction"
	ActionReceiveReaction = "receive_reaction"
	ActionSendTip         = "send_tip"
	ActionReceiveTip      = "receive_tip"
	ActionCreateRain      = "create_rain"
	ActionJoinRain        = "join_rain"
	ActionLogin           = "login"
	ActionCompleteProfile = "complete_profile"
	ActionUploadAvatar    = "upload_avatar"
	ActionEarnBadge       = "earn_badge"
	ActionReachLevel      = "reach_level"
	ActionShopPurchase    = "shop_purchase"
	ActionWinContest      = "win_contest"
	ActionSendWhisper     = "send_whisper"
)

func defaultActions() map[string][]string {
	return map[string][]string{
		ActionCreatePost:      {"posts_created", "quality_posts", "unique_forums_posted"},
		ActionCreateThread:    {"threads_created"},
		ActionGiveReaction:    {"reactions_given"},
		ActionReceiveReaction: {"reactions_received"},
		ActionSendTip:         {"tips_sent", "dgt_spent_tips"},
		ActionReceiveTip:      {"tips_received", "dgt_received_tips"},
		ActionCreateRain:      {"rains_created", "dgt_spent_rain"},
		ActionJoinRain:        {"rains_joined"},
		ActionLogin:           {"daily_logins"},
		ActionCompleteProfile: {"profile_completed"},
		ActionUploadAvatar:    {"avatar_uploaded"},
		ActionEarnBadge:       {"badges_earned"},
		ActionReachLevel:      {"levels_reached"},
		ActionShopPurchase:    {"shop_purchases", "dgt_spent_shop"},
		ActionWinContest:      {"contests_won"},
		ActionSendWhisper:     {"whispers_sent"},
	}
}

func defaultRules() map[string]Rule {
	return map[string]Rule{
		"dgt_spent_tips":       {Kind: RuleAmount},
		"dgt_received_tips":    {Kind: RuleAmount},
		"dgt_spent_rain":       {Kind: RuleAmount},
		"dgt_spent_shop":       {Kind: RuleAmount},
		"quality_posts":        {Kind: RuleQuality, Field: "quality.length", Min: 100},
		"unique_forums_posted": {Kind: RuleUnique, Field: "context.isNewForum", IDField: "forumId"},
	}
}

func defaultImmediate() []string {
	return []string{ActionLogin}
}

// Default is the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultActions(), defaultRules(), defaultImmediate())
	if err != nil {
		panic("catalog: invalid built-in tables: " + err.Error())
	}
	return c
}
