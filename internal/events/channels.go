package events

import (
	"sort"

	"github.com/yungbote/missionengine/internal/missions/catalog"
)

// Platform channels.
const (
	PostCreated      = "post.created"
	ThreadCreated    = "thread.created"
	ReactionGiven    = "reaction.given"
	ReactionReceived = "reaction.received"
	TipSent          = "tip.sent"
	TipReceived      = "tip.received"
	RainCreated      = "rain.created"
	RainParticipated = "rain.participated"
	UserLogin        = "user.login"
	ProfileCompleted = "profile.completed"
	AvatarUploaded   = "avatar.uploaded"
	BadgeEarned      = "badge.earned"
	LevelReached     = "level.reached"
	ShopPurchased    = "shop.purchased"
	ContestWon       = "contest.won"
	WhisperSent      = "whisper.sent"
)

var channelActions = map[string]string{
	PostCreated:      catalog.ActionCreatePost,
	ThreadCreated:    catalog.ActionCreateThread,
	ReactionGiven:    catalog.ActionGiveReaction,
	ReactionReceived: catalog.ActionReceiveReaction,
	TipSent:          catalog.ActionSendTip,
	TipReceived:      catalog.ActionReceiveTip,
	RainCreated:      catalog.ActionCreateRain,
	RainParticipated: catalog.ActionJoinRain,
	UserLogin:        catalog.ActionLogin,
	ProfileCompleted: catalog.ActionCompleteProfile,
	AvatarUploaded:   catalog.ActionUploadAvatar,
	BadgeEarned:      catalog.ActionEarnBadge,
	LevelReached:     catalog.ActionReachLevel,
	ShopPurchased:    catalog.ActionShopPurchase,
	ContestWon:       catalog.ActionWinContest,
	WhisperSent:      catalog.ActionSendWhisper,
}

// ChannelAction returns the canonical action name carried by channel.
func ChannelAction(channel string) (string, bool) {
	a, ok := channelActions[channel]
	return a, ok
}

// ActionChannel is the inverse of ChannelAction.
func ActionChannel(action string) (string, bool) {
	for ch, a := range channelActions {
		if a == action {
			return ch, true
		}
	}
	return "", false
}

func Channels() []string {
	out := make([]string, 0, len(channelActions))
	for ch := range channelActions {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
