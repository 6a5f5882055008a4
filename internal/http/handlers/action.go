package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/events"
	"github.com/yungbote/missionengine/internal/http/response"
	"github.com/yungbote/missionengine/internal/platform/apierr"
	"github.com/yungbote/missionengine/internal/platform/ctxutil"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type EventPublisher interface {
	Publish(ctx context.Context, channel string, ev types.ActionEvent)
}

type ActionSubmitter interface {
	Submit(ev types.ActionEvent)
}

type ActionHandler struct {
	log       *logger.Logger
	bus       EventPublisher
	submitter ActionSubmitter
}

func NewActionHandler(log *logger.Logger, bus EventPublisher, submitter ActionSubmitter) *ActionHandler {
	return &ActionHandler{log: log.With("handler", "ActionHandler"), bus: bus, submitter: submitter}
}

type actionRequest struct {
	UserID    uuid.UUID      `json:"userId"`
	Channel   string         `json:"channel"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// POST /api/actions
// A body without userId is attributed to the caller. A known channel takes
// precedence over action; actions with no channel go straight to the dispatcher.
func (h *ActionHandler) Ingest(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.BadRequest(apierr.CodeInvalidRequest, err), "")
		return
	}
	if req.UserID == uuid.Nil {
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			req.UserID = rd.UserID
		}
	}
	if req.UserID == uuid.Nil {
		response.RespondError(c, apierr.Unauthorized(errMissingUser), "")
		return
	}

	channel := strings.TrimSpace(req.Channel)
	action := strings.TrimSpace(req.Action)
	if channel != "" {
		mapped, ok := events.ChannelAction(channel)
		if !ok {
			response.RespondError(c, apierr.BadRequest(apierr.CodeUnknownChannel, errInvalidAction), "")
			return
		}
		action = mapped
	}
	if action == "" {
		response.RespondError(c, apierr.BadRequest(apierr.CodeInvalidAction, errInvalidAction), "")
		return
	}
	if channel == "" {
		channel, _ = events.ActionChannel(action)
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	ev := types.ActionEvent{
		UserID:    req.UserID,
		Action:    action,
		Metadata:  req.Metadata,
		Timestamp: ts,
	}

	if channel != "" && h.bus != nil {
		h.bus.Publish(context.WithoutCancel(c.Request.Context()), channel, ev)
	} else if h.submitter != nil {
		h.submitter.Submit(ev)
	}
	response.RespondAccepted(c, gin.H{"accepted": true, "action": action})
}
