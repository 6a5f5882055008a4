package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/missionengine/internal/http/response"
	"github.com/yungbote/missionengine/internal/platform/apierr"
	"github.com/yungbote/missionengine/internal/platform/ctxutil"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/services"
)

type MissionHandler struct {
	log   *logger.Logger
	query services.MissionQuery
}

func NewMissionHandler(log *logger.Logger, query services.MissionQuery) *MissionHandler {
	return &MissionHandler{log: log.With("handler", "MissionHandler"), query: query}
}

// GET /api/missions
func (h *MissionHandler) ListActive(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	views, err := h.query.ListActive(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("list active missions failed", "user_id", userID, "error", err)
		response.RespondError(c, err, "list_missions_failed")
		return
	}
	response.RespondOK(c, gin.H{"missions": views})
}

// GET /api/missions/:mission_id/progress
func (h *MissionHandler) Progress(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	missionID, err := uuid.Parse(c.Param("mission_id"))
	if err != nil {
		response.RespondError(c, apierr.BadRequest(apierr.CodeInvalidMissionID, errInvalidID), "")
		return
	}
	progress, err := h.query.Progress(c.Request.Context(), userID, missionID)
	if err != nil {
		if ae := apierr.From(err, "mission_progress_failed"); ae.Status >= http.StatusInternalServerError {
			h.log.Error("mission progress failed", "user_id", userID, "mission_id", missionID, "error", err)
		}
		response.RespondError(c, err, "mission_progress_failed")
		return
	}
	response.RespondOK(c, gin.H{"missionId": missionID, "requirements": progress})
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, apierr.Unauthorized(errMissingUser), "")
		return uuid.Nil, false
	}
	return rd.UserID, true
}
