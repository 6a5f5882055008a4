package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/missionengine/internal/http/response"
	"github.com/yungbote/missionengine/internal/platform/apierr"
	"github.com/yungbote/missionengine/internal/platform/ctxutil"
)

var errMissingUser = errors.New("missing or invalid user id")

const (
	headerUserID    = "X-User-Id"
	headerSessionID = "X-Session-Id"
)

// AttachRequestContext reads the caller identity forwarded by the gateway.
// Malformed ids are ignored and leave the field as uuid.Nil.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{
			UserID:    parseID(c.GetHeader(headerUserID)),
			SessionID: parseID(c.GetHeader(headerSessionID)),
		}
		if rd.UserID == uuid.Nil {
			rd.UserID = parseID(c.Query("user_id"))
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// RequireUser rejects requests that carry no caller identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || rd.UserID == uuid.Nil {
			response.AbortError(c, apierr.Unauthorized(errMissingUser), "")
			return
		}
		c.Next()
	}
}

func parseID(raw string) uuid.UUID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
