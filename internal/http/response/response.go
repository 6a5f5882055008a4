package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/missionengine/internal/platform/apierr"
	"github.com/yungbote/missionengine/internal/platform/ctxutil"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err in the error envelope. An *apierr.Error anywhere in
// the chain decides status and code; anything else is a 500 with fallbackCode.
func RespondError(c *gin.Context, err error, fallbackCode string) {
	ae := apierr.From(err, fallbackCode)
	c.JSON(ae.Status, envelope(c, ae))
}

// AbortError is RespondError for middleware.
func AbortError(c *gin.Context, err error, fallbackCode string) {
	ae := apierr.From(err, fallbackCode)
	c.AbortWithStatusJSON(ae.Status, envelope(c, ae))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

func envelope(c *gin.Context, ae *apierr.Error) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{
		Message: ae.Message(),
		Code:    ae.Code,
		TraceID: ctxutil.TraceID(c.Request.Context()),
	}}
}
