package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/payflow/payflow/internal/adapters/http/common"
)

// Recovery converts panics into 500 responses. The stack is logged, never
// sent to the caller.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorContext(c.Request.Context(), "panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				common.RespondError(c, http.StatusInternalServerError, common.KindInternal, nil)
			}
		}()
		c.Next()
	}
}
