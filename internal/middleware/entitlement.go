package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mualim/api/internal/entitlement"
	"go.uber.org/zap"
)

// RequireMembership lets a request through only when the authenticated
// teacher's membership is active. It must run after Auth.
func RequireMembership(store entitlement.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		st, err := store.Status(c.Request.Context(), userID, GetEmail(c))
		if err != nil {
			logger.Error("entitlement lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
			RespondError(c, http.StatusServiceUnavailable, ErrCodeEntitlementUnavailable, "could not verify membership")
			c.Abort()
			return
		}
		if !st.Active {
			RespondErrorWithDetails(c, http.StatusPaymentRequired, ErrCodePaymentRequired,
				"an active membership is required", st.Reason)
			c.Abort()
			return
		}
		c.Next()
	}
}
