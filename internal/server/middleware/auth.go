package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"umbra-auth/internal/security"
	"umbra-auth/internal/server/response"
)

const accountIDKey = "auth.account_id"

// RequireAuth validates the bearer access token and stores the account id it
// is bound to in the request context. Requests without a valid token are
// rejected with a 401 envelope; one message covers missing, malformed, and
// expired tokens alike.
func RequireAuth(tokens *security.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Fail(c, http.StatusUnauthorized, "authentication required",
				map[string]string{"access_token": "missing or invalid access token"})
			c.Abort()
			return
		}
		accountID, err := tokens.ValidateAccess(token)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, "authentication required",
				map[string]string{"access_token": "missing or invalid access token"})
			c.Abort()
			return
		}
		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// AccountID returns the authenticated account id set by RequireAuth.
func AccountID(c *gin.Context) (string, bool) {
	v, ok := c.Get(accountIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
