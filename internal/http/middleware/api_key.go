package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/jmehdipour/billing-sandbox/internal/model"
)

const ctxAPIKey = "api_key"

// APIKeyFromCtx returns the key accepted by APIKeyMiddleware, if any.
func APIKeyFromCtx(c echo.Context) (string, bool) {
	key, ok := c.Get(ctxAPIKey).(string)
	return key, ok && key != ""
}

// APIKeyMiddleware accepts "Authorization: Bearer <key>" or HTTP basic auth
// with the key as username. With no keys configured every request passes.
func APIKeyMiddleware(keys []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(keys) == 0 {
			return next
		}
		return func(c echo.Context) error {
			key := presentedKey(c.Request())
			if key == "" {
				return deny(c, http.StatusUnauthorized, "You did not provide an API key.")
			}
			if !knownKey(keys, key) {
				return deny(c, http.StatusUnauthorized, "Invalid API Key provided.")
			}
			c.Set(ctxAPIKey, key)
			return next(c)
		}
	}
}

func presentedKey(r *http.Request) string {
	if user, _, ok := r.BasicAuth(); ok {
		return strings.TrimSpace(user)
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func knownKey(keys []string, key string) bool {
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, model.ErrorResponse{Error: model.APIError{
		Type:    model.ErrorTypeInvalidRequest,
		Message: msg,
	}})
}
