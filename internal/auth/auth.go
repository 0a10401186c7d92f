// Package auth enforces the optional proxy bearer token and parses the
// per-request upstream override headers. When no api_key is configured,
// requests pass through unchecked.
package auth

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"thinkproxy/internal/apperr"
)

// KeyProvider supplies the current proxy api_key, looked up fresh on every
// request so a config mutation takes effect without a restart.
type KeyProvider func() string

// Middleware returns a gin.HandlerFunc enforcing the bearer check. When
// keyFn() returns "", the middleware is a no-op.
func Middleware(keyFn KeyProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := keyFn()
		if expected == "" {
			c.Next()
			return
		}

		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			appErr := apperr.Unauthorized("missing or invalid bearer token")
			c.AbortWithStatusJSON(appErr.HTTPStatus(), appErr.Body())
			return
		}
		c.Next()
	}
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// Overrides holds the per-request upstream overrides carried in the
// X-Upstream-Base-URL and X-API-Format headers.
type Overrides struct {
	BaseURL   string
	APIFormat string
}

var validFormats = map[string]bool{
	"openai": true, "openai-response": true, "anthropic": true, "gemini": true, "azure-openai": true,
}

// ParseOverrides reads and validates the override headers from a request.
// The headers double as a configuration surface, so they go through the
// same ConfigInvalid validation the config API applies to a profile's
// upstream fields.
func ParseOverrides(c *gin.Context) (Overrides, error) {
	o := Overrides{
		BaseURL:   c.GetHeader("X-Upstream-Base-URL"),
		APIFormat: c.GetHeader("X-API-Format"),
	}
	if o.APIFormat != "" && !validFormats[o.APIFormat] {
		return o, apperr.ConfigInvalid("X-API-Format: unrecognized api_format " + o.APIFormat)
	}
	if o.BaseURL != "" {
		u, err := url.Parse(o.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return o, apperr.ConfigInvalid("X-Upstream-Base-URL: not a valid absolute URL")
		}
	}
	return o, nil
}

// WriteError renders an *apperr.Error to the gin response in the standard
// error envelope, so every handler emits the same body shape.
func WriteError(c *gin.Context, err error) {
	if ae, ok := err.(*apperr.Error); ok {
		if ae.Kind == apperr.KindStreamInterrupted {
			return // client is gone; nothing to write
		}
		if ae.Kind == apperr.KindInternal {
			log.Error().Stack().Err(ae).Msg("internal error")
		}
		c.JSON(ae.HTTPStatus(), ae.Body())
		return
	}
	internalErr := apperr.Internal("unexpected error", err)
	log.Error().Stack().Err(internalErr).Msg("internal error")
	c.JSON(http.StatusInternalServerError, internalErr.Body())
}
