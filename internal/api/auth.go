package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ebaygate/ebaygate/internal/logging"
)

// ErrorResponse is the JSON envelope for management API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// APIKeyAuth guards the management routes with a static admin key list.
// When no keys are configured the middleware passes everything through,
// which keeps local development friction-free.
func APIKeyAuth(apiKeys []string, headerName string, logger *logging.Logger) gin.HandlerFunc {
	if headerName == "" {
		headerName = "X-API-Key"
	}

	return func(c *gin.Context) {
		if len(apiKeys) == 0 {
			c.Next()
			return
		}

		provided := c.GetHeader(headerName)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing API key",
				Message: "Provide a valid key in the " + headerName + " header.",
				Code:    "MISSING_API_KEY",
			})
			return
		}

		for _, key := range apiKeys {
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
				c.Next()
				return
			}
		}

		if logger != nil {
			logger.Warn("rejected management request with invalid API key",
				"path", c.FullPath(),
				"client_ip", c.ClientIP(),
			)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid API key",
			Message: "The provided API key is not recognized.",
			Code:    "INVALID_API_KEY",
		})
	}
}

// MaskAPIKeys renders configured admin keys for startup logs without
// exposing their values.
func MaskAPIKeys(keys []string) []string {
	masked := make([]string, 0, len(keys))
	for _, k := range keys {
		switch {
		case len(k) <= 4:
			masked = append(masked, strings.Repeat("*", len(k)))
		case len(k) <= 8:
			masked = append(masked, k[:2]+strings.Repeat("*", len(k)-2))
		default:
			masked = append(masked, k[:4]+"..."+k[len(k)-4:])
		}
	}
	return masked
}
