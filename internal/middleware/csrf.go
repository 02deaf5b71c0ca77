package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"chatboard/internal/dto"

	"github.com/gin-gonic/gin"
)

// ===========================================================================
// CSRF Middleware
// Double Submit Cookie: token được set trong cookie (JS đọc được) lúc
// login/refresh và phải khớp với header trên mọi request thay đổi state
// ===========================================================================

const (
	CSRFCookieName   = "csrf_token"
	CSRFHeaderName   = "X-CSRF-Token"
	csrfTokenLength  = 32
	csrfCookieMaxAge = 86400 * 7
)

// GenerateCSRFToken tạo random CSRF token
func GenerateCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// SetCSRFCookie set CSRF token cookie
// httpOnly=false để frontend đọc được và gửi lại trong header
func SetCSRFCookie(c *gin.Context, token string) {
	c.SetCookie(CSRFCookieName, token, csrfCookieMaxAge, "/", "", false, false)
}

// CSRFMiddlewareWithExempt validates CSRF token cho state-changing requests
// Safe methods (GET/HEAD/OPTIONS) và các path prefix trong exemptPaths
// (webhook, bridge events, auth) được bỏ qua
func CSRFMiddlewareWithExempt(exemptPaths []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		path := c.Request.URL.Path
		for _, prefix := range exemptPaths {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		cookieToken, err := c.Cookie(CSRFCookieName)
		if err != nil || cookieToken == "" {
			c.JSON(http.StatusForbidden, dto.Error("CSRF_MISSING", "CSRF token required"))
			c.Abort()
			return
		}

		headerToken := c.GetHeader(CSRFHeaderName)
		if headerToken == "" {
			c.JSON(http.StatusForbidden, dto.Error("CSRF_MISSING", "CSRF token header required"))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
			c.JSON(http.StatusForbidden, dto.Error("CSRF_INVALID", "CSRF token mismatch"))
			c.Abort()
			return
		}

		c.Next()
	}
}
