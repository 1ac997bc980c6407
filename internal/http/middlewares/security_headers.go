package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// /docs loads Swagger UI assets from unpkg and boots it with an inline script.
	docsCSP = "default-src 'self'; base-uri 'none'; frame-ancestors 'none'; object-src 'none'; connect-src 'self'; img-src 'self' data: https:; font-src 'self' https://unpkg.com data:; style-src 'self' 'unsafe-inline' https://unpkg.com; script-src 'self' 'unsafe-inline' https://unpkg.com"

	hstsValue = "max-age=31536000; includeSubDomains"
)

// SecurityHeaders sets browser hardening headers. hsts should only be on behind TLS.
// Auth responses may carry a session token, so they are never cached.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-XSS-Protection", "0")

		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/docs") {
			h.Set("Content-Security-Policy", docsCSP)
		} else {
			h.Set("Content-Security-Policy", apiCSP)
		}

		if strings.HasPrefix(path, "/api/v1/auth/") {
			h.Set("Cache-Control", "no-store")
		}

		if hsts {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		c.Next()
	}
}
