package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"postdeck/internal/domain"
	"postdeck/internal/service"
)

const sessionKey = "auth_session"

// SessionMiddleware valida el access token y deja la sesion expandida en el contexto.
func SessionMiddleware(issuer *service.SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if issuer == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		session, err := issuer.Session(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// GetSession obtiene la sesion desde el contexto.
func GetSession(c *gin.Context) (domain.Session, bool) {
	val, ok := c.Get(sessionKey)
	if !ok {
		return domain.Session{}, false
	}
	session, ok := val.(domain.Session)
	return session, ok
}
