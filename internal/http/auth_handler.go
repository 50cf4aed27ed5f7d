package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"postdeck/internal/domain"
	"postdeck/internal/oauth"
	"postdeck/internal/service"
)

// Authenticator es la superficie de AuthService que consumen los handlers.
type Authenticator interface {
	Signup(ctx context.Context, req service.CredentialSignupRequest) (domain.Identity, error)
	Login(ctx context.Context, req service.CredentialLoginRequest) (domain.Identity, error)
	SignInOAuth(ctx context.Context, a service.OAuthAssertion) (domain.Identity, error)
}

// AuthHandler mantiene dependencias para los endpoints de sign-in.
type AuthHandler struct {
	logger   *zap.Logger
	auth     Authenticator
	verifier oauth.Verifier
	sessions *service.SessionIssuer
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, auth Authenticator, verifier oauth.Verifier, sessions *service.SessionIssuer) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		auth:     auth,
		verifier: verifier,
		sessions: sessions,
	}
}

// Signup maneja POST /auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	identity, err := h.auth.Signup(c.Request.Context(), service.CredentialSignupRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	h.respondIdentity(c, "signup", identity, err)
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	identity, err := h.auth.Login(c.Request.Context(), service.CredentialLoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	h.respondIdentity(c, "login", identity, err)
}

// OAuthLogin maneja POST /auth/oauth. El id_token se valida con el proveedor antes de provisionar.
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	var req struct {
		Provider string `json:"provider" binding:"required"`
		IDToken  string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid oauth request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.verifier == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "oauth not configured"})
		return
	}

	assertion, err := h.verifier.Verify(c.Request.Context(), req.Provider, req.IDToken)
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrUnknownProvider):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		default:
			h.logger.Warn("oauth assertion rejected", zap.Error(err), zap.String("provider", req.Provider))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		}
		return
	}

	identity, err := h.auth.SignInOAuth(c.Request.Context(), assertion)
	h.respondIdentity(c, "oauth login", identity, err)
}

// RefreshToken maneja POST /auth/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.sessions == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	tokens, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.sessions == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	_ = h.sessions.Revoke(c.Request.Context(), req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// GetSession maneja GET /auth/session.
func (h *AuthHandler) GetSession(c *gin.Context) {
	session, ok := GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) respondIdentity(c *gin.Context, op string, identity domain.Identity, err error) {
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrConfiguration):
			h.logger.Error(op+" failed: configuration", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization unavailable"})
		case errors.Is(err, service.ErrStoreUnavailable):
			h.logger.Error(op+" failed: store", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "authorization unavailable"})
		default:
			h.logger.Error(op+" failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization unavailable"})
		}
		return
	}

	if h.sessions == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	tokens, err := h.sessions.Issue(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    identity.User,
		"profile": identity.Profile,
		"plan":    identity.Plan,
		"tokens":  tokens,
	})
}
