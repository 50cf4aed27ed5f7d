package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"postdeck/internal/domain"
	"postdeck/internal/repository"
)

// ProfileHandler expone el perfil del usuario autenticado con su plan.
type ProfileHandler struct {
	logger   *zap.Logger
	profiles repository.ProfileRepository
	plans    repository.PlanRepository
	history  repository.PlanHistoryRepository
}

func NewProfileHandler(logger *zap.Logger, profiles repository.ProfileRepository, plans repository.PlanRepository, history repository.PlanHistoryRepository) *ProfileHandler {
	return &ProfileHandler{
		logger:   logger,
		profiles: profiles,
		plans:    plans,
		history:  history,
	}
}

// GetProfile maneja GET /profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	session, ok := GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}
	ctx := c.Request.Context()

	profile, err := h.profiles.GetByUserID(ctx, session.User.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		h.logger.Error("get profile failed", zap.Error(err), zap.String("user_id", session.User.ID))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profile unavailable"})
		return
	}

	plan, err := h.plans.GetByID(ctx, profile.PlanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.logger.Error("profile references missing plan", zap.String("plan_id", profile.PlanID), zap.String("user_id", session.User.ID))
		} else {
			h.logger.Error("get plan failed", zap.Error(err), zap.String("plan_id", profile.PlanID))
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profile unavailable"})
		return
	}

	history, err := h.history.ListByUserID(ctx, session.User.ID)
	if err != nil {
		h.logger.Error("list plan history failed", zap.Error(err), zap.String("user_id", session.User.ID))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profile unavailable"})
		return
	}
	if history == nil {
		history = []domain.PlanHistory{}
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
		"plan":    plan,
		"history": history,
	})
}
