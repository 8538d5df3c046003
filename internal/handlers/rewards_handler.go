package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskquest/internal/auth"
	"taskquest/internal/services"
)

type RewardsHandler struct {
	progressionService *services.ProgressionService
	streakService      *services.StreakService
}

func NewRewardsHandler(progressionService *services.ProgressionService, streakService *services.StreakService) *RewardsHandler {
	return &RewardsHandler{
		progressionService: progressionService,
		streakService:      streakService,
	}
}

// GetStats returns the caller's progression summary
// GET /api/rewards/stats
func (h *RewardsHandler) GetStats(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.progressionService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListEvents returns the caller's reward history
// GET /api/rewards/events
func (h *RewardsHandler) ListEvents(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	events, total, err := h.progressionService.ListRewardEvents(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": total})
}

// ListBadges returns the caller's earned badges
// GET /api/rewards/badges
func (h *RewardsHandler) ListBadges(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	badges, err := h.progressionService.ListUserBadges(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, badges)
}

// ListStreaks returns the caller's streaks
// GET /api/rewards/streaks
func (h *RewardsHandler) ListStreaks(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	streaks, err := h.streakService.ListStreaks(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, streaks)
}

// DailyCheckIn advances the caller's daily login streak
// POST /api/rewards/checkin
func (h *RewardsHandler) DailyCheckIn(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	now := time.Now().UTC()
	result, err := h.streakService.CheckIn(c.Request.Context(), userID, "daily_login", "", now)
	if err != nil {
		writeError(c, err)
		return
	}

	award, err := h.progressionService.AwardDailyLoginXP(c.Request.Context(), userID, now)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"streak": result, "login_bonus": award})
}
