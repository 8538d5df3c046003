package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskquest/internal/auth"
	"taskquest/internal/models"
	"taskquest/internal/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	auditService     *services.AuditService
}

func NewChallengeHandler(challengeService *services.ChallengeService, auditService *services.AuditService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		auditService:     auditService,
	}
}

// Create creates a new challenge
// POST /api/challenges
func (h *ChallengeHandler) Create(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req services.CreateChallengeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challengeService.CreateChallenge(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "challenge.create", "challenge", challenge.ID, challenge.Title)

	c.JSON(http.StatusCreated, challenge)
}

// Get retrieves a challenge by ID
// GET /api/challenges/:id
func (h *ChallengeHandler) Get(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	challenge, err := h.challengeService.GetChallenge(c.Request.Context(), userID, challengeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// List returns challenges visible to the caller
// GET /api/challenges
func (h *ChallengeHandler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	filter := services.ChallengeFilter{
		Type:   models.ChallengeType(c.Query("type")),
		Status: models.ChallengeStatus(c.Query("status")),
		Mine:   c.Query("mine") == "true",
		Limit:  limit,
		Offset: offset,
	}

	challenges, err := h.challengeService.ListChallenges(c.Request.Context(), userID, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, challenges)
}

// Join adds the caller as a participant
// POST /api/challenges/:id/join
func (h *ChallengeHandler) Join(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	participant, err := h.challengeService.JoinChallenge(c.Request.Context(), userID, challengeID)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "challenge.join", "challenge", challengeID, "")

	c.JSON(http.StatusCreated, participant)
}

// Leave withdraws the caller from a challenge
// POST /api/challenges/:id/leave
func (h *ChallengeHandler) Leave(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.challengeService.LeaveChallenge(c.Request.Context(), userID, challengeID); err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "challenge.leave", "challenge", challengeID, "")

	c.JSON(http.StatusOK, gin.H{"status": "withdrawn"})
}

// Invite adds another user with invited status
// POST /api/challenges/:id/invite
func (h *ChallengeHandler) Invite(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.challengeService.InviteToChallenge(c.Request.Context(), userID, challengeID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "challenge.invite", "challenge", challengeID, "")

	c.JSON(http.StatusCreated, participant)
}

// Cancel cancels a challenge
// POST /api/challenges/:id/cancel
func (h *ChallengeHandler) Cancel(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.challengeService.CancelChallenge(c.Request.Context(), userID, challengeID); err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "challenge.cancel", "challenge", challengeID, "")

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Delete destroys a challenge and its participations
// DELETE /api/challenges/:id
func (h *ChallengeHandler) Delete(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.challengeService.DeleteChallenge(c.Request.Context(), userID, challengeID); err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "challenge.delete", "challenge", challengeID, "")

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Leaderboard returns the ranked participants
// GET /api/challenges/:id/leaderboard
func (h *ChallengeHandler) Leaderboard(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	entries, err := h.challengeService.GetLeaderboard(c.Request.Context(), userID, challengeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// paramID parses a numeric path parameter, writing a 400 on failure.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
