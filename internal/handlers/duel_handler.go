package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskquest/internal/auth"
	"taskquest/internal/services"
)

type DuelHandler struct {
	duelService  *services.DuelService
	auditService *services.AuditService
}

func NewDuelHandler(duelService *services.DuelService, auditService *services.AuditService) *DuelHandler {
	return &DuelHandler{
		duelService:  duelService,
		auditService: auditService,
	}
}

// Create creates a new duel
// POST /api/duels
func (h *DuelHandler) Create(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req services.CreateDuelInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duel, err := h.duelService.CreateDuel(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "duel.create", "duel", duel.ID, "")

	c.JSON(http.StatusCreated, duel)
}

// Get retrieves a duel
// GET /api/duels/:id
func (h *DuelHandler) Get(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	duelID, ok := paramID(c, "id")
	if !ok {
		return
	}

	duel, err := h.duelService.GetDuel(c.Request.Context(), userID, duelID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, duel)
}

// List returns the caller's duels
// GET /api/duels
func (h *DuelHandler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	duels, err := h.duelService.ListDuels(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, duels)
}

// Accept starts a pending duel
// POST /api/duels/:id/accept
func (h *DuelHandler) Accept(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	duelID, ok := paramID(c, "id")
	if !ok {
		return
	}

	duel, err := h.duelService.AcceptDuel(c.Request.Context(), userID, duelID)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "duel.accept", "duel", duelID, "")

	c.JSON(http.StatusOK, duel)
}

// Decline cancels a pending duel
// POST /api/duels/:id/decline
func (h *DuelHandler) Decline(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	duelID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.duelService.DeclineDuel(c.Request.Context(), userID, duelID); err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "duel.decline", "duel", duelID, "")

	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}

// Complete resolves an active duel
// POST /api/duels/:id/complete
func (h *DuelHandler) Complete(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	duelID, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.duelService.CompleteDuel(c.Request.Context(), userID, duelID)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "duel.complete", "duel", duelID, "")

	c.JSON(http.StatusOK, result)
}
