package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taskquest/internal/auth"
	"taskquest/internal/models"
	"taskquest/internal/services"
)

type WalletHandler struct {
	creditService *services.CreditService
	auditService  *services.AuditService
	adminUsername string
}

func NewWalletHandler(creditService *services.CreditService, auditService *services.AuditService, adminUsername string) *WalletHandler {
	return &WalletHandler{
		creditService: creditService,
		auditService:  auditService,
		adminUsername: adminUsername,
	}
}

func (h *WalletHandler) isAdmin(c *gin.Context) bool {
	username, ok := auth.GetUsername(c)
	return ok && username == h.adminUsername
}

// GetWallet returns the caller's wallet
// GET /api/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	wallet, err := h.creditService.GetOrCreateWallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, wallet)
}

// ListTransactions returns the caller's ledger entries
// GET /api/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)
	entries, total, err := h.creditService.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": entries, "total": total})
}

// GetChallengeCost quotes the creation cost for a challenge shape
// GET /api/wallet/cost?type=streak&proof_types=PHOTO,PEER
func (h *WalletHandler) GetChallengeCost(c *gin.Context) {
	challengeType := models.ChallengeType(c.Query("type"))
	if !models.ValidChallengeType(challengeType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown challenge type"})
		return
	}

	var proofTypes models.ProofTypeList
	if raw := c.Query("proof_types"); raw != "" {
		for _, p := range splitCSV(raw) {
			pt := models.ProofType(p)
			if !models.ValidProofType(pt) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown proof type"})
				return
			}
			proofTypes = append(proofTypes, pt)
		}
	}

	cost, err := h.creditService.ChallengeCost(c.Request.Context(), challengeType, proofTypes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cost": cost})
}

// GetConfig returns the economy configuration
// GET /api/wallet/config
func (h *WalletHandler) GetConfig(c *gin.Context) {
	cfg, err := h.creditService.GetConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig applies admin changes to the economy configuration
// PATCH /api/admin/config
func (h *WalletHandler) UpdateConfig(c *gin.Context) {
	if !h.isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := h.creditService.UpdateConfig(c.Request.Context(), updates)
	if err != nil {
		writeError(c, err)
		return
	}

	if userID, ok := auth.GetUserID(c); ok {
		recordAudit(c, h.auditService, userID, "admin.config_update", "credit_config", cfg.ID, "")
	}

	c.JSON(http.StatusOK, cfg)
}

// AdminAdjust grants or deducts credits by admin action
// POST /api/admin/credits
func (h *WalletHandler) AdminAdjust(c *gin.Context) {
	if !h.isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}

	var req struct {
		UserID uint   `json:"user_id" binding:"required"`
		Amount int64  `json:"amount" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	var entry interface{}
	if req.Amount >= 0 {
		entry, err = h.creditService.AdminGrant(c.Request.Context(), req.UserID, req.Amount, req.Reason)
	} else {
		entry, err = h.creditService.AdminDeduct(c.Request.Context(), req.UserID, -req.Amount, req.Reason)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	if adminID, ok := auth.GetUserID(c); ok {
		recordAudit(c, h.auditService, adminID, "admin.credit_adjust", "user", req.UserID, req.Reason)
	}

	c.JSON(http.StatusOK, entry)
}

// GetEconomyStats returns mint/burn totals
// GET /api/admin/economy
func (h *WalletHandler) GetEconomyStats(c *gin.Context) {
	if !h.isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}

	stats, err := h.creditService.GetEconomyStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// pagination parses limit/offset query parameters.
func pagination(c *gin.Context) (int, int) {
	limit := 50
	offset := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
