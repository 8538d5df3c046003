package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskquest/internal/auth"
	"taskquest/internal/models"
	"taskquest/internal/services"
	"taskquest/internal/storage"
)

type ContributionHandler struct {
	contributionService *services.ContributionService
	auditService        *services.AuditService
	fileStore           storage.FileStore
}

func NewContributionHandler(contributionService *services.ContributionService, auditService *services.AuditService, fileStore storage.FileStore) *ContributionHandler {
	return &ContributionHandler{
		contributionService: contributionService,
		auditService:        auditService,
		fileStore:           fileStore,
	}
}

// Log records activity under the caller's participation
// POST /api/challenges/:id/contributions
func (h *ContributionHandler) Log(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.LogContributionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contribution, err := h.contributionService.LogContribution(c.Request.Context(), userID, challengeID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "contribution.log", "contribution", contribution.ID, "")

	c.JSON(http.StatusCreated, contribution)
}

// List returns the caller's contributions for a challenge
// GET /api/challenges/:id/contributions
func (h *ContributionHandler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	contributions, err := h.contributionService.ListContributions(c.Request.Context(), userID, challengeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contributions)
}

// SubmitProof attaches evidence to a contribution. File-backed proof
// types arrive as multipart uploads; sensor proofs as a JSON field.
// POST /api/contributions/:id/proofs
func (h *ContributionHandler) SubmitProof(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	contributionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	proofType := models.ProofType(c.PostForm("proof_type"))
	input := services.SubmitProofInput{
		Type:       proofType,
		SensorData: c.PostForm("sensor_data"),
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		category := storage.CategoryProofPhoto
		switch proofType {
		case models.ProofVideo:
			category = storage.CategoryProofVideo
		case models.ProofDocument:
			category = storage.CategoryProofDocument
		}

		key, err := h.fileStore.Upload(c.Request.Context(), category, fileHeader)
		if err != nil {
			writeError(c, err)
			return
		}
		input.FileKey = key
		input.OriginalFilename = fileHeader.Filename
		input.FileSize = fileHeader.Size
		input.MimeType = fileHeader.Header.Get("Content-Type")
	}

	proof, err := h.contributionService.SubmitProof(c.Request.Context(), userID, contributionID, input)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "proof.submit", "proof", proof.ID, string(proofType))

	c.JSON(http.StatusCreated, proof)
}

// Review records a peer verdict on a proof
// POST /api/proofs/:id/review
func (h *ContributionHandler) Review(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	proofID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proof, err := h.contributionService.ReviewProof(c.Request.Context(), userID, proofID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	recordAudit(c, h.auditService, userID, "proof.review", "proof", proofID, string(req.Verdict))

	c.JSON(http.StatusOK, proof)
}

// PendingReviews lists proofs awaiting the caller's verdict
// GET /api/challenges/:id/reviews/pending
func (h *ContributionHandler) PendingReviews(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := paramID(c, "id")
	if !ok {
		return
	}

	proofs, err := h.contributionService.ListPendingReviews(c.Request.Context(), userID, challengeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proofs)
}

// ProofFileURL returns a short-lived download link for a proof file
// GET /api/proofs/:id/file
func (h *ContributionHandler) ProofFileURL(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	proofID, ok := paramID(c, "id")
	if !ok {
		return
	}

	key, err := h.contributionService.ProofFileKey(c.Request.Context(), userID, proofID)
	if err != nil {
		writeError(c, err)
		return
	}

	url, err := h.fileStore.PresignGet(c.Request.Context(), key, 15*time.Minute)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
