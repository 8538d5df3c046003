package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskquest/internal/auth"
	"taskquest/internal/services"
)

type VoiceHandler struct {
	voiceService *services.VoiceService
}

func NewVoiceHandler(voiceService *services.VoiceService) *VoiceHandler {
	return &VoiceHandler{
		voiceService: voiceService,
	}
}

// Upload stores a new voice memo
// POST /api/voice-memos
func (h *VoiceHandler) Upload(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file required"})
		return
	}

	memo, err := h.voiceService.UploadMemo(c.Request.Context(), userID, fileHeader)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, memo)
}

// List returns the caller's memos
// GET /api/voice-memos
func (h *VoiceHandler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	memos, err := h.voiceService.ListMemos(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, memos)
}

// Get returns one memo
// GET /api/voice-memos/:id
func (h *VoiceHandler) Get(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	memoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	memo, err := h.voiceService.GetMemo(c.Request.Context(), userID, memoID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, memo)
}

// Process runs transcription and parsing on a memo
// POST /api/voice-memos/:id/process
func (h *VoiceHandler) Process(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	memoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	memo, err := h.voiceService.ProcessMemo(c.Request.Context(), userID, memoID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, memo)
}

// CreateChallenge turns a parsed memo into a challenge
// POST /api/voice-memos/:id/create-challenge
func (h *VoiceHandler) CreateChallenge(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	memoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	// The body is optional; absent or empty it keeps the parsed values.
	var overrides services.MemoChallengeOverrides
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&overrides); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	challenge, err := h.voiceService.CreateChallengeFromMemo(c.Request.Context(), userID, memoID, &overrides)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, challenge)
}

// Dismiss discards a memo
// POST /api/voice-memos/:id/dismiss
func (h *VoiceHandler) Dismiss(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	memoID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.voiceService.DismissMemo(c.Request.Context(), userID, memoID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "dismissed"})
}
