package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskquest/internal/apperrors"
	"taskquest/internal/services"
	"taskquest/internal/storage"
)

// recordAudit writes an audit entry for an authenticated request.
func recordAudit(c *gin.Context, audits *services.AuditService, userID uint, action, targetType string, targetID uint, detail string) {
	audits.Record(c.Request.Context(), &userID, action, targetType, targetID, detail, c.ClientIP(), c.Request.UserAgent())
}

// writeError maps service errors onto HTTP status codes in one place.
func writeError(c *gin.Context, err error) {
	var ve *apperrors.ValidationError
	var badType *storage.ErrInvalidFileType
	var tooLarge *storage.ErrFileTooLarge

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.As(err, &badType):
		c.JSON(http.StatusBadRequest, gin.H{"error": badType.Error()})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": tooLarge.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict with current state"})
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
	case errors.Is(err, apperrors.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, apperrors.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
