package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskquest/internal/models"
)

// AuditService records security-relevant actions. Recording is
// best-effort: failures are logged and never propagate to the caller.
type AuditService struct {
	db     *gorm.DB
	log    *zap.Logger
	ipSalt string
}

// NewAuditService creates a new AuditService
func NewAuditService(db *gorm.DB, log *zap.Logger, ipSalt string) *AuditService {
	return &AuditService{db: db, log: log, ipSalt: ipSalt}
}

// Record writes one audit entry. userID may be nil for anonymous actions.
func (s *AuditService) Record(ctx context.Context, userID *uint, action, targetType string, targetID uint, detail, clientIP, userAgent string) {
	entry := models.AuditLog{
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
		IPHash:     s.hashIP(clientIP),
		UserAgent:  truncateStr(userAgent, 255),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *AuditService) hashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.ipSalt + ip))
	return hex.EncodeToString(sum[:])
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
