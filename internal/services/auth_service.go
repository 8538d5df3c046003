package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/auth"
	"taskquest/internal/models"
)

// AuthService handles account registration and login
type AuthService struct {
	db      *gorm.DB
	credits *CreditService
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB, credits *CreditService) *AuthService {
	return &AuthService{db: db, credits: credits}
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user, their wallet and the signup bonus in one
// transaction and returns a signed token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if len(in.Username) < 3 {
		return nil, "", apperrors.NewValidation("username", "username must be at least 3 characters")
	}
	if len(in.Password) < 8 {
		return nil, "", apperrors.NewValidation("password", "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Level:        1,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", in.Username, in.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.ErrConflict
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, "", err
	}

	// Bonus is granted outside the signup transaction so a ledger
	// hiccup cannot lose the account; the grant is idempotent.
	if _, err := s.credits.GrantSignupBonus(ctx, user.ID); err != nil {
		return nil, "", err
	}

	token, err := auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*models.User, string, error) {
	usernameOrEmail = strings.TrimSpace(usernameOrEmail)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", usernameOrEmail, strings.ToLower(usernameOrEmail)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperrors.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", apperrors.ErrNotFound
	}

	token, err := auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
