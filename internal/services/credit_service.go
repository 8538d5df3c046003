package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskquest/internal/apperrors"
	"taskquest/internal/models"
)

// CreditService handles the credit wallet and transaction ledger
type CreditService struct {
	db *gorm.DB
}

// NewCreditService creates a new CreditService
func NewCreditService(db *gorm.DB) *CreditService {
	return &CreditService{db: db}
}

// GetConfig returns the economy configuration singleton, creating it
// with defaults on first use.
func (s *CreditService) GetConfig(ctx context.Context) (*models.CreditConfig, error) {
	return s.configInTx(s.db.WithContext(ctx))
}

func (s *CreditService) configInTx(tx *gorm.DB) (*models.CreditConfig, error) {
	var cfg models.CreditConfig
	err := tx.First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.DefaultCreditConfig()
		if err := tx.Create(&cfg).Error; err != nil {
			return nil, fmt.Errorf("failed to create credit config: %w", err)
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateConfig applies admin changes to the economy configuration.
func (s *CreditService) UpdateConfig(ctx context.Context, updates map[string]interface{}) (*models.CreditConfig, error) {
	var cfg *models.CreditConfig
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cfg, err = s.configInTx(tx)
		if err != nil {
			return err
		}
		// Minted/burned totals are ledger-derived and never set by hand.
		delete(updates, "total_credits_minted")
		delete(updates, "total_credits_burned")
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(cfg).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetOrCreateWallet returns the user's wallet, creating an empty one
// if it does not exist yet.
func (s *CreditService) GetOrCreateWallet(ctx context.Context, userID uint) (*models.CreditWallet, error) {
	var wallet *models.CreditWallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = s.walletInTx(tx, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// walletInTx fetches the user's wallet inside tx, creating it if
// missing. When locked is set the row is locked until tx commits.
func (s *CreditService) walletInTx(tx *gorm.DB, userID uint, locked bool) (*models.CreditWallet, error) {
	q := tx
	if locked {
		q = forUpdate(tx)
	}

	var wallet models.CreditWallet
	err := q.Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.CreditWallet{UserID: userID}
		if err := tx.Create(&wallet).Error; err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		return &wallet, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Credit adds credits to the user's wallet and records the ledger entry.
func (s *CreditService) Credit(ctx context.Context, userID uint, amount int64, txType models.TransactionType, description, relatedType string, relatedID uint) (*models.CreditTransaction, error) {
	var entry *models.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditInTx(tx, userID, amount, txType, description, relatedType, relatedID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditInTx is the composable form of Credit for callers that already
// hold a transaction.
func (s *CreditService) CreditInTx(tx *gorm.DB, userID uint, amount int64, txType models.TransactionType, description, relatedType string, relatedID uint) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	wallet, err := s.walletInTx(tx, userID, true)
	if err != nil {
		return nil, err
	}

	wallet.Balance += amount
	wallet.LifetimeEarned += amount
	if err := tx.Model(wallet).Updates(map[string]interface{}{
		"balance":         wallet.Balance,
		"lifetime_earned": wallet.LifetimeEarned,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	entry := &models.CreditTransaction{
		WalletID:        wallet.ID,
		TransactionType: txType,
		Amount:          amount,
		BalanceAfter:    wallet.Balance,
		Description:     description,
		RelatedType:     relatedType,
		RelatedID:       relatedID,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := s.bumpMinted(tx, amount); err != nil {
		return nil, err
	}

	return entry, nil
}

// Debit removes credits from the user's wallet if the balance covers
// the amount, recording the ledger entry with a negative amount.
func (s *CreditService) Debit(ctx context.Context, userID uint, amount int64, txType models.TransactionType, description, relatedType string, relatedID uint) (*models.CreditTransaction, error) {
	var entry *models.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitInTx(tx, userID, amount, txType, description, relatedType, relatedID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitInTx is the composable form of Debit for callers that already
// hold a transaction.
func (s *CreditService) DebitInTx(tx *gorm.DB, userID uint, amount int64, txType models.TransactionType, description, relatedType string, relatedID uint) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	wallet, err := s.walletInTx(tx, userID, true)
	if err != nil {
		return nil, err
	}

	if wallet.Balance < amount {
		return nil, apperrors.ErrInsufficientFunds
	}

	wallet.Balance -= amount
	wallet.LifetimeSpent += amount
	if err := tx.Model(wallet).Updates(map[string]interface{}{
		"balance":        wallet.Balance,
		"lifetime_spent": wallet.LifetimeSpent,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	entry := &models.CreditTransaction{
		WalletID:        wallet.ID,
		TransactionType: txType,
		Amount:          -amount,
		BalanceAfter:    wallet.Balance,
		Description:     description,
		RelatedType:     relatedType,
		RelatedID:       relatedID,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := s.bumpBurned(tx, amount); err != nil {
		return nil, err
	}

	return entry, nil
}

// CanAfford reports whether the user's balance covers amount.
func (s *CreditService) CanAfford(ctx context.Context, userID uint, amount int64) (bool, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return false, err
	}
	return wallet.Balance >= amount, nil
}

// GrantSignupBonus credits the configured signup bonus exactly once.
// Repeat calls for the same user are no-ops.
func (s *CreditService) GrantSignupBonus(ctx context.Context, userID uint) (*models.CreditTransaction, error) {
	var entry *models.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.walletInTx(tx, userID, true)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.CreditTransaction{}).
			Where("wallet_id = ? AND transaction_type = ?", wallet.ID, models.TxSignupBonus).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		cfg, err := s.configInTx(tx)
		if err != nil {
			return err
		}
		if cfg.SignupBonus <= 0 {
			return nil
		}

		entry, err = s.CreditInTx(tx, userID, cfg.SignupBonus, models.TxSignupBonus, "Welcome bonus", "", 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ChallengeCost returns the creation cost for a challenge: the base
// cost for its type plus a surcharge per heavyweight proof type.
func (s *CreditService) ChallengeCost(ctx context.Context, challengeType models.ChallengeType, proofTypes models.ProofTypeList) (int64, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	return challengeCostFromConfig(cfg, challengeType, proofTypes), nil
}

func challengeCostFromConfig(cfg *models.CreditConfig, challengeType models.ChallengeType, proofTypes models.ProofTypeList) int64 {
	var base int64
	switch challengeType {
	case models.ChallengeTodo:
		base = cfg.CostTodo
	case models.ChallengeStreak:
		base = cfg.CostStreak
	case models.ChallengeQuantified:
		base = cfg.CostQuantified
	case models.ChallengeDuel:
		base = cfg.CostDuel
	case models.ChallengeTeam, models.ChallengeTeamVsTeam:
		base = cfg.CostTeam
	case models.ChallengeCommunity, models.ChallengeGlobal:
		base = cfg.CostCommunity
	default:
		base = cfg.CostTodo
	}

	if proofTypes.Contains(models.ProofPhoto) {
		base += cfg.CostPhotoProof
	}
	if proofTypes.Contains(models.ProofVideo) {
		base += cfg.CostVideoProof
	}
	if proofTypes.Contains(models.ProofPeer) {
		base += cfg.CostPeerReview
	}

	return base
}

// AdminGrant credits a user by admin action.
func (s *CreditService) AdminGrant(ctx context.Context, userID uint, amount int64, reason string) (*models.CreditTransaction, error) {
	return s.Credit(ctx, userID, amount, models.TxAdminGrant, reason, "", 0)
}

// AdminDeduct debits a user by admin action.
func (s *CreditService) AdminDeduct(ctx context.Context, userID uint, amount int64, reason string) (*models.CreditTransaction, error) {
	return s.Debit(ctx, userID, amount, models.TxAdminDeduct, reason, "", 0)
}

// ListTransactions returns the user's ledger entries, newest first.
func (s *CreditService) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.CreditTransaction, int64, error) {
	wallet, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("wallet_id = ?", wallet.ID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.CreditTransaction
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// EconomyStats is an aggregate snapshot of the credit economy.
type EconomyStats struct {
	TotalMinted       int64 `json:"total_minted"`
	TotalBurned       int64 `json:"total_burned"`
	CirculatingSupply int64 `json:"circulating_supply"`
	WalletCount       int64 `json:"wallet_count"`
	TransactionCount  int64 `json:"transaction_count"`
}

// GetEconomyStats returns mint/burn totals and wallet aggregates.
func (s *CreditService) GetEconomyStats(ctx context.Context) (*EconomyStats, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	stats := &EconomyStats{
		TotalMinted: cfg.TotalCreditsMinted,
		TotalBurned: cfg.TotalCreditsBurned,
	}

	var circulating *int64
	if err := s.db.WithContext(ctx).Model(&models.CreditWallet{}).
		Select("SUM(balance)").Scan(&circulating).Error; err != nil {
		return nil, err
	}
	if circulating != nil {
		stats.CirculatingSupply = *circulating
	}

	if err := s.db.WithContext(ctx).Model(&models.CreditWallet{}).Count(&stats.WalletCount).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.CreditTransaction{}).Count(&stats.TransactionCount).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *CreditService) bumpMinted(tx *gorm.DB, amount int64) error {
	cfg, err := s.configInTx(tx)
	if err != nil {
		return err
	}
	return tx.Model(cfg).
		Update("total_credits_minted", gorm.Expr("total_credits_minted + ?", amount)).Error
}

func (s *CreditService) bumpBurned(tx *gorm.DB, amount int64) error {
	cfg, err := s.configInTx(tx)
	if err != nil {
		return err
	}
	return tx.Model(cfg).
		Update("total_credits_burned", gorm.Expr("total_credits_burned + ?", amount)).Error
}
