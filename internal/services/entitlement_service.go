package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"nutritrack_app_echo/internal/models"
)

const entitlementCacheTTL = 5 * time.Minute

func entitlementCacheKey(userID uint) string {
	return fmt.Sprintf("entitlement:%d", userID)
}

// EntitlementService answers "is this user premium". The entitlement row is
// normally written by the reconciler in the same database transaction as the
// payment, but IsPremium also re-derives the flag from the transaction store,
// so a missed entitlement write heals itself on the next read.
type EntitlementService struct {
	db    *gorm.DB
	cache *RedisCache
}

func NewEntitlementService(db *gorm.DB, cache *RedisCache) *EntitlementService {
	return &EntitlementService{db: db, cache: cache}
}

// IsPremium reports whether the user holds an active premium entitlement.
// Reads go through the cache when one is configured.
func (s *EntitlementService) IsPremium(ctx context.Context, userID uint) (bool, error) {
	if s.cache == nil {
		return s.isPremiumUncached(ctx, userID)
	}
	return GetOrSet(s.cache, ctx, entitlementCacheKey(userID), entitlementCacheTTL, func() (bool, error) {
		return s.isPremiumUncached(ctx, userID)
	})
}

func (s *EntitlementService) isPremiumUncached(ctx context.Context, userID uint) (bool, error) {
	var ent models.Entitlement
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&ent).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if err == nil && ent.IsPremium {
		return true, nil
	}

	// Flag is false or the row is missing: re-derive from the transaction
	// store in case a success transition landed without its entitlement write.
	derived, err := s.deriveFromTransactions(ctx, userID)
	if err != nil {
		return false, err
	}
	if derived {
		if err := s.heal(ctx, userID); err != nil {
			return false, err
		}
	}
	return derived, nil
}

// deriveFromTransactions answers the materialized-view question directly:
// does this user have any successful payment transaction.
func (s *EntitlementService) deriveFromTransactions(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("user_id = ? AND status = ?", userID, models.TransactionStatusSuccess).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *EntitlementService) heal(ctx context.Context, userID uint) error {
	var ent models.Entitlement
	if err := s.db.WithContext(ctx).Where(models.Entitlement{UserID: userID}).
		FirstOrCreate(&ent).Error; err != nil {
		return err
	}
	if ent.IsPremium {
		return nil
	}
	log.Printf("Healing entitlement for user %d from successful transaction", userID)
	return s.db.WithContext(ctx).Model(&ent).Update("is_premium", true).Error
}

// RefreshAll re-derives entitlements for every user that has a successful
// transaction but no active premium flag. Idempotent; used by the worker.
func (s *EntitlementService) RefreshAll(ctx context.Context) (int, error) {
	var userIDs []uint
	err := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Distinct("payment_transactions.user_id").
		Joins("LEFT JOIN entitlements ON entitlements.user_id = payment_transactions.user_id AND entitlements.deleted_at IS NULL").
		Where("payment_transactions.status = ?", models.TransactionStatusSuccess).
		Where("entitlements.id IS NULL OR entitlements.is_premium = ?", false).
		Pluck("payment_transactions.user_id", &userIDs).Error
	if err != nil {
		return 0, err
	}

	healed := 0
	for _, id := range userIDs {
		if err := s.heal(ctx, id); err != nil {
			return healed, err
		}
		if s.cache != nil {
			_ = s.cache.Delete(ctx, entitlementCacheKey(id))
		}
		healed++
	}
	return healed, nil
}
