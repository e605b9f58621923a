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

// ReconcileStatus describes what a reconciliation attempt did.
type ReconcileStatus string

const (
	// ReconcileApplied means a pending transaction moved to a terminal state.
	ReconcileApplied ReconcileStatus = "applied"
	// ReconcileAlreadyProcessed means the transaction was already in the
	// terminal state the report agrees with; nothing was written.
	ReconcileAlreadyProcessed ReconcileStatus = "already_processed"
	// ReconcileStillPending means both the stored state and the report are
	// pending; only updated_at / payment_method were refreshed.
	ReconcileStillPending ReconcileStatus = "still_pending"
	// ReconcileConflict means the report disagrees with a stored terminal
	// state. The stored state wins and is left untouched.
	ReconcileConflict ReconcileStatus = "conflict"
)

// ReconcileResult is returned to both the webhook and the poll path.
type ReconcileResult struct {
	Status      ReconcileStatus
	Transaction models.PaymentTransaction
}

// Reconciler applies gateway status reports to the transaction and
// entitlement stores. It is the only component that writes either store after
// a transaction has been created, and the only component that may activate a
// user's premium entitlement.
type Reconciler struct {
	db    *gorm.DB
	cache *RedisCache
}

func NewReconciler(db *gorm.DB, cache *RedisCache) *Reconciler {
	return &Reconciler{db: db, cache: cache}
}

// Reconcile classifies a gateway status report and applies the resulting
// transition to the transaction identified by orderID.
//
// The pending -> terminal transition is guarded by a compare-and-swap on the
// status column, so two concurrent reports (a webhook racing a poll) cannot
// both apply it: the loser observes zero affected rows, re-reads, and takes
// the idempotent branch. Transaction status and entitlement are written in a
// single database transaction.
func (r *Reconciler) Reconcile(ctx context.Context, orderID, transactionStatus, fraudStatus, paymentMethod string) (*ReconcileResult, error) {
	outcome := ClassifyTransactionStatus(transactionStatus, fraudStatus)
	if outcome.Kind == OutcomeFailed && outcome.Reason == FailureUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedStatus, transactionStatus)
	}

	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownOrder
		}
		return nil, err
	}

	// Terminal states are append-only truth.
	if txn.Status.IsTerminal() {
		return r.resolveTerminal(txn, outcome), nil
	}

	switch outcome.Kind {
	case OutcomePending:
		// Touch updated_at and capture the payment method if newly known.
		updates := map[string]interface{}{"updated_at": time.Now()}
		if paymentMethod != "" && txn.PaymentMethod == "" {
			updates["payment_method"] = paymentMethod
			txn.PaymentMethod = paymentMethod
		}
		if err := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
			Where("order_id = ?", orderID).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &ReconcileResult{Status: ReconcileStillPending, Transaction: txn}, nil

	case OutcomeSuccess, OutcomeFailed:
		target := outcome.TransactionStatus()
		applied, err := r.transition(ctx, &txn, target, paymentMethod, outcome.Kind == OutcomeSuccess)
		if err != nil {
			return nil, err
		}
		if applied {
			return &ReconcileResult{Status: ReconcileApplied, Transaction: txn}, nil
		}
		// Lost the race: another report already finalized this order.
		if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&txn).Error; err != nil {
			return nil, err
		}
		return r.resolveTerminal(txn, outcome), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedStatus, transactionStatus)
}

// resolveTerminal decides between the idempotent no-op and a conflict when
// the stored status is already terminal.
func (r *Reconciler) resolveTerminal(txn models.PaymentTransaction, outcome Outcome) *ReconcileResult {
	if txn.Status == outcome.TransactionStatus() {
		return &ReconcileResult{Status: ReconcileAlreadyProcessed, Transaction: txn}
	}
	// Disagreement with recorded truth. Never overwrite; the gateway retries
	// webhooks on non-2xx so this is reported, not raised.
	log.Printf("Reconcile conflict for order %s: stored status %s, reported outcome %v",
		txn.OrderID, txn.Status, outcome.TransactionStatus())
	return &ReconcileResult{Status: ReconcileConflict, Transaction: txn}
}

// transition attempts the pending -> target CAS. When target is success the
// entitlement flip rides in the same database transaction, so either both
// rows change or neither does.
func (r *Reconciler) transition(ctx context.Context, txn *models.PaymentTransaction, target models.TransactionStatus, paymentMethod string, activate bool) (bool, error) {
	applied := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": target}
		if paymentMethod != "" && txn.PaymentMethod == "" {
			updates["payment_method"] = paymentMethod
		}

		res := tx.Model(&models.PaymentTransaction{}).
			Where("order_id = ? AND status = ?", txn.OrderID, models.TransactionStatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Someone else finalized the order first.
			return nil
		}
		applied = true
		txn.Status = target
		if paymentMethod != "" && txn.PaymentMethod == "" {
			txn.PaymentMethod = paymentMethod
		}

		if !activate {
			return nil
		}

		// First transition into success: grant premium exactly once.
		var ent models.Entitlement
		if err := tx.Where(models.Entitlement{UserID: txn.UserID}).
			FirstOrCreate(&ent).Error; err != nil {
			return err
		}
		if !ent.IsPremium {
			if err := tx.Model(&ent).Update("is_premium", true).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied && activate && r.cache != nil {
		// Drop the cached entitlement so the next read sees the grant.
		_ = r.cache.Delete(ctx, entitlementCacheKey(txn.UserID))
	}

	return applied, nil
}
