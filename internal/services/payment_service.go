package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"gorm.io/gorm"

	"nutritrack_app_echo/internal/models"
)

// createSessionTimeout bounds the synchronous create-session call so a hung
// gateway cannot stall the initiation handler indefinitely.
const createSessionTimeout = 15 * time.Second

// PaymentService creates payment transactions and opens checkout sessions
// with the gateway. It is the only component that creates transaction rows.
type PaymentService struct {
	db      *gorm.DB
	gateway Gateway
	price   int64
}

func NewPaymentService(db *gorm.DB, gateway Gateway, premiumPrice int64) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, price: premiumPrice}
}

// InitiatePaymentResult holds the outcome of a session initiation.
type InitiatePaymentResult struct {
	OrderID     string
	Token       string
	RedirectURL string
}

// InitiatePremiumPayment opens a checkout session for the premium upgrade.
// The amount is server policy, never caller input. The pending transaction
// row is written before the gateway call, so a crash or timeout afterwards
// still leaves a reconcilable record; a gateway failure is surfaced unchanged
// and recovery is a fresh initiation with a new order ID.
func (s *PaymentService) InitiatePremiumPayment(ctx context.Context, user *models.User) (*InitiatePaymentResult, error) {
	orderID := newOrderID(user.ID)

	meta, _ := json.Marshal(map[string]interface{}{
		"email":        user.Email,
		"initiated_at": time.Now().UTC().Format(time.RFC3339),
	})

	txn := models.PaymentTransaction{
		OrderID:        orderID,
		UserID:         user.ID,
		Amount:         s.price,
		Status:         models.TransactionStatusPending,
		PaymentGateway: models.PaymentGatewayMidtrans,
		Metadata:       meta,
	}
	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, fmt.Errorf("failed to create transaction record: %w", err)
	}

	resp, err := s.createWithTimeout(ctx, orderID, &midtrans.CustomerDetails{
		FName: user.Name,
		Email: user.Email,
	})
	if err != nil {
		// Row stays pending for traceability; the caller retries with a
		// fresh order ID.
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return &InitiatePaymentResult{
		OrderID:     orderID,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// createWithTimeout runs the gateway create-session call under the caller's
// context plus an explicit deadline.
func (s *PaymentService) createWithTimeout(ctx context.Context, orderID string, customer *midtrans.CustomerDetails) (*snap.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, createSessionTimeout)
	defer cancel()

	type createResult struct {
		resp *snap.Response
		err  error
	}

	ch := make(chan createResult, 1)
	go func() {
		resp, err := s.gateway.CreateTransaction(orderID, s.price, customer)
		ch <- createResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.resp, res.err
	}
}

// FindTransaction looks up a transaction by order ID.
func (s *PaymentService) FindTransaction(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownOrder
		}
		return nil, err
	}
	return &txn, nil
}

// FindOwnedTransaction looks up a transaction and enforces that it belongs to
// the given user. ErrNotOwner and ErrUnknownOrder are distinct so callers can
// decide how much to reveal; the poll handler maps both to 404.
func (s *PaymentService) FindOwnedTransaction(ctx context.Context, orderID string, userID uint) (*models.PaymentTransaction, error) {
	txn, err := s.FindTransaction(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, ErrNotOwner
	}
	return txn, nil
}

// FindUserByFirebaseUID resolves an authenticated principal to a profile row.
func (s *PaymentService) FindUserByFirebaseUID(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("firebase_uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// newOrderID builds a collision-resistant order identifier. The uuid suffix
// keeps concurrent initiations by the same user within one second distinct.
func newOrderID(userID uint) string {
	return fmt.Sprintf("PREMIUM-%d-%d-%s", userID, time.Now().Unix(), uuid.NewString()[:8])
}
