package handlers

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nutritrack_app_echo/internal/models"
	"nutritrack_app_echo/internal/services"
)

const testServerKey = "SB-Mid-server-test-key"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Entitlement{},
		&models.PaymentTransaction{},
		&models.PaymentCallbackHistory{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedUserAndOrder(t *testing.T, db *gorm.DB, orderID string) *models.User {
	t.Helper()

	user := models.User{FirebaseUID: "test-uid", Name: "Test User", Email: "test@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	txn := models.PaymentTransaction{
		OrderID:        orderID,
		UserID:         user.ID,
		Amount:         16000,
		Status:         models.TransactionStatusPending,
		PaymentGateway: models.PaymentGatewayMidtrans,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
	return &user
}

// keyVerifier verifies against a fixed server key, like the real client does.
type keyVerifier struct{ serverKey string }

func (v keyVerifier) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return services.VerifyMidtransSignature(orderID, statusCode, grossAmount, v.serverKey, signatureKey)
}

// countingReconciler wraps the real reconciler and counts invocations, so
// tests can assert the signature gate keeps rejected payloads out.
type countingReconciler struct {
	inner *services.Reconciler
	calls int
}

func (r *countingReconciler) Reconcile(ctx context.Context, orderID, transactionStatus, fraudStatus, paymentMethod string) (*services.ReconcileResult, error) {
	r.calls++
	return r.inner.Reconcile(ctx, orderID, transactionStatus, fraudStatus, paymentMethod)
}

func sign(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + testServerKey))
	return hex.EncodeToString(sum[:])
}

func notificationBody(orderID, transactionStatus, fraudStatus, signature string) string {
	payload := map[string]string{
		"order_id":           orderID,
		"status_code":        "200",
		"gross_amount":       "16000.00",
		"signature_key":      signature,
		"transaction_status": transactionStatus,
		"payment_type":       "bank_transfer",
	}
	if fraudStatus != "" {
		payload["fraud_status"] = fraudStatus
	}
	body, _ := json.Marshal(payload)
	return string(body)
}

func postNotification(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/notification", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.HandleNotification(c)
	if err != nil {
		// Mirror echo's error handling so tests can assert on status codes.
		if he, ok := err.(*echo.HTTPError); ok {
			rec.Code = he.Code
		} else {
			rec.Code = http.StatusInternalServerError
		}
	}
	return rec
}

func TestHandleNotificationRejectsBadSignature(t *testing.T) {
	db := newTestDB(t)
	seedUserAndOrder(t, db, "ORDER-1")
	rec := &countingReconciler{inner: services.NewReconciler(db, nil)}
	h := NewWebhookHandler(db, keyVerifier{testServerKey}, rec)

	body := notificationBody("ORDER-1", "settlement", "", "not-a-real-signature")
	resp := postNotification(t, h, body)

	if resp.Code != http.StatusForbidden {
		t.Errorf("status = %d; want 403", resp.Code)
	}
	if rec.calls != 0 {
		t.Errorf("reconciler invoked %d times despite bad signature; want 0", rec.calls)
	}
	// No state change.
	var txn models.PaymentTransaction
	db.Where("order_id = ?", "ORDER-1").First(&txn)
	if txn.Status != models.TransactionStatusPending {
		t.Errorf("transaction status = %q; want pending", txn.Status)
	}
}

func TestHandleNotificationRejectsMalformedPayload(t *testing.T) {
	db := newTestDB(t)
	rec := &countingReconciler{inner: services.NewReconciler(db, nil)}
	h := NewWebhookHandler(db, keyVerifier{testServerKey}, rec)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"missing signature", `{"order_id":"ORDER-1","status_code":"200","gross_amount":"16000.00","transaction_status":"settlement"}`},
		{"missing order id", `{"status_code":"200","gross_amount":"16000.00","signature_key":"x","transaction_status":"settlement"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postNotification(t, h, tt.body)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("status = %d; want 400", resp.Code)
			}
		})
	}
	if rec.calls != 0 {
		t.Errorf("reconciler invoked %d times for malformed payloads; want 0", rec.calls)
	}
}

func TestHandleNotificationSettlement(t *testing.T) {
	db := newTestDB(t)
	user := seedUserAndOrder(t, db, "ORDER-1")
	rec := &countingReconciler{inner: services.NewReconciler(db, nil)}
	h := NewWebhookHandler(db, keyVerifier{testServerKey}, rec)

	body := notificationBody("ORDER-1", "settlement", "", sign("ORDER-1", "200", "16000.00"))
	resp := postNotification(t, h, body)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.Code)
	}

	var txn models.PaymentTransaction
	db.Where("order_id = ?", "ORDER-1").First(&txn)
	if txn.Status != models.TransactionStatusSuccess {
		t.Errorf("transaction status = %q; want success", txn.Status)
	}

	var ent models.Entitlement
	if err := db.Where("user_id = ?", user.ID).First(&ent).Error; err != nil || !ent.IsPremium {
		t.Errorf("entitlement = %+v, err = %v; want is_premium true", ent, err)
	}

	// Redelivery of the exact same payload: still 200, nothing changes.
	resp = postNotification(t, h, body)
	if resp.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d; want 200", resp.Code)
	}
	var ack map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("failed to parse acknowledgement: %v", err)
	}
	if ack["status"] != string(services.ReconcileAlreadyProcessed) {
		t.Errorf("redelivery ack status = %q; want %q", ack["status"], services.ReconcileAlreadyProcessed)
	}
}

func TestHandleNotificationExpire(t *testing.T) {
	db := newTestDB(t)
	user := seedUserAndOrder(t, db, "ORDER-1")
	rec := &countingReconciler{inner: services.NewReconciler(db, nil)}
	h := NewWebhookHandler(db, keyVerifier{testServerKey}, rec)

	body := notificationBody("ORDER-1", "expire", "", sign("ORDER-1", "200", "16000.00"))
	resp := postNotification(t, h, body)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.Code)
	}

	var txn models.PaymentTransaction
	db.Where("order_id = ?", "ORDER-1").First(&txn)
	if txn.Status != models.TransactionStatusFailedExpired {
		t.Errorf("transaction status = %q; want failed_expired", txn.Status)
	}

	var entCount int64
	db.Model(&models.Entitlement{}).Where("user_id = ? AND is_premium = ?", user.ID, true).Count(&entCount)
	if entCount != 0 {
		t.Error("entitlement activated by an expired payment")
	}
}

func TestHandleNotificationCaptureChallenge(t *testing.T) {
	db := newTestDB(t)
	seedUserAndOrder(t, db, "ORDER-1")
	rec := &countingReconciler{inner: services.NewReconciler(db, nil)}
	h := NewWebhookHandler(db, keyVerifier{testServerKey}, rec)

	body := notificationBody("ORDER-1", "capture", "challenge", sign("ORDER-1", "200", "16000.00"))
	resp := postNotification(t, h, body)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.Code)
	}
	var ack map[string]string
	json.Unmarshal(resp.Body.Bytes(), &ack)
	if ack["status"] != string(services.ReconcileStillPending) {
		t.Errorf("ack status = %q; want %q", ack["status"], services.ReconcileStillPending)
	}

	var txn models.PaymentTransaction
	db.Where("order_id = ?", "ORDER-1").First(&txn)
	if txn.Status != models.TransactionStatusPending {
		t.Errorf("transaction status = %q; want pending", txn.Status)
	}
}

func TestHandleNotificationUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	rec := &countingReconciler{inner: services.NewReconciler(db, nil)}
	h := NewWebhookHandler(db, keyVerifier{testServerKey}, rec)

	body := notificationBody("NO-SUCH-ORDER", "settlement", "", sign("NO-SUCH-ORDER", "200", "16000.00"))
	resp := postNotification(t, h, body)

	if resp.Code != http.StatusNotFound {
		t.Errorf("status = %d; want 404", resp.Code)
	}
}

func TestHandleNotificationRecordsCallbackHistory(t *testing.T) {
	db := newTestDB(t)
	seedUserAndOrder(t, db, "ORDER-1")
	rec := &countingReconciler{inner: services.NewReconciler(db, nil)}
	h := NewWebhookHandler(db, keyVerifier{testServerKey}, rec)

	// Even a rejected notification leaves an audit row.
	postNotification(t, h, notificationBody("ORDER-1", "settlement", "", "bad-signature"))

	var count int64
	db.Model(&models.PaymentCallbackHistory{}).Where("order_id = ?", "ORDER-1").Count(&count)
	if count != 1 {
		t.Errorf("callback history rows = %d; want 1", count)
	}
}
