package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"nutritrack_app_echo/internal/models"
	"nutritrack_app_echo/internal/services"
)

type signatureVerifier interface {
	VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool
}

type reconciler interface {
	Reconcile(ctx context.Context, orderID, transactionStatus, fraudStatus, paymentMethod string) (*services.ReconcileResult, error)
}

// WebhookHandler receives asynchronous payment notifications from Midtrans.
type WebhookHandler struct {
	db         *gorm.DB
	verifier   signatureVerifier
	reconciler reconciler
}

func NewWebhookHandler(db *gorm.DB, verifier signatureVerifier, reconciler reconciler) *WebhookHandler {
	return &WebhookHandler{db: db, verifier: verifier, reconciler: reconciler}
}

// HandleNotification processes one gateway notification. The signature check
// happens before any transaction lookup; a mismatch is a hard 403. Every
// handled outcome, including duplicates and still-pending reports, returns
// 200 so the gateway stops redelivering.
func (h *WebhookHandler) HandleNotification(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read notification body")
	}

	var notif MidtransNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed notification payload")
	}

	// Audit first, judge later: rejected notifications stay traceable.
	history := models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        notif.OrderID,
		Metadata:       body,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&history).Error; err != nil {
		log.Printf("Failed to record callback history for order %s: %v", notif.OrderID, err)
	}

	if !notif.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required notification fields")
	}

	if !h.verifier.VerifySignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, notif.SignatureKey) {
		return echo.NewHTTPError(http.StatusForbidden, services.ErrInvalidSignature.Error())
	}

	result, err := h.reconciler.Reconcile(c.Request().Context(), notif.OrderID, notif.TransactionStatus, notif.FraudStatus, notif.PaymentType)
	if err != nil {
		if errors.Is(err, services.ErrUnknownOrder) {
			return echo.NewHTTPError(http.StatusNotFound, "Unknown order")
		}
		if errors.Is(err, services.ErrUnrecognizedStatus) {
			return echo.NewHTTPError(http.StatusBadRequest, "Unrecognized transaction status")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process notification")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "ok",
		"status":  string(result.Status),
	})
}
