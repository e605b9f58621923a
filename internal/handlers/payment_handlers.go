package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"nutritrack_app_echo/internal/models"
	"nutritrack_app_echo/internal/services"
)

const gatewayTimeout = 15 * time.Second

// PaymentHandler serves the authenticated payment endpoints: premium session
// initiation, client-triggered status polling, and the entitlement read.
type PaymentHandler struct {
	db           *gorm.DB
	payments     *services.PaymentService
	gateway      services.Gateway
	reconciler   reconciler
	entitlements *services.EntitlementService
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, gateway services.Gateway, rec reconciler, entitlements *services.EntitlementService) *PaymentHandler {
	return &PaymentHandler{
		db:           db,
		payments:     payments,
		gateway:      gateway,
		reconciler:   rec,
		entitlements: entitlements,
	}
}

// currentUser resolves the authenticated Firebase principal to a profile row.
func (h *PaymentHandler) currentUser(c echo.Context) (*models.User, error) {
	uid, _ := c.Get("userUID").(string)
	if uid == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue.")
	}

	user, err := h.payments.FindUserByFirebaseUID(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to load user profile")
	}
	return user, nil
}

// InitiatePremium opens a checkout session for the premium upgrade. The
// amount is fixed server-side; the request body carries nothing.
func (h *PaymentHandler) InitiatePremium(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	result, err := h.payments.InitiatePremiumPayment(c.Request().Context(), user)
	if err != nil {
		log.Printf("Failed to initiate premium payment for user %d: %v", user.ID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to initiate payment")
	}

	return c.JSON(http.StatusOK, InitiatePaymentResponse{
		OrderID:     result.OrderID,
		Token:       result.Token,
		RedirectURL: result.RedirectURL,
	})
}

// PollStatus queries the gateway for the current status of the caller's order
// and reconciles it. The outbound call is authenticated by server credentials,
// so the only trust decision here is order ownership.
func (h *PaymentHandler) PollStatus(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	orderID := c.Param("order_id")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing order id")
	}

	_, err = h.payments.FindOwnedTransaction(c.Request().Context(), orderID, user.ID)
	if err != nil {
		// Not the owner looks the same as not found: reveal nothing beyond
		// the 404.
		if errors.Is(err, services.ErrUnknownOrder) || errors.Is(err, services.ErrNotOwner) {
			return echo.NewHTTPError(http.StatusNotFound, "Unknown order")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to look up order")
	}

	statusResp, err := h.checkWithTimeout(c, orderID)
	if err != nil {
		log.Printf("Gateway status query failed for order %s: %v", orderID, err)
		return echo.NewHTTPError(http.StatusBadGateway, "Payment gateway unavailable")
	}

	result, err := h.reconciler.Reconcile(c.Request().Context(), orderID, statusResp.TransactionStatus, statusResp.FraudStatus, statusResp.PaymentType)
	if err != nil {
		if errors.Is(err, services.ErrUnrecognizedStatus) {
			return echo.NewHTTPError(http.StatusBadGateway, "Unrecognized gateway status")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reconcile payment status")
	}

	switch result.Transaction.Status {
	case models.TransactionStatusSuccess:
		return c.JSON(http.StatusOK, PaymentStatusResponse{
			Success: true,
			Message: "Payment successful",
			Status:  string(result.Transaction.Status),
		})
	case models.TransactionStatusPending:
		return c.JSON(http.StatusBadRequest, PaymentStatusResponse{
			Success: false,
			Message: services.ErrNotSettled.Error(),
			Status:  string(result.Transaction.Status),
		})
	default:
		return c.JSON(http.StatusOK, PaymentStatusResponse{
			Success: false,
			Message: "Payment failed",
			Status:  string(result.Transaction.Status),
		})
	}
}

// checkWithTimeout bounds the synchronous gateway call so a hung upstream
// cannot stall the handler indefinitely.
func (h *PaymentHandler) checkWithTimeout(c echo.Context, orderID string) (resp *gatewayStatus, err error) {
	type checkResult struct {
		resp *gatewayStatus
		err  error
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), gatewayTimeout)
	defer cancel()

	ch := make(chan checkResult, 1)
	go func() {
		r, err := h.gateway.CheckTransaction(orderID)
		if err != nil {
			ch <- checkResult{err: err}
			return
		}
		ch <- checkResult{resp: &gatewayStatus{
			TransactionStatus: r.TransactionStatus,
			FraudStatus:       r.FraudStatus,
			PaymentType:       r.PaymentType,
		}}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.resp, res.err
	}
}

// gatewayStatus is the subset of the gateway status response the poll path
// consumes.
type gatewayStatus struct {
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
}

// PremiumStatus reports whether the caller currently holds premium access.
func (h *PaymentHandler) PremiumStatus(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	premium, err := h.entitlements.IsPremium(c.Request().Context(), user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check premium status")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"is_premium": premium,
	})
}
