package services

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Gateway abstracts the payment gateway calls used by the payment and
// reconciliation services, so tests can substitute a fake.
type Gateway interface {
	CreateTransaction(orderID string, amount int64, customer *midtrans.CustomerDetails) (*snap.Response, error)
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error)
}

type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client

	serverKey string
}

// NewMidtransService builds the gateway client from environment config.
// A missing server key is a hard error: without it webhook signatures cannot
// be verified, so the process must not start accepting notifications.
func NewMidtransService() (*MidtransService, error) {
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	if serverKey == "" {
		return nil, ErrMissingServerKey
	}

	env := midtrans.Sandbox
	if os.Getenv("MIDTRANS_IS_PRODUCTION") == "true" {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
		serverKey:  serverKey,
	}, nil
}

// CreateTransaction creates a Snap transaction and returns the token and
// redirect URL. The call is synchronous; failures are passed through to the
// caller unchanged.
func (s *MidtransService) CreateTransaction(orderID string, amount int64, customer *midtrans.CustomerDetails) (*snap.Response, error) {
	param := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amount,
		},
		CustomerDetail: customer,
	}

	resp, err := s.SnapClient.CreateTransaction(param)
	if err != nil {
		return nil, fmt.Errorf("midtrans create transaction error: %v", err)
	}

	return resp, nil
}

// CheckTransaction queries the gateway for the current status of an order.
func (s *MidtransService) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, err := s.CoreClient.CheckTransaction(orderID)
	if err != nil {
		return nil, fmt.Errorf("midtrans check transaction error: %v", err)
	}
	return resp, nil
}

// VerifySignature checks that a webhook notification genuinely originated
// from Midtrans.
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	return VerifyMidtransSignature(orderID, statusCode, grossAmount, s.serverKey, signatureKey)
}

// VerifyMidtransSignature recomputes the notification signature,
// SHA512(order_id + status_code + gross_amount + server_key), and compares it
// against the provided one in constant time so the check leaks nothing about
// the expected digest.
func VerifyMidtransSignature(orderID, statusCode, grossAmount, serverKey, signatureKey string) bool {
	if signatureKey == "" {
		return false
	}

	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}
