package handlers

// MidtransNotification is the JSON body of a Midtrans HTTP notification.
// Only the fields this subsystem consumes are declared; anything else in the
// payload is preserved verbatim in the callback history audit row.
type MidtransNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// Valid reports whether the required notification fields are present.
// FraudStatus and PaymentType are optional: Midtrans omits them for payment
// types that carry no fraud assessment.
func (n MidtransNotification) Valid() bool {
	return n.OrderID != "" && n.StatusCode != "" && n.GrossAmount != "" &&
		n.SignatureKey != "" && n.TransactionStatus != ""
}

// InitiatePaymentResponse is returned by the session-initiation endpoint.
type InitiatePaymentResponse struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// PaymentStatusResponse is returned by the poll endpoint.
type PaymentStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
