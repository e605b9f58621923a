package services

import "nutritrack_app_echo/internal/models"

// OutcomeKind is the tri-state classification of a gateway status report.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomePending
	OutcomeFailed
)

// FailureReason narrows an OutcomeFailed classification.
type FailureReason string

const (
	FailureCancelled FailureReason = "cancelled"
	FailureDenied    FailureReason = "denied"
	FailureExpired   FailureReason = "expired"
	FailureUnknown   FailureReason = "unknown"
)

// Outcome is the result of classifying a gateway-reported status pair.
type Outcome struct {
	Kind   OutcomeKind
	Reason FailureReason // set only when Kind == OutcomeFailed
}

// TransactionStatus maps a failed outcome to the internal terminal status.
// Only cancelled/denied/expired have a stored representation; an unknown
// status never reaches the store.
func (o Outcome) TransactionStatus() models.TransactionStatus {
	switch o.Kind {
	case OutcomeSuccess:
		return models.TransactionStatusSuccess
	case OutcomePending:
		return models.TransactionStatusPending
	}
	switch o.Reason {
	case FailureCancelled:
		return models.TransactionStatusFailedCancelled
	case FailureDenied:
		return models.TransactionStatusFailedDenied
	case FailureExpired:
		return models.TransactionStatusFailedExpired
	}
	return models.TransactionStatusPending
}

// ClassifyTransactionStatus maps Midtrans transaction/fraud status values to
// an Outcome. This is the only place in the codebase allowed to declare a
// payment successful.
//
//	capture + accept    -> Success
//	capture + challenge -> Pending (held for manual fraud review)
//	settlement          -> Success
//	pending             -> Pending
//	cancel              -> Failed(cancelled)
//	deny                -> Failed(denied)
//	expire              -> Failed(expired)
//	anything else       -> Failed(unknown)
func ClassifyTransactionStatus(transactionStatus, fraudStatus string) Outcome {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "accept":
			return Outcome{Kind: OutcomeSuccess}
		case "challenge":
			return Outcome{Kind: OutcomePending}
		}
		return Outcome{Kind: OutcomeFailed, Reason: FailureUnknown}
	case "settlement":
		return Outcome{Kind: OutcomeSuccess}
	case "pending":
		return Outcome{Kind: OutcomePending}
	case "cancel":
		return Outcome{Kind: OutcomeFailed, Reason: FailureCancelled}
	case "deny":
		return Outcome{Kind: OutcomeFailed, Reason: FailureDenied}
	case "expire":
		return Outcome{Kind: OutcomeFailed, Reason: FailureExpired}
	}
	return Outcome{Kind: OutcomeFailed, Reason: FailureUnknown}
}
