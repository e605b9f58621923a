package services

import (
	"testing"

	"nutritrack_app_echo/internal/models"
)

func TestClassifyTransactionStatus(t *testing.T) {
	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		wantKind          OutcomeKind
		wantReason        FailureReason
	}{
		{
			name:              "capture accepted by fraud check",
			transactionStatus: "capture",
			fraudStatus:       "accept",
			wantKind:          OutcomeSuccess,
		},
		{
			name:              "capture challenged by fraud check",
			transactionStatus: "capture",
			fraudStatus:       "challenge",
			wantKind:          OutcomePending,
		},
		{
			name:              "capture with unknown fraud status",
			transactionStatus: "capture",
			fraudStatus:       "maybe",
			wantKind:          OutcomeFailed,
			wantReason:        FailureUnknown,
		},
		{
			name:              "settlement",
			transactionStatus: "settlement",
			wantKind:          OutcomeSuccess,
		},
		{
			name:              "pending",
			transactionStatus: "pending",
			wantKind:          OutcomePending,
		},
		{
			name:              "cancel",
			transactionStatus: "cancel",
			wantKind:          OutcomeFailed,
			wantReason:        FailureCancelled,
		},
		{
			name:              "deny",
			transactionStatus: "deny",
			wantKind:          OutcomeFailed,
			wantReason:        FailureDenied,
		},
		{
			name:              "expire",
			transactionStatus: "expire",
			wantKind:          OutcomeFailed,
			wantReason:        FailureExpired,
		},
		{
			name:              "unknown status is never success",
			transactionStatus: "refund",
			wantKind:          OutcomeFailed,
			wantReason:        FailureUnknown,
		},
		{
			name:              "empty status is never success",
			transactionStatus: "",
			wantKind:          OutcomeFailed,
			wantReason:        FailureUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransactionStatus(tt.transactionStatus, tt.fraudStatus)
			if got.Kind != tt.wantKind {
				t.Errorf("ClassifyTransactionStatus(%q, %q).Kind = %v; want %v",
					tt.transactionStatus, tt.fraudStatus, got.Kind, tt.wantKind)
			}
			if got.Kind == OutcomeFailed && got.Reason != tt.wantReason {
				t.Errorf("ClassifyTransactionStatus(%q, %q).Reason = %q; want %q",
					tt.transactionStatus, tt.fraudStatus, got.Reason, tt.wantReason)
			}
		})
	}
}

func TestOutcomeTransactionStatus(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    models.TransactionStatus
	}{
		{"success", Outcome{Kind: OutcomeSuccess}, models.TransactionStatusSuccess},
		{"pending", Outcome{Kind: OutcomePending}, models.TransactionStatusPending},
		{"cancelled", Outcome{Kind: OutcomeFailed, Reason: FailureCancelled}, models.TransactionStatusFailedCancelled},
		{"denied", Outcome{Kind: OutcomeFailed, Reason: FailureDenied}, models.TransactionStatusFailedDenied},
		{"expired", Outcome{Kind: OutcomeFailed, Reason: FailureExpired}, models.TransactionStatusFailedExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.TransactionStatus(); got != tt.want {
				t.Errorf("TransactionStatus() = %q; want %q", got, tt.want)
			}
		})
	}
}
