package domain

import "time"

// Credit transaction reasons.
const (
	ReasonSignupBonus      = "signup_bonus"
	ReasonProfileCompleted = "profile_completion"
	ReasonResumeUpload     = "resume_upload"
	ReasonInterviewCorrect = "interview_correct"
	ReasonJobApplySpend    = "job_apply_spend"
	ReasonJobApplyRefund   = "job_apply_refund"
)

// Wallet transaction reasons.
const (
	ReasonWalletTopUp = "wallet_top_up"
	ReasonQuizSpend   = "quiz_spend"
	ReasonQuizCorrect = "quiz_correct"
)

// CreditTransaction is one append-only ledger entry. The fold of all deltas
// for a user equals the user's live credit balance.
type CreditTransaction struct {
	ID               string
	UserEmail        string
	Delta            int
	Reason           string
	ResultingBalance int
	CreatedAt        time.Time
}

// WalletTransaction is one append-only entry in the quiz wallet log. Money
// and diamond movements share the log; the fold of each column equals the
// live wallet.
type WalletTransaction struct {
	ID           string
	UserEmail    string
	MoneyDelta   int
	DiamondDelta int
	Reason       string
	CreatedAt    time.Time
}
