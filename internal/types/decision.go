package types

// ChargeDecisionOutcome is the result of evaluating whether a subscription is
// due for a charge.
type ChargeDecisionOutcome string

const (
	ChargeDecisionDue     ChargeDecisionOutcome = "due"
	ChargeDecisionNotDue  ChargeDecisionOutcome = "not_due"
	ChargeDecisionBlocked ChargeDecisionOutcome = "blocked"
)

// ChargeSkipReason explains why a subscription was not charged.
type ChargeSkipReason string

const (
	SkipReasonNotOverdue             ChargeSkipReason = "not_overdue"
	SkipReasonTestSubscription       ChargeSkipReason = "test_subscription"
	SkipReasonFreeSubscription       ChargeSkipReason = "free_subscription"
	SkipReasonNotAlive               ChargeSkipReason = "not_alive"
	SkipReasonChargeLimitReached     ChargeSkipReason = "charge_limit_reached"
	SkipReasonSellerSuspended        ChargeSkipReason = "seller_suspended"
	SkipReasonAlreadyChargedInPeriod ChargeSkipReason = "already_charged_in_period"
	SkipReasonChargeInProgress       ChargeSkipReason = "charge_in_progress"
)

// ChargeDecision is the outcome of the eligibility evaluator. It is a plain
// value, never an error: every skip reason is an expected business outcome.
type ChargeDecision struct {
	Outcome ChargeDecisionOutcome `json:"outcome"`
	Reason  ChargeSkipReason      `json:"reason,omitempty"`
}

// IsDue reports whether a charge should be attempted now.
func (d ChargeDecision) IsDue() bool {
	return d.Outcome == ChargeDecisionDue
}

// Due returns a decision to charge now.
func Due() ChargeDecision {
	return ChargeDecision{Outcome: ChargeDecisionDue}
}

// NotDue returns a decision to skip the charge for a time-based reason; the
// subscription may become due on a later invocation.
func NotDue(reason ChargeSkipReason) ChargeDecision {
	return ChargeDecision{Outcome: ChargeDecisionNotDue, Reason: reason}
}

// Blocked returns a decision to skip the charge because another attempt is in
// flight or already landed this period; re-invocation is a safe no-op.
func Blocked(reason ChargeSkipReason) ChargeDecision {
	return ChargeDecision{Outcome: ChargeDecisionBlocked, Reason: reason}
}
