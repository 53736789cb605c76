package types

import (
	"fmt"
	"strings"
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriod represents the recurrence of a subscription.
type BillingPeriod string

const (
	BillingPeriodMonthly   BillingPeriod = "monthly"
	BillingPeriodQuarterly BillingPeriod = "quarterly"
	BillingPeriodBiannual  BillingPeriod = "biannually"
	BillingPeriodYearly    BillingPeriod = "yearly"
)

// String returns the string representation of the billing period
func (p BillingPeriod) String() string {
	return string(p)
}

// Validate validates the billing period
func (p BillingPeriod) Validate() error {
	allowedPeriods := []BillingPeriod{
		BillingPeriodMonthly,
		BillingPeriodQuarterly,
		BillingPeriodBiannual,
		BillingPeriodYearly,
	}
	if lo.Contains(allowedPeriods, p) {
		return nil
	}
	return ierr.NewError("invalid billing period").
		WithHint(fmt.Sprintf("Billing period must be one of: %s", strings.Join(lo.Map(allowedPeriods, func(p BillingPeriod, _ int) string { return string(p) }), ", "))).
		Mark(ierr.ErrValidation)
}

// Months returns the number of calendar months in one billing period.
func (p BillingPeriod) Months() int {
	switch p {
	case BillingPeriodQuarterly:
		return 3
	case BillingPeriodBiannual:
		return 6
	case BillingPeriodYearly:
		return 12
	default:
		return 1
	}
}

// AddTo returns t advanced by one billing period using calendar month
// arithmetic. Month-end anchors normalize forward, so a Jan 31 anchor bills
// on Mar 3 in a non-leap year.
func (p BillingPeriod) AddTo(t time.Time) time.Time {
	return t.AddDate(0, p.Months(), 0)
}

// ChargeOutcome classifies the result of a single charge attempt at the
// processor boundary. Declines and processing errors are expected business
// outcomes, not errors.
type ChargeOutcome string

const (
	ChargeOutcomeSucceeded       ChargeOutcome = "succeeded"
	ChargeOutcomeDeclined        ChargeOutcome = "declined"
	ChargeOutcomeProcessingError ChargeOutcome = "processing_error"
)
