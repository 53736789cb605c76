package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBillingPeriodMonths(t *testing.T) {
	assert.Equal(t, 1, BillingPeriodMonthly.Months())
	assert.Equal(t, 3, BillingPeriodQuarterly.Months())
	assert.Equal(t, 6, BillingPeriodBiannual.Months())
	assert.Equal(t, 12, BillingPeriodYearly.Months())
}

func TestBillingPeriodAddToClampsMonthEnd(t *testing.T) {
	// Calendar month arithmetic: Jan 31 + 1 month lands in early March via
	// normalization, which is Go's AddDate behavior.
	anchor := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	next := BillingPeriodMonthly.AddTo(anchor)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), next)

	anchor = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), BillingPeriodMonthly.AddTo(anchor))
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), BillingPeriodQuarterly.AddTo(anchor))
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), BillingPeriodYearly.AddTo(anchor))
}

func TestBillingPeriodValidate(t *testing.T) {
	assert.NoError(t, BillingPeriodMonthly.Validate())
	assert.NoError(t, BillingPeriodYearly.Validate())
	assert.Error(t, BillingPeriod("weekly").Validate())
	assert.Error(t, BillingPeriod("").Validate())
}
