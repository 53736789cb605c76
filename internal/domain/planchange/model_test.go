package planchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlanChangeIsEffective(t *testing.T) {
	change := &PlanChange{EffectiveOn: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)}

	// Date granularity: any time on the effective day counts.
	assert.False(t, change.IsEffective(time.Date(2025, 6, 14, 23, 59, 0, 0, time.UTC)))
	assert.True(t, change.IsEffective(time.Date(2025, 6, 15, 0, 0, 1, 0, time.UTC)))
	assert.True(t, change.IsEffective(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPlanChangeMarkApplied(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	change := &PlanChange{EffectiveOn: now}

	assert.True(t, change.IsLive())

	change.MarkApplied(now)
	assert.True(t, change.Applied)
	assert.NotNil(t, change.DeletedAt)
	assert.False(t, change.IsLive())
}

func TestPlanChangeMarkDeleted(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	change := &PlanChange{}

	change.MarkDeleted(now)
	assert.False(t, change.Applied)
	assert.False(t, change.IsLive())
}
