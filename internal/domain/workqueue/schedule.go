package workqueue

import "time"

// MaxPreorderChargeAttempts bounds the total number of preorder capture
// attempts, the first one included. Unbounded automatic retries are
// deliberately avoided to prevent runaway charging.
const MaxPreorderChargeAttempts = 4

// preorderRetryDelays maps the attempt number to the delay before that
// attempt runs. Attempts are numbered starting at 2: attempt 1 is the initial
// capture triggered by the release.
var preorderRetryDelays = map[int]time.Duration{
	2: 4 * time.Hour,
	3: 24 * time.Hour,
	4: 72 * time.Hour,
}

// NextPreorderAttemptAt computes when the given attempt should run, counting
// from now. It returns false when the attempt budget is exhausted and no
// further attempt must be scheduled.
func NextPreorderAttemptAt(attempt int, now time.Time) (time.Time, bool) {
	delay, ok := preorderRetryDelays[attempt]
	if !ok || attempt > MaxPreorderChargeAttempts {
		return time.Time{}, false
	}
	return now.UTC().Add(delay), true
}
