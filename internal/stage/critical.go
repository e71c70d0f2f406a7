package stage

import (
	"strings"

	"github.com/mayoit/azmig-tool-assistant-sub000/internal/plan"
)

// subscriptionIndicators are the message fragments that, together with a
// mention of the subscription, identify an unusable subscription on a
// failed access stage. Executors should prefer setting
// ErrKindSubscriptionNotFound; the text heuristic covers executors that
// only return a message.
var subscriptionIndicators = []string{
	"not found",
	"disabled",
	"unauthorized",
	"access denied",
}

// IsCriticalFailure reports whether a failed result must halt the
// remaining stages of its target. True when the executor marked the
// result critical, and for project access failures that indicate the
// subscription itself is unusable.
func IsCriticalFailure(kind plan.Kind, r CheckResult) bool {
	if r.Status != StatusFailed {
		return false
	}
	if r.Critical {
		return true
	}
	if kind != plan.KindProject || r.Stage != Access {
		return false
	}
	if r.ErrorKind == ErrKindSubscriptionNotFound {
		return true
	}
	return mentionsUnusableSubscription(r.Message)
}

// mentionsUnusableSubscription is the preserved message heuristic:
// case-insensitive "subscription" plus one of the known indicators.
func mentionsUnusableSubscription(message string) bool {
	m := strings.ToLower(message)
	if !strings.Contains(m, "subscription") {
		return false
	}
	for _, indicator := range subscriptionIndicators {
		if strings.Contains(m, indicator) {
			return true
		}
	}
	return false
}
