// Package subscription classifies subscription QoS values used by the
// publication scheduler to decide whether a subscription fires on-change,
// periodically, or both, and at which intervals.
package subscription

import "fmt"

// NoInterval is returned for whichever of minInterval /
// periodicPublicationInterval / alertAfterInterval does not apply to a
// given QoS variant.
const NoInterval int64 = -1

// Qos is a closed tagged union of the three subscription QoS variants.
// The unexported method makes the set of implementations compile-time
// fixed: adding a new variant elsewhere without updating Classify would
// still compile, but Classify's default case turns a missed variant into
// an immediate runtime error rather than silently wrong intervals.
type Qos interface {
	isSubscriptionQos()
}

// OnChangeSubscriptionQos fires a publication whenever the attribute or
// event changes, no more often than MinIntervalMs.
type OnChangeSubscriptionQos struct {
	MinIntervalMs int64
}

func (OnChangeSubscriptionQos) isSubscriptionQos() {}

// OnChangeWithKeepAliveSubscriptionQos fires on change (throttled by
// MinIntervalMs) and additionally at least every MaxIntervalMs as a
// keep-alive. AlertAfterIntervalMs is how long the subscriber tolerates
// not hearing from the publisher before considering the subscription
// stale. Satisfies both the on-change and periodic classifications.
type OnChangeWithKeepAliveSubscriptionQos struct {
	MinIntervalMs        int64
	MaxIntervalMs        int64
	AlertAfterIntervalMs int64
}

func (OnChangeWithKeepAliveSubscriptionQos) isSubscriptionQos() {}

// PeriodicSubscriptionQos fires a publication every PeriodMs regardless
// of whether the value changed.
type PeriodicSubscriptionQos struct {
	PeriodMs             int64
	AlertAfterIntervalMs int64
}

func (PeriodicSubscriptionQos) isSubscriptionQos() {}

// Classification is the result of classifying a subscription Qos value.
type Classification struct {
	// MinIntervalMs is the minimum time between on-change publications,
	// or NoInterval if the variant is not on-change.
	MinIntervalMs int64

	// PeriodicPublicationIntervalMs is the interval at which a
	// publication must fire regardless of change, or NoInterval if the
	// variant is purely on-change.
	PeriodicPublicationIntervalMs int64

	// AlertAfterIntervalMs is how long without a publication before the
	// subscription is considered stale, or NoInterval if not applicable.
	AlertAfterIntervalMs int64

	// IsOnChange is true for OnChangeSubscriptionQos and
	// OnChangeWithKeepAliveSubscriptionQos.
	IsOnChange bool
}

// Classify extracts minInterval, periodicPublicationInterval, and
// alertAfterInterval from q. OnChangeWithKeepAliveSubscriptionQos must be
// checked before OnChangeSubscriptionQos and PeriodicSubscriptionQos,
// since it satisfies both classifications; the type switch below is
// ordered for that reason, not for performance.
//
// An unrecognized variant is a programmer error: Classify panics rather
// than silently returning a default.
func Classify(q Qos) Classification {
	switch v := q.(type) {
	case OnChangeWithKeepAliveSubscriptionQos:
		return Classification{
			MinIntervalMs:                 v.MinIntervalMs,
			PeriodicPublicationIntervalMs: v.MaxIntervalMs,
			AlertAfterIntervalMs:          v.AlertAfterIntervalMs,
			IsOnChange:                    true,
		}
	case OnChangeSubscriptionQos:
		return Classification{
			MinIntervalMs:                 v.MinIntervalMs,
			PeriodicPublicationIntervalMs: NoInterval,
			AlertAfterIntervalMs:          NoInterval,
			IsOnChange:                    true,
		}
	case PeriodicSubscriptionQos:
		return Classification{
			MinIntervalMs:                 NoInterval,
			PeriodicPublicationIntervalMs: v.PeriodMs,
			AlertAfterIntervalMs:          v.AlertAfterIntervalMs,
			IsOnChange:                    false,
		}
	default:
		panic(fmt.Sprintf("reference to unknown SubscriptionQos: %T", q))
	}
}

// IsOnChangeSubscription reports whether q fires on attribute/event
// change (true for OnChange and OnChangeWithKeepAlive, false for
// Periodic).
func IsOnChangeSubscription(q Qos) bool {
	return Classify(q).IsOnChange
}
