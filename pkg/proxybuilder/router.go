package proxybuilder

// MessageRouter is the consumed contract through which the builder
// registers a route for the proxy it just bound. Satisfied by
// *internal/router.Router; a real deployment supplies a network-aware
// implementation without the builder changing.
type MessageRouter interface {
	SetToKnown(participantID string)
	AddNextHop(participantID, address string, isGloballyVisible bool, expiryMs int64, isSticky bool, onSuccess func(), onError func(error))
}

// MaxInt64ExpiryMs is the expiry the builder passes to AddNextHop: a
// proxy's route never expires on its own.
const MaxInt64ExpiryMs int64 = 1<<63 - 1
