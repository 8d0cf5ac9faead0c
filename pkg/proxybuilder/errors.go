package proxybuilder

// DiscoveryException is the single error variant the builder surfaces to
// callers: a human-readable message, no structured error code.
type DiscoveryException struct {
	Message string
}

func (e *DiscoveryException) Error() string { return e.Message }

func newDiscoveryException(msg string) *DiscoveryException {
	return &DiscoveryException{Message: msg}
}

// ErrRuntimeAlreadyDestroyed is the fixed message used whenever the
// builder's weak runtime reference fails to upgrade.
const ErrRuntimeAlreadyDestroyed = "runtime already destroyed"
