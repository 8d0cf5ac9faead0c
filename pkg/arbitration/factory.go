package arbitration

import (
	"github.com/gezibash/arc-node/pkg/discovery"
)

// New returns the Arbitrator called for by qos.ArbitrationStrategy.
// StrategyLastSeen is the zero value, so an unset strategy yields the
// last-seen arbitrator.
func New(lookup DiscoveryLookup, domain, interfaceName string, qos discovery.DiscoveryQos) (Arbitrator, error) {
	switch qos.ArbitrationStrategy {
	case discovery.StrategyFixedParticipant:
		return NewFixedParticipant(lookup, domain, interfaceName, qos), nil
	case discovery.StrategyHighestPriority:
		return NewHighestPriority(lookup, domain, interfaceName, qos), nil
	case discovery.StrategyKeyword:
		return NewKeyword(lookup, domain, interfaceName, qos)
	default:
		return NewLastSeen(lookup, domain, interfaceName, qos), nil
	}
}
