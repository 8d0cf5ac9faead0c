package arbitration

import (
	"fmt"

	"github.com/gezibash/arc-node/pkg/discovery"
)

// NewFixedParticipant returns an Arbitrator that waits for the candidate
// list to contain a specific participant id, ignoring every other
// candidate. Driven by DiscoveryQos.CustomParams["fixedParticipantId"].
func NewFixedParticipant(lookup DiscoveryLookup, domain, interfaceName string, qos discovery.DiscoveryQos) Arbitrator {
	want := qos.CustomParams["fixedParticipantId"]
	return newBase(lookup, domain, interfaceName, qos, func(candidates []discovery.DiscoveryEntry) (discovery.DiscoveryEntry, bool) {
		for _, c := range candidates {
			if c.ParticipantID == want {
				return c, true
			}
		}
		return discovery.DiscoveryEntry{}, false
	})
}

// NewHighestPriority returns an Arbitrator that picks the candidate with
// the greatest ProviderQos.Priority, breaking ties toward the greater
// LastSeenMs (the more recently registered provider).
func NewHighestPriority(lookup DiscoveryLookup, domain, interfaceName string, qos discovery.DiscoveryQos) Arbitrator {
	return newBase(lookup, domain, interfaceName, qos, func(candidates []discovery.DiscoveryEntry) (discovery.DiscoveryEntry, bool) {
		if len(candidates) == 0 {
			return discovery.DiscoveryEntry{}, false
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.ProviderQos.Priority > best.ProviderQos.Priority {
				best = c
				continue
			}
			if c.ProviderQos.Priority == best.ProviderQos.Priority && c.LastSeenMs > best.LastSeenMs {
				best = c
			}
		}
		return best, true
	})
}

// NewLastSeen returns an Arbitrator that picks the candidate with the
// greatest LastSeenMs. This is the implicit default strategy when a
// proxy builder configures no ArbitrationStrategy.
func NewLastSeen(lookup DiscoveryLookup, domain, interfaceName string, qos discovery.DiscoveryQos) Arbitrator {
	return newBase(lookup, domain, interfaceName, qos, func(candidates []discovery.DiscoveryEntry) (discovery.DiscoveryEntry, bool) {
		if len(candidates) == 0 {
			return discovery.DiscoveryEntry{}, false
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.LastSeenMs > best.LastSeenMs {
				best = c
			}
		}
		return best, true
	})
}

// NewKeyword returns an Arbitrator that picks the first candidate whose
// providerQos and connections satisfy a CEL expression taken from
// DiscoveryQos.CustomParams["expression"]. An expression that fails to
// compile is returned as an error here and no Arbitrator is created.
func NewKeyword(lookup DiscoveryLookup, domain, interfaceName string, qos discovery.DiscoveryQos) (Arbitrator, error) {
	expr := qos.CustomParams["expression"]
	filter, err := compileKeywordFilter(expr)
	if err != nil {
		return nil, fmt.Errorf("arbitration: keyword: %w", err)
	}

	return newBase(lookup, domain, interfaceName, qos, func(candidates []discovery.DiscoveryEntry) (discovery.DiscoveryEntry, bool) {
		for _, c := range candidates {
			if filter.Match(keywordAttrs(c)) {
				return c, true
			}
		}
		return discovery.DiscoveryEntry{}, false
	}), nil
}

func keywordAttrs(e discovery.DiscoveryEntry) map[string]any {
	connections := make([]string, len(e.Connections))
	for i, c := range e.Connections {
		connections[i] = string(c)
	}
	return map[string]any{
		"priority":    e.ProviderQos.Priority,
		"scope":       e.ProviderQos.Scope.String(),
		"onChange":    e.ProviderQos.SupportsOnChangeSubscriptions,
		"connections": connections,
		"participant": e.ParticipantID,
	}
}
