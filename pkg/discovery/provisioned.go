package discovery

// ProvisionedEntries is a read-only mapping from participantId to
// DiscoveryEntry, seeded once at aggregator construction. Entries in
// here are never forwarded to the remote discovery proxy, never merged
// with user adds, and never mutated afterward, so user registrations
// cannot shadow the well-known system services (discovery, routing)
// they describe.
type ProvisionedEntries map[string]DiscoveryEntry

// Seed describes a single well-known system service to provision at
// aggregator construction, e.g. the discovery or routing provider's own
// participant id.
type Seed struct {
	ParticipantID string
	Domain        string
	InterfaceName string
	Version       Version
	ProviderQos   ProviderQos
}

// NewProvisionedEntries builds a read-only provisioned-entry map from a
// list of seeds. Each entry is marked LastSeenMs/ExpiryMs = -1 (never
// seen, never expires) and carries no connections until the caller
// requesting it is known to be local, at which point Aggregator prepends
// in-process on the fly.
func NewProvisionedEntries(seeds ...Seed) ProvisionedEntries {
	out := make(ProvisionedEntries, len(seeds))
	for _, s := range seeds {
		out[s.ParticipantID] = DiscoveryEntry{
			Version:       s.Version,
			Domain:        s.Domain,
			InterfaceName: s.InterfaceName,
			ParticipantID: s.ParticipantID,
			ProviderQos:   s.ProviderQos,
			LastSeenMs:    -1,
			ExpiryMs:      -1,
		}
	}
	return out
}
