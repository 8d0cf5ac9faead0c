package discovery

import "context"

// Proxy is the discovery interface served by the remote discovery
// service and consumed by Aggregator. A production deployment backs this
// with a network client; nothing here depends on more than the
// interface.
type Proxy interface {
	// Add registers entry with the discovery service. Forwarded verbatim
	// by Aggregator.
	Add(ctx context.Context, entry DiscoveryEntry) Status

	// LookupByInterface returns all entries matching domain/interfaceName
	// subject to qos.
	LookupByInterface(ctx context.Context, domain, interfaceName string, qos DiscoveryQos) ([]DiscoveryEntry, Status)

	// LookupByParticipant returns the entry for participantId, if any.
	LookupByParticipant(ctx context.Context, participantID string) (DiscoveryEntry, Status)

	// Remove unregisters participantId.
	Remove(ctx context.Context, participantID string) Status
}

// RequestCallerDirectory reports whether a participant id has a live
// request caller registered in this process, i.e. whether messages to it
// can bypass the network entirely.
type RequestCallerDirectory interface {
	ContainsRequestCaller(participantID string) bool
}
