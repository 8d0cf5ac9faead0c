// Package proxybuilder implements asynchronous, cancellable construction
// of a typed proxy bound to an arbitrated provider: arbitration →
// proxy creation → router registration.
package proxybuilder

import (
	"github.com/gezibash/arc-node/pkg/discovery"
	"github.com/gezibash/arc-node/pkg/runtime"
)

// Proxy is the capability every generated proxy type must expose to the
// builder: its interface identity and version, plus the two callbacks
// the builder drives during construction.
type Proxy interface {
	InterfaceName() string
	MajorVersion() uint32
	MinorVersion() uint32

	// HandleArbitrationFinished installs the arbitrated provider into the
	// proxy, binding subsequent invocations to it.
	HandleArbitrationFinished(entry discovery.DiscoveryEntryWithMetaInfo)

	// ProxyParticipantID returns the proxy's own participant id, the one
	// registered with the message router as a next hop.
	ProxyParticipantID() string
}

// Factory creates a proxy instance of type T bound to runtime rt, without
// performing any I/O: it must not block or contact the network, it only
// prepares T to route through rt once HandleArbitrationFinished is
// called.
type Factory[T Proxy] func(rt *runtime.Runtime, domain string, qos discovery.MessagingQos) (T, error)
