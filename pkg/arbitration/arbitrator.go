// Package arbitration selects a single provider from the candidates a
// discovery lookup returns. Strategies retry against the discovery proxy
// on a fixed interval until one succeeds or the overall timeout elapses.
package arbitration

import (
	"context"
	"errors"

	"github.com/gezibash/arc-node/pkg/discovery"
)

// ErrArbitrationTimedOut is returned to onError when no strategy-specific
// candidate was found before DiscoveryQos.DiscoveryTimeoutMs elapsed.
var ErrArbitrationTimedOut = errors.New("arbitration: no provider found before timeout")

// ErrArbitrationStopped is returned to onError (if it has not already
// fired) when StopArbitration is called before a candidate is found.
var ErrArbitrationStopped = errors.New("arbitration: stopped")

// DiscoveryLookup is the subset of discovery.Proxy an Arbitrator needs.
// Satisfied by *discovery.Aggregator.
type DiscoveryLookup interface {
	LookupByInterface(ctx context.Context, domain, interfaceName string, qos discovery.DiscoveryQos) ([]discovery.DiscoveryEntry, discovery.Status)
}

// Arbitrator picks one provider among the candidates registered for a
// domain/interface pair. Implementations must guarantee at most one of
// onEntry/onError fires, exactly once, even if StopArbitration races with
// an in-flight retry.
type Arbitrator interface {
	// StartArbitration begins the retry loop. onEntry fires with the
	// chosen candidate on success; onError fires with
	// ErrArbitrationTimedOut, ErrArbitrationStopped, or a wrapped
	// discovery error otherwise. Both callbacks run on a goroutine owned
	// by the Arbitrator, never synchronously from StartArbitration.
	StartArbitration(onEntry func(discovery.DiscoveryEntryWithMetaInfo), onError func(error))

	// StopArbitration cancels any in-flight retry loop. Safe to call
	// concurrently with StartArbitration's callbacks and safe to call
	// more than once.
	StopArbitration()
}

// Select narrows candidates to a single entry, or reports false if none
// qualify under the strategy's criteria. Select must not block or retry;
// retrying is the job of the loop in run.
type Select func(candidates []discovery.DiscoveryEntry) (discovery.DiscoveryEntry, bool)

// base implements the shared retry-until-timeout loop every strategy in
// this package runs, varying only in how a batch of candidates is
// narrowed to one (the Select function).
type base struct {
	lookup        DiscoveryLookup
	domain        string
	interfaceName string
	qos           discovery.DiscoveryQos
	selectFn      Select

	cancel context.CancelFunc
}

func newBase(lookup DiscoveryLookup, domain, interfaceName string, qos discovery.DiscoveryQos, selectFn Select) *base {
	return &base{
		lookup:        lookup,
		domain:        domain,
		interfaceName: interfaceName,
		qos:           qos,
		selectFn:      selectFn,
	}
}

func (b *base) StartArbitration(onEntry func(discovery.DiscoveryEntryWithMetaInfo), onError func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.run(ctx, onEntry, onError)
}

func (b *base) StopArbitration() {
	if b.cancel != nil {
		b.cancel()
	}
}
