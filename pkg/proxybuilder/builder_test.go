package proxybuilder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	externalidentity "github.com/gezibash/arc-node/pkg/identity"
	"github.com/gezibash/arc-node/internal/router"
	"github.com/gezibash/arc-node/pkg/arbitration"
	"github.com/gezibash/arc-node/pkg/discovery"
	"github.com/gezibash/arc-node/pkg/runtime"
)

type fakeSigner struct{}

func (fakeSigner) PublicKey() externalidentity.PublicKey {
	return externalidentity.PublicKey{Algo: externalidentity.AlgEd25519, Bytes: make([]byte, 32)}
}
func (fakeSigner) Sign(payload []byte) (externalidentity.Signature, error) {
	return externalidentity.Signature{Algo: externalidentity.AlgEd25519, Bytes: payload}, nil
}
func (fakeSigner) Algorithm() externalidentity.Algorithm { return externalidentity.AlgEd25519 }

func newTestRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt, err := runtime.New("proxybuilder-test").Signer(fakeSigner{}).Build()
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

type fakeProxy struct {
	participantID string
	boundEntry    discovery.DiscoveryEntryWithMetaInfo
}

func (p *fakeProxy) InterfaceName() string { return "test.Interface" }
func (p *fakeProxy) MajorVersion() uint32  { return 1 }
func (p *fakeProxy) MinorVersion() uint32  { return 0 }
func (p *fakeProxy) HandleArbitrationFinished(entry discovery.DiscoveryEntryWithMetaInfo) {
	p.boundEntry = entry
}
func (p *fakeProxy) ProxyParticipantID() string { return p.participantID }

func newConfig(t *testing.T, lookup arbitration.DiscoveryLookup, rt *runtime.Runtime, rtr *router.Router) Config[*fakeProxy] {
	t.Helper()
	n := 0
	return Config[*fakeProxy]{
		Domain:        "d",
		InterfaceName: "test.Interface",
		Version:       discovery.Version{Major: 1, Minor: 0},
		Runtime:       rt,
		DiscoveryProxy: lookup,
		ArbitratorFactory: func(domain, interfaceName string, version discovery.Version, discoveryProxy arbitration.DiscoveryLookup, qos discovery.DiscoveryQos) (arbitration.Arbitrator, error) {
			return arbitration.NewLastSeen(discoveryProxy, domain, interfaceName, qos), nil
		},
		ProxyFactory: func(_ *runtime.Runtime, _ string, _ discovery.MessagingQos) (*fakeProxy, error) {
			n++
			return &fakeProxy{participantID: fmt.Sprintf("proxy-%d", n)}, nil
		},
		Router:            rtr,
		DispatcherAddress: "in-process://test",
	}
}

type singleBatchLookup struct {
	entries []discovery.DiscoveryEntry
}

func (s singleBatchLookup) LookupByInterface(_ context.Context, _, _ string, _ discovery.DiscoveryQos) ([]discovery.DiscoveryEntry, discovery.Status) {
	return s.entries, discovery.OK()
}

func TestBuilder_BuildSucceeds(t *testing.T) {
	rt := newTestRuntime(t)
	rtr := router.New()
	lookup := singleBatchLookup{entries: []discovery.DiscoveryEntry{
		{ParticipantID: "provider-1", LastSeenMs: 10},
	}}

	cfg := newConfig(t, lookup, rt, rtr)
	cfg.ProxyFactory = func(_ *runtime.Runtime, _ string, _ discovery.MessagingQos) (*fakeProxy, error) {
		return &fakeProxy{participantID: "proxy-1"}, nil
	}
	b := NewBuilder(cfg)
	b.SetDiscoveryQos(discovery.DiscoveryQos{DiscoveryTimeoutMs: 1000, RetryIntervalMs: 10})

	proxy, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proxy.boundEntry.ParticipantID != "provider-1" {
		t.Fatalf("expected proxy bound to provider-1, got %+v", proxy.boundEntry)
	}
	if b.State() != StateSucceeded {
		t.Fatalf("expected Succeeded, got %v", b.State())
	}

	if !rtr.IsKnown("provider-1") {
		t.Fatal("expected provider participant id to be marked known")
	}
	hop, ok := rtr.NextHop("proxy-1")
	if !ok {
		t.Fatal("expected a next hop to be recorded for the proxy")
	}
	if hop.Address != "in-process://test" {
		t.Fatalf("unexpected hop address: %+v", hop)
	}
}

func TestBuilder_BuildFailsOnArbitrationTimeout(t *testing.T) {
	rt := newTestRuntime(t)
	rtr := router.New()
	lookup := singleBatchLookup{entries: nil}

	cfg := newConfig(t, lookup, rt, rtr)
	b := NewBuilder(cfg)
	b.SetDiscoveryQos(discovery.DiscoveryQos{DiscoveryTimeoutMs: 50, RetryIntervalMs: 10})

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected build to fail when no candidates are ever returned")
	}
	if b.State() != StateFailed {
		t.Fatalf("expected Failed, got %v", b.State())
	}
}

func TestBuilder_StopCancelsInFlightArbitration(t *testing.T) {
	rt := newTestRuntime(t)
	rtr := router.New()
	lookup := singleBatchLookup{entries: nil}

	cfg := newConfig(t, lookup, rt, rtr)
	b := NewBuilder(cfg)
	b.SetDiscoveryQos(discovery.DiscoveryQos{DiscoveryTimeoutMs: 5000, RetryIntervalMs: 10})

	errCh := make(chan error, 1)
	b.BuildAsync(func(p *fakeProxy) {}, func(err error) { errCh <- err })

	time.Sleep(30 * time.Millisecond)
	b.Stop()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected a stop error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stop to resolve the build")
	}
	if b.State() != StateShuttingDown {
		t.Fatalf("expected ShuttingDown, got %v", b.State())
	}
}

func TestBuilder_BuildAfterRuntimeClosed(t *testing.T) {
	rt := newTestRuntime(t)
	rtr := router.New()
	lookup := singleBatchLookup{entries: []discovery.DiscoveryEntry{{ParticipantID: "p1"}}}

	cfg := newConfig(t, lookup, rt, rtr)
	b := NewBuilder(cfg)

	_ = rt.Close()

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected build to fail after runtime close")
	}
	var de *DiscoveryException
	if !errors.As(err, &de) || de.Message != ErrRuntimeAlreadyDestroyed {
		t.Fatalf("expected runtimeAlreadyDestroyed error, got %v", err)
	}
}
