package discovery

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gezibash/arc-node/internal/discoverystore/physical/memory"
	"github.com/gezibash/arc-node/internal/observability"
)

type fakeCallerDirectory struct {
	local map[string]bool
}

func (f fakeCallerDirectory) ContainsRequestCaller(participantID string) bool {
	return f.local[participantID]
}

type countingProxy struct {
	*Registry
	lookupsByInterface atomic.Int64
}

func (c *countingProxy) LookupByInterface(ctx context.Context, domain, interfaceName string, qos DiscoveryQos) ([]DiscoveryEntry, Status) {
	c.lookupsByInterface.Add(1)
	return c.Registry.LookupByInterface(ctx, domain, interfaceName, qos)
}

func newCountingProxy() *countingProxy {
	return &countingProxy{Registry: NewRegistry()}
}

var fixedClock int64 = 1000

func fixedNow() int64 { return fixedClock }

func TestAggregator_ProvisionedShortCircuits(t *testing.T) {
	seed := Seed{ParticipantID: "cc.discovery", Domain: "system", InterfaceName: "Discovery"}
	provisioned := NewProvisionedEntries(seed)

	// remote is nil on purpose: provisioned lookups must never touch it.
	agg := NewAggregator(nil, provisioned, nil, nil, nil, fixedNow)

	entry, status := agg.LookupByParticipant(context.Background(), "cc.discovery")
	if status.Code != StatusOK {
		t.Fatalf("expected OK status, got %+v", status)
	}
	if entry.ParticipantID != "cc.discovery" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestAggregator_InProcessAnnotation(t *testing.T) {
	remote := NewRegistry()
	remote.Add(context.Background(), DiscoveryEntry{
		Domain: "d", InterfaceName: "I", ParticipantID: "p1",
	})

	callerDir := fakeCallerDirectory{local: map[string]bool{"p1": true}}
	agg := NewAggregator(remote, nil, callerDir, nil, nil, fixedNow)

	entries, status := agg.LookupByInterface(context.Background(), "d", "I", DiscoveryQos{})
	if status.Code != StatusOK {
		t.Fatalf("expected OK, got %+v", status)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if len(entries[0].Connections) == 0 || entries[0].Connections[0] != ConnectionInProcess {
		t.Fatalf("expected in-process to be first connection, got %+v", entries[0].Connections)
	}
}

func TestAggregator_NotInProcessNoAnnotation(t *testing.T) {
	remote := NewRegistry()
	remote.Add(context.Background(), DiscoveryEntry{Domain: "d", InterfaceName: "I", ParticipantID: "p1"})

	agg := NewAggregator(remote, nil, fakeCallerDirectory{}, nil, nil, fixedNow)

	entries, _ := agg.LookupByInterface(context.Background(), "d", "I", DiscoveryQos{})
	if len(entries[0].Connections) != 0 {
		t.Fatalf("expected no connections, got %+v", entries[0].Connections)
	}
}

func TestAggregator_AddThenLookup(t *testing.T) {
	remote := NewRegistry()
	agg := NewAggregator(remote, nil, nil, nil, nil, fixedNow)

	entries, _ := agg.LookupByInterface(context.Background(), "d", "I", DiscoveryQos{})
	if len(entries) != 0 {
		t.Fatalf("expected empty lookup before add")
	}

	entry := DiscoveryEntry{
		Version: Version{Major: 47, Minor: 11}, Domain: "d", InterfaceName: "I",
		ParticipantID: "pA", LastSeenMs: -1, ExpiryMs: -1,
	}
	status := agg.Add(context.Background(), entry)
	if status.Code != StatusOK {
		t.Fatalf("add failed: %+v", status)
	}

	entries, _ = agg.LookupByInterface(context.Background(), "d", "I", DiscoveryQos{})
	if len(entries) != 1 || entries[0].ParticipantID != "pA" {
		t.Fatalf("expected [pA], got %+v", entries)
	}
}

func TestAggregator_AddThenRemove(t *testing.T) {
	remote := NewRegistry()
	agg := NewAggregator(remote, nil, nil, nil, nil, fixedNow)

	entry := DiscoveryEntry{Domain: "d", InterfaceName: "I", ParticipantID: "pA"}
	agg.Add(context.Background(), entry)
	status := agg.Remove(context.Background(), "pA")
	if status.Code != StatusOK {
		t.Fatalf("remove failed: %+v", status)
	}

	entries, _ := agg.LookupByInterface(context.Background(), "d", "I", DiscoveryQos{})
	if len(entries) != 0 {
		t.Fatalf("expected empty after remove, got %+v", entries)
	}
}

func TestAggregator_RemoveProvisionedIsNoOp(t *testing.T) {
	provisioned := NewProvisionedEntries(Seed{ParticipantID: "cc.discovery"})
	agg := NewAggregator(nil, provisioned, nil, nil, nil, fixedNow)

	status := agg.Remove(context.Background(), "cc.discovery")
	if status.Code != StatusOK {
		t.Fatalf("expected OK (silent no-op), got %+v", status)
	}

	entry, lookupStatus := agg.LookupByParticipant(context.Background(), "cc.discovery")
	if lookupStatus.Code != StatusOK || entry.ParticipantID != "cc.discovery" {
		t.Fatalf("provisioned entry must survive a remove attempt")
	}
}

func TestAggregator_NoProxySet(t *testing.T) {
	agg := NewAggregator(nil, nil, nil, nil, nil, fixedNow)

	status := agg.Add(context.Background(), DiscoveryEntry{ParticipantID: "x"})
	if status.Code != StatusError || len(status.Description) == 0 || status.Description[0] != ErrDiscoveryProxyNotSet {
		t.Fatalf("expected discoveryProxyNotSet error, got %+v", status)
	}
}

func TestAggregator_CacheHitAvoidsRemoteCall(t *testing.T) {
	remote := newCountingProxy()
	remote.Add(context.Background(), DiscoveryEntry{Domain: "d", InterfaceName: "I", ParticipantID: "p1"})

	cache := memory.New()
	agg := NewAggregator(remote, nil, nil, cache, nil, fixedNow)

	qos := DiscoveryQos{CacheMaxAgeMs: 5000}
	agg.LookupByInterface(context.Background(), "d", "I", qos)
	agg.LookupByInterface(context.Background(), "d", "I", qos)

	if got := remote.lookupsByInterface.Load(); got != 1 {
		t.Fatalf("expected 1 remote lookup (second served from cache), got %d", got)
	}
}

func TestAggregator_CacheExpiryFallsThrough(t *testing.T) {
	remote := newCountingProxy()
	remote.Add(context.Background(), DiscoveryEntry{Domain: "d", InterfaceName: "I", ParticipantID: "p1"})

	cache := memory.New()
	clock := int64(1000)
	agg := NewAggregator(remote, nil, nil, cache, nil, func() int64 { return clock })

	qos := DiscoveryQos{CacheMaxAgeMs: 100}
	agg.LookupByInterface(context.Background(), "d", "I", qos)
	clock += 200 // past cacheMaxAgeMs
	agg.LookupByInterface(context.Background(), "d", "I", qos)

	if got := remote.lookupsByInterface.Load(); got != 2 {
		t.Fatalf("expected 2 remote lookups after cache expiry, got %d", got)
	}
}

func TestAggregator_CacheMetrics(t *testing.T) {
	remote := newCountingProxy()
	remote.Add(context.Background(), DiscoveryEntry{Domain: "d", InterfaceName: "I", ParticipantID: "p1"})

	m := observability.NewMetrics()
	agg := NewAggregator(remote, nil, nil, memory.New(), nil, fixedNow)
	agg.SetMetrics(m)

	qos := DiscoveryQos{CacheMaxAgeMs: 5000}
	agg.LookupByInterface(context.Background(), "d", "I", qos)
	agg.LookupByInterface(context.Background(), "d", "I", qos)

	if got := testutil.ToFloat64(m.CacheTotal.WithLabelValues("miss")); got != 1 {
		t.Fatalf("expected 1 miss, got %f", got)
	}
	if got := testutil.ToFloat64(m.CacheTotal.WithLabelValues("hit")); got != 1 {
		t.Fatalf("expected 1 hit, got %f", got)
	}
}
