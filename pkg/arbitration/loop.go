package arbitration

import (
	"context"
	"fmt"
	"time"

	"github.com/gezibash/arc-node/pkg/discovery"
)

const (
	defaultDiscoveryTimeoutMs = 30000
	defaultRetryIntervalMs    = 1000
)

// run fires an immediate lookup attempt, then retries every
// RetryIntervalMs until selectFn finds a candidate, the context is
// cancelled (StopArbitration), or DiscoveryTimeoutMs elapses.
func (b *base) run(ctx context.Context, onEntry func(discovery.DiscoveryEntryWithMetaInfo), onError func(error)) {
	qos := b.qos.ApplyDefaults(defaultDiscoveryTimeoutMs, defaultRetryIntervalMs)

	timeout := time.Duration(qos.DiscoveryTimeoutMs) * time.Millisecond
	interval := time.Duration(qos.RetryIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempt := func() (discovery.DiscoveryEntry, bool, error) {
		entries, status := b.lookup.LookupByInterface(ctx, b.domain, b.interfaceName, qos)
		if status.Code != discovery.StatusOK {
			return discovery.DiscoveryEntry{}, false, fmt.Errorf("arbitration: lookup failed: %v", status.Description)
		}
		entry, ok := b.selectFn(entries)
		return entry, ok, nil
	}

	// A failed or empty first attempt does not abort arbitration; the
	// discovery proxy may be transiently unavailable, so retries continue
	// below until the deadline.
	if entry, ok, err := attempt(); err == nil && ok {
		onEntry(withMetaInfo(entry))
		return
	}

	for {
		select {
		case <-ctx.Done():
			onError(ErrArbitrationStopped)
			return
		case <-deadline.C:
			onError(ErrArbitrationTimedOut)
			return
		case <-ticker.C:
			entry, ok, err := attempt()
			if err != nil {
				continue
			}
			if ok {
				onEntry(withMetaInfo(entry))
				return
			}
		}
	}
}

// withMetaInfo sets IsLocal from the in-process annotation the discovery
// aggregator already applies to each entry it returns: an entry is local
// exactly when its first connection is in-process.
func withMetaInfo(entry discovery.DiscoveryEntry) discovery.DiscoveryEntryWithMetaInfo {
	isLocal := len(entry.Connections) > 0 && entry.Connections[0] == discovery.ConnectionInProcess
	return discovery.DiscoveryEntryWithMetaInfo{DiscoveryEntry: entry, IsLocal: isLocal}
}
