package discovery

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/gezibash/arc-node/internal/discoverystore/physical"
	"github.com/gezibash/arc-node/internal/observability"
	"github.com/gezibash/arc-node/pkg/logging"
)

// Aggregator implements Proxy as a caching/fan-in front end: provisioned
// entries are served locally without contacting remote, other lookups
// are forwarded and annotated with in-process connectivity, and
// domain/interface lookups may be served from a pluggable cache backend
// within DiscoveryQos.CacheMaxAgeMs.
type Aggregator struct {
	provisioned ProvisionedEntries
	callerDir   RequestCallerDirectory
	cache       physical.Backend // nil disables caching
	log         *logging.Logger
	nowMs       func() int64
	metrics     *observability.Metrics // nil disables cache meters

	mu         sync.RWMutex
	remote     Proxy
	ownsRemote bool

	keyIndexMu sync.Mutex
	keyIndex   map[string]string // participantId -> cache key, best-effort invalidation aid
}

// NewAggregator creates an aggregator. remote may be nil, in which case
// SetDiscoveryProxy must be called before Add/LookupByInterface/Remove
// will succeed (LookupByParticipant still serves provisioned entries).
// cache may be nil to disable caching entirely.
func NewAggregator(remote Proxy, provisioned ProvisionedEntries, callerDir RequestCallerDirectory, cache physical.Backend, log *logging.Logger, nowMs func() int64) *Aggregator {
	if provisioned == nil {
		provisioned = ProvisionedEntries{}
	}
	if log == nil {
		log = logging.New(nil)
	}
	return &Aggregator{
		provisioned: provisioned,
		callerDir:   callerDir,
		cache:       cache,
		log:         log,
		nowMs:       nowMs,
		remote:      remote,
		keyIndex:    make(map[string]string),
	}
}

// SetDiscoveryProxy installs the remote discovery proxy. The aggregator
// takes ownership: Close will call remote.(io.Closer) if it implements
// one. Calling this when a proxy was already supplied via construction
// does not transfer ownership of the original.
func (a *Aggregator) SetDiscoveryProxy(remote Proxy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remote = remote
	a.ownsRemote = true
}

// SetMetrics installs the meters cache hits and misses are counted on.
// Optional; install before first use.
func (a *Aggregator) SetMetrics(m *observability.Metrics) {
	a.metrics = m
}

// OwnsDiscoveryProxy reports whether the aggregator installed (and
// therefore owns) its remote proxy, as opposed to receiving it at
// construction time.
func (a *Aggregator) OwnsDiscoveryProxy() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ownsRemote
}

func (a *Aggregator) getRemote() Proxy {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.remote
}

// Add forwards entry to the remote discovery proxy verbatim. Fails with
// ErrDiscoveryProxyNotSet if no remote proxy has been installed.
func (a *Aggregator) Add(ctx context.Context, entry DiscoveryEntry) Status {
	remote := a.getRemote()
	if remote == nil {
		return Err(ErrDiscoveryProxyNotSet)
	}
	status := remote.Add(ctx, entry)
	if status.Code == StatusOK {
		a.invalidate(ctx, entry.Domain, entry.InterfaceName, entry.ParticipantID)
	}
	return status
}

// LookupByInterface returns entries for domain/interfaceName, consulting
// the cache backend first when qos.CacheMaxAgeMs > 0. Every returned
// entry is annotated with in-process connectivity based on the current
// request-caller directory state, whether served from cache or remote.
func (a *Aggregator) LookupByInterface(ctx context.Context, domain, interfaceName string, qos DiscoveryQos) ([]DiscoveryEntry, Status) {
	remote := a.getRemote()
	if remote == nil {
		return nil, Err(ErrDiscoveryProxyNotSet)
	}

	key := cacheKey(domain, interfaceName)

	if qos.CacheMaxAgeMs > 0 && a.cache != nil {
		if entries, ok := a.tryCache(ctx, key, qos.CacheMaxAgeMs); ok {
			a.countCache("hit")
			return a.annotateAll(entries), OK()
		}
		a.countCache("miss")
	}

	entries, status := remote.LookupByInterface(ctx, domain, interfaceName, qos)
	if status.Code != StatusOK {
		return nil, status
	}

	if a.cache != nil {
		a.storeCache(ctx, key, entries)
		for _, e := range entries {
			a.indexParticipant(e.ParticipantID, key)
		}
	}

	return a.annotateAll(entries), OK()
}

// LookupByParticipant returns the entry for participantID. Provisioned
// entries short-circuit before the cache or remote proxy are ever
// consulted.
func (a *Aggregator) LookupByParticipant(ctx context.Context, participantID string) (DiscoveryEntry, Status) {
	if entry, ok := a.provisioned[participantID]; ok {
		return a.annotate(entry), OK()
	}

	remote := a.getRemote()
	if remote == nil {
		return DiscoveryEntry{}, Err(ErrDiscoveryProxyNotSet)
	}

	entry, status := remote.LookupByParticipant(ctx, participantID)
	if status.Code != StatusOK {
		return DiscoveryEntry{}, status
	}
	return a.annotate(entry), OK()
}

// Remove forwards to the remote discovery proxy. Provisioned entries are
// never removable: a request to remove a provisioned participant id is a
// silent no-op reported as OK, matching "provisioned entries are never
// mutated after construction".
func (a *Aggregator) Remove(ctx context.Context, participantID string) Status {
	if _, ok := a.provisioned[participantID]; ok {
		return OK()
	}

	remote := a.getRemote()
	if remote == nil {
		return Err(ErrDiscoveryProxyNotSet)
	}

	status := remote.Remove(ctx, participantID)
	if status.Code == StatusOK {
		a.invalidateByParticipant(ctx, participantID)
	}
	return status
}

// Close releases the cache backend and, if the aggregator owns the
// remote proxy, closes it too.
func (a *Aggregator) Close() error {
	var errs []error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.mu.RLock()
	remote, owns := a.remote, a.ownsRemote
	a.mu.RUnlock()
	if owns {
		if closer, ok := remote.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("discovery aggregator close: %v", errs)
	}
	return nil
}

func (a *Aggregator) countCache(result string) {
	if a.metrics != nil {
		a.metrics.CacheTotal.WithLabelValues(result).Inc()
	}
}

func (a *Aggregator) annotate(e DiscoveryEntry) DiscoveryEntry {
	if a.callerDir != nil && a.callerDir.ContainsRequestCaller(e.ParticipantID) {
		return e.WithConnection(ConnectionInProcess)
	}
	return e
}

func (a *Aggregator) annotateAll(entries []DiscoveryEntry) []DiscoveryEntry {
	out := make([]DiscoveryEntry, len(entries))
	for i, e := range entries {
		out[i] = a.annotate(e)
	}
	return out
}

func cacheKey(domain, interfaceName string) string {
	return domain + "\x00" + interfaceName
}

func (a *Aggregator) tryCache(ctx context.Context, key string, maxAgeMs int64) ([]DiscoveryEntry, bool) {
	cached, err := a.cache.Get(ctx, key)
	if err != nil {
		if err != physical.ErrNotFound {
			a.log.Debug("discovery cache get failed, falling back to remote", "key", key, "error", err.Error())
		}
		return nil, false
	}
	if a.nowMs()-cached.CachedAtMs > maxAgeMs {
		return nil, false
	}

	entries := make([]DiscoveryEntry, 0, len(cached.Entries))
	for _, raw := range cached.Entries {
		var e DiscoveryEntry
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
			a.log.Debug("discovery cache decode failed, falling back to remote", "key", key, "error", err.Error())
			return nil, false
		}
		entries = append(entries, e)
	}
	return entries, true
}

func (a *Aggregator) storeCache(ctx context.Context, key string, entries []DiscoveryEntry) {
	raw := make([][]byte, 0, len(entries))
	for _, e := range entries {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(e); err != nil {
			a.log.Debug("discovery cache encode failed, skipping store", "key", key, "error", err.Error())
			return
		}
		raw = append(raw, buf.Bytes())
	}

	err := a.cache.Put(ctx, &physical.Entry{
		Key:        key,
		Entries:    raw,
		CachedAtMs: a.nowMs(),
	})
	if err != nil {
		a.log.Debug("discovery cache put failed", "key", key, "error", err.Error())
	}
}

func (a *Aggregator) indexParticipant(participantID, key string) {
	if participantID == "" {
		return
	}
	a.keyIndexMu.Lock()
	a.keyIndex[participantID] = key
	a.keyIndexMu.Unlock()
}

func (a *Aggregator) invalidate(ctx context.Context, domain, interfaceName, participantID string) {
	if a.cache == nil {
		return
	}
	key := cacheKey(domain, interfaceName)
	if err := a.cache.Invalidate(ctx, key); err != nil {
		a.log.Debug("discovery cache invalidate failed", "key", key, "error", err.Error())
	}
	a.indexParticipant(participantID, key)
}

func (a *Aggregator) invalidateByParticipant(ctx context.Context, participantID string) {
	if a.cache == nil {
		return
	}
	a.keyIndexMu.Lock()
	key, ok := a.keyIndex[participantID]
	delete(a.keyIndex, participantID)
	a.keyIndexMu.Unlock()
	if !ok {
		return
	}
	if err := a.cache.Invalidate(ctx, key); err != nil {
		a.log.Debug("discovery cache invalidate failed", "key", key, "error", err.Error())
	}
}
