// Package multicast implements the subscription-fanout registry used by
// the message router to deliver publications to the receivers registered
// for a multicast id.
package multicast

import "sync"

// Directory is a thread-safe set-valued map from multicast id to the set
// of receiver ids registered for it. Register, Unregister, Contains,
// ContainsReceiver and Count run in expected constant time; GetReceivers
// copies the set and is linear in its size.
//
// The directory never invokes caller-supplied code while holding its
// lock: GetReceivers returns a defensive copy taken under the lock and
// released before the caller iterates it. This gives dispatch callbacks
// the freedom to re-enter Register/Unregister without requiring a
// reentrant mutex, which the standard library does not provide.
type Directory struct {
	mu        sync.Mutex
	receivers map[string]map[string]struct{}
}

// NewDirectory creates an empty multicast receiver directory.
func NewDirectory() *Directory {
	return &Directory{
		receivers: make(map[string]map[string]struct{}),
	}
}

// Register adds receiverId to the set registered for multicastId.
// Idempotent: registering twice has the same effect as once.
func (d *Directory) Register(multicastID, receiverID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.receivers[multicastID]
	if !ok {
		set = make(map[string]struct{})
		d.receivers[multicastID] = set
	}
	set[receiverID] = struct{}{}
}

// Unregister removes receiverId from the set registered for multicastId.
// Returns true if membership actually changed. If the set becomes empty,
// the key is dropped entirely.
func (d *Directory) Unregister(multicastID, receiverID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.receivers[multicastID]
	if !ok {
		return false
	}
	if _, present := set[receiverID]; !present {
		return false
	}
	delete(set, receiverID)
	if len(set) == 0 {
		delete(d.receivers, multicastID)
	}
	return true
}

// GetReceivers returns a snapshot of the receiver set for multicastId, or
// the empty set if the key is absent.
func (d *Directory) GetReceivers(multicastID string) map[string]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.receivers[multicastID]
	if !ok {
		return map[string]struct{}{}
	}
	snapshot := make(map[string]struct{}, len(set))
	for id := range set {
		snapshot[id] = struct{}{}
	}
	return snapshot
}

// Contains reports whether multicastId has at least one receiver.
func (d *Directory) Contains(multicastID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.receivers[multicastID]
	return ok && len(set) > 0
}

// ContainsReceiver reports whether receiverId is registered for multicastId.
func (d *Directory) ContainsReceiver(multicastID, receiverID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.receivers[multicastID]
	if !ok {
		return false
	}
	_, present := set[receiverID]
	return present
}

// Count returns the number of multicast ids with at least one receiver.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.receivers)
}
