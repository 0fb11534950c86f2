package entities

import (
	"net"

	"github.com/cespare/xxhash/v2"
)

// NetworkSet is a custom set implementation for destination/mask pairs using hash-based map
type NetworkSet struct {
	entries map[uint64]ForwardEntry // maps network hash to the first entry seen
}

// NewNetworkSet creates a new NetworkSet
func NewNetworkSet() *NetworkSet {
	return &NetworkSet{
		entries: make(map[uint64]ForwardEntry),
	}
}

// NewNetworkSetFromEntries builds a set from a routing table listing
func NewNetworkSetFromEntries(entries []ForwardEntry) *NetworkSet {
	set := NewNetworkSet()
	for _, e := range entries {
		set.Add(e)
	}
	return set
}

// Add adds an entry to the set, returns false when its network was already present
func (rs *NetworkSet) Add(entry ForwardEntry) bool {
	hash := hashNetwork(entry.Destination, entry.Mask)

	if _, exists := rs.entries[hash]; exists {
		return false
	}

	rs.entries[hash] = entry
	return true
}

// Lookup returns the stored entry for destination/mask
func (rs *NetworkSet) Lookup(destination, mask net.IP) (ForwardEntry, bool) {
	e, ok := rs.entries[hashNetwork(destination, mask)]
	return e, ok
}

// Size returns the number of networks in the set
func (rs *NetworkSet) Size() int {
	return len(rs.entries)
}

// hashNetwork hashes the 4-byte destination followed by the 4-byte mask
func hashNetwork(destination, mask net.IP) uint64 {
	h := xxhash.New()

	if ip4 := destination.To4(); ip4 != nil {
		_, _ = h.Write(ip4)
	} else {
		_, _ = h.Write(destination.To16())
	}

	if m4 := mask.To4(); m4 != nil {
		_, _ = h.Write(m4)
	} else {
		_, _ = h.Write(mask.To16())
	}

	return h.Sum64()
}
