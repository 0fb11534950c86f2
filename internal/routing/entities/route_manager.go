package entities

import (
	"net"
)

// NetworkStack is the narrow view of the operating system routing facilities.
// Implementations translate ForwardEntry values to the platform row format;
// callers never see raw platform memory.
type NetworkStack interface {
	// Routing table rows
	CreateForwardEntry(entry ForwardEntry) error
	DeleteForwardEntry(entry ForwardEntry) error
	ListForwardEntries() ([]ForwardEntry, error)

	// BestInterface returns the outbound interface index the OS picks for destination
	BestInterface(destination net.IP) (uint32, error)

	// Per-interface IPv4 properties
	InterfaceForwarding(ifIndex uint32) (bool, error)
	SetInterfaceForwarding(ifIndex uint32, enabled bool) error
	InterfaceMetric(ifIndex uint32) (uint32, error)

	// Resource management
	Close() error
}

// HostForwardingStore reads and writes the persisted host-wide forwarding flag.
// A change only takes effect after a reboot.
type HostForwardingStore interface {
	HostForwardingEnabled() (bool, error)
	SetHostForwarding(enabled bool) error
}
