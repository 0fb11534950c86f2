package entities

import (
	"fmt"
	"net"

	"github.com/wesleywu/routefwd/internal/utils"
)

// MetricUnused marks a metric slot the caller does not care about
const MetricUnused = -1

// RouteType is the kind of next hop a forward entry points at
type RouteType uint32

// Route type constants, numbered like RFC 1354 ipRouteType
const (
	RouteTypeOther    RouteType = 1
	RouteTypeInvalid  RouteType = 2
	RouteTypeDirect   RouteType = 3
	RouteTypeIndirect RouteType = 4
)

// String returns a string representation of the route type
func (t RouteType) String() string {
	switch t {
	case RouteTypeOther:
		return "Other"
	case RouteTypeInvalid:
		return "Invalid"
	case RouteTypeDirect:
		return "Direct"
	case RouteTypeIndirect:
		return "Indirect"
	default:
		return fmt.Sprintf("Type(%d)", uint32(t))
	}
}

// RouteProtocol identifies which routing mechanism produced an entry
type RouteProtocol uint32

// Route protocol constants, numbered like RFC 1354 ipRouteProto
const (
	ProtocolOther         RouteProtocol = 1
	ProtocolLocal         RouteProtocol = 2
	ProtocolNetManagement RouteProtocol = 3
	ProtocolICMP          RouteProtocol = 4
	ProtocolEGP           RouteProtocol = 5
	ProtocolGGP           RouteProtocol = 6
	ProtocolHello         RouteProtocol = 7
	ProtocolRIP           RouteProtocol = 8
	ProtocolISIS          RouteProtocol = 9
	ProtocolESIS          RouteProtocol = 10
	ProtocolCisco         RouteProtocol = 11
	ProtocolBBN           RouteProtocol = 12
	ProtocolOSPF          RouteProtocol = 13
	ProtocolBGP           RouteProtocol = 14
	ProtocolAutoStatic    RouteProtocol = 10002
	ProtocolStatic        RouteProtocol = 10006
	ProtocolStaticNonDOD  RouteProtocol = 10007
)

var protocolNames = map[RouteProtocol]string{
	ProtocolOther:         "Other",
	ProtocolLocal:         "Local",
	ProtocolNetManagement: "NetManagement",
	ProtocolICMP:          "ICMP",
	ProtocolEGP:           "EGP",
	ProtocolGGP:           "GGP",
	ProtocolHello:         "Hello",
	ProtocolRIP:           "RIP",
	ProtocolISIS:          "IS-IS",
	ProtocolESIS:          "ES-IS",
	ProtocolCisco:         "Cisco",
	ProtocolBBN:           "BBN",
	ProtocolOSPF:          "OSPF",
	ProtocolBGP:           "BGP",
	ProtocolAutoStatic:    "AutoStatic",
	ProtocolStatic:        "Static",
	ProtocolStaticNonDOD:  "StaticNonDOD",
}

// String returns a string representation of the route protocol
func (p RouteProtocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Proto(%d)", uint32(p))
}

// ForwardEntry is one row of the IPv4 routing table
type ForwardEntry struct {
	Destination      net.IP
	Mask             net.IP
	NextHop          net.IP
	InterfaceIndex   uint32
	Type             RouteType
	Protocol         RouteProtocol
	Age              uint32
	NextHopAS        uint32
	Policy           uint32
	Metric           int32
	SecondaryMetrics [4]int32
}

// NewForwardEntry builds an entry the way this tool creates them:
// Direct, NetManagement, age 0, secondary metrics unused.
func NewForwardEntry(destination, mask, nextHop net.IP, ifIndex uint32, metric int) ForwardEntry {
	return ForwardEntry{
		Destination:      destination.To4(),
		Mask:             mask.To4(),
		NextHop:          nextHop.To4(),
		InterfaceIndex:   ifIndex,
		Type:             RouteTypeDirect,
		Protocol:         ProtocolNetManagement,
		Metric:           int32(metric),
		SecondaryMetrics: [4]int32{MetricUnused, MetricUnused, MetricUnused, MetricUnused},
	}
}

// Validate checks the addresses are IPv4 and the mask is a contiguous prefix
func (e ForwardEntry) Validate() error {
	if e.Destination.To4() == nil {
		return fmt.Errorf("destination %v is not IPv4", e.Destination)
	}
	if e.NextHop.To4() == nil {
		return fmt.Errorf("next hop %v is not IPv4", e.NextHop)
	}
	if !utils.IsValidMask(e.Mask) {
		return fmt.Errorf("mask %v is not a contiguous subnet mask", e.Mask)
	}
	return nil
}

// Network returns destination and mask as a net.IPNet
func (e ForwardEntry) Network() *net.IPNet {
	return utils.ToIPNet(e.Destination, e.Mask)
}

// String renders "dest mask via nexthop if N metric M"
func (e ForwardEntry) String() string {
	return fmt.Sprintf("%s mask %s via %s if %d metric %d",
		e.Destination, e.Mask, e.NextHop, e.InterfaceIndex, e.Metric)
}

// RouteAction represents the type of operation to be performed on a route
type RouteAction int

// Route action constants
const (
	// RouteActionAdd creates entries in the system routing table
	RouteActionAdd RouteAction = iota
	// RouteActionDelete removes entries from the system routing table
	RouteActionDelete
)

// String returns a string representation of the action
func (a RouteAction) String() string {
	switch a {
	case RouteActionAdd:
		return "add"
	case RouteActionDelete:
		return "remove"
	default:
		return "unknown"
	}
}
