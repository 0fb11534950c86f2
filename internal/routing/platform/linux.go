//go:build linux

package platform

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/wesleywu/routefwd/internal/routing/entities"
)

const (
	procIPv4Conf = "/proc/sys/net/ipv4/conf"

	// DefaultSysctlFile holds the persisted host forwarding setting
	DefaultSysctlFile = "/etc/sysctl.d/99-routefwd.conf"
)

// Netlinker abstracts the netlink calls the Linux stack needs
type Netlinker interface {
	RouteAdd(route *netlink.Route) error
	RouteDel(route *netlink.Route) error
	RouteGet(destination net.IP) ([]netlink.Route, error)
	RouteList(link netlink.Link, family int) ([]netlink.Route, error)
	LinkByIndex(index int) (netlink.Link, error)
}

type realNetlinker struct{}

func (realNetlinker) RouteAdd(route *netlink.Route) error { return netlink.RouteAdd(route) }
func (realNetlinker) RouteDel(route *netlink.Route) error { return netlink.RouteDel(route) }
func (realNetlinker) RouteGet(destination net.IP) ([]netlink.Route, error) {
	return netlink.RouteGet(destination)
}
func (realNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return netlink.RouteList(link, family)
}
func (realNetlinker) LinkByIndex(index int) (netlink.Link, error) { return netlink.LinkByIndex(index) }

// LinuxNetworkStack implements entities.NetworkStack with netlink and /proc/sys
type LinuxNetworkStack struct {
	mutex    sync.Mutex
	nl       Netlinker
	procConf string
}

// NewPlatformNetworkStack creates a platform-specific network stack (Linux implementation)
func NewPlatformNetworkStack() (entities.NetworkStack, error) {
	return &LinuxNetworkStack{nl: realNetlinker{}, procConf: procIPv4Conf}, nil
}

// NewLinuxNetworkStackWithDeps creates a stack with injected netlink and proc root
func NewLinuxNetworkStackWithDeps(nl Netlinker, procConf string) *LinuxNetworkStack {
	return &LinuxNetworkStack{nl: nl, procConf: procConf}
}

// NewPlatformHostForwardingStore returns the sysctl.d backed host flag store
func NewPlatformHostForwardingStore(path string) entities.HostForwardingStore {
	if path == "" {
		path = DefaultSysctlFile
	}
	return &SysctlFileStore{Path: path, Key: LinuxForwardingKey}
}

func (s *LinuxNetworkStack) CreateForwardEntry(entry entities.ForwardEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	route := toNetlinkRoute(entry, true)
	if err := s.nl.RouteAdd(route); err != nil {
		return osCallError(entry, "create", err)
	}
	return nil
}

func (s *LinuxNetworkStack) DeleteForwardEntry(entry entities.ForwardEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	route := toNetlinkRoute(entry, false)
	if err := s.nl.RouteDel(route); err != nil {
		return osCallError(entry, "delete", err)
	}
	return nil
}

// ListForwardEntries lists the IPv4 main table
func (s *LinuxNetworkStack) ListForwardEntries() ([]entities.ForwardEntry, error) {
	routes, err := s.nl.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, entities.NewOSCallError("list routes", errnoOf(err), err)
	}

	entries := make([]entities.ForwardEntry, 0, len(routes))
	for _, r := range routes {
		entries = append(entries, fromNetlinkRoute(r))
	}
	return entries, nil
}

func (s *LinuxNetworkStack) BestInterface(destination net.IP) (uint32, error) {
	routes, err := s.nl.RouteGet(destination)
	if err != nil {
		return 0, entities.NewResolutionError(destination.String(), err)
	}
	if len(routes) == 0 || routes[0].LinkIndex <= 0 {
		return 0, entities.NewResolutionError(destination.String(), errors.New("no route to destination"))
	}
	return uint32(routes[0].LinkIndex), nil
}

func (s *LinuxNetworkStack) InterfaceForwarding(ifIndex uint32) (bool, error) {
	path, err := s.forwardingPath(ifIndex)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, entities.NewOSCallError(path, errnoOf(err), err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

func (s *LinuxNetworkStack) SetInterfaceForwarding(ifIndex uint32, enabled bool) error {
	path, err := s.forwardingPath(ifIndex)
	if err != nil {
		return err
	}

	val := "0"
	if enabled {
		val = "1"
	}
	if err := os.WriteFile(path, []byte(val), 0644); err != nil {
		return entities.NewOSCallError(path, errnoOf(err), err)
	}
	return nil
}

// InterfaceMetric returns the lowest metric among the link's default routes.
// Linux has no per-interface metric, a link without a default route reports 0.
func (s *LinuxNetworkStack) InterfaceMetric(ifIndex uint32) (uint32, error) {
	link, err := s.nl.LinkByIndex(int(ifIndex))
	if err != nil {
		return 0, entities.NewOSCallError(fmt.Sprintf("interface %d", ifIndex), errnoOf(err), err)
	}

	routes, err := s.nl.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return 0, entities.NewOSCallError(fmt.Sprintf("interface %d", ifIndex), errnoOf(err), err)
	}

	metric := -1
	for _, r := range routes {
		if !isDefaultRoute(r) {
			continue
		}
		if metric < 0 || r.Priority < metric {
			metric = r.Priority
		}
	}
	if metric < 0 {
		return 0, nil
	}
	return uint32(metric), nil
}

func (s *LinuxNetworkStack) Close() error {
	return nil
}

func (s *LinuxNetworkStack) forwardingPath(ifIndex uint32) (string, error) {
	link, err := s.nl.LinkByIndex(int(ifIndex))
	if err != nil {
		return "", entities.NewOSCallError(fmt.Sprintf("interface %d", ifIndex), errnoOf(err), err)
	}
	return filepath.Join(s.procConf, link.Attrs().Name, "forwarding"), nil
}

func toNetlinkRoute(entry entities.ForwardEntry, withMetric bool) *netlink.Route {
	route := &netlink.Route{
		Dst:       &net.IPNet{IP: entry.Destination.To4(), Mask: net.IPMask(entry.Mask.To4())},
		Gw:        entry.NextHop.To4(),
		LinkIndex: int(entry.InterfaceIndex),
		Protocol:  toNetlinkProtocol(entry.Protocol),
		Scope:     netlink.SCOPE_UNIVERSE,
		Table:     unix.RT_TABLE_MAIN,
	}
	if withMetric && entry.Metric >= 0 {
		route.Priority = int(entry.Metric)
	}
	return route
}

func fromNetlinkRoute(r netlink.Route) entities.ForwardEntry {
	dst := net.IPv4zero.To4()
	mask := net.IP(net.CIDRMask(0, 32))
	if r.Dst != nil {
		dst = r.Dst.IP.To4()
		mask = net.IP(r.Dst.Mask)
	}

	nextHop := net.IPv4zero.To4()
	if r.Gw != nil {
		nextHop = r.Gw.To4()
	}

	routeType := entities.RouteTypeIndirect
	if r.Gw == nil || r.Scope == netlink.SCOPE_LINK || r.Scope == netlink.SCOPE_HOST {
		routeType = entities.RouteTypeDirect
	}

	return entities.ForwardEntry{
		Destination:      dst,
		Mask:             mask,
		NextHop:          nextHop,
		InterfaceIndex:   uint32(r.LinkIndex),
		Type:             routeType,
		Protocol:         fromNetlinkProtocol(r.Protocol),
		Metric:           int32(r.Priority),
		SecondaryMetrics: [4]int32{entities.MetricUnused, entities.MetricUnused, entities.MetricUnused, entities.MetricUnused},
	}
}

func toNetlinkProtocol(p entities.RouteProtocol) netlink.RouteProtocol {
	switch p {
	case entities.ProtocolLocal:
		return unix.RTPROT_KERNEL
	case entities.ProtocolICMP:
		return unix.RTPROT_REDIRECT
	case entities.ProtocolBGP:
		return unix.RTPROT_BGP
	case entities.ProtocolOSPF:
		return unix.RTPROT_OSPF
	case entities.ProtocolRIP:
		return unix.RTPROT_RIP
	case entities.ProtocolISIS:
		return unix.RTPROT_ISIS
	default:
		return unix.RTPROT_STATIC
	}
}

func fromNetlinkProtocol(p netlink.RouteProtocol) entities.RouteProtocol {
	switch p {
	case unix.RTPROT_KERNEL:
		return entities.ProtocolLocal
	case unix.RTPROT_REDIRECT:
		return entities.ProtocolICMP
	case unix.RTPROT_BGP:
		return entities.ProtocolBGP
	case unix.RTPROT_OSPF:
		return entities.ProtocolOSPF
	case unix.RTPROT_RIP:
		return entities.ProtocolRIP
	case unix.RTPROT_ISIS:
		return entities.ProtocolISIS
	case unix.RTPROT_STATIC, unix.RTPROT_BOOT:
		return entities.ProtocolNetManagement
	default:
		return entities.ProtocolOther
	}
}

func isDefaultRoute(r netlink.Route) bool {
	if r.Dst == nil {
		return true
	}
	ones, _ := r.Dst.Mask.Size()
	return ones == 0
}

func osCallError(entry entities.ForwardEntry, op string, err error) error {
	e := entities.NewOSCallError(op+" "+entry.Network().String(), errnoOf(err), err)
	e.Entry = &entry
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		e.ErrorType = entities.RouteErrPermission
	}
	return e
}

func errnoOf(err error) uint32 {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}
