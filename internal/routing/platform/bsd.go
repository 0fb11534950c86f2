//go:build darwin || freebsd

package platform

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/utils"
)

// DefaultSysctlFile holds the persisted host forwarding setting
const DefaultSysctlFile = "/etc/sysctl.conf"

var errNoInterfaceForwarding = errors.New("per-interface forwarding is not configurable on BSD")

// BSDNetworkStack implements entities.NetworkStack with a routing socket for
// writes and the route/netstat tools for lookups.
type BSDNetworkStack struct {
	mutex  sync.Mutex
	socket int
	seqNum int32

	run           func(name string, args ...string) ([]byte, error)
	ifIndexByName func(name string) (uint32, error)
}

// NewPlatformNetworkStack creates a platform-specific network stack (BSD implementation)
func NewPlatformNetworkStack() (entities.NetworkStack, error) {
	sock, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return nil, entities.NewOSCallError("route socket", errnoOf(err), fmt.Errorf("failed to create route socket: %w", err))
	}
	// our own messages are not echoed back
	_ = unix.SetsockoptInt(sock, unix.SOL_SOCKET, unix.SO_USELOOPBACK, 0)

	stack := newBSDNetworkStack(runCommand, interfaceIndexByName)
	stack.socket = sock
	return stack, nil
}

func newBSDNetworkStack(run func(string, ...string) ([]byte, error), ifIndexByName func(string) (uint32, error)) *BSDNetworkStack {
	return &BSDNetworkStack{socket: -1, seqNum: 1, run: run, ifIndexByName: ifIndexByName}
}

// NewPlatformHostForwardingStore returns the sysctl.conf backed host flag store
func NewPlatformHostForwardingStore(path string) entities.HostForwardingStore {
	if path == "" {
		path = DefaultSysctlFile
	}
	return &SysctlFileStore{Path: path, Key: BSDForwardingKey}
}

func (s *BSDNetworkStack) CreateForwardEntry(entry entities.ForwardEntry) error {
	return s.sendRouteMessage(unix.RTM_ADD, entry)
}

func (s *BSDNetworkStack) DeleteForwardEntry(entry entities.ForwardEntry) error {
	return s.sendRouteMessage(unix.RTM_DELETE, entry)
}

// ListForwardEntries parses the IPv4 section of netstat -rn
func (s *BSDNetworkStack) ListForwardEntries() ([]entities.ForwardEntry, error) {
	output, err := s.run("netstat", "-rn", "-f", "inet")
	if err != nil {
		return nil, entities.NewOSCallError("netstat -rn", 0, err)
	}
	return parseNetstatOutput(string(output), s.ifIndexByName), nil
}

// BestInterface asks route -n get which interface the kernel picks
func (s *BSDNetworkStack) BestInterface(destination net.IP) (uint32, error) {
	output, err := s.run("route", "-n", "get", destination.String())
	if err != nil {
		return 0, entities.NewResolutionError(destination.String(), err)
	}

	name, err := parseRouteGetInterface(string(output))
	if err != nil {
		return 0, entities.NewResolutionError(destination.String(), err)
	}

	ifIndex, err := s.ifIndexByName(name)
	if err != nil {
		return 0, entities.NewResolutionError(destination.String(), err)
	}
	return ifIndex, nil
}

func (s *BSDNetworkStack) InterfaceForwarding(ifIndex uint32) (bool, error) {
	return false, &entities.RouteOperationError{ErrorType: entities.RouteErrUnsupported, Item: fmt.Sprintf("interface %d", ifIndex), Cause: errNoInterfaceForwarding}
}

func (s *BSDNetworkStack) SetInterfaceForwarding(ifIndex uint32, _ bool) error {
	return &entities.RouteOperationError{ErrorType: entities.RouteErrUnsupported, Item: fmt.Sprintf("interface %d", ifIndex), Cause: errNoInterfaceForwarding}
}

// InterfaceMetric is always 0, BSD routes carry no metric
func (s *BSDNetworkStack) InterfaceMetric(uint32) (uint32, error) {
	return 0, nil
}

func (s *BSDNetworkStack) Close() error {
	if s.socket < 0 {
		return nil
	}
	return unix.Close(s.socket)
}

func (s *BSDNetworkStack) sendRouteMessage(msgType int, entry entities.ForwardEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.seqNum++
	buf := buildRouteMessage(msgType, s.seqNum, entry)

	if _, err := unix.Write(s.socket, buf); err != nil {
		op := "create"
		if msgType == unix.RTM_DELETE {
			op = "delete"
		}
		e := entities.NewOSCallError(op+" "+entry.Network().String(), errnoOf(err), err)
		e.Entry = &entry
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			e.ErrorType = entities.RouteErrPermission
		}
		return e
	}
	return nil
}

// buildRouteMessage lays out a routing socket message: header, then the
// destination, gateway and netmask sockaddrs, each padded to 4 bytes.
func buildRouteMessage(msgType int, seq int32, entry entities.ForwardEntry) []byte {
	mask := entry.Mask.To4()
	dst := entry.Destination.To4().Mask(net.IPMask(mask))

	addrs := []unix.RawSockaddrInet4{
		inet4Sockaddr(dst),
		inet4Sockaddr(entry.NextHop.To4()),
		inet4Sockaddr(mask),
	}

	size := unix.SizeofRtMsghdr
	for range addrs {
		size += roundUp(unix.SizeofSockaddrInet4)
	}
	buf := make([]byte, size)

	flags := unix.RTF_UP | unix.RTF_GATEWAY | unix.RTF_STATIC
	if msgType == unix.RTM_DELETE {
		flags = unix.RTF_GATEWAY | unix.RTF_STATIC
	}
	if utils.MaskPrefixLength(mask) == 32 {
		flags |= unix.RTF_HOST
	}

	hdr := (*unix.RtMsghdr)(unsafe.Pointer(&buf[0]))
	hdr.Msglen = uint16(size)
	hdr.Version = unix.RTM_VERSION
	hdr.Type = uint8(msgType)
	hdr.Flags = int32(flags)
	hdr.Addrs = unix.RTA_DST | unix.RTA_GATEWAY | unix.RTA_NETMASK
	hdr.Pid = int32(unix.Getpid())
	hdr.Seq = seq

	offset := unix.SizeofRtMsghdr
	for i := range addrs {
		raw := (*[unix.SizeofSockaddrInet4]byte)(unsafe.Pointer(&addrs[i]))
		copy(buf[offset:], raw[:])
		offset += roundUp(unix.SizeofSockaddrInet4)
	}
	return buf
}

func inet4Sockaddr(ip net.IP) unix.RawSockaddrInet4 {
	sa := unix.RawSockaddrInet4{Len: unix.SizeofSockaddrInet4, Family: unix.AF_INET}
	copy(sa.Addr[:], ip.To4())
	return sa
}

func roundUp(size int) int {
	return (size + 3) &^ 3
}

// parseNetstatOutput reads the Internet section of netstat -rn.
// Lines whose gateway is neither an address nor link#N (ARP entries) are skipped.
func parseNetstatOutput(output string, ifIndexByName func(string) (uint32, error)) []entities.ForwardEntry {
	var entries []entities.ForwardEntry
	inTable := false

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Internet6"):
			return entries
		case strings.HasPrefix(line, "Destination") && strings.Contains(line, "Gateway"):
			inTable = true
			continue
		case !inTable || line == "":
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		dst, mask, err := parseNetstatDestination(fields[0])
		if err != nil {
			continue
		}

		nextHop := net.IPv4zero.To4()
		if !strings.HasPrefix(fields[1], "link#") {
			if nextHop, err = utils.ParseIPv4(fields[1]); err != nil {
				continue
			}
		}

		flags := fields[2]
		routeType := entities.RouteTypeDirect
		if strings.Contains(flags, "G") {
			routeType = entities.RouteTypeIndirect
		}
		protocol := entities.ProtocolLocal
		if strings.Contains(flags, "S") {
			protocol = entities.ProtocolNetManagement
		}

		var ifIndex uint32
		if idx, err := ifIndexByName(fields[3]); err == nil {
			ifIndex = idx
		}

		entry := entities.NewForwardEntry(dst, mask, nextHop, ifIndex, 0)
		entry.Type = routeType
		entry.Protocol = protocol
		entries = append(entries, entry)
	}

	return entries
}

// parseNetstatDestination expands netstat's short forms: "default",
// "10.0/16" and classful "203.57.66" (three octets read as /24).
func parseNetstatDestination(dest string) (net.IP, net.IP, error) {
	if dest == "default" {
		return net.IPv4zero.To4(), net.IP(net.CIDRMask(0, 32)), nil
	}

	addr, prefix, hasPrefix := strings.Cut(dest, "/")
	addr, _, _ = strings.Cut(addr, "%")

	octets := strings.Split(addr, ".")
	if len(octets) > 4 {
		return nil, nil, fmt.Errorf("unsupported destination format: %s", dest)
	}
	given := len(octets)
	for len(octets) < 4 {
		octets = append(octets, "0")
	}

	ip, err := utils.ParseIPv4(strings.Join(octets, "."))
	if err != nil {
		return nil, nil, err
	}

	prefixLength := 8 * given
	if hasPrefix {
		if prefixLength, err = strconv.Atoi(prefix); err != nil {
			return nil, nil, fmt.Errorf("unsupported destination format: %s", dest)
		}
	}

	mask, err := utils.PrefixMask(prefixLength)
	if err != nil {
		return nil, nil, err
	}
	return ip, mask, nil
}

// parseRouteGetInterface extracts the "interface:" field of route -n get
func parseRouteGetInterface(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && key == "interface" {
			if name := strings.TrimSpace(value); name != "" {
				return name, nil
			}
		}
	}
	return "", errors.New("no interface in route output")
}

func runCommand(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

func interfaceIndexByName(name string) (uint32, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}
	return uint32(iface.Index), nil
}

func errnoOf(err error) uint32 {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return uint32(errno)
	}
	return 0
}
