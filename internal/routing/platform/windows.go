//go:build windows

package platform

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/utils"
)

const (
	tcpipParametersKey = `SYSTEM\CurrentControlSet\Services\Tcpip\Parameters`
	ipEnableRouter     = "IPEnableRouter"

	afInet = 2
)

var (
	iphlpapi                     = windows.NewLazySystemDLL("iphlpapi.dll")
	procCreateIpForwardEntry     = iphlpapi.NewProc("CreateIpForwardEntry")
	procDeleteIpForwardEntry     = iphlpapi.NewProc("DeleteIpForwardEntry")
	procGetIpForwardTable        = iphlpapi.NewProc("GetIpForwardTable")
	procGetBestInterface         = iphlpapi.NewProc("GetBestInterface")
	procInitializeIpInterfaceRow = iphlpapi.NewProc("InitializeIpInterfaceEntry")
	procGetIpInterfaceEntry      = iphlpapi.NewProc("GetIpInterfaceEntry")
	procSetIpInterfaceEntry      = iphlpapi.NewProc("SetIpInterfaceEntry")
)

// mibIPForwardRow mirrors MIB_IPFORWARDROW
type mibIPForwardRow struct {
	ForwardDest      uint32
	ForwardMask      uint32
	ForwardPolicy    uint32
	ForwardNextHop   uint32
	ForwardIfIndex   uint32
	ForwardType      uint32
	ForwardProto     uint32
	ForwardAge       uint32
	ForwardNextHopAS uint32
	ForwardMetric1   int32
	ForwardMetric2   int32
	ForwardMetric3   int32
	ForwardMetric4   int32
	ForwardMetric5   int32
}

// mibIPInterfaceRow mirrors MIB_IPINTERFACE_ROW
type mibIPInterfaceRow struct {
	Family                               uint16
	_                                    [6]byte
	InterfaceLuid                        uint64
	InterfaceIndex                       uint32
	MaxReassemblySize                    uint32
	InterfaceIdentifier                  uint64
	MinRouterAdvertisementInterval       uint32
	MaxRouterAdvertisementInterval       uint32
	AdvertisingEnabled                   uint8
	ForwardingEnabled                    uint8
	WeakHostSend                         uint8
	WeakHostReceive                      uint8
	UseAutomaticMetric                   uint8
	UseNeighborUnreachabilityDetection   uint8
	ManagedAddressConfigurationSupported uint8
	OtherStatefulConfigurationSupported  uint8
	AdvertiseDefaultRoute                uint8
	RouterDiscoveryBehavior              uint32
	DadTransmits                         uint32
	BaseReachableTime                    uint32
	RetransmitTime                       uint32
	PathMtuDiscoveryTimeout              uint32
	LinkLocalAddressBehavior             uint32
	LinkLocalAddressTimeout              uint32
	ZoneIndices                          [16]uint32
	SitePrefixLength                     uint32
	Metric                               uint32
	NlMtu                                uint32
	Connected                            uint8
	SupportsWakeUpPatterns               uint8
	SupportsNeighborDiscovery            uint8
	SupportsRouterDiscovery              uint8
	ReachableTime                        uint32
	TransmitOffload                      uint8
	ReceiveOffload                       uint8
	DisableDefaultRoutes                 uint8
}

// WindowsNetworkStack implements entities.NetworkStack on top of iphlpapi
type WindowsNetworkStack struct {
	mutex sync.Mutex
}

// NewPlatformNetworkStack creates a platform-specific network stack (Windows implementation)
func NewPlatformNetworkStack() (entities.NetworkStack, error) {
	if err := iphlpapi.Load(); err != nil {
		return nil, &entities.RouteOperationError{ErrorType: entities.RouteErrUnsupported, Item: "iphlpapi.dll", Cause: err}
	}
	return &WindowsNetworkStack{}, nil
}

// NewPlatformHostForwardingStore returns the registry backed host flag store; path is ignored
func NewPlatformHostForwardingStore(_ string) entities.HostForwardingStore {
	return &RegistryStore{}
}

func (s *WindowsNetworkStack) CreateForwardEntry(entry entities.ForwardEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	row := toForwardRow(entry)
	ret, _, _ := procCreateIpForwardEntry.Call(uintptr(unsafe.Pointer(&row)))
	return statusError(entry, "create", ret)
}

func (s *WindowsNetworkStack) DeleteForwardEntry(entry entities.ForwardEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	row := toForwardRow(entry)
	ret, _, _ := procDeleteIpForwardEntry.Call(uintptr(unsafe.Pointer(&row)))
	return statusError(entry, "delete", ret)
}

// ListForwardEntries asks for the table size first, retrying once when the table grew in between
func (s *WindowsNetworkStack) ListForwardEntries() ([]entities.ForwardEntry, error) {
	var size uint32
	ret, _, _ := procGetIpForwardTable.Call(0, uintptr(unsafe.Pointer(&size)), 1)
	if ret != uintptr(windows.ERROR_INSUFFICIENT_BUFFER) && ret != 0 {
		return nil, entities.NewOSCallError("list routes", uint32(ret), windows.Errno(ret))
	}

	var buf []byte
	for attempt := 0; attempt < 2; attempt++ {
		buf = make([]byte, size)
		ret, _, _ = procGetIpForwardTable.Call(uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)), 1)
		if ret != uintptr(windows.ERROR_INSUFFICIENT_BUFFER) {
			break
		}
	}
	if ret != 0 {
		return nil, entities.NewOSCallError("list routes", uint32(ret), windows.Errno(ret))
	}

	return parseForwardTable(buf), nil
}

func (s *WindowsNetworkStack) BestInterface(destination net.IP) (uint32, error) {
	var ifIndex uint32
	ret, _, _ := procGetBestInterface.Call(uintptr(utils.IPToUint32(destination)), uintptr(unsafe.Pointer(&ifIndex)))
	if ret != 0 {
		return 0, &entities.RouteOperationError{
			ErrorType: entities.RouteErrResolution,
			Item:      destination.String(),
			Status:    uint32(ret),
			Cause:     windows.Errno(ret),
		}
	}
	return ifIndex, nil
}

func (s *WindowsNetworkStack) InterfaceForwarding(ifIndex uint32) (bool, error) {
	row, err := getInterfaceRow(ifIndex)
	if err != nil {
		return false, err
	}
	return row.ForwardingEnabled != 0, nil
}

func (s *WindowsNetworkStack) SetInterfaceForwarding(ifIndex uint32, enabled bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	row, err := getInterfaceRow(ifIndex)
	if err != nil {
		return err
	}

	row.ForwardingEnabled = 0
	if enabled {
		row.ForwardingEnabled = 1
	}
	// SetIpInterfaceEntry rejects IPv4 rows with a site prefix length
	row.SitePrefixLength = 0

	ret, _, _ := procSetIpInterfaceEntry.Call(uintptr(unsafe.Pointer(row)))
	if ret != 0 {
		return entities.NewOSCallError(fmt.Sprintf("interface %d", ifIndex), uint32(ret), windows.Errno(ret))
	}
	return nil
}

func (s *WindowsNetworkStack) InterfaceMetric(ifIndex uint32) (uint32, error) {
	row, err := getInterfaceRow(ifIndex)
	if err != nil {
		return 0, err
	}
	return row.Metric, nil
}

func (s *WindowsNetworkStack) Close() error {
	return nil
}

func getInterfaceRow(ifIndex uint32) (*mibIPInterfaceRow, error) {
	row := &mibIPInterfaceRow{}
	procInitializeIpInterfaceRow.Call(uintptr(unsafe.Pointer(row)))
	row.Family = afInet
	row.InterfaceIndex = ifIndex

	ret, _, _ := procGetIpInterfaceEntry.Call(uintptr(unsafe.Pointer(row)))
	if ret != 0 {
		return nil, entities.NewOSCallError(fmt.Sprintf("interface %d", ifIndex), uint32(ret), windows.Errno(ret))
	}
	return row, nil
}

func toForwardRow(entry entities.ForwardEntry) mibIPForwardRow {
	return mibIPForwardRow{
		ForwardDest:      utils.IPToUint32(entry.Destination),
		ForwardMask:      utils.IPToUint32(entry.Mask),
		ForwardPolicy:    entry.Policy,
		ForwardNextHop:   utils.IPToUint32(entry.NextHop),
		ForwardIfIndex:   entry.InterfaceIndex,
		ForwardType:      uint32(entry.Type),
		ForwardProto:     uint32(entry.Protocol),
		ForwardAge:       entry.Age,
		ForwardNextHopAS: entry.NextHopAS,
		ForwardMetric1:   entry.Metric,
		ForwardMetric2:   entry.SecondaryMetrics[0],
		ForwardMetric3:   entry.SecondaryMetrics[1],
		ForwardMetric4:   entry.SecondaryMetrics[2],
		ForwardMetric5:   entry.SecondaryMetrics[3],
	}
}

func fromForwardRow(row mibIPForwardRow) entities.ForwardEntry {
	return entities.ForwardEntry{
		Destination:      utils.Uint32ToIP(row.ForwardDest),
		Mask:             utils.Uint32ToIP(row.ForwardMask),
		NextHop:          utils.Uint32ToIP(row.ForwardNextHop),
		InterfaceIndex:   row.ForwardIfIndex,
		Type:             entities.RouteType(row.ForwardType),
		Protocol:         entities.RouteProtocol(row.ForwardProto),
		Age:              row.ForwardAge,
		NextHopAS:        row.ForwardNextHopAS,
		Policy:           row.ForwardPolicy,
		Metric:           row.ForwardMetric1,
		SecondaryMetrics: [4]int32{row.ForwardMetric2, row.ForwardMetric3, row.ForwardMetric4, row.ForwardMetric5},
	}
}

// parseForwardTable copies rows out of a MIB_IPFORWARDTABLE buffer:
// a uint32 count followed by packed MIB_IPFORWARDROW values.
func parseForwardTable(buf []byte) []entities.ForwardEntry {
	if len(buf) < 4 {
		return nil
	}

	count := binary.LittleEndian.Uint32(buf[0:4])
	rowSize := uint32(unsafe.Sizeof(mibIPForwardRow{}))

	entries := make([]entities.ForwardEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		offset := 4 + i*rowSize
		if offset+rowSize > uint32(len(buf)) {
			break
		}
		row := *(*mibIPForwardRow)(unsafe.Pointer(&buf[offset]))
		entries = append(entries, fromForwardRow(row))
	}
	return entries
}

func statusError(entry entities.ForwardEntry, op string, ret uintptr) error {
	if ret == 0 {
		return nil
	}

	e := entities.NewOSCallError(op+" "+entry.Network().String(), uint32(ret), windows.Errno(ret))
	e.Entry = &entry
	if windows.Errno(ret) == windows.ERROR_ACCESS_DENIED {
		e.ErrorType = entities.RouteErrPermission
	}
	return e
}

// RegistryStore keeps the host forwarding flag in the Tcpip IPEnableRouter value
type RegistryStore struct{}

// HostForwardingEnabled reports IPEnableRouter == 1, a missing key or value reads as disabled
func (r *RegistryStore) HostForwardingEnabled() (bool, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, tcpipParametersKey, registry.QUERY_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return false, nil
		}
		return false, entities.NewConfigAccessError(tcpipParametersKey, err)
	}
	defer key.Close()

	value, _, err := key.GetIntegerValue(ipEnableRouter)
	if err != nil {
		if err == registry.ErrNotExist {
			return false, nil
		}
		return false, entities.NewConfigAccessError(tcpipParametersKey+`\`+ipEnableRouter, err)
	}
	return value == 1, nil
}

// SetHostForwarding writes IPEnableRouter as a DWORD, creating the key if absent
func (r *RegistryStore) SetHostForwarding(enabled bool) error {
	key, _, err := registry.CreateKey(registry.LOCAL_MACHINE, tcpipParametersKey, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return entities.NewConfigAccessError(tcpipParametersKey, err)
	}
	defer key.Close()

	var value uint32
	if enabled {
		value = 1
	}
	if err := key.SetDWordValue(ipEnableRouter, value); err != nil {
		return entities.NewConfigAccessError(tcpipParametersKey+`\`+ipEnableRouter, err)
	}
	return nil
}
