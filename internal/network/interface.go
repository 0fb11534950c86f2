package network

import (
	"fmt"
	"net"

	"github.com/wesleywu/routefwd/internal/utils"
)

type InterfaceInfo struct {
	Index        int
	Name         string
	HardwareAddr string
	IPs          []net.IP
	MTU          int
	Flags        net.Flags
	IsUp         bool
	IsLoopback   bool
	IsPhysical   bool
}

func GetNetworkInterfaces() ([]InterfaceInfo, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var result []InterfaceInfo
	for _, iface := range interfaces {
		info := InterfaceInfo{
			Index:        iface.Index,
			Name:         iface.Name,
			HardwareAddr: iface.HardwareAddr.String(),
			MTU:          iface.MTU,
			Flags:        iface.Flags,
			IsUp:         iface.Flags&net.FlagUp != 0,
			IsLoopback:   iface.Flags&net.FlagLoopback != 0,
			IsPhysical:   utils.IsPhysicalInterface(iface.Name),
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				info.IPs = append(info.IPs, ipNet.IP)
			}
		}

		result = append(result, info)
	}

	return result, nil
}

func (info *InterfaceInfo) HasIPv4() bool {
	for _, ip := range info.IPs {
		if ip.To4() != nil {
			return true
		}
	}
	return false
}

func (info *InterfaceInfo) GetIPv4Addresses() []net.IP {
	var ipv4s []net.IP
	for _, ip := range info.IPs {
		if ip.To4() != nil {
			ipv4s = append(ipv4s, ip)
		}
	}
	return ipv4s
}
