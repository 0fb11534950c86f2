package utils

import "strings"

// IsVPNInterface checks if the given interface name is a VPN interface
func IsVPNInterface(interfaceName string) bool {
	name := strings.ToLower(interfaceName)

	// Windows adapters carry the driver description in their name
	for _, marker := range []string{"tap-windows", "openvpn", "wintun", "wireguard"} {
		if strings.Contains(name, marker) {
			return true
		}
	}

	vpnPrefixes := []string{"utun", "tun", "tap", "ppp", "ipsec", "wg"}
	for _, prefix := range vpnPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

// IsPhysicalInterface checks if the interface is a wired or wireless NIC
func IsPhysicalInterface(iface string) bool {
	name := strings.ToLower(iface)

	if IsVPNInterface(name) {
		return false
	}

	// Skip system interfaces
	systemPrefixes := []string{"lo", "awdl", "bridge", "br-", "docker", "veth", "virbr", "gif", "stf", "vethernet"}
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}

	// Linux: eth0, enp3s0, wlan0, wlp2s0; macOS: en0; Windows: "Ethernet", "Wi-Fi", "WLAN"
	physicalPrefixes := []string{"en", "eth", "wl", "wi-fi", "wlan"}
	for _, prefix := range physicalPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}
