package utils

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// HostMask is the all-ones IPv4 mask used for single address routes
var HostMask = net.IPv4(255, 255, 255, 255).To4()

// AddressFormatError reports malformed IPv4 or CIDR text
type AddressFormatError struct {
	Input  string
	Reason string
}

func (e *AddressFormatError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

// ParseIPv4 parses strict dotted-decimal IPv4 text: four decimal octets
// separated by '.', no leading zeros, so the text round-trips.
func ParseIPv4(text string) (net.IP, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 4 {
		return nil, &AddressFormatError{Input: text, Reason: "expected four octets"}
	}

	ip := make(net.IP, 4)
	for i, part := range parts {
		if part == "" || len(part) > 3 {
			return nil, &AddressFormatError{Input: text, Reason: fmt.Sprintf("bad octet %q", part)}
		}
		if len(part) > 1 && part[0] == '0' {
			return nil, &AddressFormatError{Input: text, Reason: fmt.Sprintf("octet %q has a leading zero", part)}
		}
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, &AddressFormatError{Input: text, Reason: fmt.Sprintf("octet %q out of range", part)}
		}
		ip[i] = byte(v)
	}

	return ip, nil
}

// AddressToUint32 converts dotted-decimal text to the integer layout used by
// the routing calls: the first dotted octet lands in bits 0-7.
func AddressToUint32(text string) (uint32, error) {
	ip, err := ParseIPv4(text)
	if err != nil {
		return 0, err
	}
	return IPToUint32(ip), nil
}

// Uint32ToAddress is the inverse of AddressToUint32
func Uint32ToAddress(value uint32) string {
	return Uint32ToIP(value).String()
}

// IPToUint32 packs an IPv4 address with its first octet in the low byte.
// Non-IPv4 input packs to zero.
func IPToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(ip4)
}

// Uint32ToIP unpacks a value produced by IPToUint32
func Uint32ToIP(value uint32) net.IP {
	ip := make(net.IP, 4)
	binary.LittleEndian.PutUint32(ip, value)
	return ip
}

// PrefixMask renders the mask for a prefix length in [0,32]
func PrefixMask(prefixLength int) (net.IP, error) {
	if prefixLength < 0 || prefixLength > 32 {
		return nil, &AddressFormatError{Input: strconv.Itoa(prefixLength), Reason: "prefix length must be within 0-32"}
	}
	return net.IP(net.CIDRMask(prefixLength, 32)), nil
}

// ParseCIDR splits "a.b.c.d/len" into the destination address and its dotted mask.
// The address is kept as written, host bits are not cleared.
func ParseCIDR(text string) (net.IP, net.IP, error) {
	parts := strings.Split(text, "/")
	if len(parts) != 2 {
		return nil, nil, &AddressFormatError{Input: text, Reason: "expected address/prefixLength"}
	}

	address, err := ParseIPv4(parts[0])
	if err != nil {
		return nil, nil, &AddressFormatError{Input: text, Reason: err.(*AddressFormatError).Reason}
	}

	if parts[1] == "" || strings.Trim(parts[1], "0123456789") != "" {
		return nil, nil, &AddressFormatError{Input: text, Reason: fmt.Sprintf("bad prefix length %q", parts[1])}
	}
	prefixLength, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, nil, &AddressFormatError{Input: text, Reason: fmt.Sprintf("bad prefix length %q", parts[1])}
	}

	mask, err := PrefixMask(prefixLength)
	if err != nil {
		return nil, nil, &AddressFormatError{Input: text, Reason: err.(*AddressFormatError).Reason}
	}

	return address, mask, nil
}

// IsValidMask reports whether mask is a contiguous-prefix IPv4 subnet mask
func IsValidMask(mask net.IP) bool {
	m := mask.To4()
	if m == nil {
		return false
	}
	_, bits := net.IPMask(m).Size()
	return bits == 32
}

// MaskPrefixLength returns the prefix length of a contiguous IPv4 mask, -1 otherwise
func MaskPrefixLength(mask net.IP) int {
	m := mask.To4()
	if m == nil {
		return -1
	}
	ones, bits := net.IPMask(m).Size()
	if bits != 32 {
		return -1
	}
	return ones
}

// ToIPNet converts an IPv4 address and dotted mask into a network value
func ToIPNet(ip, mask net.IP) *net.IPNet {
	return &net.IPNet{IP: ip.To4(), Mask: net.IPMask(mask.To4())}
}
