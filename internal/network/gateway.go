package network

import (
	"fmt"
	"net"

	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/utils"
)

// Candidate is a physical interface together with its IPv4 default gateway
type Candidate struct {
	Interface InterfaceInfo
	Gateway   net.IP
	Metric    int32
}

// DiscoverCandidates lists physical interfaces that carry an IPv4 default route
func DiscoverCandidates(stack entities.NetworkStack) ([]Candidate, error) {
	entries, err := stack.ListForwardEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	ifaces, err := GetNetworkInterfaces()
	if err != nil {
		return nil, err
	}

	return CandidateGateways(entries, ifaces), nil
}

// CandidateGateways pairs default routes with physical interfaces, in interface order.
// VPN and virtual adapters are never candidates even when they own the default route.
func CandidateGateways(entries []entities.ForwardEntry, ifaces []InterfaceInfo) []Candidate {
	defaults := make(map[int]entities.ForwardEntry)
	for _, e := range entries {
		if utils.MaskPrefixLength(e.Mask) != 0 || !e.Destination.Equal(net.IPv4zero) {
			continue
		}
		if e.NextHop == nil || e.NextHop.Equal(net.IPv4zero) {
			continue
		}
		idx := int(e.InterfaceIndex)
		if cur, ok := defaults[idx]; !ok || e.Metric < cur.Metric {
			defaults[idx] = e
		}
	}

	var candidates []Candidate
	for _, iface := range ifaces {
		if !iface.IsPhysical || !iface.IsUp || !iface.HasIPv4() {
			continue
		}
		e, ok := defaults[iface.Index]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			Interface: iface,
			Gateway:   e.NextHop.To4(),
			Metric:    e.Metric,
		})
	}

	return candidates
}

// DefaultCandidate picks the last candidate, matching how the interface list is presented
func DefaultCandidate(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, fmt.Errorf("no physical gateway found")
	}
	return candidates[len(candidates)-1], nil
}

// GetDefaultGateway returns the gateway and interface name of the default candidate
func GetDefaultGateway(stack entities.NetworkStack) (net.IP, string, error) {
	candidates, err := DiscoverCandidates(stack)
	if err != nil {
		return nil, "", err
	}

	c, err := DefaultCandidate(candidates)
	if err != nil {
		return nil, "", err
	}
	return c.Gateway, c.Interface.Name, nil
}
