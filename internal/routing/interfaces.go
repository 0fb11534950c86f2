package routing

import (
	"net"

	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/utils"
)

// InterfaceResolver finds the outbound interface for an address and reads or
// writes that interface's IPv4 properties.
type InterfaceResolver struct {
	stack entities.NetworkStack
}

// NewInterfaceResolver creates a resolver over the platform stack
func NewInterfaceResolver(stack entities.NetworkStack) *InterfaceResolver {
	return &InterfaceResolver{stack: stack}
}

// ParseGateway parses gateway text, failing with a format error
func ParseGateway(text string) (net.IP, error) {
	ip, err := utils.ParseIPv4(text)
	if err != nil {
		return nil, entities.NewFormatError(text, err)
	}
	return ip, nil
}

// ResolveOutboundInterface returns the interface the OS would use to reach destination
func (r *InterfaceResolver) ResolveOutboundInterface(destination net.IP) (uint32, error) {
	ifIndex, err := r.stack.BestInterface(destination)
	if err != nil {
		if _, ok := entities.ErrorTypeOf(err); ok {
			return 0, err
		}
		return 0, entities.NewResolutionError(destination.String(), err)
	}
	return ifIndex, nil
}

// ForwardingEnabled reports the per-interface forwarding flag
func (r *InterfaceResolver) ForwardingEnabled(ifIndex uint32) (bool, error) {
	enabled, err := r.stack.InterfaceForwarding(ifIndex)
	if err != nil {
		return false, asOSCallError(err, "interface forwarding")
	}
	return enabled, nil
}

// SetForwardingEnabled sets the per-interface forwarding flag, effective immediately
func (r *InterfaceResolver) SetForwardingEnabled(ifIndex uint32, enabled bool) error {
	if err := r.stack.SetInterfaceForwarding(ifIndex, enabled); err != nil {
		return asOSCallError(err, "set interface forwarding")
	}
	return nil
}

// InterfaceMetric returns the IPv4 metric of the interface
func (r *InterfaceResolver) InterfaceMetric(ifIndex uint32) (uint32, error) {
	metric, err := r.stack.InterfaceMetric(ifIndex)
	if err != nil {
		return 0, asOSCallError(err, "interface metric")
	}
	return metric, nil
}

func asOSCallError(err error, item string) error {
	if _, ok := entities.ErrorTypeOf(err); ok {
		return err
	}
	return entities.NewOSCallError(item, 0, err)
}
