package routing

import (
	"net"

	"github.com/wesleywu/routefwd/internal/logger"
	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/routing/metrics"
)

// ForwardingStatus is a snapshot of both forwarding flags for one interface
type ForwardingStatus struct {
	HostEnabled      bool
	InterfaceIndex   uint32
	InterfaceEnabled bool
}

// Effective reports whether packets to the gateway are actually forwarded
func (s ForwardingStatus) Effective() bool {
	return s.HostEnabled && s.InterfaceEnabled
}

// ForwardingStateController drives the host-wide flag (persisted, applied at
// boot) and the per-interface flag (applied immediately).
type ForwardingStateController struct {
	host    entities.HostForwardingStore
	ifaces  *InterfaceResolver
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewForwardingStateController creates a controller; m may be nil
func NewForwardingStateController(host entities.HostForwardingStore, ifaces *InterfaceResolver, m *metrics.Metrics, log *logger.Logger) *ForwardingStateController {
	return &ForwardingStateController{
		host:    host,
		ifaces:  ifaces,
		metrics: m,
		logger:  log.WithComponent("forwarding"),
	}
}

// Enable turns on forwarding for ifIndex. The host flag is written first when
// it is off, and rebootRequired reports that write. A host flag failure leaves
// the interface untouched.
func (c *ForwardingStateController) Enable(ifIndex uint32) (bool, error) {
	hostEnabled, err := c.hostEnabled()
	if err != nil {
		return false, err
	}

	rebootRequired := false
	if !hostEnabled {
		if err := c.host.SetHostForwarding(true); err != nil {
			return false, asConfigAccessError(err)
		}
		rebootRequired = true
		c.recordChange("host", 0, true, true)
	}

	if err := c.ifaces.SetForwardingEnabled(ifIndex, true); err != nil {
		return rebootRequired, err
	}
	c.recordChange("interface", ifIndex, true, false)

	return rebootRequired, nil
}

// Disable turns off forwarding for ifIndex only; the host flag is never touched
func (c *ForwardingStateController) Disable(ifIndex uint32) error {
	if err := c.ifaces.SetForwardingEnabled(ifIndex, false); err != nil {
		return err
	}
	c.recordChange("interface", ifIndex, false, false)
	return nil
}

// EnableForGateway enables forwarding on the interface that routes to gateway
func (c *ForwardingStateController) EnableForGateway(gateway net.IP) (uint32, bool, error) {
	ifIndex, err := c.ifaces.ResolveOutboundInterface(gateway)
	if err != nil {
		return 0, false, err
	}
	rebootRequired, err := c.Enable(ifIndex)
	return ifIndex, rebootRequired, err
}

// DisableForGateway disables forwarding on the interface that routes to gateway
func (c *ForwardingStateController) DisableForGateway(gateway net.IP) (uint32, error) {
	ifIndex, err := c.ifaces.ResolveOutboundInterface(gateway)
	if err != nil {
		return 0, err
	}
	return ifIndex, c.Disable(ifIndex)
}

// Status reads both flags for the interface that routes to gateway
func (c *ForwardingStateController) Status(gateway net.IP) (ForwardingStatus, error) {
	ifIndex, err := c.ifaces.ResolveOutboundInterface(gateway)
	if err != nil {
		return ForwardingStatus{}, err
	}

	hostEnabled, err := c.hostEnabled()
	if err != nil {
		return ForwardingStatus{}, err
	}

	ifEnabled, err := c.ifaces.ForwardingEnabled(ifIndex)
	if err != nil {
		return ForwardingStatus{}, err
	}

	return ForwardingStatus{
		HostEnabled:      hostEnabled,
		InterfaceIndex:   ifIndex,
		InterfaceEnabled: ifEnabled,
	}, nil
}

// QueryEffectiveForwarding is true iff the host flag and the outbound interface flag are both on
func (c *ForwardingStateController) QueryEffectiveForwarding(gateway net.IP) (bool, error) {
	status, err := c.Status(gateway)
	if err != nil {
		return false, err
	}
	return status.Effective(), nil
}

func (c *ForwardingStateController) hostEnabled() (bool, error) {
	enabled, err := c.host.HostForwardingEnabled()
	if err != nil {
		return false, asConfigAccessError(err)
	}
	return enabled, nil
}

func (c *ForwardingStateController) recordChange(scope string, ifIndex uint32, enabled, rebootRequired bool) {
	c.logger.ForwardingChange(scope, ifIndex, enabled, rebootRequired)
	if c.metrics != nil {
		c.metrics.RecordForwardingChange(scope, enabled)
	}
}

func asConfigAccessError(err error) error {
	if _, ok := entities.ErrorTypeOf(err); ok {
		return err
	}
	return entities.NewConfigAccessError("host forwarding", err)
}
