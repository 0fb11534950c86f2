package routing

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/routefwd/internal/logger"
	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/routing/metrics"
)

func newTestController(stack *fakeStack, host entities.HostForwardingStore) *ForwardingStateController {
	return NewForwardingStateController(host, NewInterfaceResolver(stack), metrics.NewMetrics(), logger.Discard())
}

func TestEnableRebootRequiredOnlyOnce(t *testing.T) {
	stack := newFakeStack()
	host := &memStore{}
	c := newTestController(stack, host)

	reboot, err := c.Enable(5)
	require.NoError(t, err)
	assert.True(t, reboot)
	assert.True(t, host.enabled)
	assert.True(t, stack.forwarding[5])

	reboot, err = c.Enable(5)
	require.NoError(t, err)
	assert.False(t, reboot)
	assert.Equal(t, 1, host.writes)
	assert.True(t, stack.forwarding[5])
}

func TestDisableLeavesHostFlag(t *testing.T) {
	stack := newFakeStack()
	host := &memStore{enabled: true}
	stack.forwarding[5] = true
	c := newTestController(stack, host)

	require.NoError(t, c.Disable(5))
	assert.False(t, stack.forwarding[5])
	assert.True(t, host.enabled)
	assert.Equal(t, 0, host.writes)
}

func TestEnableHostReadFailureLeavesInterface(t *testing.T) {
	stack := newFakeStack()
	host := &mockHostStore{}
	host.On("HostForwardingEnabled").Return(false, errors.New("access denied"))
	c := newTestController(stack, host)

	reboot, err := c.Enable(5)
	require.Error(t, err)
	assert.False(t, reboot)
	assert.True(t, entities.IsConfigAccessError(err))
	assert.False(t, stack.forwarding[5])

	host.AssertExpectations(t)
	host.AssertNotCalled(t, "SetHostForwarding", mock.Anything)
}

func TestEnableHostWriteFailureLeavesInterface(t *testing.T) {
	stack := newFakeStack()
	host := &mockHostStore{}
	host.On("HostForwardingEnabled").Return(false, nil)
	host.On("SetHostForwarding", true).Return(entities.NewConfigAccessError("registry", errors.New("access denied")))
	c := newTestController(stack, host)

	_, err := c.Enable(5)
	require.Error(t, err)
	assert.True(t, entities.IsConfigAccessError(err))
	_, touched := stack.forwarding[5]
	assert.False(t, touched)
	host.AssertExpectations(t)
}

func TestEnableInterfaceFailureStillReportsReboot(t *testing.T) {
	stack := newFakeStack()
	stack.setFwdErr = entities.NewOSCallError("interface 5", 5, errors.New("access denied"))
	host := &memStore{}
	c := newTestController(stack, host)

	reboot, err := c.Enable(5)
	require.Error(t, err)
	assert.True(t, reboot)
	assert.True(t, entities.IsOSCallError(err))
}

func TestQueryEffectiveForwarding(t *testing.T) {
	gateway := net.ParseIP("10.0.0.1")

	tests := []struct {
		name      string
		host      bool
		iface     bool
		effective bool
	}{
		{"both off", false, false, false},
		{"host only", true, false, false},
		{"interface only", false, true, false},
		{"both on", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := newFakeStack()
			stack.forwarding[5] = tt.iface
			c := newTestController(stack, &memStore{enabled: tt.host})

			effective, err := c.QueryEffectiveForwarding(gateway)
			require.NoError(t, err)
			assert.Equal(t, tt.effective, effective)
		})
	}

	c := newTestController(newFakeStack(), &memStore{enabled: true})
	_, err := c.QueryEffectiveForwarding(net.ParseIP("192.0.2.1"))
	assert.True(t, entities.IsResolutionError(err))
}

func TestGatewayVariants(t *testing.T) {
	stack := newFakeStack()
	c := newTestController(stack, &memStore{})
	gateway := net.ParseIP("10.0.0.1")

	ifIndex, reboot, err := c.EnableForGateway(gateway)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), ifIndex)
	assert.True(t, reboot)

	status, err := c.Status(gateway)
	require.NoError(t, err)
	assert.Equal(t, ForwardingStatus{HostEnabled: true, InterfaceIndex: 5, InterfaceEnabled: true}, status)
	assert.True(t, status.Effective())

	ifIndex, err = c.DisableForGateway(gateway)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), ifIndex)
	assert.False(t, stack.forwarding[5])
}
