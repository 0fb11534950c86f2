//go:build !linux && !windows && !darwin && !freebsd

package platform

import (
	"fmt"
	"runtime"

	"github.com/wesleywu/routefwd/internal/routing/entities"
)

var errUnsupported = fmt.Errorf("routing is not supported on %s", runtime.GOOS)

type unsupportedStack struct{}

// NewPlatformNetworkStack reports that this platform has no implementation
func NewPlatformNetworkStack() (entities.NetworkStack, error) {
	return nil, &entities.RouteOperationError{ErrorType: entities.RouteErrUnsupported, Item: runtime.GOOS, Cause: errUnsupported}
}

// NewPlatformHostForwardingStore returns a store that always fails
func NewPlatformHostForwardingStore(_ string) entities.HostForwardingStore {
	return unsupportedStack{}
}

func (unsupportedStack) HostForwardingEnabled() (bool, error) {
	return false, &entities.RouteOperationError{ErrorType: entities.RouteErrUnsupported, Item: runtime.GOOS, Cause: errUnsupported}
}

func (unsupportedStack) SetHostForwarding(bool) error {
	return &entities.RouteOperationError{ErrorType: entities.RouteErrUnsupported, Item: runtime.GOOS, Cause: errUnsupported}
}
