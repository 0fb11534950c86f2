package routing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/wesleywu/routefwd/internal/routing/entities"
)

type stackCall struct {
	Op    string
	Entry entities.ForwardEntry
}

// fakeStack records calls against an in-memory routing table
type fakeStack struct {
	mu         sync.Mutex
	calls      []stackCall
	table      []entities.ForwardEntry
	best       map[string]uint32
	forwarding map[uint32]bool
	metrics    map[uint32]uint32
	failCreate map[string]error
	setFwdErr  error
}

func newFakeStack() *fakeStack {
	return &fakeStack{
		best:       map[string]uint32{"10.0.0.1": 5},
		forwarding: map[uint32]bool{},
		metrics:    map[uint32]uint32{5: 25},
		failCreate: map[string]error{},
	}
}

func (f *fakeStack) CreateForwardEntry(entry entities.ForwardEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, stackCall{Op: "create", Entry: entry})
	if err, ok := f.failCreate[entry.Destination.String()]; ok {
		return err
	}
	f.table = append(f.table, entry)
	return nil
}

func (f *fakeStack) DeleteForwardEntry(entry entities.ForwardEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, stackCall{Op: "delete", Entry: entry})
	for i, e := range f.table {
		if e.Destination.Equal(entry.Destination) && e.Mask.Equal(entry.Mask) {
			f.table = append(f.table[:i], f.table[i+1:]...)
			return nil
		}
	}
	return entities.NewOSCallError(entry.Network().String(), 1168, errors.New("element not found"))
}

func (f *fakeStack) ListForwardEntries() ([]entities.ForwardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.ForwardEntry(nil), f.table...), nil
}

func (f *fakeStack) BestInterface(destination net.IP) (uint32, error) {
	if idx, ok := f.best[destination.String()]; ok {
		return idx, nil
	}
	return 0, entities.NewResolutionError(destination.String(), errors.New("no route to destination"))
}

func (f *fakeStack) InterfaceForwarding(ifIndex uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forwarding[ifIndex], nil
}

func (f *fakeStack) SetInterfaceForwarding(ifIndex uint32, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setFwdErr != nil {
		return f.setFwdErr
	}
	f.forwarding[ifIndex] = enabled
	return nil
}

func (f *fakeStack) InterfaceMetric(ifIndex uint32) (uint32, error) {
	m, ok := f.metrics[ifIndex]
	if !ok {
		return 0, fmt.Errorf("interface %d not found", ifIndex)
	}
	return m, nil
}

func (f *fakeStack) Close() error {
	return nil
}

func (f *fakeStack) callsOf(op string) []entities.ForwardEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entities.ForwardEntry
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c.Entry)
		}
	}
	return out
}

// staticResolver answers from a fixed table, unknown names fail
type staticResolver map[string][]net.IP

func (r staticResolver) LookupIPv4(_ context.Context, host string) ([]net.IP, error) {
	ips, ok := r[host]
	if !ok {
		return nil, fmt.Errorf("lookup %s: no such host", host)
	}
	return ips, nil
}

// mockHostStore is a testify mock of the persisted host flag
type mockHostStore struct {
	mock.Mock
}

func (m *mockHostStore) HostForwardingEnabled() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

func (m *mockHostStore) SetHostForwarding(enabled bool) error {
	args := m.Called(enabled)
	return args.Error(0)
}

// memStore is an in-memory host flag store
type memStore struct {
	enabled bool
	writes  int
}

func (s *memStore) HostForwardingEnabled() (bool, error) { return s.enabled, nil }

func (s *memStore) SetHostForwarding(enabled bool) error {
	s.enabled = enabled
	s.writes++
	return nil
}

// recordingTargetStore captures persisted lines and the call count
type recordingTargetStore struct {
	saves [][]string
	err   error
	// callsAtSave is the number of stack calls issued when the save happened
	stack       *fakeStack
	callsAtSave []int
}

func (s *recordingTargetStore) SaveTargets(lines []string) error {
	s.saves = append(s.saves, lines)
	if s.stack != nil {
		s.stack.mu.Lock()
		s.callsAtSave = append(s.callsAtSave, len(s.stack.calls))
		s.stack.mu.Unlock()
	}
	return s.err
}

// cancellingResolver answers every lookup and then cancels the batch context
type cancellingResolver struct {
	cancel context.CancelFunc
	answer net.IP
}

func (r cancellingResolver) LookupIPv4(_ context.Context, _ string) ([]net.IP, error) {
	r.cancel()
	return []net.IP{r.answer}, nil
}
