package routing

import (
	"context"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/routefwd/internal/logger"
	"github.com/wesleywu/routefwd/internal/routing/entities"
)

func TestPlanDoesNotTouchTable(t *testing.T) {
	stack := newFakeStack()
	resolver := staticResolver{"dns.example": {net.ParseIP("223.5.5.5"), net.ParseIP("223.6.6.6")}}
	engine := newTestEngine(stack, resolver, nil)
	planner := NewPlanner(engine, 4, logger.Discard())

	targets := append(entities.ClassifyLines([]string{"dns.example", "nope.invalid", "8.8.8.8"}, ""),
		entities.CIDRLines([]string{"1.0.1.0/24", "bogus"}, "cn")...)

	plan, err := planner.Plan(context.Background(), Batch{
		Operation: entities.RouteActionAdd,
		Gateway:   "10.0.0.1",
		Targets:   targets,
		Metric:    entities.MetricUnused,
	})
	require.NoError(t, err)
	assert.Empty(t, stack.calls)

	assert.Equal(t, uint32(5), plan.InterfaceIndex)
	assert.Equal(t, 25, plan.Metric)
	require.Len(t, plan.Items, 5)
	assert.True(t, entities.IsResolutionError(plan.Items[1].Err))
	assert.True(t, entities.IsFormatError(plan.Items[4].Err))

	want := []string{
		"223.5.5.5/255.255.255.255",
		"223.6.6.6/255.255.255.255",
		"8.8.8.8/255.255.255.255",
		"1.0.1.0/255.255.255.0",
	}
	if diff := cmp.Diff(want, destinations(plan.Entries())); diff != "" {
		t.Errorf("unexpected plan (-want +got):\n%s", diff)
	}
}

func TestPlanGatewayFailure(t *testing.T) {
	planner := NewPlanner(newTestEngine(newFakeStack(), nil, nil), 2, logger.Discard())

	_, err := planner.Plan(context.Background(), Batch{Operation: entities.RouteActionAdd, Gateway: "300.0.0.1"})
	assert.True(t, entities.IsFormatError(err))
}

func TestInspectorCheck(t *testing.T) {
	stack := newFakeStack()
	gw := net.ParseIP("10.0.0.1")
	other := net.ParseIP("192.168.1.1")

	stack.table = []entities.ForwardEntry{
		entities.NewForwardEntry(net.ParseIP("1.0.1.0"), net.ParseIP("255.255.255.0"), gw, 5, 1),
		entities.NewForwardEntry(net.ParseIP("8.8.8.8"), net.ParseIP("255.255.255.255"), other, 2, 1),
	}

	planned := []entities.ForwardEntry{
		entities.NewForwardEntry(net.ParseIP("1.0.1.0"), net.ParseIP("255.255.255.0"), gw, 5, 1),
		entities.NewForwardEntry(net.ParseIP("8.8.8.8"), net.ParseIP("255.255.255.255"), gw, 5, 1),
		entities.NewForwardEntry(net.ParseIP("1.0.2.0"), net.ParseIP("255.255.254.0"), gw, 5, 1),
	}

	items, err := NewInspector(stack, logger.Discard()).Check(planned)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, PresencePresent, items[0].Presence)
	assert.Equal(t, PresenceConflict, items[1].Presence)
	require.NotNil(t, items[1].Existing)
	assert.Equal(t, "192.168.1.1", items[1].Existing.NextHop.String())
	assert.Equal(t, PresenceMissing, items[2].Presence)
	assert.Nil(t, items[2].Existing)

	counts := Summarize(items)
	assert.Equal(t, map[Presence]int{PresencePresent: 1, PresenceConflict: 1, PresenceMissing: 1}, counts)
	assert.Equal(t, "conflict", PresenceConflict.String())
}
