package routing

import (
	"fmt"

	"github.com/wesleywu/routefwd/internal/logger"
	"github.com/wesleywu/routefwd/internal/routing/entities"
)

// Presence is the state of a planned entry in the system table
type Presence int

const (
	// PresenceMissing means no entry exists for the destination/mask
	PresenceMissing Presence = iota
	// PresencePresent means an entry exists via the planned next hop
	PresencePresent
	// PresenceConflict means an entry exists via another next hop
	PresenceConflict
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceConflict:
		return "conflict"
	default:
		return "missing"
	}
}

// PresenceItem pairs a planned entry with what the system table holds
type PresenceItem struct {
	Entry    entities.ForwardEntry
	Presence Presence
	Existing *entities.ForwardEntry
}

// Inspector compares planned entries with the system routing table
type Inspector struct {
	stack  entities.NetworkStack
	logger *logger.Logger
}

// NewInspector creates a new inspector
func NewInspector(stack entities.NetworkStack, log *logger.Logger) *Inspector {
	return &Inspector{
		stack:  stack,
		logger: log.WithComponent("inspector"),
	}
}

// Check looks up every planned entry in the current table
func (in *Inspector) Check(planned []entities.ForwardEntry) ([]PresenceItem, error) {
	current, err := in.stack.ListForwardEntries()
	if err != nil {
		return nil, fmt.Errorf("failed to list current routes: %w", err)
	}

	system := entities.NewNetworkSetFromEntries(current)
	in.logger.Debug("retrieved system routes", "total_count", len(current), "networks", system.Size())
	items := make([]PresenceItem, 0, len(planned))

	for _, entry := range planned {
		item := PresenceItem{Entry: entry, Presence: PresenceMissing}

		if existing, ok := system.Lookup(entry.Destination, entry.Mask); ok {
			item.Existing = &existing
			item.Presence = PresenceConflict
			if existing.NextHop.Equal(entry.NextHop) {
				item.Presence = PresencePresent
			}
			in.logger.Debug("found matching route",
				"network", entry.Network().String(),
				"gateway", existing.NextHop.String(),
				"interface", existing.InterfaceIndex)
		}

		items = append(items, item)
	}

	return items, nil
}

// Summarize counts items per presence state
func Summarize(items []PresenceItem) map[Presence]int {
	counts := make(map[Presence]int, 3)
	for _, item := range items {
		counts[item.Presence]++
	}
	return counts
}
