package routing

import (
	"context"
	"fmt"

	"github.com/wesleywu/routefwd/internal/logger"
	"github.com/wesleywu/routefwd/internal/routing/batch"
	"github.com/wesleywu/routefwd/internal/routing/entities"
)

// PlannedItem holds the entries one target would produce
type PlannedItem struct {
	Target  entities.RouteTarget
	Entries []entities.ForwardEntry
	Err     error
}

// Plan is a dry run of a batch
type Plan struct {
	Operation      entities.RouteAction
	Gateway        string
	InterfaceIndex uint32
	Metric         int
	Items          []PlannedItem
}

// Entries flattens the plan in issue order
func (p *Plan) Entries() []entities.ForwardEntry {
	var out []entities.ForwardEntry
	for _, item := range p.Items {
		out = append(out, item.Entries...)
	}
	return out
}

// Planner expands a batch without touching the routing table. Hostnames are
// resolved concurrently; the plan keeps input order.
type Planner struct {
	engine           *RouteTableEngine
	concurrencyLimit int
	logger           *logger.Logger
}

// NewPlanner creates a planner sharing the engine's stack and resolver
func NewPlanner(engine *RouteTableEngine, concurrencyLimit int, log *logger.Logger) *Planner {
	return &Planner{
		engine:           engine,
		concurrencyLimit: concurrencyLimit,
		logger:           log.WithComponent("planner"),
	}
}

func (p *Planner) Plan(ctx context.Context, b Batch) (*Plan, error) {
	bc, err := p.engine.prepare(b)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s plan: %w", b.Operation, err)
	}

	items, err := batch.ProcessConcurrent(ctx, b.Targets, func(ctx context.Context, t entities.RouteTarget, _ *logger.Logger) PlannedItem {
		entries, err := p.engine.expand(ctx, bc, t)
		return PlannedItem{Target: t, Entries: entries, Err: err}
	}, p.concurrencyLimit, p.logger)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("plan built", "targets", len(b.Targets), "interface", bc.ifIndex)

	return &Plan{
		Operation:      b.Operation,
		Gateway:        bc.gateway.String(),
		InterfaceIndex: bc.ifIndex,
		Metric:         bc.metric,
		Items:          items,
	}, nil
}
