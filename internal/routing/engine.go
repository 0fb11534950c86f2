package routing

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/wesleywu/routefwd/internal/logger"
	"github.com/wesleywu/routefwd/internal/routing/batch"
	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/routing/metrics"
	"github.com/wesleywu/routefwd/internal/utils"
)

// TargetStore persists the literal/hostname lines of a batch for the next run
type TargetStore interface {
	SaveTargets(lines []string) error
}

// Batch is one apply or remove request. All targets share the gateway,
// its outbound interface and the metric.
type Batch struct {
	Operation entities.RouteAction
	Gateway   string
	Targets   []entities.RouteTarget
	// Metric for created entries, entities.MetricUnused takes the interface metric
	Metric int
}

// ItemResult is the outcome of one entry, or of a target that produced no entry
type ItemResult struct {
	Target entities.RouteTarget
	Entry  *entities.ForwardEntry
	Err    error
}

// OK reports whether the item succeeded
func (r ItemResult) OK() bool {
	return r.Err == nil
}

// Report collects the per-item outcome of a batch, in issue order
type Report struct {
	BatchID        string
	Operation      entities.RouteAction
	Gateway        net.IP
	InterfaceIndex uint32
	Metric         int
	Results        []ItemResult
	Persisted      bool
	PersistErr     error
	Duration       time.Duration
}

// Succeeded returns the number of successful items
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed items
func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Failures returns the failed items
func (r *Report) Failures() []ItemResult {
	var out []ItemResult
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// RouteTableEngine applies or removes forward entries for a batch of targets
type RouteTableEngine struct {
	stack    entities.NetworkStack
	ifaces   *InterfaceResolver
	resolver HostResolver
	store    TargetStore
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewRouteTableEngine creates an engine; store and m may be nil
func NewRouteTableEngine(stack entities.NetworkStack, resolver HostResolver, store TargetStore, m *metrics.Metrics, log *logger.Logger) *RouteTableEngine {
	return &RouteTableEngine{
		stack:    stack,
		ifaces:   NewInterfaceResolver(stack),
		resolver: resolver,
		store:    store,
		metrics:  m,
		logger:   log.WithComponent("engine"),
	}
}

// batchContext is the resolved shared state of a batch
type batchContext struct {
	operation entities.RouteAction
	gateway   net.IP
	ifIndex   uint32
	metric    int
}

// prepare parses the gateway, resolves its interface and settles the metric.
// Any failure here aborts the whole batch.
func (e *RouteTableEngine) prepare(b Batch) (batchContext, error) {
	gateway, err := ParseGateway(b.Gateway)
	if err != nil {
		return batchContext{}, err
	}

	ifIndex, err := e.ifaces.ResolveOutboundInterface(gateway)
	if err != nil {
		return batchContext{}, err
	}

	metric := b.Metric
	switch {
	case b.Operation == entities.RouteActionDelete:
		metric = entities.MetricUnused
	case metric < 0:
		ifMetric, err := e.ifaces.InterfaceMetric(ifIndex)
		if err != nil {
			return batchContext{}, err
		}
		metric = int(ifMetric)
	}

	return batchContext{operation: b.Operation, gateway: gateway, ifIndex: ifIndex, metric: metric}, nil
}

// ApplyOrRemove processes the targets strictly in order. Per-item failures are
// recorded in the report and never stop the batch; the returned error is only
// set when the gateway cannot be parsed or routed to. When ctx is cancelled
// the remaining targets are reported as cancelled items.
func (e *RouteTableEngine) ApplyOrRemove(ctx context.Context, b Batch) (*Report, error) {
	start := time.Now()

	bc, err := e.prepare(b)
	if err != nil {
		e.logger.Error("batch aborted", "operation", b.Operation.String(), "gateway", b.Gateway, "error", err)
		return nil, fmt.Errorf("failed to prepare %s batch: %w", b.Operation, err)
	}

	report := &Report{
		BatchID:        uuid.NewString(),
		Operation:      b.Operation,
		Gateway:        bc.gateway,
		InterfaceIndex: bc.ifIndex,
		Metric:         bc.metric,
	}
	log := e.logger.WithFields("batch_id", report.BatchID)

	log.Debug("batch started",
		"operation", b.Operation.String(),
		"gateway", bc.gateway.String(),
		"interface", bc.ifIndex,
		"metric", bc.metric,
		"targets", len(b.Targets))

	lastLiteral := -1
	for i, t := range b.Targets {
		if t.IsLiteralOrHostname() {
			lastLiteral = i
		}
	}

	indexed := make([]indexedTarget, len(b.Targets))
	for i, t := range b.Targets {
		indexed[i] = indexedTarget{index: i, target: t}
	}

	perTarget := batch.Process(ctx, indexed, func(ctx context.Context, it indexedTarget, log *logger.Logger) []ItemResult {
		results := e.processTarget(ctx, bc, it.target, log)
		if it.index == lastLiteral {
			e.persist(b.Targets, report, log)
		}
		return results
	}, log)

	for _, results := range perTarget {
		report.Results = append(report.Results, results...)
	}

	if ran := len(perTarget); ran < len(indexed) {
		if ran <= lastLiteral {
			e.persist(b.Targets, report, log)
		}
		cause := context.Cause(ctx)
		for _, it := range indexed[ran:] {
			err := entities.NewCancelledError(it.target.String(), cause)
			report.Results = append(report.Results, ItemResult{Target: it.target, Err: err})
			e.recordFailure(bc.operation, err)
		}
	}

	report.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordBatch(countKinds(b.Targets))
	}
	log.BatchOperation(b.Operation.String(), len(report.Results), report.Succeeded(), report.Failed(), report.Duration.Milliseconds())

	return report, nil
}

type indexedTarget struct {
	index  int
	target entities.RouteTarget
}

// processTarget expands one target and issues a call per resulting entry
func (e *RouteTableEngine) processTarget(ctx context.Context, bc batchContext, t entities.RouteTarget, log *logger.Logger) []ItemResult {
	entries, err := e.expand(ctx, bc, t)
	if err != nil {
		log.Warn("target skipped", "target", t.String(), "error", err)
		e.recordFailure(bc.operation, err)
		return []ItemResult{{Target: t, Err: err}}
	}

	results := make([]ItemResult, 0, len(entries))
	for i := range entries {
		entry := entries[i]
		results = append(results, ItemResult{Target: t, Entry: &entry, Err: e.issue(bc.operation, entry, log)})
	}
	return results
}

// expand turns a target into forward entries. Hostnames are awaited here so
// the call order always follows the input order.
func (e *RouteTableEngine) expand(ctx context.Context, bc batchContext, t entities.RouteTarget) ([]entities.ForwardEntry, error) {
	switch t.Kind {
	case entities.TargetAddress:
		ip, err := utils.ParseIPv4(t.Value)
		if err != nil {
			return nil, entities.NewFormatError(t.String(), err)
		}
		return []entities.ForwardEntry{e.newEntry(bc, ip, utils.HostMask)}, nil

	case entities.TargetHostname:
		if e.resolver == nil {
			return nil, entities.NewResolutionError(t.String(), fmt.Errorf("no resolver configured"))
		}
		ips, err := e.resolver.LookupIPv4(ctx, t.Value)
		if err != nil {
			return nil, entities.NewResolutionError(t.String(), err)
		}

		entries := make([]entities.ForwardEntry, 0, len(ips))
		for _, ip := range ips {
			if ip.To4() == nil {
				continue
			}
			entries = append(entries, e.newEntry(bc, ip, utils.HostMask))
		}
		if len(entries) == 0 {
			return nil, entities.NewResolutionError(t.String(), ErrNoAddress)
		}
		return entries, nil

	case entities.TargetCIDR:
		dest, mask, err := utils.ParseCIDR(t.Value)
		if err != nil {
			return nil, entities.NewFormatError(t.String(), err)
		}
		return []entities.ForwardEntry{e.newEntry(bc, dest, mask)}, nil

	default:
		return nil, entities.NewFormatError(t.String(), fmt.Errorf("unknown target kind %d", t.Kind))
	}
}

func (e *RouteTableEngine) newEntry(bc batchContext, destination, mask net.IP) entities.ForwardEntry {
	return entities.NewForwardEntry(destination, mask, bc.gateway, bc.ifIndex, bc.metric)
}

// issue performs the create or delete call for one entry
func (e *RouteTableEngine) issue(action entities.RouteAction, entry entities.ForwardEntry, log *logger.Logger) error {
	start := time.Now()
	network := entry.Network().String()

	err := entry.Validate()
	switch {
	case err != nil:
		err = &entities.RouteOperationError{ErrorType: entities.RouteErrFormat, Item: network, Entry: &entry, Cause: err}
	case action == entities.RouteActionDelete:
		err = e.stack.DeleteForwardEntry(entry)
	default:
		err = e.stack.CreateForwardEntry(entry)
	}
	if err != nil {
		if _, ok := entities.ErrorTypeOf(err); !ok {
			err = &entities.RouteOperationError{ErrorType: entities.RouteErrOSCall, Item: network, Entry: &entry, Cause: err}
		}
	}

	duration := time.Since(start)
	log.RouteOperation(action.String(), network, entry.NextHop.String(), duration.Milliseconds(), err == nil)
	if err != nil {
		log.Warn("route call failed", "action", action.String(), "network", network, "error", err)
	}

	if e.metrics != nil {
		e.metrics.RecordOperation(action.String(), duration, err == nil)
		if err != nil {
			e.recordFailure(action, err)
		}
	}
	return err
}

// persist saves the literal/hostname lines once, regardless of their outcome
func (e *RouteTableEngine) persist(targets []entities.RouteTarget, report *Report, log *logger.Logger) {
	if e.store == nil {
		return
	}

	lines := entities.PersistableLines(targets)
	if err := e.store.SaveTargets(lines); err != nil {
		log.Warn("failed to persist targets", "error", err)
		report.PersistErr = err
		return
	}
	report.Persisted = true
	log.Debug("targets persisted", "count", len(lines))
}

func (e *RouteTableEngine) recordFailure(action entities.RouteAction, err error) {
	if e.metrics == nil {
		return
	}
	errType := "Unknown"
	if t, ok := entities.ErrorTypeOf(err); ok {
		errType = t.String()
	}
	e.metrics.RecordFailure(action.String(), errType)
}

func countKinds(targets []entities.RouteTarget) map[string]int {
	counts := map[string]int{
		entities.TargetAddress.String():  0,
		entities.TargetHostname.String(): 0,
		entities.TargetCIDR.String():     0,
	}
	for _, t := range targets {
		counts[t.Kind.String()]++
	}
	return counts
}
