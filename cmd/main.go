package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wesleywu/routefwd/internal/config"
	"github.com/wesleywu/routefwd/internal/logger"
	"github.com/wesleywu/routefwd/internal/network"
	"github.com/wesleywu/routefwd/internal/routing"
	"github.com/wesleywu/routefwd/internal/routing/entities"
	"github.com/wesleywu/routefwd/internal/routing/metrics"
	"github.com/wesleywu/routefwd/internal/routing/platform"
)

var (
	version = "1.0.0"

	configFile  string
	silentMode  bool
	verboseMode bool
	logFormat   string

	gatewayFlag     string
	listFlag        string
	targetsFileFlag string
	targetFlags     []string
	metricFlag      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "routefwd",
		Short: "Static IPv4 route and forwarding manager",
		Long:  `Adds or removes static IPv4 routes for addresses, hostnames and CIDR lists through a chosen gateway, and manages IP forwarding on the gateway's interface.`,
	}

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Add routes through the gateway",
		Long:  `Add host routes for the literal and hostname targets, then network routes for every line of the selected CIDR list.`,
		Run:   func(cmd *cobra.Command, _ []string) { runBatch(cmd, entities.RouteActionAdd) },
	}

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove routes through the gateway",
		Long:  `Remove the routes that apply would create for the same targets and list.`,
		Run:   func(cmd *cobra.Command, _ []string) { runBatch(cmd, entities.RouteActionDelete) },
	}

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the routes apply would create",
		Long:  `Resolve every target and print the entries apply would issue, without touching the routing table.`,
		Run:   runPlan,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Compare planned routes with the routing table",
		Run:   runCheck,
	}

	forwardingCmd := &cobra.Command{
		Use:   "forwarding",
		Short: "Manage IP forwarding for the gateway's interface",
	}

	forwardingEnableCmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable forwarding on the interface routing to the gateway",
		Long:  `Enable forwarding on the interface. The host-wide setting is persisted first when it is off; that change takes effect after a reboot.`,
		Run:   runForwardingEnable,
	}

	forwardingDisableCmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable forwarding on the interface routing to the gateway",
		Long:  `Disable forwarding on the interface only. The host-wide setting is left unchanged.`,
		Run:   runForwardingDisable,
	}

	forwardingStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether forwarding to the gateway is effective",
		Run:   runForwardingStatus,
	}

	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "List the IPv4 routing table",
		Run:   runRoutes,
	}

	listsCmd := &cobra.Command{
		Use:   "lists",
		Short: "List available CIDR lists",
		Run:   runLists,
	}

	interfacesCmd := &cobra.Command{
		Use:   "interfaces",
		Short: "List physical interfaces with a default gateway",
		Run:   runInterfaces,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show version, build information and system details.`,
		Run:   showVersion,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "Silent mode (errors only)")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "Verbose mode (debug level logging)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&gatewayFlag, "gateway", "g", "", "Gateway address (default: detected physical gateway)")

	for _, cmd := range []*cobra.Command{applyCmd, removeCmd, planCmd, checkCmd} {
		cmd.Flags().StringVarP(&listFlag, "list", "l", config.NoList, "CIDR list name, or \"none\"")
		cmd.Flags().StringVar(&targetsFileFlag, "targets-file", "", "Persisted address/hostname list")
		cmd.Flags().StringArrayVarP(&targetFlags, "target", "t", nil, "Address or hostname target (repeatable, replaces the targets file)")
		cmd.Flags().IntVarP(&metricFlag, "metric", "m", -1, "Route metric, -1 uses the interface metric")
	}

	forwardingCmd.AddCommand(forwardingEnableCmd, forwardingDisableCmd, forwardingStatusCmd)

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(forwardingCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(interfacesCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles what every command needs
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	stack   entities.NetworkStack
	metrics *metrics.Metrics
}

func setup() *app {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if verboseMode {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, silentMode)

	stack, err := platform.NewPlatformNetworkStack()
	if err != nil {
		log.Error("Failed to open network stack", "error", err)
		os.Exit(1)
	}

	return &app{cfg: cfg, log: log, stack: stack, metrics: metrics.NewMetrics()}
}

func (a *app) close() {
	if total, ok, failed, avg := a.metrics.GetStats(); total > 0 {
		a.log.Performance("route calls", map[string]interface{}{
			"total":       total,
			"successful":  ok,
			"failed":      failed,
			"avg_latency": avg.String(),
		})
	}
	if a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.log.Warn("Failed to write metrics file", "file", a.cfg.MetricsFile, "error", err)
		}
	}
	a.stack.Close()
}

func (a *app) fail(msg string, err error) {
	a.log.Error(msg, "error", err)
	a.close()
	os.Exit(1)
}

// resolveGateway picks the flag, then the detected physical gateway, then the last run's gateway
func (a *app) resolveGateway() string {
	if gatewayFlag != "" {
		return gatewayFlag
	}

	gateway, iface, err := network.GetDefaultGateway(a.stack)
	if err == nil {
		a.log.Info("Default gateway detected", "gateway", gateway.String(), "interface", iface)
		return gateway.String()
	}
	a.log.Debug("Gateway detection failed", "error", err)

	state, stateErr := config.LoadRunState(a.cfg.StateFile)
	if stateErr == nil {
		if prev := state.GetPreviousGateway(); prev != nil {
			a.log.Info("Using gateway from last run", "gateway", prev.String())
			return prev.String()
		}
	}

	a.fail("No gateway given and none detected", err)
	return ""
}

func (a *app) targetsFile() *config.TargetsFile {
	path := a.cfg.TargetsFile
	if targetsFileFlag != "" {
		path = targetsFileFlag
	}
	return &config.TargetsFile{Path: path}
}

// buildBatch collects literal/hostname targets first, then the CIDR list lines
func (a *app) buildBatch(cmd *cobra.Command, action entities.RouteAction) routing.Batch {
	tf := a.targetsFile()

	lines := targetFlags
	source := "--target"
	if len(lines) == 0 {
		loaded, err := tf.Load()
		if err != nil {
			a.fail("Failed to load targets file", err)
		}
		lines = loaded
		source = tf.Path
	}
	targets := entities.ClassifyLines(lines, source)

	listLines := 0
	if listFlag != "" && !strings.EqualFold(listFlag, config.NoList) {
		cidrLines, err := config.LoadListWithFallback(a.cfg.ListDir, listFlag)
		if err != nil {
			a.fail("Failed to load CIDR list", err)
		}
		cidrTargets := entities.CIDRLines(cidrLines, listFlag)
		listLines = len(cidrTargets)
		targets = append(targets, cidrTargets...)
	}

	a.log.ConfigLoaded(configFile, listLines, len(targets)-listLines)

	metric := a.cfg.Metric
	if cmd.Flags().Changed("metric") {
		metric = metricFlag
	}

	return routing.Batch{
		Operation: action,
		Gateway:   a.resolveGateway(),
		Targets:   targets,
		Metric:    metric,
	}
}

func (a *app) newEngine(store routing.TargetStore) *routing.RouteTableEngine {
	resolver := routing.NewDNSResolver(a.cfg.DNSServers, a.cfg.ResolveTimeout, a.log)
	return routing.NewRouteTableEngine(a.stack, resolver, store, a.metrics, a.log)
}

func (a *app) newController() *routing.ForwardingStateController {
	host := platform.NewPlatformHostForwardingStore(a.cfg.SysctlFile)
	return routing.NewForwardingStateController(host, routing.NewInterfaceResolver(a.stack), a.metrics, a.log)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runBatch(cmd *cobra.Command, action entities.RouteAction) {
	a := setup()
	b := a.buildBatch(cmd, action)

	if len(b.Targets) == 0 {
		a.log.Warn("Nothing to do: no targets and no list selected")
		a.close()
		return
	}

	ctx, cancel := signalContext()
	defer cancel()

	engine := a.newEngine(a.targetsFile())
	report, err := engine.ApplyOrRemove(ctx, b)
	if err != nil {
		a.fail("Batch failed", err)
	}

	printReport(os.Stdout, report)

	state, err := config.LoadRunState(a.cfg.StateFile)
	if err == nil {
		list := listFlag
		if strings.EqualFold(list, config.NoList) {
			list = ""
		}
		state.Update(report.Gateway, report.InterfaceIndex, action.String(), list, report.Succeeded(), report.Failed())
		if err := state.Save(a.cfg.StateFile); err != nil {
			a.log.Warn("Failed to save run state", "error", err)
		}
	}

	a.close()
	if report.Failed() > 0 || report.PersistErr != nil {
		os.Exit(1)
	}
}

func runPlan(cmd *cobra.Command, _ []string) {
	a := setup()
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	plan, err := routing.NewPlanner(a.newEngine(nil), a.cfg.ConcurrencyLimit, a.log).
		Plan(ctx, a.buildBatch(cmd, entities.RouteActionAdd))
	if err != nil {
		a.fail("Plan failed", err)
	}

	printPlan(os.Stdout, plan)
}

func runCheck(cmd *cobra.Command, _ []string) {
	a := setup()
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	plan, err := routing.NewPlanner(a.newEngine(nil), a.cfg.ConcurrencyLimit, a.log).
		Plan(ctx, a.buildBatch(cmd, entities.RouteActionAdd))
	if err != nil {
		a.fail("Plan failed", err)
	}

	items, err := routing.NewInspector(a.stack, a.log).Check(plan.Entries())
	if err != nil {
		a.fail("Check failed", err)
	}

	printPresence(os.Stdout, items)
}

func (a *app) gatewayIP() net.IP {
	gateway, err := routing.ParseGateway(a.resolveGateway())
	if err != nil {
		a.fail("Invalid gateway", err)
	}
	return gateway
}

func runForwardingEnable(_ *cobra.Command, _ []string) {
	a := setup()
	defer a.close()

	ifIndex, rebootRequired, err := a.newController().EnableForGateway(a.gatewayIP())
	printEnableOutcome(os.Stdout, ifIndex, rebootRequired, err)
	if err != nil {
		a.fail("Failed to enable forwarding", err)
	}
}

func runForwardingDisable(_ *cobra.Command, _ []string) {
	a := setup()
	defer a.close()

	ifIndex, err := a.newController().DisableForGateway(a.gatewayIP())
	if err != nil {
		a.fail("Failed to disable forwarding", err)
	}
	fmt.Printf("Forwarding disabled on interface %d\n", ifIndex)
}

func runForwardingStatus(_ *cobra.Command, _ []string) {
	a := setup()
	defer a.close()

	gateway := a.gatewayIP()
	status, err := a.newController().Status(gateway)
	if err != nil {
		a.fail("Failed to read forwarding state", err)
	}

	printForwardingStatus(os.Stdout, gateway, status)
}

func runRoutes(_ *cobra.Command, _ []string) {
	a := setup()
	defer a.close()

	entries, err := a.stack.ListForwardEntries()
	if err != nil {
		a.fail("Failed to list routes", err)
	}
	printRoutes(os.Stdout, entries)
}

func runLists(_ *cobra.Command, _ []string) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	names, err := config.ListCIDRFiles(cfg.ListDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read lists: %v\n", err)
		os.Exit(1)
	}

	printLists(os.Stdout, cfg.ListDir, names, config.BuiltinListNames())
}

func runInterfaces(_ *cobra.Command, _ []string) {
	a := setup()
	defer a.close()

	candidates, err := network.DiscoverCandidates(a.stack)
	if err != nil {
		a.fail("Failed to discover interfaces", err)
	}
	printCandidates(os.Stdout, candidates)
}

func showVersion(_ *cobra.Command, _ []string) {
	fmt.Printf("routefwd v%s\n", version)
	fmt.Printf("Runtime: %s\n", runtime.Version())
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	stack, err := platform.NewPlatformNetworkStack()
	if err != nil {
		return
	}
	defer stack.Close()

	gateway, iface, err := network.GetDefaultGateway(stack)
	if err == nil {
		fmt.Printf("Current Gateway: %s (%s)\n", gateway.String(), iface)
	}
}
