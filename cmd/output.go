package main

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/wesleywu/routefwd/internal/network"
	"github.com/wesleywu/routefwd/internal/routing"
	"github.com/wesleywu/routefwd/internal/routing/entities"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeader(header)
	return table
}

func entryCells(e *entities.ForwardEntry) []string {
	if e == nil {
		return []string{"", "", ""}
	}
	return []string{e.Destination.String(), e.Mask.String(), strconv.Itoa(int(e.Metric))}
}

func printReport(w io.Writer, r *routing.Report) {
	table := newTable(w, []string{"#", "Source", "Target", "Destination", "Mask", "Metric", "Status"})

	for i, res := range r.Results {
		status := "ok"
		if res.Err != nil {
			status = res.Err.Error()
		}
		row := []string{strconv.Itoa(i + 1), res.Target.Source, res.Target.Value}
		row = append(row, entryCells(res.Entry)...)
		table.Append(append(row, status))
	}
	table.Render()

	fmt.Fprintf(w, "\n%s via %s (interface %d): %d ok, %d failed in %s [batch %s]\n",
		r.Operation, r.Gateway, r.InterfaceIndex, r.Succeeded(), r.Failed(), r.Duration.Round(1e6), r.BatchID)
	if r.PersistErr != nil {
		fmt.Fprintf(w, "targets file not saved: %v\n", r.PersistErr)
	}
}

// printEnableOutcome prints the reboot notice whenever the host flag was
// written, including when the interface write failed afterwards
func printEnableOutcome(w io.Writer, ifIndex uint32, rebootRequired bool, err error) {
	if err == nil {
		fmt.Fprintf(w, "Forwarding enabled on interface %d\n", ifIndex)
	}
	if rebootRequired {
		fmt.Fprintln(w, "Host-wide forwarding was off and has been persisted: reboot required to take effect")
	}
}

func printPlan(w io.Writer, p *routing.Plan) {
	table := newTable(w, []string{"Source", "Target", "Destination", "Mask", "Metric", "Note"})

	for _, item := range p.Items {
		base := []string{item.Target.Source, item.Target.Value}
		if item.Err != nil {
			table.Append(append(base, "", "", "", item.Err.Error()))
			continue
		}
		for i := range item.Entries {
			row := append(append([]string{}, base...), entryCells(&item.Entries[i])...)
			table.Append(append(row, ""))
		}
	}
	table.Render()

	fmt.Fprintf(w, "\n%d entries via %s (interface %d, metric %d)\n", len(p.Entries()), p.Gateway, p.InterfaceIndex, p.Metric)
}

func printPresence(w io.Writer, items []routing.PresenceItem) {
	table := newTable(w, []string{"Destination", "Mask", "Next hop", "State", "Existing next hop"})

	for _, item := range items {
		existing := ""
		if item.Existing != nil {
			existing = item.Existing.NextHop.String()
		}
		table.Append([]string{
			item.Entry.Destination.String(),
			item.Entry.Mask.String(),
			item.Entry.NextHop.String(),
			item.Presence.String(),
			existing,
		})
	}
	table.Render()

	counts := routing.Summarize(items)
	fmt.Fprintf(w, "\n%d present, %d missing, %d conflicting\n",
		counts[routing.PresencePresent], counts[routing.PresenceMissing], counts[routing.PresenceConflict])
}

func printForwardingStatus(w io.Writer, gateway net.IP, s routing.ForwardingStatus) {
	table := newTable(w, []string{"Gateway", "Interface", "Host flag", "Interface flag", "Effective"})
	table.Append([]string{
		gateway.String(),
		strconv.FormatUint(uint64(s.InterfaceIndex), 10),
		strconv.FormatBool(s.HostEnabled),
		strconv.FormatBool(s.InterfaceEnabled),
		strconv.FormatBool(s.Effective()),
	})
	table.Render()
}

func printRoutes(w io.Writer, entries []entities.ForwardEntry) {
	table := newTable(w, []string{"Destination", "Mask", "Next hop", "Interface", "Metric", "Type", "Protocol"})

	for _, e := range entries {
		table.Append([]string{
			e.Destination.String(),
			e.Mask.String(),
			e.NextHop.String(),
			strconv.FormatUint(uint64(e.InterfaceIndex), 10),
			strconv.Itoa(int(e.Metric)),
			e.Type.String(),
			e.Protocol.String(),
		})
	}
	table.Render()
}

func printLists(w io.Writer, dir string, names, builtin []string) {
	table := newTable(w, []string{"List", "Location"})

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
		table.Append([]string{n, dir})
	}
	for _, n := range builtin {
		if !seen[n] {
			table.Append([]string{n, "builtin"})
		}
	}
	table.Render()
}

func printCandidates(w io.Writer, candidates []network.Candidate) {
	table := newTable(w, []string{"", "Index", "Interface", "Address", "Gateway", "Metric"})

	def, _ := network.DefaultCandidate(candidates)
	for _, c := range candidates {
		mark := ""
		if c.Interface.Index == def.Interface.Index {
			mark = "*"
		}
		address := ""
		if addrs := c.Interface.GetIPv4Addresses(); len(addrs) > 0 {
			address = addrs[0].String()
		}
		table.Append([]string{
			mark,
			strconv.Itoa(c.Interface.Index),
			c.Interface.Name,
			address,
			c.Gateway.String(),
			strconv.Itoa(int(c.Metric)),
		})
	}
	table.Render()
}
