package main

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wesleywu/routefwd/internal/network"
	"github.com/wesleywu/routefwd/internal/routing"
	"github.com/wesleywu/routefwd/internal/routing/entities"
)

func TestPrintReport(t *testing.T) {
	entry := entities.NewForwardEntry(net.ParseIP("8.8.8.8"), net.ParseIP("255.255.255.255"), net.ParseIP("10.0.0.1"), 5, 25)
	report := &routing.Report{
		BatchID:        "b1",
		Operation:      entities.RouteActionAdd,
		Gateway:        net.ParseIP("10.0.0.1"),
		InterfaceIndex: 5,
		Results: []routing.ItemResult{
			{Target: entities.RouteTarget{Kind: entities.TargetAddress, Value: "8.8.8.8", Source: "extra.txt", Line: 1}, Entry: &entry},
			{Target: entities.RouteTarget{Kind: entities.TargetHostname, Value: "nope.invalid"}, Err: entities.NewResolutionError("nope.invalid", errors.New("no such host"))},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "255.255.255.255")
	assert.Contains(t, out, "nope.invalid")
	assert.Contains(t, out, "[Resolution]")
	assert.Contains(t, out, "add via 10.0.0.1 (interface 5): 1 ok, 1 failed")
}

func TestPrintCandidatesMarksDefault(t *testing.T) {
	candidates := []network.Candidate{
		{Interface: network.InterfaceInfo{Index: 2, Name: "eth0"}, Gateway: net.ParseIP("192.168.1.1")},
		{Interface: network.InterfaceInfo{Index: 4, Name: "wlan0", IPs: []net.IP{net.ParseIP("fe80::4"), net.ParseIP("172.16.0.20")}}, Gateway: net.ParseIP("172.16.0.1")},
	}

	var buf bytes.Buffer
	printCandidates(&buf, candidates)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	last := string(lines[len(lines)-1])
	assert.Contains(t, last, "*")
	assert.Contains(t, last, "wlan0")
	assert.Contains(t, last, "172.16.0.20")
	assert.NotContains(t, last, "fe80::4")
}

func TestPrintLists(t *testing.T) {
	var buf bytes.Buffer
	printLists(&buf, "list", []string{"cn", "private"}, []string{"private"})

	out := buf.String()
	assert.Contains(t, out, "cn")
	assert.NotContains(t, out, "builtin")
}

func TestPrintEnableOutcome(t *testing.T) {
	tests := []struct {
		name           string
		rebootRequired bool
		err            error
		contains       []string
		excludes       []string
	}{
		{"enabled", false, nil, []string{"enabled on interface 5"}, []string{"reboot"}},
		{"enabled after host change", true, nil, []string{"enabled on interface 5", "reboot required"}, nil},
		{"interface write failed after host change", true, errors.New("access denied"), []string{"reboot required"}, []string{"enabled on interface"}},
		{"failed", false, errors.New("access denied"), nil, []string{"enabled on interface", "reboot"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printEnableOutcome(&buf, 5, tt.rebootRequired, tt.err)
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}
