package entities

import (
	"fmt"
	"strings"

	"github.com/wesleywu/routefwd/internal/utils"
)

// TargetKind says how a target line turns into destinations
type TargetKind int

// Target kinds
const (
	// TargetAddress is a literal IPv4 address routed with a host mask
	TargetAddress TargetKind = iota
	// TargetHostname resolves to zero or more IPv4 addresses
	TargetHostname
	// TargetCIDR is an address/prefix line from a named list
	TargetCIDR
)

// String returns a string representation of the target kind
func (k TargetKind) String() string {
	switch k {
	case TargetAddress:
		return "address"
	case TargetHostname:
		return "hostname"
	case TargetCIDR:
		return "cidr"
	default:
		return "unknown"
	}
}

// RouteTarget is one input line of a batch
type RouteTarget struct {
	Kind   TargetKind
	Value  string
	Source string // list name or targets file the line came from
	Line   int    // 1-based line number within Source, 0 when not from a file
}

// String renders the target with its origin for error reports
func (t RouteTarget) String() string {
	if t.Source == "" {
		return t.Value
	}
	if t.Line > 0 {
		return fmt.Sprintf("%s:%d %s", t.Source, t.Line, t.Value)
	}
	return fmt.Sprintf("%s %s", t.Source, t.Value)
}

// IsLiteralOrHostname reports whether the target belongs to the persisted list
func (t RouteTarget) IsLiteralOrHostname() bool {
	return t.Kind == TargetAddress || t.Kind == TargetHostname
}

// ClassifyLines turns free-form target lines into address or hostname targets.
// Lines are trimmed and blank lines dropped; a line that parses as dotted IPv4
// is an address, anything else is treated as a hostname.
func ClassifyLines(lines []string, source string) []RouteTarget {
	targets := make([]RouteTarget, 0, len(lines))

	for lineNum, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		kind := TargetHostname
		if _, err := utils.ParseIPv4(line); err == nil {
			kind = TargetAddress
		}

		targets = append(targets, RouteTarget{
			Kind:   kind,
			Value:  line,
			Source: source,
			Line:   lineNum + 1,
		})
	}

	return targets
}

// CIDRLines turns the lines of a CIDR list into targets.
// Blank lines and '#' comments are skipped; malformed lines are kept so the
// engine can report them per item.
func CIDRLines(lines []string, source string) []RouteTarget {
	targets := make([]RouteTarget, 0, len(lines))

	for lineNum, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		targets = append(targets, RouteTarget{
			Kind:   TargetCIDR,
			Value:  line,
			Source: source,
			Line:   lineNum + 1,
		})
	}

	return targets
}

// PersistableLines returns the literal and hostname values in input order
func PersistableLines(targets []RouteTarget) []string {
	var lines []string
	for _, t := range targets {
		if t.IsLiteralOrHostname() {
			lines = append(lines, t.Value)
		}
	}
	return lines
}
