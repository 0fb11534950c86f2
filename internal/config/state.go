package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// RunState records the last apply/remove batch so the next run can default the gateway
type RunState struct {
	Gateway        net.IP    `json:"gateway"`
	InterfaceIndex uint32    `json:"interface_index"`
	Operation      string    `json:"operation"`
	List           string    `json:"list,omitempty"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	LastUpdate     time.Time `json:"last_update"`
}

func LoadRunState(stateFile string) (*RunState, error) {
	if stateFile == "" {
		stateFile = DefaultStateFile
	}

	data, err := os.ReadFile(stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			// First run, return empty state
			return &RunState{}, nil
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse run state: %w", err)
	}

	return &state, nil
}

func (rs *RunState) Save(stateFile string) error {
	if stateFile == "" {
		stateFile = DefaultStateFile
	}

	dir := filepath.Dir(stateFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	if err := os.WriteFile(stateFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}

	return nil
}

func (rs *RunState) Update(gateway net.IP, ifIndex uint32, operation, list string, succeeded, failed int) {
	rs.Gateway = make(net.IP, len(gateway))
	copy(rs.Gateway, gateway)
	rs.InterfaceIndex = ifIndex
	rs.Operation = operation
	rs.List = list
	rs.Succeeded = succeeded
	rs.Failed = failed
	rs.LastUpdate = time.Now()
}

func (rs *RunState) HasPreviousState() bool {
	return rs.Gateway != nil && !rs.LastUpdate.IsZero()
}

func (rs *RunState) GetPreviousGateway() net.IP {
	if !rs.HasPreviousState() {
		return nil
	}

	gateway := make(net.IP, len(rs.Gateway))
	copy(gateway, rs.Gateway)
	return gateway
}
