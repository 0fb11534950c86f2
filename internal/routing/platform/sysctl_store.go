package platform

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wesleywu/routefwd/internal/routing/entities"
)

const (
	// LinuxForwardingKey is the IPv4 forwarding sysctl on Linux
	LinuxForwardingKey = "net.ipv4.ip_forward"
	// BSDForwardingKey is the IPv4 forwarding sysctl on Darwin and FreeBSD
	BSDForwardingKey = "net.inet.ip.forwarding"
)

// SysctlFileStore keeps the host forwarding flag in a sysctl.conf style file.
// The kernel value is left alone; the file is applied at the next boot.
type SysctlFileStore struct {
	Path string
	// Key defaults to LinuxForwardingKey
	Key string
}

func (s *SysctlFileStore) key() string {
	if s.Key == "" {
		return LinuxForwardingKey
	}
	return s.Key
}

// HostForwardingEnabled reports the persisted value, a missing file or key reads as disabled
func (s *SysctlFileStore) HostForwardingEnabled() (bool, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, entities.NewConfigAccessError(s.Path, err)
	}

	value, found := lookupSysctl(data, s.key())
	return found && value == "1", nil
}

// SetHostForwarding rewrites the key, creating the file when needed
func (s *SysctlFileStore) SetHostForwarding(enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}

	data, err := os.ReadFile(s.Path)
	if err != nil && !os.IsNotExist(err) {
		return entities.NewConfigAccessError(s.Path, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return entities.NewConfigAccessError(s.Path, fmt.Errorf("failed to create directory: %w", err))
	}

	out := replaceSysctl(data, s.key(), val)
	if err := os.WriteFile(s.Path, out, 0644); err != nil {
		return entities.NewConfigAccessError(s.Path, err)
	}
	return nil
}

func lookupSysctl(data []byte, key string) (string, bool) {
	var value string
	found := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		k, v, ok := splitSysctlLine(scanner.Text())
		if ok && k == key {
			// later assignments win, like sysctl --system
			value, found = v, true
		}
	}
	return value, found
}

func replaceSysctl(data []byte, key, value string) []byte {
	var out bytes.Buffer
	written := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if k, _, ok := splitSysctlLine(line); ok && k == key {
			if !written {
				fmt.Fprintf(&out, "%s = %s\n", key, value)
				written = true
			}
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	if !written {
		fmt.Fprintf(&out, "%s = %s\n", key, value)
	}
	return out.Bytes()
}

func splitSysctlLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
		return "", "", false
	}

	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	// sysctl accepts both dotted and slashed key forms
	k = strings.ReplaceAll(strings.TrimSpace(k), "/", ".")
	return k, strings.TrimSpace(v), true
}
