package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/routefwd/internal/routing/entities"
)

func TestSysctlFileStoreMissingFile(t *testing.T) {
	store := &SysctlFileStore{Path: filepath.Join(t.TempDir(), "sysctl.d", "99-test.conf")}

	enabled, err := store.HostForwardingEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, store.SetHostForwarding(true))

	enabled, err = store.HostForwardingEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, "net.ipv4.ip_forward = 1\n", string(data))
}

func TestSysctlFileStorePreservesOtherLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forward.conf")
	content := "# managed\nnet.core.somaxconn = 1024\nnet/ipv4/ip_forward=1\n; old\nnet.ipv4.ip_forward = 1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store := &SysctlFileStore{Path: path}
	enabled, err := store.HostForwardingEnabled()
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, store.SetHostForwarding(false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# managed\nnet.core.somaxconn = 1024\nnet.ipv4.ip_forward = 0\n; old\n", string(data))

	enabled, err = store.HostForwardingEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestSysctlFileStoreLastAssignmentWins(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected bool
	}{
		{"single on", "net.ipv4.ip_forward=1\n", true},
		{"overridden", "net.ipv4.ip_forward = 1\nnet.ipv4.ip_forward = 0\n", false},
		{"commented", "# net.ipv4.ip_forward = 1\n", false},
		{"other key", "net.ipv4.conf.all.forwarding = 1\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "f.conf")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			enabled, err := (&SysctlFileStore{Path: path}).HostForwardingEnabled()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, enabled)
		})
	}
}

func TestSysctlFileStoreUnreadable(t *testing.T) {
	// a directory in place of the file cannot be read
	store := &SysctlFileStore{Path: t.TempDir()}

	_, err := store.HostForwardingEnabled()
	require.Error(t, err)
	assert.True(t, entities.IsConfigAccessError(err))

	err = store.SetHostForwarding(true)
	require.Error(t, err)
	assert.True(t, entities.IsConfigAccessError(err))
}

func TestSysctlFileStoreBSDKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysctl.conf")
	require.NoError(t, os.WriteFile(path, []byte("kern.maxfiles=65536\nnet.ipv4.ip_forward=1\n"), 0644))

	store := &SysctlFileStore{Path: path, Key: BSDForwardingKey}
	enabled, err := store.HostForwardingEnabled()
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, store.SetHostForwarding(true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kern.maxfiles=65536\nnet.ipv4.ip_forward=1\nnet.inet.ip.forwarding = 1\n", string(data))
}
