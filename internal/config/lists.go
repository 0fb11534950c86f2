package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListExt is the extension of CIDR list files
const ListExt = ".txt"

// NoList selects no CIDR list for a batch
const NoList = "none"

// LoadLines reads a text file into raw lines
func LoadLines(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", file, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", file, err)
	}

	return lines, nil
}

// ListCIDRFiles returns the list names (file names without .txt) found in dir, sorted
func ListCIDRFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read list directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ListExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}

	sort.Strings(names)
	return names, nil
}

// ListPath returns the file path of a named list
func ListPath(dir, name string) string {
	if strings.HasSuffix(strings.ToLower(name), ListExt) {
		return filepath.Join(dir, name)
	}
	return filepath.Join(dir, name+ListExt)
}

// TargetsFile is the persisted literal/hostname target list
type TargetsFile struct {
	Path string
}

// Load returns the trimmed non-blank lines, a missing file yields none
func (tf *TargetsFile) Load() ([]string, error) {
	lines, err := LoadLines(tf.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return normalizeLines(lines), nil
}

// SaveTargets rewrites the file wholesale with one trimmed target per line
func (tf *TargetsFile) SaveTargets(lines []string) error {
	if dir := filepath.Dir(tf.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", tf.Path, err)
		}
	}

	var b strings.Builder
	for _, line := range normalizeLines(lines) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(tf.Path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write targets file %s: %w", tf.Path, err)
	}
	return nil
}

func normalizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
