package config

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"
)

//go:embed builtin/*.txt
var builtinLists embed.FS

// BuiltinListNames returns the names of the lists compiled into the binary
func BuiltinListNames() []string {
	entries, _ := fs.ReadDir(builtinLists, "builtin")

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ListExt))
	}
	sort.Strings(names)
	return names
}

// GetBuiltinList returns the lines of a compiled-in list
func GetBuiltinList(name string) ([]string, bool) {
	data, err := builtinLists.ReadFile("builtin/" + strings.TrimSuffix(name, ListExt) + ListExt)
	if err != nil {
		return nil, false
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), true
}

// LoadListWithFallback loads a named list from dir, falls back to the compiled-in list of the same name
func LoadListWithFallback(dir, name string) ([]string, error) {
	lines, err := LoadLines(ListPath(dir, name))
	if err == nil {
		return lines, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if builtin, ok := GetBuiltinList(name); ok {
			return builtin, nil
		}
	}
	return nil, err
}
