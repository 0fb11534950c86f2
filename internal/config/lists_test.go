package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestListCIDRFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cn.txt", "office.TXT", "notes.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("1.0.1.0/24\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	names, err := ListCIDRFiles(dir)
	if err != nil {
		t.Fatalf("ListCIDRFiles failed: %v", err)
	}
	if diff := cmp.Diff([]string{"cn", "office"}, names); diff != "" {
		t.Errorf("unexpected list names (-want +got):\n%s", diff)
	}

	names, err = ListCIDRFiles(filepath.Join(dir, "absent"))
	if err != nil || names != nil {
		t.Errorf("Missing directory should yield no lists, got %v %v", names, err)
	}
}

func TestListPath(t *testing.T) {
	if got := ListPath("list", "cn"); got != filepath.Join("list", "cn.txt") {
		t.Errorf("unexpected path %s", got)
	}
	if got := ListPath("list", "cn.txt"); got != filepath.Join("list", "cn.txt") {
		t.Errorf("unexpected path %s", got)
	}
}

func TestTargetsFile(t *testing.T) {
	tf := &TargetsFile{Path: filepath.Join(t.TempDir(), "extra.txt")}

	lines, err := tf.Load()
	if err != nil || lines != nil {
		t.Fatalf("Missing targets file should load empty, got %v %v", lines, err)
	}

	if err := tf.SaveTargets([]string{" 8.8.8.8 ", "", "example.com", "\t"}); err != nil {
		t.Fatalf("SaveTargets failed: %v", err)
	}

	data, err := os.ReadFile(tf.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "8.8.8.8\nexample.com\n" {
		t.Errorf("unexpected file content %q", string(data))
	}

	lines, err = tf.Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"8.8.8.8", "example.com"}, lines); diff != "" {
		t.Errorf("unexpected targets (-want +got):\n%s", diff)
	}

	// rewritten wholesale
	if err := tf.SaveTargets([]string{"1.1.1.1"}); err != nil {
		t.Fatal(err)
	}
	lines, _ = tf.Load()
	if diff := cmp.Diff([]string{"1.1.1.1"}, lines); diff != "" {
		t.Errorf("unexpected targets (-want +got):\n%s", diff)
	}
}

func TestLoadListWithFallback(t *testing.T) {
	dir := t.TempDir()

	lines, err := LoadListWithFallback(dir, "private")
	if err != nil {
		t.Fatalf("builtin fallback failed: %v", err)
	}
	if len(lines) == 0 || lines[0] != "# RFC 1918 private ranges" {
		t.Errorf("unexpected builtin list %v", lines)
	}

	if err := os.WriteFile(filepath.Join(dir, "private.txt"), []byte("10.1.0.0/16\n"), 0644); err != nil {
		t.Fatal(err)
	}
	lines, err = LoadListWithFallback(dir, "private")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"10.1.0.0/16"}, lines); diff != "" {
		t.Errorf("file should shadow builtin (-want +got):\n%s", diff)
	}

	if _, err := LoadListWithFallback(dir, "nosuch"); err == nil {
		t.Errorf("expected error for unknown list")
	}

	if diff := cmp.Diff([]string{"private"}, BuiltinListNames()); diff != "" {
		t.Errorf("unexpected builtin names (-want +got):\n%s", diff)
	}
}

func TestRunState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	state, err := LoadRunState(path)
	if err != nil {
		t.Fatal(err)
	}
	if state.HasPreviousState() || state.GetPreviousGateway() != nil {
		t.Errorf("fresh state should be empty")
	}

	state.Update([]byte{10, 0, 0, 1}, 5, "add", "cn", 3, 1)
	if err := state.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadRunState(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.HasPreviousState() {
		t.Fatalf("expected previous state")
	}
	if got := loaded.GetPreviousGateway().String(); got != "10.0.0.1" {
		t.Errorf("unexpected gateway %s", got)
	}
	if loaded.InterfaceIndex != 5 || loaded.List != "cn" || loaded.Failed != 1 {
		t.Errorf("unexpected state %+v", loaded)
	}
}
