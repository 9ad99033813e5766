package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/clearhaven/passage/internal/fileid"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "flags already first",
			args: []string{"-k", "5", "sodium", "intake"},
			want: []string{"-k", "5", "sodium", "intake"},
		},
		{
			name: "flags after query",
			args: []string{"sodium", "intake", "-k", "5"},
			want: []string{"-k", "5", "sodium", "intake"},
		},
		{
			name: "flags between words",
			args: []string{"sodium", "-mode", "hybrid", "intake"},
			want: []string{"-mode", "hybrid", "intake", "sodium"},
		},
		{
			name: "no flags",
			args: []string{"sodium", "intake"},
			want: []string{"sodium", "intake"},
		},
		{
			name: "empty",
			args: []string{},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("argsReorder(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "single word", args: []string{"sodium"}, want: "sodium"},
		{name: "multiple words", args: []string{"sodium", "intake", "guidelines"}, want: "sodium intake guidelines"},
		{name: "pre-quoted", args: []string{"sodium intake"}, want: "sodium intake"},
		{name: "empty", args: []string{}, want: ""},
		{name: "blank args", args: []string{" ", ""}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.want {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestKVFlag(t *testing.T) {
	f := kvFlag{}
	if err := f.Set("topic=health"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := f.Set("source=who guidelines"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := f["topic"]; got != "health" {
		t.Errorf("topic = %v, want health", got)
	}
	if got := f["source"]; got != "who guidelines" {
		t.Errorf("source = %v, want %q", got, "who guidelines")
	}

	// Values may contain '='; only the first one splits.
	if err := f.Set("expr=a=b"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := f["expr"]; got != "a=b" {
		t.Errorf("expr = %v, want a=b", got)
	}

	if got := f.String(); got != "expr=a=b,source=who guidelines,topic=health" {
		t.Errorf("String() = %q", got)
	}

	for _, bad := range []string{"noequals", "=value", ""} {
		if err := f.Set(bad); err == nil {
			t.Errorf("Set(%q) expected error", bad)
		}
	}
}

func TestStringsFlag(t *testing.T) {
	var f stringsFlag
	for _, p := range []string{"./inbox", "./archive"} {
		if err := f.Set(p); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if want := []string{"./inbox", "./archive"}; !reflect.DeepEqual([]string(f), want) {
		t.Errorf("paths = %v, want %v", f, want)
	}
	if got := f.String(); got != "./inbox,./archive" {
		t.Errorf("String() = %q", got)
	}
}

func TestResolveDocID(t *testing.T) {
	if got := resolveDocID("file:ab12cd34"); got != "file:ab12cd34" {
		t.Errorf("document id should pass through, got %q", got)
	}

	abs, err := filepath.Abs("notes/report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	want := fileid.FileDocID(abs)
	if got := resolveDocID("notes/report.pdf"); got != want {
		t.Errorf("resolveDocID = %q, want %q", got, want)
	}
	if got := resolveDocID("notes/report.pdf"); !strings.HasPrefix(got, "file:") {
		t.Errorf("resolved id missing file: prefix, got %q", got)
	}

	// Absolute and relative spellings of the same file agree.
	if resolveDocID(abs) != resolveDocID("notes/report.pdf") {
		t.Error("absolute and relative paths should resolve to the same id")
	}
}

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "search:\n  top_k: 3\n")

	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Search.TopK != 3 {
		t.Errorf("top_k = %d, want 3", cfg.Search.TopK)
	}
}

func TestLoadConfig_explicitPathMustExist(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadConfig_prefersCwdConfigOverHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".passage"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfigFile(t, filepath.Join(home, ".passage"), "search:\n  top_k: 11\n")

	work := t.TempDir()
	writeConfigFile(t, work, "search:\n  top_k: 7\n")

	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	cfg, resolved, err := loadConfig(defaultConfigPath())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Search.TopK != 7 {
		t.Errorf("top_k = %d, want 7 from cwd config", cfg.Search.TopK)
	}
	// TempDir may sit behind a symlink (macOS /var -> /private/var).
	wantDir, err := filepath.EvalSymlinks(work)
	if err != nil {
		t.Fatal(err)
	}
	gotDir, err := filepath.EvalSymlinks(filepath.Dir(resolved))
	if err != nil {
		t.Fatal(err)
	}
	if gotDir != wantDir {
		t.Errorf("resolved dir = %q, want %q", gotDir, wantDir)
	}
}

func TestLoadConfig_fallsBackToHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".passage"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfigFile(t, filepath.Join(home, ".passage"), "search:\n  top_k: 11\n")

	work := t.TempDir() // no config.yaml here
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	cfg, resolved, err := loadConfig(defaultConfigPath())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Search.TopK != 11 {
		t.Errorf("top_k = %d, want 11 from home config", cfg.Search.TopK)
	}
	if resolved != defaultConfigPath() {
		t.Errorf("resolved = %q, want %q", resolved, defaultConfigPath())
	}
}

func TestLoadConfig_builtinDefaultsWhenNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	work := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(orig)

	cfg, resolved, err := loadConfig(defaultConfigPath())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Search.TopK == 0 || cfg.Embedding.Dimensions == 0 {
		t.Error("built-in defaults should be populated")
	}
}
