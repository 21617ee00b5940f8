package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func withFlatpakInfo(t *testing.T, content *string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".flatpak-info")
	if content != nil {
		if err := os.WriteFile(path, []byte(*content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := flatpakInfoPath
	flatpakInfoPath = path
	t.Cleanup(func() { flatpakInfoPath = old })
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"APPTOP_INTERVAL", "APPTOP_LIBEXEC_DIR", "APPTOP_LISTEN", "APPTOP_LOG_LEVEL", "APPTOP_SANDBOXED"} {
		t.Setenv(k, "")
	}
}

func TestDefaultsOutsideSandbox(t *testing.T) {
	withFlatpakInfo(t, nil)
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != 2*time.Second || cfg.Listen != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.IsSandboxed() {
		t.Fatalf("expected native mode")
	}
	if cfg.CollectorPath != "/usr/libexec/apptop/apptop-processes" || cfg.HelperPath != "/usr/libexec/apptop/apptop-kill" {
		t.Fatalf("unexpected helper paths %q %q", cfg.CollectorPath, cfg.HelperPath)
	}
	if !reflect.DeepEqual(cfg.Elevation, []string{"pkexec", "--disable-internal-agent"}) {
		t.Fatalf("unexpected elevation %v", cfg.Elevation)
	}
	if argv := cfg.Launcher().Argv(cfg.HelperPath); len(argv) != 1 {
		t.Fatalf("native launcher must not add a proxy, got %v", argv)
	}
}

func TestSandboxUsesAppPath(t *testing.T) {
	info := "[Application]\nname=io.github.apptop\n\n[Instance]\ninstance-id=123\napp-path=/var/lib/flatpak/app/io.github.apptop/x86_64/stable/abc/files\n"
	withFlatpakInfo(t, &info)
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsSandboxed() {
		t.Fatalf("expected sandbox mode")
	}
	want := "/var/lib/flatpak/app/io.github.apptop/x86_64/stable/abc/files/libexec/apptop/apptop-kill"
	if cfg.HelperPath != want {
		t.Fatalf("expected %q, got %q", want, cfg.HelperPath)
	}
	argv := cfg.Launcher().Argv(cfg.HelperPath, "TERM", "1")
	if !reflect.DeepEqual(argv[:2], []string{"flatpak-spawn", "--host"}) {
		t.Fatalf("expected host proxy prefix, got %v", argv)
	}
}

func TestDetectSandbox(t *testing.T) {
	dir := t.TempDir()
	if ok, p := DetectSandbox(filepath.Join(dir, "missing")); ok || p != "/app" {
		t.Fatalf("expected no sandbox, got %v %q", ok, p)
	}
	path := filepath.Join(dir, "info")
	if err := os.WriteFile(path, []byte("[Application]\nname=x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, p := DetectSandbox(path); !ok || p != "/app" {
		t.Fatalf("expected sandbox with default app path, got %v %q", ok, p)
	}
}

func TestFileThenEnvironment(t *testing.T) {
	withFlatpakInfo(t, nil)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "apptop.yaml")
	yml := "interval: 5s\nlisten: 127.0.0.1:9000\nlibexec_dir: /opt/apptop/libexec\nelevation: [sudo, -n]\nlog_level: warn\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APPTOP_LISTEN", ":7000")
	t.Setenv("APPTOP_SANDBOXED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interval != 5*time.Second || cfg.LogLevel != "warn" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Listen != ":7000" {
		t.Fatalf("environment must override the file, got %q", cfg.Listen)
	}
	if cfg.HelperPath != "/opt/apptop/libexec/apptop-kill" {
		t.Fatalf("unexpected helper path %q", cfg.HelperPath)
	}
	if !reflect.DeepEqual(cfg.Elevation, []string{"sudo", "-n"}) {
		t.Fatalf("unexpected elevation %v", cfg.Elevation)
	}
}

func TestLoadErrors(t *testing.T) {
	withFlatpakInfo(t, nil)
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("a missing file is not an error: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("interval: [oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected a parse error")
	}

	t.Setenv("APPTOP_INTERVAL", "soon")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected an interval error")
	}
	t.Setenv("APPTOP_INTERVAL", "-1s")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected a negative interval error")
	}
}
