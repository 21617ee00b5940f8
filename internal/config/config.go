// Package config loads apptop settings from defaults, an optional YAML file
// and APPTOP_* environment variables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeffypooo/apptop/internal/action"
	"github.com/jeffypooo/apptop/internal/hostexec"
)

const (
	DefaultInterval   = 2 * time.Second
	DefaultLibexecDir = "/usr/libexec/apptop"
	DefaultListen     = ":8080"
	DefaultLogLevel   = "info"

	CollectorBinary = "apptop-processes"
	HelperBinary    = "apptop-kill"
)

// FlatpakInfo exists only inside a Flatpak sandbox.
const FlatpakInfo = "/.flatpak-info"

const defaultAppPath = "/app"

var flatpakInfoPath = FlatpakInfo

type Config struct {
	Interval      time.Duration `yaml:"interval"`
	LibexecDir    string        `yaml:"libexec_dir"`
	CollectorPath string        `yaml:"collector_path"`
	HelperPath    string        `yaml:"helper_path"`
	Sandboxed     *bool         `yaml:"sandboxed"`
	HostProxy     []string      `yaml:"host_proxy"`
	Elevation     []string      `yaml:"elevation"`
	Listen        string        `yaml:"listen"`
	LogLevel      string        `yaml:"log_level"`
}

// Load reads the YAML file at path (a missing file is not an error, an empty
// path skips it), applies the environment and normalizes the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("APPTOP_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("APPTOP_INTERVAL: %w", err)
		}
		c.Interval = d
	}
	if v, ok := lookup("APPTOP_LIBEXEC_DIR"); ok && v != "" {
		c.LibexecDir = v
	}
	if v, ok := lookup("APPTOP_LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup("APPTOP_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("APPTOP_SANDBOXED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("APPTOP_SANDBOXED: %w", err)
		}
		c.Sandboxed = &b
	}
	return nil
}

// Normalize fills unset fields. Sandbox detection runs only when Sandboxed was
// not set explicitly; inside a sandbox the helpers are looked up under the
// sandbox's app path.
func (c *Config) Normalize() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", c.Interval)
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Sandboxed == nil {
		sandboxed, _ := DetectSandbox(flatpakInfoPath)
		c.Sandboxed = &sandboxed
	}
	if c.LibexecDir == "" {
		c.LibexecDir = DefaultLibexecDir
		if *c.Sandboxed {
			_, appPath := DetectSandbox(flatpakInfoPath)
			c.LibexecDir = filepath.Join(appPath, "libexec", "apptop")
		}
	}
	if c.CollectorPath == "" {
		c.CollectorPath = filepath.Join(c.LibexecDir, CollectorBinary)
	}
	if c.HelperPath == "" {
		c.HelperPath = filepath.Join(c.LibexecDir, HelperBinary)
	}
	if len(c.HostProxy) == 0 {
		c.HostProxy = append([]string(nil), hostexec.DefaultProxy...)
	}
	if len(c.Elevation) == 0 {
		c.Elevation = append([]string(nil), action.DefaultElevation...)
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return nil
}

// IsSandboxed reports the resolved sandbox mode.
func (c *Config) IsSandboxed() bool {
	return c.Sandboxed != nil && *c.Sandboxed
}

// Launcher returns the host-execution launcher for this configuration.
func (c *Config) Launcher() hostexec.Launcher {
	return hostexec.Launcher{Sandboxed: c.IsSandboxed(), Proxy: c.HostProxy}
}

// DetectSandbox reports whether the Flatpak info file at path exists and the
// sandbox's app path ("/app" unless the file names another).
func DetectSandbox(path string) (sandboxed bool, appPath string) {
	f, err := os.Open(path)
	if err != nil {
		return false, defaultAppPath
	}
	defer f.Close()
	if p := flatpakAppPath(f); p != "" {
		return true, p
	}
	return true, defaultAppPath
}

// flatpakAppPath reads app-path from the [Instance] group.
func flatpakAppPath(r io.Reader) string {
	inInstance := false
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "[") {
			inInstance = line == "[Instance]"
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok && inInstance && strings.TrimSpace(key) == "app-path" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
