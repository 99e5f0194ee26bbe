package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/loykin/deskgate/internal/locate"
	"github.com/loykin/deskgate/internal/logger"
	"github.com/loykin/deskgate/internal/process"
	"github.com/loykin/deskgate/internal/readiness"
)

// EnvPrefix is the prefix for environment overrides, e.g. DESKGATE_READINESS_TIMEOUT=45s.
const EnvPrefix = "DESKGATE"

// Window modes.
const (
	WindowApp     = "app"     // chromeless browser window
	WindowBrowser = "browser" // system default browser
	WindowNone    = "none"    // no presentation, run until signalled
)

type Config struct {
	Name            string   `mapstructure:"name"`
	URL             string   `mapstructure:"url"`
	Packaged        bool     `mapstructure:"packaged"`
	ResourcesDir    string   `mapstructure:"resources_dir"`
	DevDir          string   `mapstructure:"dev_dir"`
	DistSubdir      string   `mapstructure:"dist_subdir"`
	WorkDir         string   `mapstructure:"work_dir"`
	Env             []string `mapstructure:"env"`
	EnvFiles        []string `mapstructure:"env_files"`
	StateDir        string   `mapstructure:"state_dir"`
	QuitOnAllClosed bool     `mapstructure:"quit_on_all_closed"`

	Readiness ReadinessConfig   `mapstructure:"readiness"`
	Window    WindowConfig      `mapstructure:"window"`
	Terminate TerminateConfig   `mapstructure:"terminate"`
	Instance  InstanceConfig    `mapstructure:"instance"`
	History   HistoryConfig     `mapstructure:"history"`
	Admin     AdminConfig       `mapstructure:"admin"`
	Log       LogConfig         `mapstructure:"log"`
	ChildLog  logger.FileConfig `mapstructure:"child_log"`
}

type ReadinessConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	Interval     time.Duration `mapstructure:"interval"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

type WindowConfig struct {
	Mode   string `mapstructure:"mode"`
	Title  string `mapstructure:"title"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

type TerminateConfig struct {
	Grace time.Duration `mapstructure:"grace"`
}

type InstanceConfig struct {
	Lock      bool `mapstructure:"lock"`
	CheckPort bool `mapstructure:"check_port"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AdminConfig struct {
	Listen string `mapstructure:"listen"`
}

type LogConfig struct {
	Level           string `mapstructure:"level"`
	Format          string `mapstructure:"format"`
	File            string `mapstructure:"file"` // "-" disables the log file
	logger.Rotation `mapstructure:",squash"`
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"name":          "name",
	"url":           "url",
	"packaged":      "packaged",
	"resources-dir": "resources_dir",
	"dev-dir":       "dev_dir",
	"state-dir":     "state_dir",
	"timeout":       "readiness.timeout",
	"interval":      "readiness.interval",
	"probe-timeout": "readiness.probe_timeout",
	"window":        "window.mode",
	"grace":         "terminate.grace",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"admin":         "admin.listen",
	"history":       "history.dsn",
}

func setDefaults(v *viper.Viper) {
	exeDir := "."
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	v.SetDefault("name", "App")
	v.SetDefault("url", "http://localhost:8501")
	v.SetDefault("packaged", false)
	v.SetDefault("resources_dir", exeDir)
	v.SetDefault("dev_dir", cwd)
	v.SetDefault("dist_subdir", "dist")
	v.SetDefault("state_dir", filepath.Join(home, ".deskgate"))
	v.SetDefault("quit_on_all_closed", QuitOnAllWindowsClosed(runtime.GOOS))
	v.SetDefault("readiness.timeout", readiness.DefaultTimeout)
	v.SetDefault("readiness.interval", readiness.DefaultInterval)
	v.SetDefault("readiness.probe_timeout", readiness.DefaultProbeTimeout)
	v.SetDefault("window.mode", WindowApp)
	v.SetDefault("window.width", 1200)
	v.SetDefault("window.height", 800)
	v.SetDefault("terminate.grace", process.DefaultGrace)
	v.SetDefault("instance.lock", true)
	v.SetDefault("instance.check_port", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	// empty defaults make these keys visible to AutomaticEnv
	for _, k := range []string{"work_dir", "window.title", "history.dsn", "admin.listen", "log.file", "child_log.dir"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
}

// QuitOnAllWindowsClosed reports whether closing the last window should quit
// the launcher. macOS applications conventionally stay alive.
func QuitOnAllWindowsClosed(goos string) bool { return goos != "darwin" }

// Default returns the configuration with no file, env or flags applied.
func Default() (*Config, error) { return Load("", nil) }

// Load builds the configuration from defaults, an optional TOML file,
// DESKGATE_* environment variables and changed flags, in increasing
// precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
		if f := flags.Lookup("no-lock"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("instance.lock", false)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

// finish fills derived values and merges env files.
func (c *Config) finish() error {
	if c.Window.Title == "" {
		c.Window.Title = c.Name
	}
	if c.Log.File == "" && c.StateDir != "" {
		c.Log.File = filepath.Join(c.StateDir, "launcher.log")
	}
	if len(c.EnvFiles) > 0 {
		merged, err := mergeEnv(c.EnvFiles, c.Env)
		if err != nil {
			return err
		}
		c.Env = merged
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(c.Name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", c.Name)
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) URL", c.URL)
	}
	r := c.Readiness
	if r.Timeout <= 0 || r.Interval <= 0 || r.ProbeTimeout <= 0 {
		return errors.New("readiness durations must be positive")
	}
	if r.Interval >= r.Timeout {
		return fmt.Errorf("readiness interval %s must be shorter than timeout %s", r.Interval, r.Timeout)
	}
	switch c.Window.Mode {
	case WindowApp, WindowBrowser, WindowNone:
	default:
		return fmt.Errorf("unknown window mode %q (app, browser, none)", c.Window.Mode)
	}
	if c.Window.Width < 1 || c.Window.Height < 1 {
		return fmt.Errorf("window size %dx%d is invalid", c.Window.Width, c.Window.Height)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (text, json)", c.Log.Format)
	}
	for i, kv := range c.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || strings.TrimSpace(k) == "" {
			return fmt.Errorf("env[%d] %q must be KEY=VALUE", i, kv)
		}
	}
	if c.Admin.Listen != "" {
		if err := requireLoopback(c.Admin.Listen); err != nil {
			return err
		}
	}
	return nil
}

func requireLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("admin.listen %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("admin.listen %q must bind a loopback address", addr)
	}
	return nil
}

// Layout returns where the executable is searched for.
func (c *Config) Layout() locate.Layout {
	return locate.Layout{
		Packaged:     c.Packaged,
		ResourcesDir: c.ResourcesDir,
		DevDir:       c.DevDir,
		SubDir:       c.DistSubdir,
	}
}

// ProcessSpec returns the spec for running the executable at path.
func (c *Config) ProcessSpec(path string) process.Spec {
	return process.Spec{
		Name:    c.Name,
		Path:    path,
		WorkDir: c.WorkDir,
		Env:     c.Env,
		Grace:   c.Terminate.Grace,
		Log:     c.ChildLog,
	}
}

// LoggerOptions returns options for the launcher's own logger.
func (c *Config) LoggerOptions() logger.Options {
	file := c.Log.File
	if file == "-" {
		file = ""
	}
	return logger.Options{
		Level:    c.Log.Level,
		Format:   c.Log.Format,
		File:     file,
		Rotation: c.Log.Rotation,
	}
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "deskgate.lock")
}

// mergeEnv loads env files in order and applies explicit pairs last.
func mergeEnv(files []string, explicit []string) ([]string, error) {
	m := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	for _, p := range files {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		for _, kv := range pairs {
			set(kv[0], kv[1])
		}
	}
	for _, kv := range explicit {
		if k, v, ok := strings.Cut(kv, "="); ok {
			set(k, v)
		}
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) ([][2]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			out = append(out, [2]string{strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])})
		}
	}
	return out, nil
}
