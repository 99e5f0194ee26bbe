package main

import (
	"time"

	"github.com/spf13/pflag"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// ProbeFlags Flag structs to decouple cobra from logic for testing.
type ProbeFlags struct {
	URL     string
	Timeout time.Duration
}

type HistoryFlags struct {
	DSN   string
	Limit int
}

// addLauncherFlags declares the flags config.Load binds to configuration
// keys. Defaults live in the config package; a flag only wins when set.
func addLauncherFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "server executable name without extension (default App)")
	fs.String("url", "", "server URL to probe and display (default http://localhost:8501)")
	fs.Bool("packaged", false, "look in the resources dir before the dev dir")
	fs.String("resources-dir", "", "packaged resources directory")
	fs.String("dev-dir", "", "development tree directory")
	fs.String("state-dir", "", "lock, log and history directory")
	fs.Duration("timeout", 0, "readiness deadline (default 30s)")
	fs.Duration("interval", 0, "pause between readiness probes (default 500ms)")
	fs.Duration("probe-timeout", 0, "per-probe timeout (default 2s)")
	fs.String("window", "", "window mode: app, browser or none")
	fs.Duration("grace", 0, "wait before force-killing the server (default 5s)")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "text or json")
	fs.String("admin", "", "loopback address for the admin API, e.g. 127.0.0.1:8599")
	fs.String("history", "", "launch history DSN (sqlite path or postgres URL)")
	fs.Bool("no-lock", false, "allow several launchers at once")
}
