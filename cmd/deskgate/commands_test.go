package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/deskgate"
	"github.com/loykin/deskgate/internal/history"
	"github.com/loykin/deskgate/internal/history/sqlite"
	"github.com/loykin/deskgate/internal/locate"
)

func TestRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	for _, name := range []string{"run", "probe", "locate", "history", "version"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("missing subcommand %q: %v", name, err)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "deskgate dev") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestProbeOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := probeOnce(context.Background(), &ProbeFlags{URL: srv.URL, Timeout: time.Second}, &out); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !strings.Contains(out.String(), "ready") || !strings.Contains(out.String(), "HTTP 200") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	err := probeOnce(context.Background(), &ProbeFlags{URL: srv.URL + "/down", Timeout: time.Second}, &out)
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected errNotReady, got %v", err)
	}
	if !strings.Contains(out.String(), "not_ready") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestLocateExecutable(t *testing.T) {
	cfg, err := deskgate.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Name = "ElectroGalindez"
	cfg.Packaged = true
	cfg.ResourcesDir = "/opt/app/resources"
	cfg.DevDir = "/src/app"

	want := filepath.Join("/src/app", "dist", "ElectroGalindez.exe")
	exists := func(p string) bool { return p == want }
	var out bytes.Buffer
	if err := locateExecutable(cfg, "windows", exists, &out); err != nil {
		t.Fatalf("locate: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, filepath.Join("/opt/app/resources", "dist", "ElectroGalindez.exe")) {
		t.Fatalf("packaged candidate missing:\n%s", s)
	}
	if !strings.Contains(s, "resolved: "+want) {
		t.Fatalf("resolved path missing:\n%s", s)
	}

	out.Reset()
	err = locateExecutable(cfg, "linux", func(string) bool { return false }, &out)
	if !errors.Is(err, locate.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShowHistory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	sink, err := sqlite.New(dsn)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	events := []history.Event{
		{Type: history.EventLaunch, LaunchID: "0123456789abcdef", Name: "App", URL: "http://localhost:8501", OccurredAt: time.Now().Add(-time.Second)},
		{Type: history.EventReady, LaunchID: "0123456789abcdef", Name: "App", URL: "http://localhost:8501", PID: 4242, OccurredAt: time.Now()},
	}
	for _, e := range events {
		if err := sink.Send(context.Background(), e); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	_ = sink.Close()

	var out bytes.Buffer
	if err := showHistory(context.Background(), dsn, 10, &out); err != nil {
		t.Fatalf("history: %v", err)
	}
	s := out.String()
	for _, want := range []string{"Event", "ready", "launch", "01234567", "4242"} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "0123456789abcdef") {
		t.Fatalf("launch id should be shortened:\n%s", s)
	}
}

func TestShowHistoryRequiresDSN(t *testing.T) {
	if err := showHistory(context.Background(), "", 10, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without DSN")
	}
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	root := buildRoot()
	run, _, err := root.Find([]string{"run"})
	if err != nil {
		t.Fatal(err)
	}
	if err := run.ParseFlags([]string{"--name=Svc", "--timeout=45s", "--window=none", "--no-lock"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg, err := deskgate.LoadConfig("", run.Flags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "Svc" || cfg.Readiness.Timeout != 45*time.Second || cfg.Window.Mode != "none" || cfg.Instance.Lock {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Readiness.Interval != 500*time.Millisecond {
		t.Fatalf("unset flag must keep default, got %s", cfg.Readiness.Interval)
	}
}

func TestRunLauncherFailsWithoutExecutable(t *testing.T) {
	cfg, err := deskgate.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	cfg.DevDir = dir
	cfg.ResourcesDir = dir
	cfg.StateDir = dir
	cfg.Log.File = filepath.Join(dir, "launcher.log")
	cfg.Window.Mode = "none"
	cfg.Instance.CheckPort = false

	var le *deskgate.LaunchError
	if err := runLauncher(context.Background(), cfg); !errors.As(err, &le) {
		t.Fatalf("expected *LaunchError, got %v", err)
	}
}

func TestRenderTable(t *testing.T) {
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
	s := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	if !strings.Contains(s, "A") || !strings.Contains(s, "1") {
		t.Fatalf("unexpected table:\n%s", s)
	}
}
