package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/deskgate"
	"github.com/loykin/deskgate/internal/history"
	"github.com/loykin/deskgate/internal/history/factory"
	"github.com/loykin/deskgate/internal/locate"
	"github.com/loykin/deskgate/internal/logger"
	"github.com/loykin/deskgate/internal/readiness"
)

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	probeFlags := &ProbeFlags{}
	historyFlags := &HistoryFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags),
		createProbeCommand(probeFlags),
		createLocateCommand(globalFlags),
		createHistoryCommand(globalFlags, historyFlags),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "deskgate",
		Short: "Run a bundled web server inside a desktop window",
		Long: `deskgate starts a bundled web server, waits until it answers HTTP,
shows its UI in a desktop window and stops the server when the window closes.

Examples:
  deskgate run --name=ElectroGalindez
  deskgate run --config=deskgate.toml --window=browser
  deskgate probe --url=http://localhost:8501
  deskgate locate --packaged`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createRunCommand(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the server and open its window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deskgate.LoadConfig(flags.ConfigPath, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return runLauncher(ctx, cfg)
		},
	}
	addLauncherFlags(cmd.Flags())
	return cmd
}

// runLauncher sets up logging and runs the launcher until it quits.
func runLauncher(ctx context.Context, cfg *deskgate.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l, closer, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	slog.SetDefault(l)

	slog.Info("deskgate starting", "version", version, "name", cfg.Name, "url", cfg.URL, "window", cfg.Window.Mode)
	if err := deskgate.Run(ctx, cfg); err != nil {
		slog.Error("Launcher failed", "error", err)
		return err
	}
	slog.Info("deskgate stopped")
	return nil
}

func createProbeCommand(flags *ProbeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the server URL once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return probeOnce(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.URL, "url", "http://localhost:8501", "URL to probe")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", readiness.DefaultProbeTimeout, "probe timeout")
	return cmd
}

// errNotReady makes `deskgate probe` exit non-zero for scripts.
var errNotReady = errors.New("server not ready")

func probeOnce(ctx context.Context, flags *ProbeFlags, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res, status, err := readiness.NewHTTPProber(flags.URL, flags.Timeout).Probe(ctx)
	switch {
	case err != nil:
		_, _ = fmt.Fprintf(w, "%s %s: %v\n", res, flags.URL, err)
	default:
		_, _ = fmt.Fprintf(w, "%s %s: HTTP %d\n", res, flags.URL, status)
	}
	if res != readiness.Ready {
		return errNotReady
	}
	return nil
}

func createLocateCommand(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Show where the server executable is looked up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deskgate.LoadConfig(flags.ConfigPath, cmd.Flags())
			if err != nil {
				return err
			}
			return locateExecutable(cfg, runtime.GOOS, locate.FileExists, cmd.OutOrStdout())
		},
	}
	addLauncherFlags(cmd.Flags())
	return cmd
}

func locateExecutable(cfg *deskgate.Config, goos string, exists func(string) bool, w io.Writer) error {
	cands := locate.Candidates(goos, cfg.Layout(), cfg.Name)
	rows := make([][]string, 0, len(cands))
	for i, c := range cands {
		found := "no"
		if exists(c) {
			found = "yes"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), c, found})
	}
	_, _ = fmt.Fprintln(w, renderTable([]string{"#", "Candidate", "Exists"}, rows, []columnAlignment{alignRight}))
	path, err := locate.Resolve(cands, exists)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "resolved: %s\n", path)
	return nil
}

func createHistoryCommand(global *GlobalFlags, flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent launch events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := flags.DSN
			if dsn == "" {
				cfg, err := deskgate.LoadConfig(global.ConfigPath, nil)
				if err != nil {
					return err
				}
				dsn = cfg.History.DSN
			}
			return showHistory(cmd.Context(), dsn, flags.Limit, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.DSN, "dsn", "", "history DSN (defaults to history.dsn from config)")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "number of events to show")
	return cmd
}

func showHistory(ctx context.Context, dsn string, limit int, w io.Writer) error {
	if dsn == "" {
		return errors.New("history is not configured (set history.dsn or --dsn)")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sink, err := factory.NewSinkFromDSN(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()
	reader, ok := sink.(history.Reader)
	if !ok {
		return fmt.Errorf("history sink for %q cannot be listed", dsn)
	}
	events, err := reader.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintln(w, "No launch history.")
		return nil
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		pid := ""
		if e.PID > 0 {
			pid = strconv.Itoa(e.PID)
		}
		rows = append(rows, []string{
			e.OccurredAt.Local().Format(time.DateTime),
			string(e.Type),
			shortID(e.LaunchID),
			e.Name,
			pid,
			e.Detail,
		})
	}
	headers := []string{"Time", "Event", "Launch", "Name", "PID", "Detail"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	_, _ = fmt.Fprintln(w, renderTable(headers, rows, aligns))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the deskgate version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deskgate %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
