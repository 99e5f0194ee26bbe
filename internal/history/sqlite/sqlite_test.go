package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/deskgate/internal/history"
)

func TestSQLiteSink_SendAndRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	events := []history.Event{
		{Type: history.EventLaunch, OccurredAt: base, LaunchID: "l1", Name: "App", URL: "http://localhost:8501"},
		{Type: history.EventReady, OccurredAt: base.Add(time.Second), LaunchID: "l1", Name: "App", URL: "http://localhost:8501", PID: 42, Detail: "attempts=3"},
		{Type: history.EventTerminate, OccurredAt: base.Add(2 * time.Second), LaunchID: "l1", Name: "App", URL: "http://localhost:8501", PID: 42},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Send %s: %v", e.Type, err)
		}
	}

	got, err := sink.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Type != history.EventTerminate || got[1].Type != history.EventReady {
		t.Fatalf("events not newest first: %+v", got)
	}
	if got[1].PID != 42 || got[1].Detail != "attempts=3" || got[1].LaunchID != "l1" {
		t.Fatalf("fields not round-tripped: %+v", got[1])
	}
	if got[0].Detail != "" {
		t.Fatalf("empty detail should read back empty, got %q", got[0].Detail)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.Send(context.Background(), history.Event{Type: history.EventTimeout, OccurredAt: time.Now(), LaunchID: "x", Name: "App"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := sink.Recent(context.Background(), 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent: %v %d", err, len(got))
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
