package history

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntry(id string, started time.Time) Entry {
	return Entry{
		ID:          id,
		SceneRef:    "canvas",
		Status:      StatusDone,
		Frames:      120,
		TotalFrames: 120,
		FPS:         30,
		Bitrate:     6_000_000,
		Width:       1280,
		Height:      720,
		SizeBytes:   2 << 20,
		OutputPath:  "/tmp/out.webm",
		RenderTime:  1500 * time.Millisecond,
		EncodeTime:  2500 * time.Millisecond,
		Elapsed:     4 * time.Second,
		StartedAt:   started,
		FinishedAt:  started.Add(4 * time.Second),
	}
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Record(ctx, sampleEntry("job-1", started)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("entry not found")
	}
	if got.SceneRef != "canvas" || got.Frames != 120 || got.Status != StatusDone {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.RenderTime != 1500*time.Millisecond || !got.StartedAt.Equal(started) {
		t.Errorf("durations or times not preserved: %+v", got)
	}
	if got.EffectiveFPS() != 30 {
		t.Errorf("EffectiveFPS = %v, want 30", got.EffectiveFPS())
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v", missing, err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		e := sampleEntry(id, base.Add(time.Duration(i)*time.Minute))
		if id == "b" {
			e.Status = StatusCancelled
			e.OutputPath = ""
		}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", id, err)
		}
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("List order = %v", ids(all))
	}
	if all[1].Status != StatusCancelled || all[1].OutputPath != "" {
		t.Errorf("cancelled entry = %+v", all[1])
	}

	limited, err := s.List(ctx, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("List(2) = %v, %v", ids(limited), err)
	}

	n, err := s.Prune(ctx, base.Add(30*time.Second))
	if err != nil || n != 1 {
		t.Errorf("Prune = %d, %v; want 1", n, err)
	}
}

func TestRecordRequiresID(t *testing.T) {
	s := openStore(t)
	if err := s.Record(context.Background(), Entry{}); err == nil {
		t.Error("Record without id succeeded")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), sampleEntry("x", time.Now())); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	if _, err := s.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	s.Close()
	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Open with foreign schema = %v, want ErrSchemaMismatch", err)
	}
}

func TestReport(t *testing.T) {
	e := sampleEntry("job-9", time.Now())
	r := Report(e)
	for _, want := range []string{"PERFORMANCE REPORT", "job-9", "Effective FPS: 30.00", "2.0 MiB", "/tmp/out.webm"} {
		if !strings.Contains(r, want) {
			t.Errorf("report missing %q:\n%s", want, r)
		}
	}
}

func ids(entries []*Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
