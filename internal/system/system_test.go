package system

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const listing = `Encoders:
 V..... = Video
 ------
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 V....D vp9_vaapi            VP9 (VAAPI) (codec vp9)
 V..... vp9_qsv              VP9 video (Intel Quick Sync Video acceleration) (codec vp9)
 A....D libopus              libopus Opus (codec opus)
`

func TestPickVP9Encoder(t *testing.T) {
	tests := []struct {
		name       string
		listing    string
		renderNode bool
		want       string
	}{
		{"vaapi with render node", listing, true, "vp9_vaapi"},
		{"qsv without render node", listing, false, "vp9_qsv"},
		{"software only", " V....D libvpx-vp9  libvpx VP9\n", true, "libvpx-vp9"},
		{"empty listing", "", false, "libvpx-vp9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PickVP9Encoder(tt.listing, tt.renderNode); got != tt.want {
				t.Errorf("PickVP9Encoder = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMemoryPreflight(t *testing.T) {
	stats := MemoryStats{Total: 8 << 30, Available: 2 << 30}
	check := MemoryPreflight(func() (MemoryStats, error) { return stats, nil }, 0.05)

	if err := check(1920, 1080, 300); err != nil {
		t.Errorf("1080p rejected: %v", err)
	}
	if err := check(16384, 16384, 1); !errors.Is(err, ErrInsufficientMemory) {
		t.Errorf("16k frame = %v, want ErrInsufficientMemory", err)
	}

	stats.Available = 100 << 20
	err := check(64, 64, 1)
	if !errors.Is(err, ErrInsufficientMemory) || !strings.Contains(err.Error(), "100 MiB") {
		t.Errorf("low free fraction = %v", err)
	}

	broken := MemoryPreflight(func() (MemoryStats, error) { return MemoryStats{}, errors.New("no /proc") }, 0.5)
	if err := broken(64, 64, 1); err != nil {
		t.Errorf("unreadable stats should not block: %v", err)
	}
}

func TestEstimateRenderMemory(t *testing.T) {
	if got := EstimateRenderMemory(1280, 720); got != 1280*720*4*FrameBuffers {
		t.Errorf("EstimateRenderMemory = %d", got)
	}
}

func TestMemoryReport(t *testing.T) {
	got := MemoryReport(MemoryStats{Total: 16 << 30, Available: 3 << 29})
	if got != "Memory: 1.5 GiB available of 16 GiB" {
		t.Errorf("MemoryReport = %q", got)
	}
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.pdf", "b.PDF", "c.txt"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		ts := old.Add(time.Duration(i) * time.Minute)
		os.Chtimes(p, ts, ts)
	}
	got, err := FindLatest(dir, ".pdf")
	if err != nil || filepath.Base(got) != "b.PDF" {
		t.Errorf("FindLatest = %q, %v", got, err)
	}
	if _, err := FindLatest(dir, ".mp4"); err == nil {
		t.Error("no match should fail")
	}
}

func TestInitResourceLimitsDoesNotPanic(t *testing.T) {
	InitResourceLimits(slog.New(slog.DiscardHandler))
}
