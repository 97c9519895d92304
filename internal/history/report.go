package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Report formats the performance report of one job.
func Report(e Entry) string {
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Job: %s (%s)\n", e.ID, e.Status)
	fmt.Fprintf(&b, "Scene: %s %dx%d\n", e.SceneRef, e.Width, e.Height)
	fmt.Fprintf(&b, "Frames: %d/%d @ %.2f fps\n", e.Frames, e.TotalFrames, e.FPS)
	fmt.Fprintf(&b, "Total Time: %.2fs\n", e.Elapsed.Seconds())
	fmt.Fprintf(&b, "Rendering: %.2fs\n", e.RenderTime.Seconds())
	fmt.Fprintf(&b, "Encoding: %.2fs\n", e.EncodeTime.Seconds())
	fmt.Fprintf(&b, "Effective FPS: %.2f\n", e.EffectiveFPS())
	if e.SizeBytes > 0 {
		fmt.Fprintf(&b, "Output: %s", humanize.IBytes(uint64(e.SizeBytes)))
		if e.OutputPath != "" {
			fmt.Fprintf(&b, " -> %s", e.OutputPath)
		}
		b.WriteString("\n")
	}
	if e.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", e.Error)
	}
	b.WriteString("----------------------------\n")
	return b.String()
}

// Summary is a single log line for a job.
func Summary(e Entry) string {
	return fmt.Sprintf("[%s] %s | Scene: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Encode: %.2fs | FPS: %.2f | %s",
		e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
		e.Status,
		e.SceneRef,
		e.Frames,
		e.Elapsed.Seconds(),
		e.RenderTime.Seconds(),
		e.EncodeTime.Seconds(),
		e.EffectiveFPS(),
		humanize.Time(e.FinishedAt),
	)
}

// Since formats how long ago a job started, for tables.
func Since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
