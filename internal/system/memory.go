package system

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/mem"
)

// ErrInsufficientMemory is returned by the render preflight.
var ErrInsufficientMemory = errors.New("insufficient memory")

// MemoryStats is the part of the host memory picture the preflight uses.
type MemoryStats struct {
	Total     uint64
	Available uint64
}

// ReadMemory returns the current host memory statistics.
func ReadMemory() (MemoryStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStats{}, fmt.Errorf("read memory: %w", err)
	}
	return MemoryStats{Total: vm.Total, Available: vm.Available}, nil
}

// FrameBuffers is how many frame-sized buffers a render keeps alive at once:
// the surface, a readback and a preview copy, plus the encoder input.
const FrameBuffers = 4

// EstimateRenderMemory returns the bytes a render of the given size needs.
func EstimateRenderMemory(width, height int) uint64 {
	return uint64(width) * uint64(height) * 4 * FrameBuffers
}

// MemoryPreflight returns a check suitable for router.Options.Preflight. It
// fails when the frame buffers do not fit into available memory, or when
// available memory is below minFreeFraction of the total.
func MemoryPreflight(read func() (MemoryStats, error), minFreeFraction float64) func(width, height, totalFrames int) error {
	if read == nil {
		read = ReadMemory
	}
	return func(width, height, _ int) error {
		st, err := read()
		if err != nil {
			// Без статистики рендер не блокируем.
			return nil
		}
		need := EstimateRenderMemory(width, height)
		if st.Available < need {
			return fmt.Errorf("%w: %dx%d needs %s, %s available", ErrInsufficientMemory,
				width, height, humanize.IBytes(need), humanize.IBytes(st.Available))
		}
		if st.Total > 0 && float64(st.Available)/float64(st.Total) < minFreeFraction {
			return fmt.Errorf("%w: only %s of %s free", ErrInsufficientMemory,
				humanize.IBytes(st.Available), humanize.IBytes(st.Total))
		}
		return nil
	}
}

// MemoryReport is a one-line summary for the performance report.
func MemoryReport(st MemoryStats) string {
	return fmt.Sprintf("Memory: %s available of %s", humanize.IBytes(st.Available), humanize.IBytes(st.Total))
}
