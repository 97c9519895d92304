package lifecycle

import (
	"context"

	"github.com/ivlev/scene2video/internal/scene"
)

// Gate blocks until the GPU work submitted by a scene has completed.
// Scenes without a GPUWaiter render synchronously, so the gate only checks
// the context for them.
type Gate struct {
	wait func(ctx context.Context) error
}

// NewGate builds the gate for a scene's capabilities.
func NewGate(caps scene.Capabilities) Gate {
	return Gate{wait: caps.WaitForGPU}
}

// Wait returns once previously submitted work is complete.
func (g Gate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.wait == nil {
		return nil
	}
	return g.wait(ctx)
}
