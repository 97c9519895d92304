// Package lifecycle owns the render surface and the active scene. Every
// access goes through a single FIFO lock so that two scenes never share the
// surface and load requests are served in the order they were issued.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ivlev/scene2video/internal/scene"
	"github.com/ivlev/scene2video/internal/surface"
)

// ErrNoScene is returned when the surface is used before a scene was loaded.
var ErrNoScene = errors.New("no active scene")

// Handle is the active scene together with its detected capabilities.
type Handle struct {
	Ref   string
	Scene scene.Scene
	Caps  scene.Capabilities
}

// Manager loads and unloads scenes under mutual exclusion.
type Manager struct {
	registry *scene.Registry
	logger   *slog.Logger
	lock     *semaphore.Weighted

	// Guarded by lock.
	surface *surface.Surface
	active  *Handle
	width   int
	height  int
}

// NewManager creates a manager with an initial requested surface size.
func NewManager(registry *scene.Registry, logger *slog.Logger, width, height int) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		logger:   logger,
		lock:     semaphore.NewWeighted(1),
		width:    surface.ClampDimension(width),
		height:   surface.ClampDimension(height),
	}
}

// Load replaces the active scene with a fresh instance of ref. The previous
// scene is disposed and its surface released before the new one is
// installed. On success the granted surface size is returned.
func (m *Manager) Load(ctx context.Context, ref string, width, height int) (*Handle, int, int, error) {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return nil, 0, 0, err
	}
	defer m.lock.Release(1)

	// Unknown references leave the current scene untouched.
	if _, _, err := m.registry.Resolve(ref); err != nil {
		return nil, 0, 0, err
	}

	m.destroyCurrent()

	if err := m.allocateSurface(width, height); err != nil {
		return nil, 0, 0, &scene.LoadError{Ref: ref, Err: err}
	}

	log := m.logger.With("scene", ref)
	s, err := m.registry.New(ctx, ref, scene.Options{
		Surface: m.surface,
		Width:   m.width,
		Height:  m.height,
		Logger:  log,
	})
	if err != nil {
		return nil, m.width, m.height, err
	}

	caps := scene.Inspect(s)
	if caps.Resize == nil {
		log.Info("scene does not provide resize; only the surface will follow size changes")
	}
	m.active = &Handle{Ref: ref, Scene: s, Caps: caps}
	log.Debug("scene loaded",
		"width", m.width,
		"height", m.height,
		"capabilities", strings.Join(caps.Names(), ","),
	)
	return m.active, m.width, m.height, nil
}

// allocateSurface creates a new surface for the next scene. When the
// allocator refuses the request the previous surface is reused instead.
func (m *Manager) allocateSurface(width, height int) error {
	if width <= 0 {
		width = m.width
	}
	if height <= 0 {
		height = m.height
	}

	next, err := surface.Allocate(width, height)
	if err != nil {
		if m.surface == nil {
			return err
		}
		m.logger.Warn("surface allocation failed, reusing previous surface", "error", err)
		m.width, m.height = m.surface.Resize(width, height)
		return nil
	}

	if m.surface != nil {
		m.surface.Release()
	}
	m.surface = next
	m.width, m.height = next.Width(), next.Height()
	return nil
}

// destroyCurrent disposes the active scene. Failures are logged only.
func (m *Manager) destroyCurrent() {
	prev := m.active
	m.active = nil
	if prev == nil || prev.Caps.Dispose == nil {
		return
	}
	if err := prev.Caps.Dispose(); err != nil {
		m.logger.Warn("scene dispose failed", "scene", prev.Ref, "error", err)
	}
}

// Resize changes the surface size and notifies the scene. Without an active
// scene the size is remembered for the next load.
func (m *Manager) Resize(ctx context.Context, width, height int) (int, int, error) {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return 0, 0, err
	}
	defer m.lock.Release(1)

	if m.surface == nil {
		m.width, m.height = surface.ClampDimension(width), surface.ClampDimension(height)
		return m.width, m.height, nil
	}

	m.width, m.height = m.surface.Resize(width, height)
	if m.active != nil && m.active.Caps.Resize != nil {
		if err := m.active.Caps.Resize(m.width, m.height); err != nil {
			return m.width, m.height, fmt.Errorf("scene resize: %w", err)
		}
	}
	return m.width, m.height, nil
}

// Size returns the current granted surface size.
func (m *Manager) Size(ctx context.Context) (int, int, error) {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return 0, 0, err
	}
	defer m.lock.Release(1)
	return m.width, m.height, nil
}

// Acquire grants exclusive use of the active scene and surface until the
// lease is released. Loads and resizes issued meanwhile wait behind it.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if m.active == nil || m.surface == nil {
		m.lock.Release(1)
		return nil, ErrNoScene
	}
	return &Lease{m: m, handle: m.active, surface: m.surface}, nil
}

// Close disposes the active scene and releases the surface.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.lock.Release(1)

	m.destroyCurrent()
	if m.surface != nil {
		m.surface.Release()
		m.surface = nil
	}
	return nil
}

// Lease is exclusive access to the active scene and surface.
type Lease struct {
	m       *Manager
	handle  *Handle
	surface *surface.Surface
	once    sync.Once
}

// Handle returns the leased scene.
func (l *Lease) Handle() *Handle { return l.handle }

// Surface returns the leased surface.
func (l *Lease) Surface() *surface.Surface { return l.surface }

// Gate returns the GPU synchronization gate of the leased scene.
func (l *Lease) Gate() Gate { return NewGate(l.handle.Caps) }

// Release gives the lock back. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() { l.m.lock.Release(1) })
}
