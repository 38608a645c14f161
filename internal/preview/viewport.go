package preview

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/normanking/interviewavatar/internal/bus"
)

// ErrInvalidSize is returned for a resize with a non-positive dimension.
var ErrInvalidSize = errors.New("viewport size must be positive")

// Viewport tracks the browser canvas and keeps the camera projection in
// step with its aspect ratio. The camera frames the head and shoulders.
type Viewport struct {
	FOV  float64 // vertical field of view in degrees
	Near float64
	Far  float64

	Eye    mgl64.Vec3
	Target mgl64.Vec3
	Up     mgl64.Vec3

	eventBus *bus.EventBus

	mu         sync.RWMutex
	width      int
	height     int
	projection mgl64.Mat4
}

// NewViewport creates a viewport with a 16:9 canvas.
func NewViewport(eventBus *bus.EventBus) *Viewport {
	v := &Viewport{
		FOV:      24,
		Near:     0.1,
		Far:      10,
		Eye:      mgl64.Vec3{0, 1.4, 1.2},
		Target:   mgl64.Vec3{0, 1.35, 0},
		Up:       mgl64.Vec3{0, 1, 0},
		eventBus: eventBus,
		width:    1280,
		height:   720,
	}
	v.projection = v.perspective(v.Aspect())
	return v
}

// Resize records a new canvas size and recomputes the projection.
func (v *Viewport) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}

	v.mu.Lock()
	v.width, v.height = width, height
	aspect := float64(width) / float64(height)
	v.projection = v.perspective(aspect)
	v.mu.Unlock()

	v.eventBus.Publish(bus.Event{
		Type: bus.EventTypeViewportResized,
		Data: map[string]any{"width": width, "height": height, "aspect": aspect},
	})
	return nil
}

func (v *Viewport) perspective(aspect float64) mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(v.FOV), aspect, v.Near, v.Far)
}

// Size returns the canvas size in pixels.
func (v *Viewport) Size() (int, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.width, v.height
}

// Aspect returns width over height.
func (v *Viewport) Aspect() float64 {
	w, h := v.Size()
	return float64(w) / float64(h)
}

// Projection returns the current projection matrix.
func (v *Viewport) Projection() mgl64.Mat4 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.projection
}

// View returns the camera view matrix.
func (v *Viewport) View() mgl64.Mat4 {
	return mgl64.LookAtV(v.Eye, v.Target, v.Up)
}

// ViewportState is the JSON form of the viewport sent to the browser.
type ViewportState struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Aspect     float64     `json:"aspect"`
	FOV        float64     `json:"fov"`
	Projection [16]float64 `json:"projection"`
	View       [16]float64 `json:"view"`
}

// State snapshots the viewport, matrices in column-major order.
func (v *Viewport) State() ViewportState {
	v.mu.RLock()
	w, h, proj := v.width, v.height, v.projection
	v.mu.RUnlock()
	return ViewportState{
		Width:      w,
		Height:     h,
		Aspect:     float64(w) / float64(h),
		FOV:        v.FOV,
		Projection: proj,
		View:       v.View(),
	}
}
