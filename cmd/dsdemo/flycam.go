package main

import (
	"math"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// flyingCamera moves the camera with WASD/Space/Ctrl and looks around with
// the mouse while captured. Tab toggles capture.
type flyingCamera struct {
	Speed       float32
	Sensitivity float32 // radians per pixel

	captured     bool
	tabDown      bool
	lastX, lastY float64
	hasLast      bool
}

func newFlyingCamera() *flyingCamera {
	return &flyingCamera{Speed: 5, Sensitivity: 0.0025}
}

func (f *flyingCamera) pollCapture(win *glfw.Window) {
	tab := win.GetKey(glfw.KeyTab) == glfw.Press
	if tab && !f.tabDown {
		f.captured = !f.captured
		f.hasLast = false
		if f.captured {
			win.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		} else {
			win.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
	}
	f.tabDown = tab
}

func (f *flyingCamera) Update(win *glfw.Window, cam *core.CameraState, dt float32) {
	f.pollCapture(win)
	if dt <= 0 {
		return
	}

	if f.captured {
		x, y := win.GetCursorPos()
		if f.hasLast {
			cam.Yaw += float32(x-f.lastX) * f.Sensitivity
			cam.Pitch -= float32(y-f.lastY) * f.Sensitivity
		}
		f.lastX, f.lastY, f.hasLast = x, y, true
	}
	limit := float32(89 * math.Pi / 180)
	cam.Pitch = mgl32.Clamp(cam.Pitch, -limit, limit)

	var move mgl32.Vec3
	pressed := func(k glfw.Key) bool { return win.GetKey(k) == glfw.Press }
	if pressed(glfw.KeyW) {
		move[2]++
	}
	if pressed(glfw.KeyS) {
		move[2]--
	}
	if pressed(glfw.KeyA) {
		move[0]--
	}
	if pressed(glfw.KeyD) {
		move[0]++
	}
	if pressed(glfw.KeySpace) {
		move[1]++
	}
	if pressed(glfw.KeyLeftControl) {
		move[1]--
	}

	up := mgl32.Vec3{0, 1, 0}
	dir := cam.GetRight().Mul(move[0]).Add(up.Mul(move[1])).Add(cam.GetForward().Mul(move[2]))
	if dir.Len() > 0 {
		cam.Position = cam.Position.Add(dir.Normalize().Mul(f.Speed * dt))
	}
}
