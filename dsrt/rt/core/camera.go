package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera supplies the matrices and pixel size a frame is rendered with.
type Camera interface {
	ViewMatrix() mgl32.Mat4
	ProjectionMatrix() mgl32.Mat4
	PixelSize() (int, int)
}

// CameraState is a yaw/pitch perspective camera with a Y-up basis.
type CameraState struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	FovY     float32 // degrees
	Near     float32
	Far      float32
	Width    int
	Height   int
}

func NewCameraState(width, height int) *CameraState {
	return &CameraState{
		Position: mgl32.Vec3{0, 2, 10},
		FovY:     60,
		Near:     0.1,
		Far:      500,
		Width:    width,
		Height:   height,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return c.GetForward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

func (c *CameraState) ViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.GetForward()), mgl32.Vec3{0, 1, 0})
}

func (c *CameraState) ProjectionMatrix() mgl32.Mat4 {
	aspect := float32(1)
	if c.Height > 0 {
		aspect = float32(c.Width) / float32(c.Height)
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

func (c *CameraState) PixelSize() (int, int) {
	return c.Width, c.Height
}

// Resize updates the pixel size, typically from the window framebuffer.
func (c *CameraState) Resize(width, height int) {
	c.Width = width
	c.Height = height
}
