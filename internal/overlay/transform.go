// Package overlay computes where the glasses overlay sits over a detected face.
//
// The placement is a rigid 2D approximation: the eye line angle becomes the
// rotation about the viewing axis and the inter-eye distance becomes a uniform
// scale. Head yaw and pitch are ignored.
package overlay

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/tryon/internal/detector"
)

// ErrInvalidParams is returned when Params cannot produce a transform.
var ErrInvalidParams = errors.New("invalid overlay params")

// MinBaselineEyeDistance is the smallest accepted baseline, in pixels.
const MinBaselineEyeDistance = 1.0

// Params are the tuning constants mapping image pixels to scene units.
type Params struct {
	// BaselineEyeDistance is the eye distance in pixels the asset was authored for at scale 1.
	BaselineEyeDistance float64 `json:"baseline_eye_distance"`
	ScaleX              float64 `json:"scale_x"`
	ScaleY              float64 `json:"scale_y"`
	OffsetX             float64 `json:"offset_x"`
	OffsetY             float64 `json:"offset_y"`
	// Depth places the overlay in front of the video background plane.
	Depth float64 `json:"depth"`
}

// DefaultParams returns the constants the stock glasses asset was tuned with.
// Scene Y points up while image Y points down, hence the negative scales.
func DefaultParams() Params {
	return Params{
		BaselineEyeDistance: 140,
		ScaleX:              -0.01,
		ScaleY:              -0.01,
		OffsetX:             0,
		OffsetY:             -0.01,
		Depth:               1,
	}
}

// Validate reports whether the params can be used.
func (p Params) Validate() error {
	if !(p.BaselineEyeDistance >= MinBaselineEyeDistance) || math.IsInf(p.BaselineEyeDistance, 0) {
		return fmt.Errorf("%w: baseline eye distance must be at least %v px, got %v",
			ErrInvalidParams, MinBaselineEyeDistance, p.BaselineEyeDistance)
	}
	for name, v := range map[string]float64{
		"scale_x": p.ScaleX, "scale_y": p.ScaleY,
		"offset_x": p.OffsetX, "offset_y": p.OffsetY, "depth": p.Depth,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, name)
		}
	}
	return nil
}

// Vec3 is a position in scene units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Transform is the placement applied to the overlay mesh.
type Transform struct {
	Position Vec3 `json:"position"`
	// Scale applies identically to all three axes.
	Scale float64 `json:"scale"`
	// Rotation is about the viewing axis, in radians.
	Rotation float64 `json:"rotation"`
	// EyeDistance is the measured eye distance in pixels.
	EyeDistance float64 `json:"eye_distance"`
}

// Compute returns the overlay transform for a pair of eye corners and the eye
// midpoint seen in a frame of the given size.
func Compute(eyes detector.Eyes, frameWidth, frameHeight int, p Params) Transform {
	eyeLine := mgl64.Vec2{eyes.Right.X - eyes.Left.X, eyes.Right.Y - eyes.Left.Y}
	eyeDistance := eyeLine.Len()

	return Transform{
		Position: Vec3{
			X: (eyes.Midpoint.X-float64(frameWidth)/2)*p.ScaleX + p.OffsetX,
			Y: (eyes.Midpoint.Y-float64(frameHeight)/2)*p.ScaleY + p.OffsetY,
			Z: p.Depth,
		},
		Scale:       eyeDistance / p.BaselineEyeDistance,
		Rotation:    math.Atan2(eyeLine.Y(), eyeLine.X()),
		EyeDistance: eyeDistance,
	}
}

// ComputeFace is Compute for a full landmark set. It reports false when the
// set lacks the eye landmarks or the landmarks overflow to a non-finite
// transform.
func ComputeFace(face *detector.FaceLandmarks, frameWidth, frameHeight int, p Params) (Transform, bool) {
	eyes, ok := face.Eyes()
	if !ok {
		return Transform{}, false
	}
	t := Compute(eyes, frameWidth, frameHeight, p)
	if !t.Finite() {
		return Transform{}, false
	}
	return t, true
}

// Finite reports whether every component of t is a finite number.
func (t Transform) Finite() bool {
	for _, v := range []float64{
		t.Position.X, t.Position.Y, t.Position.Z,
		t.Scale, t.Rotation, t.EyeDistance,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Matrix returns the model matrix T * Rz * S for WebGL style renderers.
func (t Transform) Matrix() mgl64.Mat4 {
	translate := mgl64.Translate3D(t.Position.X, t.Position.Y, t.Position.Z)
	rotate := mgl64.HomogRotate3DZ(t.Rotation)
	scale := mgl64.Scale3D(t.Scale, t.Scale, t.Scale)
	return translate.Mul4(rotate).Mul4(scale)
}
