// Package detector provides face landmark detection interfaces and types for eyewear try-on.
package detector

import "math"

// Face mesh landmark indices following the MediaPipe Face Mesh topology.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	NoseTip         = 5
	LeftEyeOuter    = 130
	EyeMidpoint     = 168 // nose bridge between the eyes
	RightEyeOuter   = 359
	NumLandmarks    = 468
	NumIrisRefined  = 478 // NumLandmarks plus 10 iris points when refinement is on
	minEyeLandmarks = RightEyeOuter + 1
)

// Point3D represents a landmark position. X and Y are image pixels,
// Z is depth relative to the face center in roughly the same scale as X.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceLandmarks represents one face detected by the face mesh model.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// Eyes holds the three landmarks the overlay is aligned to.
type Eyes struct {
	Left     Point3D `json:"left"`
	Right    Point3D `json:"right"`
	Midpoint Point3D `json:"midpoint"`
}

// Eyes extracts the outer eye corners and the eye midpoint.
// It reports false when the landmark set is too short to contain them.
func (f *FaceLandmarks) Eyes() (Eyes, bool) {
	if f == nil || len(f.Points) < minEyeLandmarks {
		return Eyes{}, false
	}
	return Eyes{
		Left:     f.Points[LeftEyeOuter],
		Right:    f.Points[RightEyeOuter],
		Midpoint: f.Points[EyeMidpoint],
	}, true
}

// Distance returns the planar distance between the eye corners in pixels.
// Depth is ignored.
func (e Eyes) Distance() float64 {
	return distance2D(e.Left, e.Right)
}

// distance2D calculates the Euclidean distance between two points in the image plane.
func distance2D(a, b Point3D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Scaled returns a copy of the face with every point multiplied by k about the origin.
func (f *FaceLandmarks) Scaled(k float64) *FaceLandmarks {
	if f == nil {
		return nil
	}

	scaled := &FaceLandmarks{
		Points: make([]Point3D, len(f.Points)),
		Score:  f.Score,
	}
	for i, p := range f.Points {
		scaled.Points[i] = Point3D{X: p.X * k, Y: p.Y * k, Z: p.Z * k}
	}
	return scaled
}
