package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	faces []FaceLandmarks
	err   error
	calls int
	mu    sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// NewFace builds a full face mesh with the eye landmarks set to the given
// pixel positions. All other points sit on the eye midpoint.
func NewFace(left, right, midpoint Point3D) FaceLandmarks {
	face := FaceLandmarks{
		Points: make([]Point3D, NumIrisRefined),
		Score:  0.97,
	}
	for i := range face.Points {
		face.Points[i] = midpoint
	}

	face.Points[LeftEyeOuter] = left
	face.Points[RightEyeOuter] = right
	face.Points[EyeMidpoint] = midpoint
	face.Points[NoseTip] = Point3D{X: midpoint.X, Y: midpoint.Y + 0.5*distance2D(left, right), Z: -8}

	return face
}

// FrontalFace returns a preset face looking straight at a 640x480 camera,
// eyes level and 140 pixels apart.
func FrontalFace() FaceLandmarks {
	return NewFace(
		Point3D{X: 250, Y: 220, Z: 4},
		Point3D{X: 390, Y: 220, Z: 4},
		Point3D{X: 320, Y: 215, Z: -2},
	)
}

// TiltedFace returns FrontalFace with the head rolled by angle radians about
// the eye midpoint.
func TiltedFace(angle float64) FaceLandmarks {
	face := FrontalFace()
	pivot := face.Points[EyeMidpoint]
	sin, cos := math.Sincos(angle)

	for i, p := range face.Points {
		dx, dy := p.X-pivot.X, p.Y-pivot.Y
		face.Points[i] = Point3D{
			X: pivot.X + dx*cos - dy*sin,
			Y: pivot.Y + dx*sin + dy*cos,
			Z: p.Z,
		}
	}

	return face
}
