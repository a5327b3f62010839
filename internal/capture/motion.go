package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate constants
const (
	// BlurKernel is the Gaussian blur kernel size used to suppress sensor noise.
	BlurKernel = 21
	// PixelDiffThreshold is the per-pixel intensity change that counts as changed.
	PixelDiffThreshold = 25
)

// MotionGate decides whether a frame differs enough from the previous one to
// be worth running face detection on. A still frame would produce the same
// transform again.
type MotionGate struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionGate creates a gate that opens when more than threshold percent of
// pixels change. A threshold <= 0 disables the gate; every frame passes.
func NewMotionGate(threshold float64) *MotionGate {
	return &MotionGate{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Enabled reports whether the gate filters frames at all.
func (m *MotionGate) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold > 0
}

// Pass reports whether frame should go on to detection, and the percentage of
// pixels that changed since the previous frame. The first frame after a reset
// always passes.
func (m *MotionGate) Pass(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.threshold <= 0 {
		return true, 0
	}

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurKernel, Y: BlurKernel}, 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, PixelDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset forgets the previous frame so the next one passes.
func (m *MotionGate) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// Close releases the stored frame.
func (m *MotionGate) Close() {
	m.Reset()
}

// SetThreshold changes the gate threshold. Values below 0 are ignored; 0 disables the gate.
func (m *MotionGate) SetThreshold(threshold float64) {
	if threshold < 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
