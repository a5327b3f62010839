// Package calibrate derives overlay parameters from recorded eye samples.
package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
)

var (
	// ErrNoSamples is returned when there is nothing to calibrate from.
	ErrNoSamples = errors.New("no samples provided")
	// ErrMalformedSample is returned when a sample cannot be parsed or lacks eye points.
	ErrMalformedSample = errors.New("malformed sample")
	// ErrDegenerate is returned when every sample has coincident eye corners.
	ErrDegenerate = errors.New("all samples have zero eye distance")
)

// Sample is one recorded observation of a face looking straight at the
// camera. Either the eye corners or a full landmark set must be present.
type Sample struct {
	Left      *detector.Point3D  `json:"left,omitempty"`
	Right     *detector.Point3D  `json:"right,omitempty"`
	Landmarks []detector.Point3D `json:"landmarks,omitempty"`
	Timestamp int64              `json:"timestamp,omitempty"`
}

// Distance returns the 2D eye-corner distance of the sample.
func (s Sample) Distance() (float64, bool) {
	if s.Left != nil && s.Right != nil {
		return detector.Eyes{Left: *s.Left, Right: *s.Right}.Distance(), true
	}

	face := detector.FaceLandmarks{Points: s.Landmarks}
	eyes, ok := face.Eyes()
	if !ok {
		return 0, false
	}
	return eyes.Distance(), true
}

// Result is the outcome of a calibration run.
type Result struct {
	Baseline float64 `json:"baseline_eye_distance"`
	StdDev   float64 `json:"std_dev"`
	Samples  int     `json:"samples"`
}

// Apply returns p with the calibrated baseline eye distance.
func (r Result) Apply(p overlay.Params) overlay.Params {
	p.BaselineEyeDistance = r.Baseline
	return p
}

// ParseSample decodes one recorded sample and returns its eye distance.
func ParseSample(raw json.RawMessage) (float64, error) {
	var sample Sample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedSample, err)
	}

	d, ok := sample.Distance()
	if !ok {
		return 0, fmt.Errorf("%w: missing eye points", ErrMalformedSample)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: eye distance is not finite", ErrMalformedSample)
	}
	return d, nil
}

// Trainer turns recorded samples into a baseline eye distance.
type Trainer struct{}

// NewTrainer creates a new Trainer instance.
func NewTrainer() *Trainer {
	return &Trainer{}
}

// Baseline parses samples and returns the mean and standard deviation of
// their eye distances. Samples with zero distance are ignored.
func (t *Trainer) Baseline(samples []json.RawMessage) (Result, error) {
	if len(samples) == 0 {
		return Result{}, ErrNoSamples
	}

	distances := make([]float64, 0, len(samples))
	for i, raw := range samples {
		d, err := ParseSample(raw)
		if err != nil {
			return Result{}, fmt.Errorf("sample %d: %w", i, err)
		}
		if d > 0 {
			distances = append(distances, d)
		}
	}

	if len(distances) == 0 {
		return Result{}, ErrDegenerate
	}

	mean, std := stat.MeanStdDev(distances, nil)
	if len(distances) == 1 {
		std = 0
	}

	return Result{
		Baseline: mean,
		StdDev:   std,
		Samples:  len(distances),
	}, nil
}
