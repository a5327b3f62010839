package app

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// runPipeline is the detection loop. Cycles run one after another on this
// goroutine; a time.Ticker drops ticks while a cycle overruns, so cycles never
// overlap. The ticker follows period changes made by UseProfile.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	period := a.Period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if p := a.Period(); p != period {
				period = p
				ticker.Reset(period)
				log.WithField("period", period).Debug("Detection period changed")
			}

			a.cycle()
		}
	}
}

// cycle runs one detection cycle: read a frame, apply the optional motion
// gate, detect faces and commit a transform for the first face. Read and
// detection errors are logged and the cycle is skipped.
func (a *App) cycle() {
	if !a.IsEnabled() {
		return
	}
	a.cycles.Add(1)

	cam := a.Camera()
	det := a.Detector()
	if cam == nil || det == nil {
		a.skipped.Add(1)
		return
	}

	frame, err := cam.ReadFrame()
	if err != nil {
		a.skipped.Add(1)
		log.WithError(err).Debug("Error reading frame")
		return
	}
	defer frame.Close()

	if pass, _ := a.motion.Pass(frame); !pass {
		a.skipped.Add(1)
		return
	}

	faces, err := det.Detect(frame)
	if err != nil {
		a.skipped.Add(1)
		log.WithError(err).Warn("Error detecting faces")
		return
	}

	if _, ok := a.apply(faces, frame.Cols(), frame.Rows()); !ok {
		a.skipped.Add(1)
	}
}
