package main

import "sync"

const (
	basePowerThreshold  = 0.025
	peakThresholdFactor = 3.0
	sensitivityRange    = 0.8
	requiredVoiceFrames = 10
)

// voiceDetector classifies capture buffers as voiced or silent and
// fires once when sustained voice follows silence. Sensitivity in
// [0, 1] scales the power threshold down: at 0 the full base threshold
// applies, at 1 only 20% of it does.
type voiceDetector struct {
	mu          sync.Mutex
	sensitivity float64
	voiceRun    int
	silenceRun  int
	latched     bool
}

func newVoiceDetector(sensitivity float64) *voiceDetector {
	return &voiceDetector{sensitivity: clampSensitivity(sensitivity)}
}

func clampSensitivity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func (d *voiceDetector) SetSensitivity(s float64) {
	d.mu.Lock()
	d.sensitivity = clampSensitivity(s)
	d.mu.Unlock()
}

func (d *voiceDetector) threshold() float64 {
	return basePowerThreshold * (1 - d.sensitivity*sensitivityRange)
}

// Frame consumes one buffer's metrics and reports whether sustained
// voice was just confirmed. After firing it stays latched until Reset,
// so continued speech cannot re-trigger.
func (d *voiceDetector) Frame(m frameMetrics) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.threshold()
	voiced := m.avg > t || m.peak > t*peakThresholdFactor

	if !voiced {
		d.silenceRun++
		d.voiceRun = 0
		if d.latched {
			d.latched = false
		}
		return false
	}

	d.voiceRun++
	d.silenceRun = 0
	if d.latched {
		return false
	}
	if d.voiceRun >= requiredVoiceFrames {
		d.latched = true
		return true
	}
	return false
}

func (d *voiceDetector) Reset() {
	d.mu.Lock()
	d.voiceRun = 0
	d.silenceRun = 0
	d.latched = false
	d.mu.Unlock()
}
