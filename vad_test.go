package main

import "testing"

func voicedFrame() frameMetrics { return frameMetrics{avg: 0.05, peak: 0.2} }
func silentFrame() frameMetrics { return frameMetrics{avg: 0.001, peak: 0.004} }

func TestDetectorFiresAfterRequiredFrames(t *testing.T) {
	d := newVoiceDetector(0.5)
	for i := 0; i < requiredVoiceFrames-1; i++ {
		if d.Frame(voicedFrame()) {
			t.Fatalf("fired after %d frames", i+1)
		}
	}
	if !d.Frame(voicedFrame()) {
		t.Fatalf("did not fire at frame %d", requiredVoiceFrames)
	}
}

func TestDetectorFiresOncePerTransition(t *testing.T) {
	d := newVoiceDetector(0.5)
	fired := 0
	for i := 0; i < requiredVoiceFrames*3; i++ {
		if d.Frame(voicedFrame()) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("fired %d times during continuous voice, want 1", fired)
	}

	// Silence, then voice again: one more fire.
	for i := 0; i < 5; i++ {
		d.Frame(silentFrame())
	}
	for i := 0; i < requiredVoiceFrames; i++ {
		if d.Frame(voicedFrame()) {
			fired++
		}
	}
	if fired != 2 {
		t.Errorf("fired %d times total, want 2", fired)
	}
}

func TestDetectorSilenceResetsRun(t *testing.T) {
	d := newVoiceDetector(0.5)
	for i := 0; i < requiredVoiceFrames-1; i++ {
		d.Frame(voicedFrame())
	}
	d.Frame(silentFrame())
	// The run starts over; one frame short must not fire.
	for i := 0; i < requiredVoiceFrames-1; i++ {
		if d.Frame(voicedFrame()) {
			t.Fatal("fired without a full fresh run")
		}
	}
}

func TestDetectorPeakTriggersQuietFrame(t *testing.T) {
	d := newVoiceDetector(0)
	// Average below threshold, peak above threshold*factor: voiced.
	frame := frameMetrics{avg: basePowerThreshold / 2, peak: basePowerThreshold*peakThresholdFactor + 0.01}
	for i := 0; i < requiredVoiceFrames-1; i++ {
		d.Frame(frame)
	}
	if !d.Frame(frame) {
		t.Error("peak-only frames did not accumulate as voice")
	}
}

func TestSensitivityScalesThreshold(t *testing.T) {
	low := newVoiceDetector(0)
	high := newVoiceDetector(1)
	if got := low.threshold(); got != basePowerThreshold {
		t.Errorf("threshold(0) = %v, want %v", got, basePowerThreshold)
	}
	want := basePowerThreshold * (1 - sensitivityRange)
	if got := high.threshold(); got != want {
		t.Errorf("threshold(1) = %v, want %v", got, want)
	}

	// A quiet frame only the sensitive detector hears.
	quiet := frameMetrics{avg: 0.010, peak: 0.012}
	for i := 0; i < requiredVoiceFrames; i++ {
		low.Frame(quiet)
		high.Frame(quiet)
	}
	low.mu.Lock()
	lowRun := low.voiceRun
	low.mu.Unlock()
	high.mu.Lock()
	highLatched := high.latched
	high.mu.Unlock()
	if lowRun != 0 {
		t.Errorf("insensitive detector counted %d voiced frames, want 0", lowRun)
	}
	if !highLatched {
		t.Error("sensitive detector did not detect the quiet voice")
	}
}

func TestClampSensitivity(t *testing.T) {
	if clampSensitivity(-1) != 0 || clampSensitivity(2) != 1 || clampSensitivity(0.3) != 0.3 {
		t.Error("clampSensitivity out of range")
	}
}

func TestDetectorReset(t *testing.T) {
	d := newVoiceDetector(0.5)
	for i := 0; i < requiredVoiceFrames; i++ {
		d.Frame(voicedFrame())
	}
	d.Reset()
	fired := false
	for i := 0; i < requiredVoiceFrames; i++ {
		if d.Frame(voicedFrame()) {
			fired = true
		}
	}
	if !fired {
		t.Error("detector did not re-fire after Reset")
	}
}
