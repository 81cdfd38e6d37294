package main

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestWatch(fired *atomic.Int32, timeout time.Duration) *silenceWatch {
	w := newSilenceWatch(func() { fired.Add(1) })
	w.timeout = timeout
	return w
}

func waitFired(t *testing.T, fired *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fired.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("fired = %d, want %d", fired.Load(), want)
}

func TestWatchFiresAfterConfirmedSilence(t *testing.T) {
	var fired atomic.Int32
	w := newTestWatch(&fired, 30*time.Millisecond)

	for i := 0; i < requiredSilenceFrames; i++ {
		w.Frame(silentFrame())
	}
	waitFired(t, &fired, 1)
}

func TestWatchNeedsEnoughSilentFrames(t *testing.T) {
	var fired atomic.Int32
	w := newTestWatch(&fired, 20*time.Millisecond)

	for i := 0; i < requiredSilenceFrames-1; i++ {
		w.Frame(silentFrame())
	}
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("fired without confirmed frame-level silence")
	}
}

func TestWatchVoicedFrameDisarms(t *testing.T) {
	var fired atomic.Int32
	w := newTestWatch(&fired, 30*time.Millisecond)

	for i := 0; i < requiredSilenceFrames; i++ {
		w.Frame(silentFrame())
	}
	w.Frame(voicedFrame())
	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("timer fired after a voiced frame disarmed it")
	}

	// Quiet again: a fresh run re-arms.
	for i := 0; i < requiredSilenceFrames; i++ {
		w.Frame(silentFrame())
	}
	waitFired(t, &fired, 1)
}

func TestWatchActivityDisarms(t *testing.T) {
	var fired atomic.Int32
	w := newTestWatch(&fired, 30*time.Millisecond)

	for i := 0; i < requiredSilenceFrames; i++ {
		w.Frame(silentFrame())
	}
	w.Activity()
	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("timer fired after transcript activity")
	}
}

func TestWatchCancel(t *testing.T) {
	var fired atomic.Int32
	w := newTestWatch(&fired, 30*time.Millisecond)

	for i := 0; i < requiredSilenceFrames; i++ {
		w.Frame(silentFrame())
	}
	w.Cancel()
	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("timer fired after Cancel")
	}
}

func TestWatchFiresOncePerArm(t *testing.T) {
	var fired atomic.Int32
	w := newTestWatch(&fired, 20*time.Millisecond)

	// Sustained silence arms exactly one timer; extra silent frames
	// while armed must not stack additional fires.
	for i := 0; i < requiredSilenceFrames*4; i++ {
		w.Frame(silentFrame())
	}
	waitFired(t, &fired, 1)
	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("fired %d times, want 1", fired.Load())
	}
}
