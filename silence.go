package main

import (
	"sync"
	"time"
)

const (
	silencePowerThreshold = 0.012
	requiredSilenceFrames = 5
	silenceTimeoutDur     = 1500 * time.Millisecond
)

// silenceWatch decides when an active utterance has gone quiet for
// good. Frame-level counting confirms sustained silence first; only
// then is the wall-clock timer armed. Any voiced frame or transcript
// activity invalidates the pending timer, so a fire means a full quiet
// period with nothing new.
type silenceWatch struct {
	timeout   time.Duration
	threshold float64
	onTimeout func()

	mu         sync.Mutex
	silenceRun int
	armed      bool
	gen        uint64
	timer      *time.Timer
}

func newSilenceWatch(onTimeout func()) *silenceWatch {
	return &silenceWatch{
		timeout:   silenceTimeoutDur,
		threshold: silencePowerThreshold,
		onTimeout: onTimeout,
	}
}

// Frame consumes one buffer's metrics while recording is active.
func (w *silenceWatch) Frame(m frameMetrics) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if m.avg >= w.threshold {
		w.silenceRun = 0
		w.disarmLocked()
		return
	}

	w.silenceRun++
	if w.silenceRun >= requiredSilenceFrames && !w.armed {
		w.armLocked()
	}
}

// Activity notes fresh transcript text; any pending timeout is
// invalidated and the quiet period starts over.
func (w *silenceWatch) Activity() {
	w.mu.Lock()
	w.silenceRun = 0
	w.disarmLocked()
	w.mu.Unlock()
}

// Cancel stops the watch entirely; no timeout will fire afterwards.
func (w *silenceWatch) Cancel() {
	w.mu.Lock()
	w.silenceRun = 0
	w.disarmLocked()
	w.mu.Unlock()
}

func (w *silenceWatch) armLocked() {
	w.armed = true
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.timeout, func() {
		w.mu.Lock()
		live := w.armed && w.gen == gen
		if live {
			w.armed = false
		}
		w.mu.Unlock()
		if live {
			w.onTimeout()
		}
	})
}

// disarmLocked invalidates any pending timer. Bumping the generation
// covers the window where AfterFunc already ran but has not taken the
// lock yet.
func (w *silenceWatch) disarmLocked() {
	if !w.armed {
		return
	}
	w.armed = false
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
