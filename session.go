package main

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"taskvox/duedate"
	"taskvox/log"
	"taskvox/recognizer"
)

const restartDebounce = 300 * time.Millisecond

type sessionPhase int32

const (
	phaseIdle sessionPhase = iota
	phaseListening
	phaseFinalizing
)

// CaptureResult is what one finalized utterance produced.
type CaptureResult struct {
	Title  string
	Due    *time.Time
	Raw    string // transcript before date extraction
	AudioS float64
	By     string // which path finalized: "timeout", "stop", "final", "recognizer_done"
}

type taggedUpdate struct {
	id uint64
	u  recognizer.Update
}

// speechSession is the capture state machine: Idle until the voice
// detector confirms sustained speech, Listening while a recognizer
// session is live, Finalizing exactly once per utterance. All state
// transitions happen on the run goroutine; the audio callback only
// computes metrics, feeds the active recognizer session and posts to
// frameCh without ever blocking.
type speechSession struct {
	rec        recognizer.Recognizer
	cfg        recognizer.Config
	sink       EventSink
	onComplete func(CaptureResult)
	now        func() time.Time

	detector *voiceDetector
	silence  *silenceWatch

	phase      atomic.Int32
	finalizing atomic.Bool
	active     atomic.Pointer[recognizer.Session]

	frameCh   chan frameMetrics
	updateCh  chan taggedUpdate
	recDoneCh chan uint64
	timeoutCh chan struct{}
	stopCh    chan struct{}
	quitCh    chan struct{}
	runDone   chan struct{}

	mu           sync.Mutex
	sessID       uint64
	liveText     string
	storedFinal  string
	lastFinalize time.Time
}

func newSpeechSession(rec recognizer.Recognizer, cfg recognizer.Config, sensitivity float64, sink EventSink, onComplete func(CaptureResult)) *speechSession {
	if sink == nil {
		sink = nopSink{}
	}
	s := &speechSession{
		rec:        rec,
		cfg:        cfg,
		sink:       sink,
		onComplete: onComplete,
		now:        time.Now,
		detector:   newVoiceDetector(sensitivity),
		frameCh:    make(chan frameMetrics, 64),
		updateCh:   make(chan taggedUpdate, 64),
		recDoneCh:  make(chan uint64, 8),
		timeoutCh:  make(chan struct{}, 1),
		stopCh:     make(chan struct{}, 1),
		quitCh:     make(chan struct{}),
		runDone:    make(chan struct{}),
	}
	s.silence = newSilenceWatch(func() {
		select {
		case s.timeoutCh <- struct{}{}:
		default:
		}
	})
	go s.run()
	return s
}

func (s *speechSession) SetSensitivity(v float64) {
	s.detector.SetSensitivity(v)
}

// HandleAudio is the capture callback. The buffer belongs to the audio
// backend, so PCM is copied before crossing a goroutine boundary.
func (s *speechSession) HandleAudio(data []byte) {
	if len(data) < 2 {
		return
	}
	m := pcmMetrics(data)
	if p := s.active.Load(); p != nil {
		pcm := make([]byte, len(data))
		copy(pcm, data)
		(*p).Feed(pcm)
	}
	select {
	case s.frameCh <- m:
	default: // coordination loop lagging; classification catches up on the next frame
	}
}

// Stop requests finalization of the current utterance. Safe from any
// goroutine and a no-op while Idle or already finalizing.
func (s *speechSession) Stop() {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
}

// Close shuts the state machine down, finalizing any live utterance
// first so its text is not lost.
func (s *speechSession) Close() {
	s.Stop()
	close(s.quitCh)
	<-s.runDone
	if sessionPhase(s.phase.Load()) == phaseListening {
		s.finalize("stop")
	}
}

func (s *speechSession) Listening() bool {
	return sessionPhase(s.phase.Load()) == phaseListening
}

func (s *speechSession) run() {
	defer close(s.runDone)
	for {
		select {
		case <-s.quitCh:
			return
		case m := <-s.frameCh:
			s.handleFrame(m)
		case tu := <-s.updateCh:
			s.handleUpdate(tu)
		case id := <-s.recDoneCh:
			s.handleRecognizerDone(id)
		case <-s.timeoutCh:
			s.finalize("timeout")
		case <-s.stopCh:
			s.finalize("stop")
		}
	}
}

func (s *speechSession) handleFrame(m frameMetrics) {
	switch sessionPhase(s.phase.Load()) {
	case phaseListening:
		s.sink.AudioLevel(m.avg)
		s.silence.Frame(m)
	case phaseIdle:
		if !s.detector.Frame(m) {
			return
		}
		s.mu.Lock()
		sinceDone := s.now().Sub(s.lastFinalize)
		s.mu.Unlock()
		if sinceDone < restartDebounce {
			// VAD re-triggered off the tail of the previous utterance.
			s.detector.Reset()
			return
		}
		s.start()
	}
}

func (s *speechSession) start() {
	if sessionPhase(s.phase.Load()) != phaseIdle {
		return
	}

	sess, err := s.rec.NewSession(context.Background(), s.cfg)
	if err != nil {
		log.Errorf("recognizer session: %v", err)
		s.sink.Notice("recognizer unavailable: " + err.Error())
		s.detector.Reset()
		s.mu.Lock()
		s.lastFinalize = s.now()
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.sessID++
	id := s.sessID
	s.liveText = ""
	s.storedFinal = ""
	s.mu.Unlock()

	s.finalizing.Store(false)
	s.silence.Cancel()
	select {
	case <-s.timeoutCh: // stale timeout from the previous utterance
	default:
	}

	s.phase.Store(int32(phaseListening))
	s.active.Store(&sess)
	go s.relay(id, sess)

	log.Info("listening_start")
	s.sink.ListeningStart()
}

// relay forwards one recognizer session's updates and death onto the
// coordination channels, tagged so stale sessions cannot be mistaken
// for the live one.
func (s *speechSession) relay(id uint64, sess recognizer.Session) {
	go func() {
		select {
		case <-sess.Done():
		case <-s.quitCh:
			return
		}
		select {
		case s.recDoneCh <- id:
		case <-s.quitCh:
		}
	}()
	for u := range sess.Updates() {
		select {
		case s.updateCh <- taggedUpdate{id: id, u: u}:
		case <-s.quitCh:
			return
		}
	}
}

func (s *speechSession) currentID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessID
}

func (s *speechSession) handleUpdate(tu taggedUpdate) {
	if tu.id != s.currentID() || sessionPhase(s.phase.Load()) != phaseListening {
		return
	}
	if tu.u.Final {
		s.mu.Lock()
		s.storedFinal = tu.u.Text
		s.mu.Unlock()
		s.finalize("final")
		return
	}
	s.mu.Lock()
	s.liveText = tu.u.Text
	s.mu.Unlock()
	s.silence.Activity()
	s.sink.LiveText(tu.u.Text)
}

// handleRecognizerDone reacts to the stream dying underneath a live
// session: finalize with whatever text arrived so far.
func (s *speechSession) handleRecognizerDone(id uint64) {
	if id != s.currentID() || sessionPhase(s.phase.Load()) != phaseListening {
		return
	}
	s.finalize("recognizer_done")
}

// finalize runs the once-per-utterance completion path. The CAS guard
// keeps the timeout, stop, final-text and stream-death triggers from
// racing each other into a double finalize.
func (s *speechSession) finalize(by string) {
	if sessionPhase(s.phase.Load()) != phaseListening {
		return
	}
	if !s.finalizing.CompareAndSwap(false, true) {
		return
	}
	s.phase.Store(int32(phaseFinalizing))

	s.silence.Cancel()
	p := s.active.Swap(nil)

	var result recognizer.Result
	var closeErr error
	if p != nil {
		result, closeErr = (*p).Close()
	}
	if closeErr != nil {
		log.Errorf("recognizer close: %v", closeErr)
	}

	s.mu.Lock()
	text := s.storedFinal
	if text == "" {
		text = s.liveText
	}
	if text == "" {
		text = result.Text
	}
	s.liveText = ""
	s.storedFinal = ""
	s.mu.Unlock()

	// Live text must read as empty before the completion callback runs.
	s.sink.LiveText("")

	text = strings.TrimSpace(text)
	title, due := duedate.Extract(text, s.now())
	s.onComplete(CaptureResult{Title: title, Due: due, Raw: text, AudioS: result.AudioS, By: by})

	s.mu.Lock()
	s.lastFinalize = s.now()
	s.mu.Unlock()
	s.detector.Reset()
	s.finalizing.Store(false)
	s.phase.Store(int32(phaseIdle))

	log.Info("listening_stop: " + by)
	s.sink.ListeningStop()
}
