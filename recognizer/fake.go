package recognizer

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Fake is an in-process recognizer for tests and the headless -test
// mode. With a script it plays the text back word by word as partial
// updates once audio arrives; without one, tests drive each session by
// hand through EmitPartial/EmitFinal/Fail.
type Fake struct {
	script      string
	scriptDelay time.Duration
	dialErr     error

	mu       sync.Mutex
	sessions []*FakeSession
}

func NewFake() *Fake {
	return &Fake{}
}

// NewScripted returns a Fake that replays text across the session at
// delay per word.
func NewScripted(text string, delay time.Duration) *Fake {
	return &Fake{script: text, scriptDelay: delay}
}

// FailDial makes every NewSession call return err.
func (f *Fake) FailDial(err error) { f.dialErr = err }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) NewSession(_ context.Context, _ Config) (Session, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	s := &FakeSession{
		updates: make(chan Update, 32),
		done:    make(chan struct{}),
		fedCh:   make(chan struct{}, 1),
	}
	if f.script != "" {
		go s.play(f.script, f.scriptDelay)
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

// Last returns the most recently created session, or nil.
func (f *Fake) Last() *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

// Sessions returns every session created so far.
func (f *Fake) Sessions() []*FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSession(nil), f.sessions...)
}

type FakeSession struct {
	updates chan Update
	done    chan struct{}
	fedCh   chan struct{}

	mu       sync.Mutex
	text     string
	err      error
	closed   bool
	fedBytes uint64
}

func (s *FakeSession) Feed(pcm []byte) {
	s.mu.Lock()
	s.fedBytes += uint64(len(pcm))
	s.mu.Unlock()
	select {
	case s.fedCh <- struct{}{}:
	default:
	}
}

func (s *FakeSession) Updates() <-chan Update { return s.updates }

func (s *FakeSession) Done() <-chan struct{} { return s.done }

// EmitPartial delivers a partial transcript update.
func (s *FakeSession) EmitPartial(text string) {
	s.emit(Update{Text: text, Final: false})
}

// EmitFinal delivers an utterance-final transcript update.
func (s *FakeSession) EmitFinal(text string) {
	s.emit(Update{Text: text, Final: true})
}

func (s *FakeSession) emit(u Update) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.text = u.Text
	s.mu.Unlock()
	select {
	case s.updates <- u:
	default:
	}
}

// Fail simulates a mid-session stream failure.
func (s *FakeSession) Fail(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// FedBytes reports how much PCM the session has received.
func (s *FakeSession) FedBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fedBytes
}

func (s *FakeSession) Close() (Result, error) {
	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return Result{Text: s.text}, s.err
	}
	s.closed = true
	text := s.text
	err := s.err
	audioS := float64(s.fedBytes) / float64(bytesPerSecond)
	s.mu.Unlock()

	close(s.updates)
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return Result{Text: text, AudioS: audioS}, err
}

// play streams the script out as growing partial updates, gated on the
// first audio actually arriving so updates line up with recording.
func (s *FakeSession) play(text string, delay time.Duration) {
	select {
	case <-s.fedCh:
	case <-s.done:
		return
	}
	words := strings.Fields(text)
	for i := range words {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}
		s.EmitPartial(strings.Join(words[:i+1], " "))
	}
}
