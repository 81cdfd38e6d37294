package recognizer

import (
	"strings"
	"sync"
	"time"
)

const (
	chunkMs          = 200
	chunkBytes       = SampleRate * Channels * 2 * chunkMs / 1000
	bytesPerSecond   = SampleRate * Channels * 2
	finalizeIdle     = 200 * time.Millisecond
	finalizeMax      = 1000 * time.Millisecond
	receiverDrainMax = 2 * time.Second
)

// rawStream is the wire-level half of a streaming session; Deepgram's
// websocket implements it, tests substitute their own.
type rawStream interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Transcript   string
	IsFinal      bool
	SpeechFinal  bool
	FromFinalize bool
}

// streamSession pumps PCM to a rawStream in fixed chunks and folds the
// service's interim/final messages into cumulative transcript updates.
type streamSession struct {
	ws        rawStream
	audioCh   chan []byte
	updates   chan Update
	connected chan struct{} // closed once dial completes (or fails)

	sendDone      chan struct{}
	recvDone      chan struct{}
	finalized     chan struct{}
	finalizedOnce sync.Once
	done          chan struct{}
	doneOnce      sync.Once

	// feedMu also guards sends on audioCh against Close: the audio
	// callback may still be delivering PCM while the session tears down.
	feedBuf    []byte
	feedClosed bool
	feedMu     sync.Mutex

	mu        sync.Mutex
	err       error
	errOnce   sync.Once
	closing   bool
	committed string
	interim   string
	sentBytes uint64
}

func newStreamSession(dial func() (rawStream, error)) *streamSession {
	ss := &streamSession{
		audioCh:   make(chan []byte, 128),
		updates:   make(chan Update, 16),
		sendDone:  make(chan struct{}),
		recvDone:  make(chan struct{}),
		finalized: make(chan struct{}),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}

	go func() {
		ws, err := dial()
		if err != nil {
			ss.errOnce.Do(func() {
				ss.mu.Lock()
				ss.err = err
				ss.mu.Unlock()
			})
			close(ss.sendDone)
			close(ss.recvDone)
			close(ss.connected)
			close(ss.updates)
			ss.doneOnce.Do(func() { close(ss.done) })
			return
		}

		ss.ws = ws
		close(ss.connected)
		go ss.runSender()
		go ss.runReceiver()
	}()

	return ss
}

func (s *streamSession) Feed(pcm []byte) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	if s.feedClosed {
		return
	}
	s.feedBuf = append(s.feedBuf, pcm...)
	for len(s.feedBuf) >= chunkBytes {
		chunk := make([]byte, chunkBytes)
		copy(chunk, s.feedBuf[:chunkBytes])
		s.feedBuf = s.feedBuf[chunkBytes:]
		select {
		case s.audioCh <- chunk:
		default: // backpressure: drop rather than stall the audio path
		}
	}
}

func (s *streamSession) Updates() <-chan Update {
	return s.updates
}

func (s *streamSession) Done() <-chan struct{} {
	return s.done
}

func (s *streamSession) Close() (Result, error) {
	<-s.connected

	defer s.doneOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	if s.ws == nil {
		connErr := s.err
		s.mu.Unlock()
		s.feedMu.Lock()
		s.feedClosed = true
		s.feedBuf = nil
		s.feedMu.Unlock()
		return Result{}, connErr
	}
	s.mu.Unlock()

	// Flush remaining buffered PCM, then close the send side while
	// still holding feedMu so a racing Feed cannot hit a closed channel.
	s.feedMu.Lock()
	s.feedClosed = true
	if len(s.feedBuf) > 0 {
		tail := make([]byte, len(s.feedBuf))
		copy(tail, s.feedBuf)
		s.feedBuf = nil
		select {
		case s.audioCh <- tail:
		default:
		}
	}
	close(s.audioCh)
	s.feedMu.Unlock()
	<-s.sendDone

	// Wait for the service's finalize acknowledgment, then a brief quiet
	// period so trailing finals land.
	select {
	case <-s.finalized:
		time.Sleep(finalizeIdle)
	case <-time.After(finalizeMax):
	}

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.ws.Close()
	select {
	case <-s.recvDone:
	case <-time.After(receiverDrainMax):
	}
	close(s.updates)

	s.mu.Lock()
	text := strings.TrimSpace(s.committed)
	sessionErr := s.err
	audioS := float64(s.sentBytes) / float64(bytesPerSecond)
	s.mu.Unlock()

	return Result{Text: text, AudioS: audioS}, sessionErr
}

func (s *streamSession) runSender() {
	defer close(s.sendDone)
	for chunk := range s.audioCh {
		if err := s.ws.Send(chunk); err != nil {
			s.setErr(err)
			return
		}
		s.mu.Lock()
		s.sentBytes += uint64(len(chunk))
		s.mu.Unlock()
	}
	if err := s.ws.CloseSend(); err != nil {
		s.setErr(err)
	}
}

func (s *streamSession) runReceiver() {
	defer close(s.recvDone)
	for {
		update, err := s.ws.Recv()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			s.setErr(err)
			return
		}

		if update.FromFinalize {
			s.finalizedOnce.Do(func() { close(s.finalized) })
		}

		s.mu.Lock()
		segmentFinal := update.IsFinal || update.SpeechFinal || update.FromFinalize
		if update.Transcript != "" {
			if segmentFinal {
				s.interim = ""
				if s.committed != "" {
					s.committed += " " + update.Transcript
				} else {
					s.committed = update.Transcript
				}
			} else {
				s.interim = update.Transcript
			}
		}
		live := s.committed
		if s.interim != "" {
			if live != "" {
				live += " " + s.interim
			} else {
				live = s.interim
			}
		}
		utteranceDone := update.SpeechFinal || update.FromFinalize
		closing := s.closing
		s.mu.Unlock()

		if live == "" || closing {
			continue
		}
		select {
		case s.updates <- Update{Text: live, Final: utteranceDone}:
		default: // consumer lagging; the next update supersedes this one
		}
	}
}

func (s *streamSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if s.ws != nil {
			s.ws.Close()
		}
		s.finalizedOnce.Do(func() { close(s.finalized) })
		s.doneOnce.Do(func() { close(s.done) })
	})
}
