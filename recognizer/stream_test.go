package recognizer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// memStream is an in-memory rawStream. Recv blocks on the resp channel;
// tests script responses and inspect what was sent.
type memStream struct {
	mu        sync.Mutex
	sent      []int // chunk sizes, in order
	sendErr   error
	closeSent bool
	closed    bool

	resp chan streamUpdate
}

func newMemStream() *memStream {
	return &memStream{resp: make(chan streamUpdate, 16)}
}

func (m *memStream) Send(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, len(pcm))
	return nil
}

func (m *memStream) CloseSend() error {
	m.mu.Lock()
	m.closeSent = true
	m.mu.Unlock()
	// A real service acknowledges the finalize request.
	m.resp <- streamUpdate{FromFinalize: true}
	return nil
}

func (m *memStream) Recv() (streamUpdate, error) {
	u, ok := <-m.resp
	if !ok {
		return streamUpdate{}, io.EOF
	}
	return u, nil
}

func (m *memStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.resp)
	}
	return nil
}

func (m *memStream) sentChunks() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.sent...)
}

func dialMem(m *memStream) func() (rawStream, error) {
	return func() (rawStream, error) { return m, nil }
}

func waitUpdate(t *testing.T, s Session) Update {
	t.Helper()
	select {
	case u, ok := <-s.Updates():
		if !ok {
			t.Fatal("updates channel closed early")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestStreamChunksFixedSize(t *testing.T) {
	ws := newMemStream()
	s := newStreamSession(dialMem(ws))
	<-s.connected

	// Two and a half chunks of PCM, fed in uneven pieces.
	total := chunkBytes*2 + chunkBytes/2
	fed := 0
	for fed < total {
		n := 1000
		if fed+n > total {
			n = total - fed
		}
		s.Feed(make([]byte, n))
		fed += n
	}

	result, err := s.Close()
	if err != nil {
		t.Fatal(err)
	}

	chunks := ws.sentChunks()
	if len(chunks) != 3 {
		t.Fatalf("sent %d chunks, want 3", len(chunks))
	}
	if chunks[0] != chunkBytes || chunks[1] != chunkBytes {
		t.Errorf("full chunks = %d, %d, want %d each", chunks[0], chunks[1], chunkBytes)
	}
	if chunks[2] != chunkBytes/2 {
		t.Errorf("tail chunk = %d, want %d", chunks[2], chunkBytes/2)
	}

	wantS := float64(total) / float64(bytesPerSecond)
	if result.AudioS != wantS {
		t.Errorf("AudioS = %v, want %v", result.AudioS, wantS)
	}
}

func TestStreamFoldsInterimAndFinal(t *testing.T) {
	ws := newMemStream()
	s := newStreamSession(dialMem(ws))
	<-s.connected
	s.Feed(make([]byte, chunkBytes))

	ws.resp <- streamUpdate{Transcript: "call"}
	if u := waitUpdate(t, s); u.Text != "call" || u.Final {
		t.Errorf("first update = %+v", u)
	}

	ws.resp <- streamUpdate{Transcript: "call mom", IsFinal: true}
	if u := waitUpdate(t, s); u.Text != "call mom" || u.Final {
		t.Errorf("segment-final update = %+v", u)
	}

	ws.resp <- streamUpdate{Transcript: "tomorrow", IsFinal: true, SpeechFinal: true}
	if u := waitUpdate(t, s); u.Text != "call mom tomorrow" || !u.Final {
		t.Errorf("speech-final update = %+v", u)
	}

	result, err := s.Close()
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "call mom tomorrow" {
		t.Errorf("Result.Text = %q", result.Text)
	}
}

func TestStreamInterimSuperseded(t *testing.T) {
	ws := newMemStream()
	s := newStreamSession(dialMem(ws))
	<-s.connected

	ws.resp <- streamUpdate{Transcript: "buy"}
	waitUpdate(t, s)
	ws.resp <- streamUpdate{Transcript: "buy milk"}
	waitUpdate(t, s)
	// The final replaces both interims, not appends to them.
	ws.resp <- streamUpdate{Transcript: "buy milk today", IsFinal: true}
	if u := waitUpdate(t, s); u.Text != "buy milk today" {
		t.Errorf("after final, text = %q", u.Text)
	}

	result, _ := s.Close()
	if result.Text != "buy milk today" {
		t.Errorf("Result.Text = %q", result.Text)
	}
}

func TestStreamUncommittedInterimNotInResult(t *testing.T) {
	ws := newMemStream()
	s := newStreamSession(dialMem(ws))
	<-s.connected

	ws.resp <- streamUpdate{Transcript: "partial words", IsFinal: false}
	waitUpdate(t, s)

	result, err := s.Close()
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "" {
		t.Errorf("Result.Text = %q, want empty for uncommitted interim", result.Text)
	}
}

func TestStreamFeedAfterCloseIgnored(t *testing.T) {
	ws := newMemStream()
	s := newStreamSession(dialMem(ws))
	<-s.connected

	s.Feed(make([]byte, chunkBytes))
	if _, err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// The capture callback can still deliver audio while the session
	// tears down; it must be dropped, not sent on the closed channel.
	s.Feed(make([]byte, chunkBytes*2))

	if got := len(ws.sentChunks()); got != 1 {
		t.Errorf("sent %d chunks after close, want 1", got)
	}
}

func TestStreamDialFailure(t *testing.T) {
	dialErr := errors.New("refused")
	s := newStreamSession(func() (rawStream, error) { return nil, dialErr })

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after dial failure")
	}

	s.Feed(make([]byte, chunkBytes)) // must not panic or block
	if _, err := s.Close(); !errors.Is(err, dialErr) {
		t.Errorf("Close err = %v, want %v", err, dialErr)
	}
}

func TestStreamMidSessionFailure(t *testing.T) {
	ws := newMemStream()
	ws.sendErr = errors.New("broken pipe")
	s := newStreamSession(dialMem(ws))
	<-s.connected

	s.Feed(make([]byte, chunkBytes))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after send failure")
	}
	if _, err := s.Close(); err == nil {
		t.Error("Close returned nil error after stream failure")
	}
}

func TestFakeSessionLifecycle(t *testing.T) {
	f := NewFake()
	sess, err := f.NewSession(t.Context(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	fs := f.Last()
	if fs == nil {
		t.Fatal("Last returned nil")
	}

	fs.EmitPartial("water the")
	if u := waitUpdate(t, sess); u.Text != "water the" || u.Final {
		t.Errorf("partial = %+v", u)
	}
	fs.EmitFinal("water the plants")
	if u := waitUpdate(t, sess); u.Text != "water the plants" || !u.Final {
		t.Errorf("final = %+v", u)
	}

	sess.Feed(make([]byte, 640))
	result, err := sess.Close()
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "water the plants" {
		t.Errorf("Result.Text = %q", result.Text)
	}
	if fs.FedBytes() != 640 {
		t.Errorf("FedBytes = %d", fs.FedBytes())
	}

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Error("Done not closed after Close")
	}
}

func TestFakeSessionFail(t *testing.T) {
	f := NewFake()
	sess, _ := f.NewSession(t.Context(), Config{})
	f.Last().EmitPartial("half an")
	waitUpdate(t, sess)

	wantErr := errors.New("stream lost")
	f.Last().Fail(wantErr)

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Fail")
	}
	if _, err := sess.Close(); !errors.Is(err, wantErr) {
		t.Errorf("Close err = %v, want %v", err, wantErr)
	}
}
