package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taskvox/encoder"
	"taskvox/log"
)

// utteranceArchive keeps a FLAC copy of each captured utterance when
// -keepaudio is set. PCM arrives from the audio callback, so Append
// only buffers; encoding happens on Flush.
type utteranceArchive struct {
	dir string

	mu  sync.Mutex
	pcm []byte
}

func newUtteranceArchive(dir string) (*utteranceArchive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("archive dir: %w", err)
	}
	return &utteranceArchive{dir: dir}, nil
}

func (a *utteranceArchive) Append(pcm []byte) {
	a.mu.Lock()
	a.pcm = append(a.pcm, pcm...)
	a.mu.Unlock()
}

// Flush encodes the buffered utterance to <dir>/utterance-<ts>.flac
// and clears the buffer. Empty buffers write nothing.
func (a *utteranceArchive) Flush() (string, error) {
	a.mu.Lock()
	pcm := a.pcm
	a.pcm = nil
	a.mu.Unlock()

	if len(pcm) < 2 {
		return "", nil
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	enc, err := encoder.NewFlac()
	if err != nil {
		return "", err
	}
	for i := 0; i < len(samples); i += encoder.BlockSize {
		end := i + encoder.BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return "", err
		}
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	name := "utterance-" + time.Now().Format("20060102-150405.000") + ".flac"
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, enc.Bytes(), 0644); err != nil {
		return "", err
	}
	log.Info("archived: " + name)
	return path, nil
}

// Discard drops the buffered utterance without writing it.
func (a *utteranceArchive) Discard() {
	a.mu.Lock()
	a.pcm = nil
	a.mu.Unlock()
}
