package main

import (
	"encoding/binary"
	"os"
	"testing"
)

func TestArchiveFlushWritesFlac(t *testing.T) {
	a, err := newUtteranceArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]byte, 16000)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(i%2000)))
	}
	a.Append(pcm[:8000])
	a.Append(pcm[8000:])

	path, err := a.Flush()
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("Flush wrote nothing")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Error("archive file is not FLAC")
	}

	// Buffer cleared: a second flush is a no-op.
	path, err = a.Flush()
	if err != nil || path != "" {
		t.Errorf("second Flush = (%q, %v), want empty no-op", path, err)
	}
}

func TestArchiveDiscard(t *testing.T) {
	a, err := newUtteranceArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	a.Append(make([]byte, 4096))
	a.Discard()
	if path, _ := a.Flush(); path != "" {
		t.Error("Flush wrote after Discard")
	}
}
