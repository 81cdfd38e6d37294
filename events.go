package main

import "taskvox/tasks"

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless test harness receive the same capture events.
type EventSink interface {
	ListeningStart()
	ListeningStop()
	AudioLevel(level float64)
	LiveText(text string)
	TaskAdded(t tasks.Task, dup bool)
	DeviceLine(text string)
	Notice(text string)
}

// nopSink discards every event; used when no display is attached.
type nopSink struct{}

func (nopSink) ListeningStart()              {}
func (nopSink) ListeningStop()               {}
func (nopSink) AudioLevel(float64)           {}
func (nopSink) LiveText(string)              {}
func (nopSink) TaskAdded(tasks.Task, bool)   {}
func (nopSink) DeviceLine(string)            {}
func (nopSink) Notice(string)                {}
