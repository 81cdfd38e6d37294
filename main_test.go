package main

import (
	"testing"

	"taskvox/audio"
	"taskvox/beep"
)

func TestCueSinkForwardsEvents(t *testing.T) {
	beep.Disable()
	rs := &recordingSink{}
	var sink EventSink = cueSink{rs}

	sink.ListeningStart()
	sink.DeviceLine("mic: system default")

	if starts, _ := rs.counts(); starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}
	if got := rs.deviceLine(); got != "mic: system default" {
		t.Errorf("device line = %q", got)
	}
}

func TestDeviceLineText(t *testing.T) {
	if got := deviceLineText(nil); got != "mic: system default" {
		t.Errorf("nil device = %q", got)
	}
	dev := &audio.DeviceInfo{Name: "WH-1000XM4 Bluetooth Headset"}
	want := "mic: WH-1000XM4 Bluetooth Headset (BT!)"
	if got := deviceLineText(dev); got != want {
		t.Errorf("bt device = %q, want %q", got, want)
	}
}
