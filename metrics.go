package main

// frameMetrics summarizes one capture buffer: mean and peak absolute
// amplitude, normalized to [0, 1].
type frameMetrics struct {
	avg  float64
	peak float64
}

// computeMetrics reduces a block of PCM16 samples to frameMetrics.
func computeMetrics(samples []int16) frameMetrics {
	if len(samples) == 0 {
		return frameMetrics{}
	}
	var sum float64
	var peak float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		if v < 0 {
			v = -v
		}
		sum += v
		if v > peak {
			peak = v
		}
	}
	return frameMetrics{avg: sum / float64(len(samples)), peak: peak}
}

// pcmMetrics is computeMetrics over raw little-endian PCM16 bytes, as
// delivered by the capture callback. Avoids allocating a sample slice
// on the audio path.
func pcmMetrics(data []byte) frameMetrics {
	n := len(data) / 2
	if n == 0 {
		return frameMetrics{}
	}
	var sum float64
	var peak float64
	for i := 0; i < n*2; i += 2 {
		s := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		v := float64(s) / 32768.0
		if v < 0 {
			v = -v
		}
		sum += v
		if v > peak {
			peak = v
		}
	}
	return frameMetrics{avg: sum / float64(n), peak: peak}
}
