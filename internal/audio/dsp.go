package audio

import "math"

// PeakNormalize scales samples so that the peak absolute value equals target.
// Silent input is returned unchanged.
func PeakNormalize(samples []float32, target float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 || target <= 0 {
		return samples
	}
	gain := target / peak
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s * gain
	}
	return out
}

// DCBlock removes the DC offset with a first-order high-pass filter
// y[n] = x[n] - x[n-1] + R*y[n-1].
func DCBlock(samples []float32, sampleRate int) []float32 {
	if len(samples) == 0 || sampleRate <= 0 {
		return samples
	}
	// ~10 Hz corner.
	r := 1 - (2 * math.Pi * 10 / float64(sampleRate))
	out := make([]float32, len(samples))
	var prevX, prevY float64
	for i, s := range samples {
		x := float64(s)
		y := x - prevX + r*prevY
		out[i] = float32(y)
		prevX, prevY = x, y
	}
	return out
}

// FadeIn applies a linear ramp over the first durationMs milliseconds.
func FadeIn(samples []float32, sampleRate, durationMs int) []float32 {
	n := rampLen(len(samples), sampleRate, durationMs)
	if n == 0 {
		return samples
	}
	out := append([]float32(nil), samples...)
	for i := range n {
		out[i] *= float32(i) / float32(n)
	}
	return out
}

// FadeOut applies a linear ramp down over the last durationMs milliseconds.
func FadeOut(samples []float32, sampleRate, durationMs int) []float32 {
	n := rampLen(len(samples), sampleRate, durationMs)
	if n == 0 {
		return samples
	}
	out := append([]float32(nil), samples...)
	start := len(out) - n
	for i := range n {
		out[start+i] *= float32(n-1-i) / float32(n)
	}
	return out
}

func rampLen(total, sampleRate, durationMs int) int {
	if sampleRate <= 0 || durationMs <= 0 {
		return 0
	}
	return min(total, sampleRate*durationMs/1000)
}

// NoiseGate zeroes frames of frameLen samples whose RMS falls below
// threshold. A partial trailing frame is gated the same way.
func NoiseGate(samples []float32, frameLen int, threshold float64) []float32 {
	if frameLen <= 0 || len(samples) == 0 {
		return samples
	}
	out := append([]float32(nil), samples...)
	for start := 0; start < len(out); start += frameLen {
		end := min(start+frameLen, len(out))
		if rms(out[start:end]) < threshold {
			clear(out[start:end])
		}
	}
	return out
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
