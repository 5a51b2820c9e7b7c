package audio

import (
	"math"
	"testing"
)

func sine(freq float64, sampleRate, n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func peak(samples []float32) float64 {
	var p float64
	for _, s := range samples {
		p = math.Max(p, math.Abs(float64(s)))
	}
	return p
}

func TestPeakNormalize(t *testing.T) {
	got := PeakNormalize([]float32{0.1, -0.25, 0.2}, 0.5)
	if math.Abs(peak(got)-0.5) > 1e-6 {
		t.Errorf("peak = %f, want 0.5", peak(got))
	}
	if got[1] >= 0 {
		t.Errorf("sign not preserved: %v", got)
	}

	silent := []float32{0, 0}
	if out := PeakNormalize(silent, 0.9); out[0] != 0 || out[1] != 0 {
		t.Errorf("silent input changed: %v", out)
	}
}

func TestDCBlock(t *testing.T) {
	in := sine(440, 24000, 24000, 0.3)
	for i := range in {
		in[i] += 0.4
	}
	out := DCBlock(in, 24000)

	var mean float64
	tail := out[12000:]
	for _, s := range tail {
		mean += float64(s)
	}
	mean /= float64(len(tail))
	if math.Abs(mean) > 0.01 {
		t.Errorf("residual DC = %f", mean)
	}
}

func TestFades(t *testing.T) {
	in := make([]float32, 1000)
	for i := range in {
		in[i] = 1
	}

	faded := FadeIn(in, 1000, 100)
	if faded[0] != 0 {
		t.Errorf("fade in starts at %f, want 0", faded[0])
	}
	if faded[100] != 1 {
		t.Errorf("sample after ramp = %f, want 1", faded[100])
	}
	if in[0] != 1 {
		t.Error("FadeIn modified its input")
	}

	faded = FadeOut(in, 1000, 100)
	if faded[len(faded)-1] != 0 {
		t.Errorf("fade out ends at %f, want 0", faded[len(faded)-1])
	}
	if faded[899] != 1 {
		t.Errorf("sample before ramp = %f, want 1", faded[899])
	}

	short := FadeIn([]float32{1, 1}, 1000, 100)
	if short[0] != 0 {
		t.Errorf("ramp longer than input should still start at 0, got %f", short[0])
	}
}

func TestNoiseGate(t *testing.T) {
	loud := sine(200, 8000, 80, 0.5)
	quiet := sine(200, 8000, 80, 0.001)
	in := append(append([]float32{}, loud...), quiet...)

	out := NoiseGate(in, 80, 0.01)
	if peak(out[:80]) < 0.4 {
		t.Error("loud frame was gated")
	}
	if peak(out[80:]) != 0 {
		t.Error("quiet frame was not gated")
	}
}

func TestEnhance(t *testing.T) {
	const rate = 16000
	voice := sine(220, rate, rate/2, 0.2)
	hiss := sine(3000, rate, rate/2, 0.002)
	in := append(append([]float32{}, voice...), hiss...)

	out := Enhance(Clip{Samples: in, SampleRate: rate})
	if out.SampleRate != rate || len(out.Samples) != len(in) {
		t.Fatalf("shape changed: rate=%d len=%d", out.SampleRate, len(out.Samples))
	}
	if math.Abs(peak(out.Samples)-enhancePeak) > 1e-3 {
		t.Errorf("peak = %f, want %f", peak(out.Samples), enhancePeak)
	}
	if peak(out.Samples[len(out.Samples)-rate/10:]) != 0 {
		t.Error("trailing hiss survived the gate")
	}
	if out.Samples[0] != 0 || out.Samples[len(out.Samples)-1] != 0 {
		t.Errorf("edges = %f, %f, want faded to silence", out.Samples[0], out.Samples[len(out.Samples)-1])
	}
	fade := rate * enhanceFadeMs / 1000
	if got := peak(out.Samples[:fade/4]); got > enhancePeak/4+1e-3 {
		t.Errorf("onset peak = %f, want at most a quarter of %f", got, enhancePeak)
	}

	if got := Enhance(Clip{SampleRate: rate}); len(got.Samples) != 0 {
		t.Error("empty clip should stay empty")
	}
}
