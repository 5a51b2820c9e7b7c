package audio

import (
	"math"
	"math/cmplx"
)

// Analysis frame layout.
const (
	frameSize = 2048
	hopSize   = 512

	pitchMinHz = 50
	pitchMaxHz = 300
	// Normalized autocorrelation a frame must reach to count as voiced.
	voicingThreshold = 0.5

	tempoMinBPM = 60
	tempoMaxBPM = 200
)

// Features summarizes a voice recording.
type Features struct {
	Duration         float64  `json:"duration"`
	SampleRate       int      `json:"sample_rate"`
	RMSEnergy        float64  `json:"rms_energy"`
	SpectralCentroid float64  `json:"spectral_centroid"`
	ZeroCrossingRate float64  `json:"zero_crossing_rate"`
	Tempo            float64  `json:"tempo"`
	PitchMean        *float64 `json:"pitch_mean"`
	PitchStd         *float64 `json:"pitch_std"`
}

// Analyze extracts frame-averaged features from clip. PitchMean and PitchStd
// are nil when no frame is voiced.
func Analyze(clip Clip) (Features, error) {
	if len(clip.Samples) == 0 {
		return Features{}, ErrEmptyClip
	}
	if clip.SampleRate <= 0 {
		return Features{}, ErrFormatMismatch
	}

	frames := frameStarts(len(clip.Samples))
	f := Features{
		Duration:   float64(len(clip.Samples)) / float64(clip.SampleRate),
		SampleRate: clip.SampleRate,
	}

	var (
		rmsSum, zcrSum, centroidSum float64
		energies                    = make([]float64, 0, len(frames))
		pitches                     []float64
	)
	for _, start := range frames {
		frame := frameAt(clip.Samples, start)
		r := rms(frame)
		rmsSum += r
		energies = append(energies, r)
		zcrSum += zeroCrossingRate(frame)
		centroidSum += spectralCentroid(frame, clip.SampleRate)
		if p, ok := framePitch(frame, clip.SampleRate); ok {
			pitches = append(pitches, p)
		}
	}
	n := float64(len(frames))
	f.RMSEnergy = rmsSum / n
	f.ZeroCrossingRate = zcrSum / n
	f.SpectralCentroid = centroidSum / n
	f.Tempo = estimateTempo(energies, clip.SampleRate)

	if len(pitches) > 0 {
		mean, std := meanStd(pitches)
		f.PitchMean, f.PitchStd = &mean, &std
	}
	return f, nil
}

func frameStarts(total int) []int {
	if total <= frameSize {
		return []int{0}
	}
	starts := make([]int, 0, (total-frameSize)/hopSize+1)
	for s := 0; s+frameSize <= total; s += hopSize {
		starts = append(starts, s)
	}
	return starts
}

// frameAt returns frameSize samples from start, zero padded past the end.
func frameAt(samples []float32, start int) []float32 {
	end := start + frameSize
	if end <= len(samples) {
		return samples[start:end]
	}
	out := make([]float32, frameSize)
	copy(out, samples[start:])
	return out
}

func zeroCrossingRate(frame []float32) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}

func spectralCentroid(frame []float32, sampleRate int) float64 {
	buf := make([]complex128, len(frame))
	for i, s := range frame {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(len(frame)-1))
		buf[i] = complex(float64(s)*w, 0)
	}
	fft(buf)

	var weighted, total float64
	binHz := float64(sampleRate) / float64(len(buf))
	for k := 0; k <= len(buf)/2; k++ {
		mag := cmplx.Abs(buf[k])
		weighted += float64(k) * binHz * mag
		total += mag
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// fft is an in-place iterative radix-2 transform; len(x) must be a power of two.
func fft(x []complex128) {
	n := len(x)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := range size / 2 {
				a := x[start+k]
				b := x[start+k+size/2] * w
				x[start+k] = a + b
				x[start+k+size/2] = a - b
				w *= step
			}
		}
	}
}

// framePitch finds the autocorrelation peak between pitchMinHz and pitchMaxHz.
func framePitch(frame []float32, sampleRate int) (float64, bool) {
	minLag := sampleRate / pitchMaxHz
	maxLag := sampleRate / pitchMinHz
	if minLag < 1 || maxLag+1 >= len(frame) {
		return 0, false
	}

	var energy float64
	for _, s := range frame {
		energy += float64(s) * float64(s)
	}
	if energy == 0 {
		return 0, false
	}

	corr := make([]float64, maxLag+2)
	best := 0.0
	for lag := minLag; lag <= maxLag+1; lag++ {
		var sum float64
		for i := 0; i+lag < len(frame); i++ {
			sum += float64(frame[i]) * float64(frame[i+lag])
		}
		// Normalize for the shrinking overlap.
		corr[lag] = sum / energy * float64(len(frame)) / float64(len(frame)-lag)
		if lag <= maxLag && corr[lag] > best {
			best = corr[lag]
		}
	}
	if best < voicingThreshold {
		return 0, false
	}

	// Shortest local peak within 10% of the best; multiples of the period
	// score nearly as high.
	for lag := minLag; lag <= maxLag; lag++ {
		if corr[lag] >= 0.9*best && corr[lag] >= corr[lag-1] && corr[lag] >= corr[lag+1] {
			return float64(sampleRate) / float64(lag), true
		}
	}
	return 0, false
}

// estimateTempo autocorrelates the positive energy flux between frames and
// returns the strongest period in BPM, or 0 when there are no onsets.
func estimateTempo(energies []float64, sampleRate int) float64 {
	if len(energies) < 3 {
		return 0
	}
	onset := make([]float64, len(energies))
	for i := 1; i < len(energies); i++ {
		onset[i] = math.Max(0, energies[i]-energies[i-1])
	}

	framesPerSec := float64(sampleRate) / hopSize
	minLag := int(math.Ceil(framesPerSec * 60 / tempoMaxBPM))
	maxLag := int(math.Floor(framesPerSec * 60 / tempoMinBPM))
	maxLag = min(maxLag, len(onset)-1)
	if minLag < 1 || minLag > maxLag {
		return 0
	}

	bestLag, best := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < len(onset); i++ {
			sum += onset[i] * onset[i+lag]
		}
		if sum > best {
			best, bestLag = sum, lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	return 60 * framesPerSec / float64(bestLag)
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
