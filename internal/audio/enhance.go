package audio

// Enhancement parameters.
const (
	enhanceFrameMs   = 20
	enhanceGateRatio = 0.1
	enhancePeak      = 0.95
	enhanceFadeMs    = 10
)

// Enhance cleans up a recording: DC offset removal, a noise gate whose
// threshold follows the clip's own loudness, peak normalization and short
// fades at both ends so the clip starts and stops on silence.
func Enhance(clip Clip) Clip {
	if len(clip.Samples) == 0 {
		return clip
	}
	samples := DCBlock(clip.Samples, clip.SampleRate)

	frame := max(1, clip.SampleRate*enhanceFrameMs/1000)
	samples = NoiseGate(samples, frame, rms(samples)*enhanceGateRatio)
	samples = PeakNormalize(samples, enhancePeak)
	samples = FadeIn(samples, clip.SampleRate, enhanceFadeMs)
	samples = FadeOut(samples, clip.SampleRate, enhanceFadeMs)

	return Clip{Samples: samples, SampleRate: clip.SampleRate}
}
