// Package bench times repeated synthesis calls and reports latency and
// real-time factor for the voiceapi bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/example/voiceapi/internal/audio"
)

// Synthesizer produces one clip per call.
type Synthesizer func(ctx context.Context) (audio.Clip, error)

// Sample is one timed synthesis call.
type Sample struct {
	Run     int           `json:"run"`
	Cold    bool          `json:"cold"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Audio   time.Duration `json:"audio_ns"`
	RTF     float64       `json:"rtf"`
}

// Run calls synth n times. The first call is marked cold. On error the
// samples collected so far are returned alongside it.
func Run(ctx context.Context, n int, synth Synthesizer) ([]Sample, error) {
	if n < 1 {
		return nil, errors.New("runs must be >= 1")
	}

	samples := make([]Sample, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		start := time.Now()
		clip, err := synth(ctx)
		elapsed := time.Since(start)
		if err != nil {
			return samples, fmt.Errorf("run %d: %w", i, err)
		}
		samples = append(samples, Sample{
			Run:     i,
			Cold:    i == 1,
			Elapsed: elapsed,
			Audio:   clip.Duration(),
			RTF:     RTF(elapsed, clip.Duration()),
		})
	}
	return samples, nil
}

// RTF is elapsed/produced. Zero audio yields 0.
func RTF(elapsed, produced time.Duration) float64 {
	if produced <= 0 {
		return 0
	}
	return float64(elapsed) / float64(produced)
}

// Report aggregates samples. Latency figures cover warm runs only when there
// is more than one run.
type Report struct {
	Samples []Sample      `json:"samples"`
	Min     time.Duration `json:"min_ns"`
	Median  time.Duration `json:"median_ns"`
	Mean    time.Duration `json:"mean_ns"`
	Max     time.Duration `json:"max_ns"`
	MeanRTF float64       `json:"mean_rtf"`
}

func Summarize(samples []Sample) Report {
	r := Report{Samples: samples}
	warm := samples
	if len(warm) > 1 {
		warm = warm[1:]
	}
	if len(warm) == 0 {
		return r
	}

	elapsed := make([]time.Duration, len(warm))
	var total time.Duration
	for i, s := range warm {
		elapsed[i] = s.Elapsed
		total += s.Elapsed
		r.MeanRTF += s.RTF
	}
	slices.Sort(elapsed)

	r.Min = elapsed[0]
	r.Max = elapsed[len(elapsed)-1]
	r.Median = elapsed[len(elapsed)/2]
	r.Mean = total / time.Duration(len(warm))
	r.MeanRTF /= float64(len(warm))
	return r
}

// Check fails when the mean RTF is above limit. limit <= 0 disables it.
func (r Report) Check(limit float64) error {
	if limit > 0 && r.MeanRTF > limit {
		return fmt.Errorf("mean RTF %.3f exceeds threshold %.3f", r.MeanRTF, limit)
	}
	return nil
}

func ms(d time.Duration) string { return fmt.Sprintf("%.1f", float64(d)/float64(time.Millisecond)) }

func (r Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "run\t\telapsed ms\taudio ms\trtf\t")
	for _, s := range r.Samples {
		tag := ""
		if s.Cold {
			tag = "cold"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.3f\t\n", s.Run, tag, ms(s.Elapsed), ms(s.Audio), s.RTF)
	}
	fmt.Fprintln(tw, "\t\t\t\t\t")
	fmt.Fprintf(tw, "min\t\t%s\t\t\t\n", ms(r.Min))
	fmt.Fprintf(tw, "median\t\t%s\t\t\t\n", ms(r.Median))
	fmt.Fprintf(tw, "mean\t\t%s\t\t%.3f\t\n", ms(r.Mean), r.MeanRTF)
	fmt.Fprintf(tw, "max\t\t%s\t\t\t\n", ms(r.Max))
	return tw.Flush()
}

func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
